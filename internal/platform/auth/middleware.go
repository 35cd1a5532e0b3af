package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/medvault/medvault/internal/domain/actor"
)

const actorContextKey = "actor"

// Middleware authenticates requests with a bearer token and places the
// resulting Actor on the echo context. Paths listed in skipPaths pass
// through unauthenticated.
func Middleware(issuer *TokenIssuer, skipPaths ...string) echo.MiddlewareFunc {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skip[c.Path()] || skip[c.Request().URL.Path] {
				return next(c)
			}

			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}
			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "malformed authorization header")
			}

			a, err := issuer.Parse(tokenString)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(actorContextKey, a)
			return next(c)
		}
	}
}

// ActorFromContext returns the authenticated actor for the request.
func ActorFromContext(c echo.Context) (actor.Actor, error) {
	a, ok := c.Get(actorContextKey).(actor.Actor)
	if !ok {
		return actor.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "no authenticated actor")
	}
	return a, nil
}

// SetActor places an actor on the context directly. Intended for tests.
func SetActor(c echo.Context, a actor.Actor) {
	c.Set(actorContextKey, a)
}

// RequireActorType rejects requests whose actor is not one of the given types.
func RequireActorType(types ...actor.Type) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			a, err := ActorFromContext(c)
			if err != nil {
				return err
			}
			for _, t := range types {
				if a.Type == t {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "actor type not permitted")
		}
	}
}
