// Package auth issues and verifies the bearer tokens that carry an Actor
// identity into the API. Tokens are HS256-signed; the subject claim is the
// user id and actor_type distinguishes user, manager and admin sessions.
package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/medvault/medvault/internal/domain/actor"
)

type Claims struct {
	jwt.RegisteredClaims
	ActorType string `json:"actor_type"`
}

// TokenIssuer signs and verifies actor tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewTokenIssuer(secret []byte, issuer string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: secret, issuer: issuer, ttl: ttl}
}

// Issue returns a signed token for the actor.
func (t *TokenIssuer) Issue(a actor.Actor) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   strconv.FormatInt(a.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		ActorType: string(a.Type),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Parse verifies a token and reconstructs the actor it carries.
func (t *TokenIssuer) Parse(tokenString string) (actor.Actor, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithIssuer(t.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return actor.Actor{}, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return actor.Actor{}, fmt.Errorf("invalid token")
	}

	actorType, err := actor.ParseType(claims.ActorType)
	if err != nil {
		return actor.Actor{}, err
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return actor.Actor{}, fmt.Errorf("invalid subject claim: %w", err)
	}
	return actor.Actor{Type: actorType, ID: id}, nil
}
