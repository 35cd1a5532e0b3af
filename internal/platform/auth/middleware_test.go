package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medvault/medvault/internal/domain/actor"
)

func testIssuer() *TokenIssuer {
	return NewTokenIssuer([]byte("test-secret"), "medvault-test", time.Hour)
}

func TestTokenRoundTrip(t *testing.T) {
	issuer := testIssuer()
	want := actor.Actor{Type: actor.TypeManager, ID: 42}

	token, err := issuer.Issue(want)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	got, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got != want {
		t.Fatalf("round trip = %+v, want %+v", got, want)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := testIssuer().Issue(actor.Actor{Type: actor.TypeUser, ID: 1})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	other := NewTokenIssuer([]byte("different-secret"), "medvault-test", time.Hour)
	if _, err := other.Parse(token); err == nil {
		t.Fatal("token signed with another secret was accepted")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	issuer := NewTokenIssuer([]byte("test-secret"), "medvault-test", -time.Minute)
	token, err := issuer.Issue(actor.Actor{Type: actor.TypeUser, ID: 1})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := issuer.Parse(token); err == nil {
		t.Fatal("expired token was accepted")
	}
}

func TestMiddleware(t *testing.T) {
	issuer := testIssuer()
	e := echo.New()
	handler := func(c echo.Context) error {
		a, err := ActorFromContext(c)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, a)
	}
	mw := Middleware(issuer, "/health")

	t.Run("valid token", func(t *testing.T) {
		token, _ := issuer.Issue(actor.Actor{Type: actor.TypeUser, ID: 7})
		req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		if err := mw(handler)(c); err != nil {
			t.Fatalf("middleware: %v", err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
		c := e.NewContext(req, httptest.NewRecorder())

		err := mw(handler)(c)
		httpErr, ok := err.(*echo.HTTPError)
		if !ok || httpErr.Code != http.StatusUnauthorized {
			t.Fatalf("err = %v, want 401", err)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer not-a-token")
		c := e.NewContext(req, httptest.NewRecorder())

		err := mw(handler)(c)
		httpErr, ok := err.(*echo.HTTPError)
		if !ok || httpErr.Code != http.StatusUnauthorized {
			t.Fatalf("err = %v, want 401", err)
		}
	})

	t.Run("skip path", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		passed := false
		err := mw(func(c echo.Context) error {
			passed = true
			return c.NoContent(http.StatusOK)
		})(c)
		if err != nil || !passed {
			t.Fatalf("skip path blocked: err=%v passed=%v", err, passed)
		}
	})
}

func TestRequireActorType(t *testing.T) {
	e := echo.New()
	handler := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	mw := RequireActorType(actor.TypeAdmin)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/managers", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	SetActor(c, actor.Actor{Type: actor.TypeUser, ID: 7})

	err := mw(handler)(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusForbidden {
		t.Fatalf("user passed admin gate: %v", err)
	}

	c2 := e.NewContext(req, httptest.NewRecorder())
	SetActor(c2, actor.Actor{Type: actor.TypeAdmin, ID: 1})
	if err := mw(handler)(c2); err != nil {
		t.Fatalf("admin blocked: %v", err)
	}
}
