package social

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sub":"ext-123","email":"pat@example.com","name":"Pat"}`))
	}))
	defer srv.Close()

	r := NewResolver(map[string]string{"google": srv.URL})

	id, err := r.Resolve(context.Background(), "google", "good-token")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id.ExternalID != "ext-123" || id.Email != "pat@example.com" || id.Provider != "google" {
		t.Errorf("unexpected identity: %+v", id)
	}

	if _, err := r.Resolve(context.Background(), "google", "bad-token"); err == nil {
		t.Error("expected error for rejected credential")
	}

	if _, err := r.Resolve(context.Background(), "unknown", "good-token"); err == nil {
		t.Error("expected error for unsupported provider")
	}
}

func TestResolve_IncompleteIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"sub":"ext-123"}`))
	}))
	defer srv.Close()

	r := NewResolver(map[string]string{"google": srv.URL})
	if _, err := r.Resolve(context.Background(), "google", "token"); err == nil {
		t.Error("expected error when email is missing")
	}
}
