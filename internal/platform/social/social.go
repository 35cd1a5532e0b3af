// Package social resolves provider-issued credentials into verified
// identities by calling the provider's OpenID Connect userinfo endpoint.
package social

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/medvault/medvault/internal/domain/users"
)

// DefaultEndpoints maps known providers to their userinfo endpoints.
func DefaultEndpoints() map[string]string {
	return map[string]string{
		"google": "https://openidconnect.googleapis.com/v1/userinfo",
	}
}

// Resolver verifies access tokens against provider userinfo endpoints.
type Resolver struct {
	client    *http.Client
	endpoints map[string]string
}

func NewResolver(endpoints map[string]string) *Resolver {
	return &Resolver{
		client:    &http.Client{Timeout: 10 * time.Second},
		endpoints: endpoints,
	}
}

// Resolve calls the provider's userinfo endpoint with the credential as a
// bearer token. A non-200 response means the credential does not prove an
// identity.
func (r *Resolver) Resolve(ctx context.Context, provider, credential string) (*users.SocialIdentity, error) {
	endpoint, ok := r.endpoints[provider]
	if !ok {
		return nil, fmt.Errorf("unsupported provider %q", provider)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider %q rejected credential (status %d)", provider, resp.StatusCode)
	}

	var info struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.Sub == "" || info.Email == "" {
		return nil, fmt.Errorf("provider %q returned incomplete identity", provider)
	}

	return &users.SocialIdentity{
		Provider:   provider,
		ExternalID: info.Sub,
		Email:      info.Email,
		Name:       info.Name,
	}, nil
}
