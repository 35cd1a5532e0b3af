package users

import (
	"context"
	"time"
)

// Repository is the persistence port for user accounts.
type Repository interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByExternal(ctx context.Context, provider, externalID string) (*User, error)
	TouchLogin(ctx context.Context, id int64, at time.Time) error
}

// SocialIdentity is a verified identity returned by an external provider.
type SocialIdentity struct {
	Provider   string
	ExternalID string
	Email      string
	Name       string
}

// SocialIdentityResolver verifies a provider-issued credential and returns
// the identity it proves. Implementations live at the platform edge; the
// service only sees the resolved identity.
type SocialIdentityResolver interface {
	Resolve(ctx context.Context, provider, credential string) (*SocialIdentity, error)
}
