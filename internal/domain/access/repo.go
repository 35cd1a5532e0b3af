package access

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medvault/medvault/internal/domain/actor"
)

// GrantRepository is the persistence port for access grants.
//
// Create must enforce the single-active-grant invariant atomically: if an
// active grant already exists for the same (document, subject type, subject
// id) tuple, it returns ErrAlreadyGranted. The Postgres adapter backs this
// with a partial unique index so concurrent creates cannot both succeed.
type GrantRepository interface {
	Create(ctx context.Context, g *AccessGrant) error
	FindByID(ctx context.Context, id uuid.UUID) (*AccessGrant, error)
	// FindActive returns the active grant for the tuple, or ErrGrantNotFound.
	FindActive(ctx context.Context, documentID uuid.UUID, subjectType actor.Type, subjectID int64) (*AccessGrant, error)
	// FindByDocument returns all grants for a document, active and revoked.
	FindByDocument(ctx context.Context, documentID uuid.UUID) ([]*AccessGrant, error)
	// FindActiveBySubject returns all active grants held by a subject.
	FindActiveBySubject(ctx context.Context, subjectType actor.Type, subjectID int64) ([]*AccessGrant, error)
	// Revoke marks the grant revoked. Returns ErrGrantNotFound if the id does
	// not exist and ErrAlreadyRevoked if it is already revoked.
	Revoke(ctx context.Context, id uuid.UUID, by actor.Actor, at time.Time) error
}
