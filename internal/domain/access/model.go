package access

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medvault/medvault/internal/domain/actor"
)

// GrantType records authority provenance. The tags are informational today:
// revoking a delegated grant does not cascade into derived grants.
type GrantType string

const (
	GrantOwner     GrantType = "owner"
	GrantDelegated GrantType = "delegated"
	GrantDerived   GrantType = "derived"
)

// ParseGrantType validates a string as a grant type.
func ParseGrantType(s string) (GrantType, error) {
	switch GrantType(s) {
	case GrantOwner, GrantDelegated, GrantDerived:
		return GrantType(s), nil
	}
	return "", fmt.Errorf("invalid grant type: %q", s)
}

// AccessGrant is an explicit, revocable authorization extending document
// access beyond the origin authority. Grants are never hard-deleted; the only
// mutation is the one-way transition from active to revoked.
//
// SubjectID lives in the identifier space of its SubjectType: a user id for
// user subjects, a manager-record id for manager subjects. The same
// convention applies to every authority lookup.
type AccessGrant struct {
	ID            uuid.UUID   `db:"id" json:"id"`
	DocumentID    uuid.UUID   `db:"document_id" json:"document_id"`
	SubjectType   actor.Type  `db:"subject_type" json:"subject_type"`
	SubjectID     int64       `db:"subject_id" json:"subject_id"`
	GrantType     GrantType   `db:"grant_type" json:"grant_type"`
	GrantedByType actor.Type  `db:"granted_by_type" json:"granted_by_type"`
	GrantedByID   int64       `db:"granted_by_id" json:"granted_by_id"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	RevokedAt     *time.Time  `db:"revoked_at" json:"revoked_at,omitempty"`
	RevokedByType *actor.Type `db:"revoked_by_type" json:"revoked_by_type,omitempty"`
	RevokedByID   *int64      `db:"revoked_by_id" json:"revoked_by_id,omitempty"`
}

// Active reports whether the grant has not been revoked.
func (g *AccessGrant) Active() bool { return g.RevokedAt == nil }
