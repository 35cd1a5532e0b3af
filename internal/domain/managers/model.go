package managers

import "time"

// VerificationStatus is the manager verification lifecycle.
type VerificationStatus string

const (
	VerificationPending   VerificationStatus = "pending"
	VerificationVerified  VerificationStatus = "verified"
	VerificationSuspended VerificationStatus = "suspended"
)

func (s VerificationStatus) Valid() bool {
	switch s {
	case VerificationPending, VerificationVerified, VerificationSuspended:
		return true
	}
	return false
}

// Manager maps to the manager table. ID is the manager-record id that
// documents reference as their origin authority; UserID is the owning user's
// account id. The two identifier spaces are distinct and must never be mixed.
type Manager struct {
	ID                 int64              `db:"id" json:"id"`
	UserID             int64              `db:"user_id" json:"user_id"`
	OrganizationName   string             `db:"organization_name" json:"organization_name"`
	VerificationStatus VerificationStatus `db:"verification_status" json:"verification_status"`
	CreatedAt          time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updated_at"`
}
