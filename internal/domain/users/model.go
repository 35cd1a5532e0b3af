package users

import "time"

// User is a platform account. A user may additionally own a manager record
// (see the managers package); Actor.ID always refers to this table's id.
type User struct {
	ID           int64      `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	DisplayName  string     `db:"display_name" json:"display_name"`
	IsAdmin      bool       `db:"is_admin" json:"is_admin"`
	Provider     *string    `db:"provider" json:"provider,omitempty"`
	ExternalID   *string    `db:"external_id" json:"-"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
}
