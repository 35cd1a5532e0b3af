// Package actor defines the runtime identity attempting an operation.
// An Actor is constructed at the HTTP boundary from authenticated session
// data and passed into the domain services; it is never persisted.
package actor

import "fmt"

// Type is the closed set of actor categories.
type Type string

const (
	TypeUser    Type = "user"
	TypeManager Type = "manager"
	TypeAdmin   Type = "admin"
)

// Actor identifies who is performing an operation. ID is always a user id,
// never a manager-record id, even when Type is TypeManager: authority checks
// that need the manager-record id resolve it through the manager directory.
type Actor struct {
	Type Type  `json:"type"`
	ID   int64 `json:"id"`
}

func (a Actor) IsAdmin() bool   { return a.Type == TypeAdmin }
func (a Actor) IsUser() bool    { return a.Type == TypeUser }
func (a Actor) IsManager() bool { return a.Type == TypeManager }

// ParseType validates a string as an actor type.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeUser, TypeManager, TypeAdmin:
		return Type(s), nil
	}
	return "", fmt.Errorf("invalid actor type: %q", s)
}

// ParseSubjectType validates a string as a grant subject type. Admins never
// carry document-level authority, so they are not valid grant subjects.
func ParseSubjectType(s string) (Type, error) {
	switch Type(s) {
	case TypeUser, TypeManager:
		return Type(s), nil
	}
	return "", fmt.Errorf("invalid grant subject type: %q", s)
}
