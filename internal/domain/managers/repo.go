package managers

import "context"

// Directory resolves user identities to manager records. It is the only
// translation point between user ids and manager-record ids.
type Directory interface {
	Create(ctx context.Context, m *Manager) error
	FindByID(ctx context.Context, id int64) (*Manager, error)
	FindByUserID(ctx context.Context, userID int64) (*Manager, error)
	SetVerificationStatus(ctx context.Context, id int64, status VerificationStatus) error
	List(ctx context.Context, limit, offset int) ([]*Manager, int, error)
}
