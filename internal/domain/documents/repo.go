package documents

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListOptions filters and paginates origin-manager document listings.
type ListOptions struct {
	Status *Status
	Limit  int
	Offset int
}

// Repository is the persistence port for document records.
type Repository interface {
	Create(ctx context.Context, d *Document) error
	FindByID(ctx context.Context, id uuid.UUID) (*Document, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*Document, error)
	FindByOriginManager(ctx context.Context, managerID int64, opts ListOptions) ([]*Document, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	SetOCRResult(ctx context.Context, id uuid.UUID, text string, pageCount int, completedAt time.Time) error
	SetOCRFailure(ctx context.Context, id uuid.UUID, reason string) error
	SoftDelete(ctx context.Context, id uuid.UUID, deletedAt, scheduledDeletionAt time.Time) error
	PurgeExpired(ctx context.Context, now time.Time) ([]*Document, error)
}
