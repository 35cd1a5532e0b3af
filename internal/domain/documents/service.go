package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no document row exists for the requested id.
// Repository adapters translate their driver's no-rows error into this.
var ErrNotFound = errors.New("document not found")

// Service owns document state: creation and lifecycle transitions. It holds
// no authorization logic; callers decide who may ask for a transition.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) Create(ctx context.Context, d *Document) error {
	if d.OriginManagerID == nil && d.OriginUserContextID == nil {
		return fmt.Errorf("document requires an authority root: origin manager or uploading user")
	}
	if d.OriginManagerID != nil && d.OriginUserContextID != nil {
		return fmt.Errorf("document cannot have both an origin manager and a self-managed user context")
	}
	if d.Status == "" {
		d.Status = StatusUploaded
	}
	if !d.Status.Valid() {
		return fmt.Errorf("invalid status: %s", d.Status)
	}
	return s.repo.Create(ctx, d)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Document, error) {
	return s.repo.FindByID(ctx, id)
}

// Transition moves a document to the target status after validating the
// change against the lifecycle table. Same-status requests are no-ops.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, to Status) (*Document, error) {
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ValidateTransition(doc.Status, to); err != nil {
		return nil, err
	}
	if doc.Status == to {
		return doc, nil
	}
	if err := s.repo.UpdateStatus(ctx, id, to); err != nil {
		return nil, err
	}
	doc.Status = to
	return doc, nil
}

// RecordOCRSuccess stores the extracted text and moves the document to
// PROCESSED.
func (s *Service) RecordOCRSuccess(ctx context.Context, id uuid.UUID, text string, pageCount int) (*Document, error) {
	doc, err := s.Transition(ctx, id, StatusProcessed)
	if err != nil {
		return nil, err
	}
	completedAt := s.now().UTC()
	if err := s.repo.SetOCRResult(ctx, id, text, pageCount, completedAt); err != nil {
		return nil, err
	}
	doc.OCRText = &text
	doc.PageCount = &pageCount
	doc.OCRCompletedAt = &completedAt
	return doc, nil
}

// SoftDelete archives the document and schedules its physical purge for the
// end of the retention window. Archived is terminal; the row survives until
// the sweep so audit references stay resolvable.
func (s *Service) SoftDelete(ctx context.Context, id uuid.UUID, retention time.Duration) (*Document, error) {
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Status == StatusArchived {
		return doc, nil
	}
	now := s.now().UTC()
	scheduled := now.Add(retention)
	if err := s.repo.SoftDelete(ctx, id, now, scheduled); err != nil {
		return nil, err
	}
	doc.Status = StatusArchived
	doc.DeletedAt = &now
	doc.ScheduledDeletionAt = &scheduled
	return doc, nil
}

// PurgeExpired removes archived documents whose retention window has passed
// and returns the purged rows so callers can clean up their blobs.
func (s *Service) PurgeExpired(ctx context.Context) ([]*Document, error) {
	return s.repo.PurgeExpired(ctx, s.now().UTC())
}

// RecordOCRFailure moves the document to FAILED and stores the failure reason.
func (s *Service) RecordOCRFailure(ctx context.Context, id uuid.UUID, reason string) (*Document, error) {
	doc, err := s.Transition(ctx, id, StatusFailed)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetOCRFailure(ctx, id, reason); err != nil {
		return nil, err
	}
	doc.OCRError = &reason
	return doc, nil
}
