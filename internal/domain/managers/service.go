package managers

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when no manager record exists for the lookup.
var ErrNotFound = errors.New("manager not found")

// ErrAlreadyRegistered is returned when the user already owns a manager record.
var ErrAlreadyRegistered = errors.New("user already has a manager record")

type Service struct {
	dir Directory
}

func NewService(dir Directory) *Service {
	return &Service{dir: dir}
}

// Register creates a manager record for the user in pending verification
// state. A user owns at most one manager record.
func (s *Service) Register(ctx context.Context, userID int64, organizationName string) (*Manager, error) {
	if organizationName == "" {
		return nil, fmt.Errorf("organization_name is required")
	}
	if existing, err := s.dir.FindByUserID(ctx, userID); err == nil && existing != nil {
		return nil, ErrAlreadyRegistered
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	m := &Manager{
		UserID:             userID,
		OrganizationName:   organizationName,
		VerificationStatus: VerificationPending,
	}
	if err := s.dir.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Manager, error) {
	return s.dir.FindByID(ctx, id)
}

func (s *Service) GetByUserID(ctx context.Context, userID int64) (*Manager, error) {
	return s.dir.FindByUserID(ctx, userID)
}

func (s *Service) Verify(ctx context.Context, id int64) error {
	return s.setStatus(ctx, id, VerificationVerified)
}

func (s *Service) Suspend(ctx context.Context, id int64) error {
	return s.setStatus(ctx, id, VerificationSuspended)
}

func (s *Service) setStatus(ctx context.Context, id int64, status VerificationStatus) error {
	if _, err := s.dir.FindByID(ctx, id); err != nil {
		return err
	}
	return s.dir.SetVerificationStatus(ctx, id, status)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Manager, int, error) {
	return s.dir.List(ctx, limit, offset)
}
