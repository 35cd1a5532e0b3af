package access

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/medvault/medvault/internal/domain/actor"
	"github.com/medvault/medvault/internal/domain/documents"
	"github.com/medvault/medvault/internal/domain/managers"
	"github.com/medvault/medvault/internal/platform/hipaa"
)

// AuthorityService owns the access-resolution rules and the grant lifecycle.
// Every authorization decision re-reads current store state; nothing is
// cached, so a revocation takes effect on the very next check.
type AuthorityService struct {
	grants GrantRepository
	docs   documents.Repository
	dir    managers.Directory
	audit  hipaa.Sink
	now    func() time.Time
}

func NewAuthorityService(grants GrantRepository, docs documents.Repository, dir managers.Directory, audit hipaa.Sink) *AuthorityService {
	return &AuthorityService{
		grants: grants,
		docs:   docs,
		dir:    dir,
		audit:  audit,
		now:    time.Now,
	}
}

// resolveManagerAuthority translates an actor's user id into its
// manager-record id via the manager directory. Actor.ID is always a user id;
// manager authority (document origin, manager-subject grants) is keyed by the
// manager-record id, and this helper is the only place that translation
// happens. Returns ok=false when the actor is not a manager or owns no
// manager record.
func (s *AuthorityService) resolveManagerAuthority(ctx context.Context, a actor.Actor) (int64, bool, error) {
	if !a.IsManager() {
		return 0, false, nil
	}
	m, err := s.dir.FindByUserID(ctx, a.ID)
	if errors.Is(err, managers.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return m.ID, true, nil
}

// HasAccess reports whether the actor may read the document. A missing
// document resolves to false, not an error, so callers cannot distinguish
// absence from denial.
//
// Resolution order: implicit origin authority first (self-managed uploader or
// origin manager), then the admin hard-deny, then active grant lookup. The
// admin check sits before the grant lookup so a stray grant row naming an
// admin can never take effect.
func (s *AuthorityService) HasAccess(ctx context.Context, documentID uuid.UUID, a actor.Actor) (bool, error) {
	doc, err := s.docs.FindByID(ctx, documentID)
	if errors.Is(err, documents.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	managerID, hasManagerRecord, err := s.resolveManagerAuthority(ctx, a)
	if err != nil {
		return false, err
	}

	if doc.SelfManaged() {
		if a.IsUser() && doc.OriginUserContextID != nil && *doc.OriginUserContextID == a.ID {
			return true, nil
		}
	} else if hasManagerRecord && managerID == *doc.OriginManagerID {
		return true, nil
	}

	if a.IsAdmin() {
		return false, nil
	}

	subjectID := a.ID
	if a.IsManager() {
		if !hasManagerRecord {
			return false, nil
		}
		subjectID = managerID
	}
	_, err = s.grants.FindActive(ctx, documentID, a.Type, subjectID)
	if errors.Is(err, ErrGrantNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// IsOriginAuthority reports whether the actor is the document's implicit
// authority root: the uploading user of a self-managed document, or the
// origin manager of a managed one.
func (s *AuthorityService) IsOriginAuthority(ctx context.Context, doc *documents.Document, a actor.Actor) (bool, error) {
	if doc.SelfManaged() {
		return a.IsUser() && doc.OriginUserContextID != nil && *doc.OriginUserContextID == a.ID, nil
	}
	managerID, ok, err := s.resolveManagerAuthority(ctx, a)
	if err != nil {
		return false, err
	}
	return ok && managerID == *doc.OriginManagerID, nil
}

// CreateGrantInput carries the caller-supplied fields of a new grant.
type CreateGrantInput struct {
	DocumentID  uuid.UUID
	SubjectType actor.Type
	SubjectID   int64
	GrantType   GrantType
}

// CreateGrant extends document access to a new subject. There is no separate
// can-grant capability: anyone with access, implicit or granted, may extend
// it further.
//
// Preconditions, checked in order: the document exists (ErrNotFound), the
// grantor has access (ErrForbidden), the subject is not the document's
// implicit origin authority (ErrImplicitGrantee), and no active grant already
// exists for the tuple (ErrAlreadyGranted). The duplicate pre-check is a
// fast-path error only; the repository's unique index is the real enforcement
// under concurrent writers.
func (s *AuthorityService) CreateGrant(ctx context.Context, in CreateGrantInput, grantor actor.Actor) (*AccessGrant, error) {
	g, err := s.createGrant(ctx, in, grantor)
	s.audit.LogEvent(ctx, hipaa.Event{
		ActorID:   grantor.ID,
		ActorType: string(grantor.Type),
		Kind:      hipaa.EventGrantCreate,
		Success:   err == nil,
		Metadata: map[string]string{
			"document_id":  in.DocumentID.String(),
			"subject_type": string(in.SubjectType),
			"subject_id":   strconv.FormatInt(in.SubjectID, 10),
		},
	})
	return g, err
}

func (s *AuthorityService) createGrant(ctx context.Context, in CreateGrantInput, grantor actor.Actor) (*AccessGrant, error) {
	if _, err := actor.ParseSubjectType(string(in.SubjectType)); err != nil {
		return nil, err
	}
	if in.GrantType == "" {
		in.GrantType = GrantDelegated
	}
	if _, err := ParseGrantType(string(in.GrantType)); err != nil {
		return nil, err
	}

	doc, err := s.docs.FindByID(ctx, in.DocumentID)
	if errors.Is(err, documents.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	ok, err := s.HasAccess(ctx, in.DocumentID, grantor)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("grantor has no access to document: %w", ErrForbidden)
	}

	if s.isImplicitAuthority(doc, in.SubjectType, in.SubjectID) {
		return nil, ErrImplicitGrantee
	}

	if _, err := s.grants.FindActive(ctx, in.DocumentID, in.SubjectType, in.SubjectID); err == nil {
		return nil, ErrAlreadyGranted
	} else if !errors.Is(err, ErrGrantNotFound) {
		return nil, err
	}

	g := &AccessGrant{
		DocumentID:    in.DocumentID,
		SubjectType:   in.SubjectType,
		SubjectID:     in.SubjectID,
		GrantType:     in.GrantType,
		GrantedByType: grantor.Type,
		GrantedByID:   grantor.ID,
	}
	if err := s.grants.Create(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// isImplicitAuthority reports whether the subject tuple names the document's
// origin authority. Manager subjects are compared against originManagerId
// directly since both live in the manager-record id space.
func (s *AuthorityService) isImplicitAuthority(doc *documents.Document, subjectType actor.Type, subjectID int64) bool {
	if doc.SelfManaged() {
		return subjectType == actor.TypeUser && doc.OriginUserContextID != nil && *doc.OriginUserContextID == subjectID
	}
	return subjectType == actor.TypeManager && subjectID == *doc.OriginManagerID
}

// RevokeGrant revokes a grant. Only the document's origin authority or the
// grant's original grantor may revoke. Revoking an already-revoked grant is
// rejected, not silently accepted. Revocation never cascades: derived grants
// descended from a delegated grant remain active after the parent is revoked.
func (s *AuthorityService) RevokeGrant(ctx context.Context, grantID uuid.UUID, revoker actor.Actor) error {
	err := s.revokeGrant(ctx, grantID, revoker)
	s.audit.LogEvent(ctx, hipaa.Event{
		ActorID:   revoker.ID,
		ActorType: string(revoker.Type),
		Kind:      hipaa.EventGrantRevoke,
		Success:   err == nil,
		Metadata:  map[string]string{"grant_id": grantID.String()},
	})
	return err
}

func (s *AuthorityService) revokeGrant(ctx context.Context, grantID uuid.UUID, revoker actor.Actor) error {
	g, err := s.grants.FindByID(ctx, grantID)
	if err != nil {
		return err
	}
	if !g.Active() {
		return ErrAlreadyRevoked
	}

	authorized := g.GrantedByType == revoker.Type && g.GrantedByID == revoker.ID
	if !authorized {
		doc, err := s.docs.FindByID(ctx, g.DocumentID)
		if err != nil && !errors.Is(err, documents.ErrNotFound) {
			return err
		}
		if doc != nil {
			authorized, err = s.IsOriginAuthority(ctx, doc, revoker)
			if err != nil {
				return err
			}
		}
	}
	if !authorized {
		return fmt.Errorf("revoker is neither origin authority nor original grantor: %w", ErrForbidden)
	}

	return s.grants.Revoke(ctx, grantID, revoker, s.now().UTC())
}

// ActiveGrants returns the active grants for a document; revoked grants stay
// in history and are not reported. Authorization is the caller's
// responsibility.
func (s *AuthorityService) ActiveGrants(ctx context.Context, documentID uuid.UUID) ([]*AccessGrant, error) {
	all, err := s.grants.FindByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	var active []*AccessGrant
	for _, g := range all {
		if g.Active() {
			active = append(active, g)
		}
	}
	return active, nil
}

// ActiveGrantsForSubject returns the active grants held by a subject.
func (s *AuthorityService) ActiveGrantsForSubject(ctx context.Context, subjectType actor.Type, subjectID int64) ([]*AccessGrant, error) {
	return s.grants.FindActiveBySubject(ctx, subjectType, subjectID)
}

// GrantByID returns a grant by id, revoked or not.
func (s *AuthorityService) GrantByID(ctx context.Context, id uuid.UUID) (*AccessGrant, error) {
	return s.grants.FindByID(ctx, id)
}
