package access

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/medvault/medvault/internal/domain/actor"
	"github.com/medvault/medvault/internal/domain/documents"
	"github.com/medvault/medvault/internal/platform/hipaa"
)

// Operation is a document-level action subject to authorization.
type Operation string

const (
	OpView       Operation = "view"
	OpDownload   Operation = "download"
	OpTriggerOCR Operation = "trigger-ocr"
	OpDelete     Operation = "delete"
)

// ParseOperation validates a string as an operation.
func ParseOperation(s string) (Operation, error) {
	switch Operation(s) {
	case OpView, OpDownload, OpTriggerOCR, OpDelete:
		return Operation(s), nil
	}
	return "", fmt.Errorf("unknown operation: %q", s)
}

// ListOptions paginates and filters an actor's document listing.
type ListOptions struct {
	Skip   int
	Limit  int
	Status *documents.Status
}

// Page is one page of an actor-scoped document listing.
type Page struct {
	Data  []*documents.Document `json:"data"`
	Total int                   `json:"total"`
	Skip  int                   `json:"skip"`
	Limit int                   `json:"limit"`
}

// fanOutCap bounds the candidate set assembled for a listing before
// in-memory pagination.
const fanOutCap = 10000

// Service answers authorization questions on behalf of the HTTP boundary and
// performs authorized reads. It never reveals document existence to an actor
// who is not authorized to read the document.
type Service struct {
	authority *AuthorityService
	docs      documents.Repository
	audit     hipaa.Sink
}

func NewService(authority *AuthorityService, docs documents.Repository, audit hipaa.Sink) *Service {
	return &Service{authority: authority, docs: docs, audit: audit}
}

// GetDocument fetches a document for an authorized actor. Admins are refused
// outright. For everyone else, an absent document and a present-but-denied
// document produce the same ErrNotFound from the same code path, so the call
// cannot be used as an existence oracle. Every call is audit-logged.
func (s *Service) GetDocument(ctx context.Context, documentID uuid.UUID, a actor.Actor) (*documents.Document, error) {
	doc, err := s.getDocument(ctx, documentID, a)
	s.audit.LogEvent(ctx, hipaa.Event{
		ActorID:   a.ID,
		ActorType: string(a.Type),
		Kind:      hipaa.EventDocumentAccess,
		Success:   err == nil,
		Metadata:  map[string]string{"document_id": documentID.String()},
	})
	return doc, err
}

func (s *Service) getDocument(ctx context.Context, documentID uuid.UUID, a actor.Actor) (*documents.Document, error) {
	if a.IsAdmin() {
		return nil, ErrForbidden
	}
	ok, err := s.authority.HasAccess(ctx, documentID, a)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	doc, err := s.docs.FindByID(ctx, documentID)
	if errors.Is(err, documents.ErrNotFound) {
		return nil, ErrNotFound
	}
	return doc, err
}

// CanPerformOperation answers whether the actor may perform the operation on
// the document. Admins always get false. Trigger-ocr and delete are reserved
// for the origin authority; view and download follow HasAccess. A missing
// document resolves to false.
func (s *Service) CanPerformOperation(ctx context.Context, documentID uuid.UUID, op Operation, a actor.Actor) (bool, error) {
	if _, err := ParseOperation(string(op)); err != nil {
		return false, err
	}
	if a.IsAdmin() {
		return false, nil
	}
	switch op {
	case OpTriggerOCR, OpDelete:
		doc, err := s.docs.FindByID(ctx, documentID)
		if errors.Is(err, documents.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return s.authority.IsOriginAuthority(ctx, doc, a)
	default:
		return s.authority.HasAccess(ctx, documentID, a)
	}
}

// ListDocuments returns the page of documents the actor can reach: documents
// held through active grants, plus, for managers, documents where the actor
// is origin manager. Admins get an empty page. The union is deduplicated and
// paginated in memory; this is a fan-out read with no write side effects.
func (s *Service) ListDocuments(ctx context.Context, a actor.Actor, opts ListOptions) (*Page, error) {
	page, err := s.listDocuments(ctx, a, opts)
	s.audit.LogEvent(ctx, hipaa.Event{
		ActorID:   a.ID,
		ActorType: string(a.Type),
		Kind:      hipaa.EventDocumentList,
		Success:   err == nil,
		Metadata:  map[string]string{"skip": strconv.Itoa(opts.Skip), "limit": strconv.Itoa(opts.Limit)},
	})
	return page, err
}

func (s *Service) listDocuments(ctx context.Context, a actor.Actor, opts ListOptions) (*Page, error) {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Skip < 0 {
		opts.Skip = 0
	}
	if a.IsAdmin() {
		return &Page{Data: []*documents.Document{}, Skip: opts.Skip, Limit: opts.Limit}, nil
	}

	subjectID := a.ID
	var managerID int64
	var hasManagerRecord bool
	if a.IsManager() {
		var err error
		managerID, hasManagerRecord, err = s.authority.resolveManagerAuthority(ctx, a)
		if err != nil {
			return nil, err
		}
		subjectID = managerID
	}

	seen := make(map[uuid.UUID]struct{})
	var combined []*documents.Document

	if !a.IsManager() || hasManagerRecord {
		grants, err := s.authority.ActiveGrantsForSubject(ctx, a.Type, subjectID)
		if err != nil {
			return nil, err
		}
		ids := make([]uuid.UUID, 0, len(grants))
		for _, g := range grants {
			if _, dup := seen[g.DocumentID]; dup {
				continue
			}
			seen[g.DocumentID] = struct{}{}
			ids = append(ids, g.DocumentID)
		}
		if len(ids) > 0 {
			docs, err := s.docs.FindByIDs(ctx, ids)
			if err != nil {
				return nil, err
			}
			combined = append(combined, docs...)
		}
	}

	if hasManagerRecord {
		owned, _, err := s.docs.FindByOriginManager(ctx, managerID, documents.ListOptions{
			Status: opts.Status,
			Limit:  fanOutCap,
		})
		if err != nil {
			return nil, err
		}
		for _, d := range owned {
			if _, dup := seen[d.ID]; dup {
				continue
			}
			seen[d.ID] = struct{}{}
			combined = append(combined, d)
		}
	}

	filtered := combined[:0]
	for _, d := range combined {
		if opts.Status != nil && d.Status != *opts.Status {
			continue
		}
		filtered = append(filtered, d)
	}

	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].CreatedAt.Equal(filtered[j].CreatedAt) {
			return filtered[i].ID.String() < filtered[j].ID.String()
		}
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	total := len(filtered)
	start := opts.Skip
	if start > total {
		start = total
	}
	end := start + opts.Limit
	if end > total {
		end = total
	}
	data := filtered[start:end]
	if data == nil {
		data = []*documents.Document{}
	}
	return &Page{Data: data, Total: total, Skip: opts.Skip, Limit: opts.Limit}, nil
}
