// Package processing orchestrates the document pipeline: upload, explicit OCR
// triggering, retries, download, deletion and the retention sweep. It owns no
// authorization rules of its own; every decision is delegated to the access
// package.
package processing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medvault/medvault/internal/domain/access"
	"github.com/medvault/medvault/internal/domain/actor"
	"github.com/medvault/medvault/internal/domain/documents"
	"github.com/medvault/medvault/internal/domain/managers"
	"github.com/medvault/medvault/internal/platform/blobstore"
	"github.com/medvault/medvault/internal/platform/hipaa"
	"github.com/medvault/medvault/internal/platform/ocr"
)

// ErrNotProcessable is returned when OCR is requested for a document whose
// status does not admit processing.
var ErrNotProcessable = errors.New("document is not in a processable state")

type Service struct {
	access    *access.Service
	docs      *documents.Service
	dir       managers.Directory
	blobs     blobstore.Store
	processor ocr.Processor
	audit     hipaa.Sink
	logger    zerolog.Logger
	retention time.Duration
}

func NewService(
	accessSvc *access.Service,
	docs *documents.Service,
	dir managers.Directory,
	blobs blobstore.Store,
	processor ocr.Processor,
	audit hipaa.Sink,
	logger zerolog.Logger,
	retention time.Duration,
) *Service {
	return &Service{
		access:    accessSvc,
		docs:      docs,
		dir:       dir,
		blobs:     blobs,
		processor: processor,
		audit:     audit,
		logger:    logger,
		retention: retention,
	}
}

// Upload stores content and creates the document record under the uploader's
// authority root: the manager record for manager actors, the user context for
// plain users. Upload never starts OCR; every PROCESSING entry is an explicit
// trigger or a retry.
func (s *Service) Upload(ctx context.Context, a actor.Actor, fileName, contentType string, content io.Reader) (*documents.Document, error) {
	doc, err := s.upload(ctx, a, fileName, contentType, content)
	s.audit.LogEvent(ctx, hipaa.Event{
		ActorID:   a.ID,
		ActorType: string(a.Type),
		Kind:      hipaa.EventDocumentUpload,
		Success:   err == nil,
		Metadata:  map[string]string{"file_name": fileName},
	})
	return doc, err
}

func (s *Service) upload(ctx context.Context, a actor.Actor, fileName, contentType string, content io.Reader) (*documents.Document, error) {
	if a.IsAdmin() {
		return nil, access.ErrForbidden
	}

	doc := &documents.Document{
		FileName:    fileName,
		ContentType: contentType,
		Status:      documents.StatusUploaded,
	}
	if a.IsManager() {
		m, err := s.dir.FindByUserID(ctx, a.ID)
		if errors.Is(err, managers.ErrNotFound) {
			return nil, fmt.Errorf("uploader has no manager record: %w", access.ErrForbidden)
		}
		if err != nil {
			return nil, err
		}
		// Authority roots are immutable, so only verified managers may
		// anchor new documents. Existing documents keep resolving against
		// the record regardless of later status changes.
		if m.VerificationStatus != managers.VerificationVerified {
			return nil, fmt.Errorf("manager is not verified: %w", access.ErrForbidden)
		}
		doc.OriginManagerID = &m.ID
	} else {
		userID := a.ID
		doc.OriginUserContextID = &userID
	}

	meta, err := s.blobs.Put(ctx, fileName, contentType, content)
	if err != nil {
		return nil, err
	}
	doc.BlobID = meta.ID
	doc.SizeBytes = meta.Size

	if err := s.docs.Create(ctx, doc); err != nil {
		if delErr := s.blobs.Delete(ctx, meta.ID); delErr != nil {
			s.logger.Error().Err(delErr).Str("blob_id", meta.ID).Msg("failed to clean up orphaned blob")
		}
		return nil, err
	}
	return doc, nil
}

// TriggerOCR runs text extraction for a document. Only the origin authority
// may trigger it; actors with no access at all get the same not-found as for
// any other read.
func (s *Service) TriggerOCR(ctx context.Context, documentID uuid.UUID, a actor.Actor) (*documents.Document, error) {
	doc, err := s.triggerOCR(ctx, documentID, a)
	s.audit.LogEvent(ctx, hipaa.Event{
		ActorID:   a.ID,
		ActorType: string(a.Type),
		Kind:      hipaa.EventOCRTrigger,
		Success:   err == nil,
		Metadata:  map[string]string{"document_id": documentID.String()},
	})
	return doc, err
}

func (s *Service) triggerOCR(ctx context.Context, documentID uuid.UUID, a actor.Actor) (*documents.Document, error) {
	doc, err := s.access.GetDocument(ctx, documentID, a)
	if err != nil {
		return nil, err
	}
	allowed, err := s.access.CanPerformOperation(ctx, documentID, access.OpTriggerOCR, a)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("only the origin authority may trigger processing: %w", access.ErrForbidden)
	}
	if !documents.CanProcess(doc.Status) {
		return nil, fmt.Errorf("%w: status %s", ErrNotProcessable, doc.Status)
	}
	return s.process(ctx, doc)
}

// Retry re-runs extraction for a failed document under the same authority
// rule as TriggerOCR.
func (s *Service) Retry(ctx context.Context, documentID uuid.UUID, a actor.Actor) (*documents.Document, error) {
	doc, err := s.access.GetDocument(ctx, documentID, a)
	if err != nil {
		return nil, err
	}
	allowed, err := s.access.CanPerformOperation(ctx, documentID, access.OpTriggerOCR, a)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("only the origin authority may retry processing: %w", access.ErrForbidden)
	}
	if !documents.CanRetry(doc.Status) {
		return nil, fmt.Errorf("%w: retry requires status %s, document is %s",
			ErrNotProcessable, documents.StatusFailed, doc.Status)
	}
	return s.process(ctx, doc)
}

// process moves the document through PROCESSING and records the extraction
// outcome. An extraction error lands the document in FAILED with the reason
// attached; the error itself is not propagated since the state transition
// succeeded.
func (s *Service) process(ctx context.Context, doc *documents.Document) (*documents.Document, error) {
	if _, err := s.docs.Transition(ctx, doc.ID, documents.StatusProcessing); err != nil {
		return nil, err
	}

	content, _, err := s.blobs.Get(ctx, doc.BlobID)
	if err != nil {
		return s.docs.RecordOCRFailure(ctx, doc.ID, fmt.Sprintf("fetch blob: %v", err))
	}
	defer content.Close()

	result, err := s.processor.Process(ctx, doc.ContentType, content)
	if err != nil {
		s.logger.Warn().Err(err).Str("document_id", doc.ID.String()).Msg("ocr extraction failed")
		return s.docs.RecordOCRFailure(ctx, doc.ID, err.Error())
	}
	return s.docs.RecordOCRSuccess(ctx, doc.ID, result.Text, result.PageCount)
}

// Download streams document content to an authorized actor.
func (s *Service) Download(ctx context.Context, documentID uuid.UUID, a actor.Actor) (io.ReadCloser, *documents.Document, error) {
	doc, err := s.access.GetDocument(ctx, documentID, a)
	if err != nil {
		return nil, nil, err
	}
	allowed, err := s.access.CanPerformOperation(ctx, documentID, access.OpDownload, a)
	if err != nil {
		return nil, nil, err
	}
	if !allowed {
		return nil, nil, access.ErrForbidden
	}
	content, _, err := s.blobs.Get(ctx, doc.BlobID)
	if err != nil {
		return nil, nil, err
	}
	return content, doc, nil
}

// Delete archives a document. Only the origin authority may delete; the blob
// stays in place until the retention sweep purges the row.
func (s *Service) Delete(ctx context.Context, documentID uuid.UUID, a actor.Actor) (*documents.Document, error) {
	doc, err := s.delete(ctx, documentID, a)
	s.audit.LogEvent(ctx, hipaa.Event{
		ActorID:   a.ID,
		ActorType: string(a.Type),
		Kind:      hipaa.EventDocumentDelete,
		Success:   err == nil,
		Metadata:  map[string]string{"document_id": documentID.String()},
	})
	return doc, err
}

func (s *Service) delete(ctx context.Context, documentID uuid.UUID, a actor.Actor) (*documents.Document, error) {
	if _, err := s.access.GetDocument(ctx, documentID, a); err != nil {
		return nil, err
	}
	allowed, err := s.access.CanPerformOperation(ctx, documentID, access.OpDelete, a)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("only the origin authority may delete: %w", access.ErrForbidden)
	}
	return s.docs.SoftDelete(ctx, documentID, s.retention)
}

// RetentionSweep purges archived documents whose retention window has passed
// and deletes their blobs. Intended to run periodically.
func (s *Service) RetentionSweep(ctx context.Context) (int, error) {
	purged, err := s.docs.PurgeExpired(ctx)
	if err != nil {
		return 0, err
	}
	for _, doc := range purged {
		if doc.BlobID == "" {
			continue
		}
		if err := s.blobs.Delete(ctx, doc.BlobID); err != nil && !errors.Is(err, blobstore.ErrBlobNotFound) {
			s.logger.Error().Err(err).
				Str("document_id", doc.ID.String()).
				Str("blob_id", doc.BlobID).
				Msg("failed to delete blob for purged document")
		}
	}
	if len(purged) > 0 {
		s.logger.Info().Int("count", len(purged)).Msg("retention sweep purged documents")
	}
	return len(purged), nil
}

// RunRetentionLoop runs RetentionSweep on the interval until ctx is done.
func (s *Service) RunRetentionLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RetentionSweep(ctx); err != nil {
				s.logger.Error().Err(err).Msg("retention sweep failed")
			}
		}
	}
}
