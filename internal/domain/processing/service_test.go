package processing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
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

type memDocRepo struct {
	docs map[uuid.UUID]*documents.Document
}

func (m *memDocRepo) Create(_ context.Context, d *documents.Document) error {
	d.ID = uuid.New()
	d.CreatedAt = time.Now().UTC()
	m.docs[d.ID] = d
	return nil
}

func (m *memDocRepo) FindByID(_ context.Context, id uuid.UUID) (*documents.Document, error) {
	d, ok := m.docs[id]
	if !ok {
		return nil, documents.ErrNotFound
	}
	return d, nil
}

func (m *memDocRepo) FindByIDs(_ context.Context, ids []uuid.UUID) ([]*documents.Document, error) {
	var out []*documents.Document
	for _, id := range ids {
		if d, ok := m.docs[id]; ok && d.DeletedAt == nil {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memDocRepo) FindByOriginManager(_ context.Context, managerID int64, _ documents.ListOptions) ([]*documents.Document, int, error) {
	var out []*documents.Document
	for _, d := range m.docs {
		if d.OriginManagerID != nil && *d.OriginManagerID == managerID {
			out = append(out, d)
		}
	}
	return out, len(out), nil
}

func (m *memDocRepo) UpdateStatus(_ context.Context, id uuid.UUID, status documents.Status) error {
	d, ok := m.docs[id]
	if !ok {
		return documents.ErrNotFound
	}
	d.Status = status
	return nil
}

func (m *memDocRepo) SetOCRResult(_ context.Context, id uuid.UUID, text string, pageCount int, completedAt time.Time) error {
	d := m.docs[id]
	d.OCRText, d.PageCount, d.OCRCompletedAt = &text, &pageCount, &completedAt
	return nil
}

func (m *memDocRepo) SetOCRFailure(_ context.Context, id uuid.UUID, reason string) error {
	d := m.docs[id]
	d.OCRError = &reason
	return nil
}

func (m *memDocRepo) SoftDelete(_ context.Context, id uuid.UUID, deletedAt, scheduledDeletionAt time.Time) error {
	d, ok := m.docs[id]
	if !ok {
		return documents.ErrNotFound
	}
	d.Status = documents.StatusArchived
	d.DeletedAt, d.ScheduledDeletionAt = &deletedAt, &scheduledDeletionAt
	return nil
}

func (m *memDocRepo) PurgeExpired(_ context.Context, now time.Time) ([]*documents.Document, error) {
	var purged []*documents.Document
	for id, d := range m.docs {
		if d.ScheduledDeletionAt != nil && !d.ScheduledDeletionAt.After(now) {
			purged = append(purged, d)
			delete(m.docs, id)
		}
	}
	return purged, nil
}

type memDirectory struct {
	byUser map[int64]*managers.Manager
}

func (m *memDirectory) Create(_ context.Context, mgr *managers.Manager) error {
	m.byUser[mgr.UserID] = mgr
	return nil
}

func (m *memDirectory) FindByID(_ context.Context, id int64) (*managers.Manager, error) {
	for _, mgr := range m.byUser {
		if mgr.ID == id {
			return mgr, nil
		}
	}
	return nil, managers.ErrNotFound
}

func (m *memDirectory) FindByUserID(_ context.Context, userID int64) (*managers.Manager, error) {
	mgr, ok := m.byUser[userID]
	if !ok {
		return nil, managers.ErrNotFound
	}
	return mgr, nil
}

func (m *memDirectory) SetVerificationStatus(_ context.Context, _ int64, _ managers.VerificationStatus) error {
	return nil
}

func (m *memDirectory) List(_ context.Context, _, _ int) ([]*managers.Manager, int, error) {
	return nil, 0, nil
}

type memGrantRepo struct {
	grants map[uuid.UUID]*access.AccessGrant
}

func (m *memGrantRepo) Create(_ context.Context, g *access.AccessGrant) error {
	g.ID = uuid.New()
	g.CreatedAt = time.Now().UTC()
	m.grants[g.ID] = g
	return nil
}

func (m *memGrantRepo) FindByID(_ context.Context, id uuid.UUID) (*access.AccessGrant, error) {
	g, ok := m.grants[id]
	if !ok {
		return nil, access.ErrGrantNotFound
	}
	return g, nil
}

func (m *memGrantRepo) FindActive(_ context.Context, documentID uuid.UUID, subjectType actor.Type, subjectID int64) (*access.AccessGrant, error) {
	for _, g := range m.grants {
		if g.Active() && g.DocumentID == documentID && g.SubjectType == subjectType && g.SubjectID == subjectID {
			return g, nil
		}
	}
	return nil, access.ErrGrantNotFound
}

func (m *memGrantRepo) FindByDocument(_ context.Context, documentID uuid.UUID) ([]*access.AccessGrant, error) {
	var out []*access.AccessGrant
	for _, g := range m.grants {
		if g.DocumentID == documentID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *memGrantRepo) FindActiveBySubject(_ context.Context, subjectType actor.Type, subjectID int64) ([]*access.AccessGrant, error) {
	var out []*access.AccessGrant
	for _, g := range m.grants {
		if g.Active() && g.SubjectType == subjectType && g.SubjectID == subjectID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *memGrantRepo) Revoke(_ context.Context, id uuid.UUID, by actor.Actor, at time.Time) error {
	g, ok := m.grants[id]
	if !ok {
		return access.ErrGrantNotFound
	}
	if !g.Active() {
		return access.ErrAlreadyRevoked
	}
	g.RevokedAt = &at
	g.RevokedByType = &by.Type
	g.RevokedByID = &by.ID
	return nil
}

type flakyProcessor struct {
	fail bool
	real ocr.Processor
}

func (p *flakyProcessor) Process(ctx context.Context, contentType string, content io.Reader) (*ocr.Result, error) {
	if p.fail {
		return nil, fmt.Errorf("engine unavailable")
	}
	return p.real.Process(ctx, contentType, content)
}

type pipelineFixture struct {
	docRepo   *memDocRepo
	dir       *memDirectory
	grants    *memGrantRepo
	blobs     *blobstore.MemoryStore
	processor *flakyProcessor
	authority *access.AuthorityService
	accessSvc *access.Service
	docsSvc   *documents.Service
	svc       *Service
}

func newPipelineFixture() *pipelineFixture {
	f := &pipelineFixture{
		docRepo:   &memDocRepo{docs: make(map[uuid.UUID]*documents.Document)},
		dir:       &memDirectory{byUser: make(map[int64]*managers.Manager)},
		grants:    &memGrantRepo{grants: make(map[uuid.UUID]*access.AccessGrant)},
		blobs:     blobstore.NewMemoryStore(),
		processor: &flakyProcessor{real: ocr.NewStubProcessor()},
	}
	f.authority = access.NewAuthorityService(f.grants, f.docRepo, f.dir, hipaa.NopSink{})
	f.accessSvc = access.NewService(f.authority, f.docRepo, hipaa.NopSink{})
	f.docsSvc = documents.NewService(f.docRepo)
	f.svc = NewService(f.accessSvc, f.docsSvc, f.dir, f.blobs, f.processor,
		hipaa.NopSink{}, zerolog.Nop(), 30*24*time.Hour)
	return f
}

func TestUploadSelfManaged(t *testing.T) {
	f := newPipelineFixture()
	uploader := actor.Actor{Type: actor.TypeUser, ID: 7}

	doc, err := f.svc.Upload(context.Background(), uploader, "notes.txt", "text/plain", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if doc.Status != documents.StatusUploaded {
		t.Fatalf("status = %s, want UPLOADED", doc.Status)
	}
	if doc.OriginUserContextID == nil || *doc.OriginUserContextID != 7 {
		t.Fatal("origin user context not set")
	}
	if doc.OriginManagerID != nil {
		t.Fatal("origin manager set on a self-managed upload")
	}
	// Upload means upload only: no extraction runs as a side effect.
	if doc.OCRText != nil || doc.Status == documents.StatusProcessing {
		t.Fatal("upload started processing implicitly")
	}
	if _, err := f.blobs.Stat(context.Background(), doc.BlobID); err != nil {
		t.Fatalf("blob missing after upload: %v", err)
	}
}

func TestUploadManagerAuthority(t *testing.T) {
	f := newPipelineFixture()
	f.dir.byUser[10] = &managers.Manager{ID: 3, UserID: 10, VerificationStatus: managers.VerificationVerified}
	f.dir.byUser[11] = &managers.Manager{ID: 4, UserID: 11, VerificationStatus: managers.VerificationPending}

	doc, err := f.svc.Upload(context.Background(), actor.Actor{Type: actor.TypeManager, ID: 10},
		"record.pdf", "application/pdf", strings.NewReader("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if doc.OriginManagerID == nil || *doc.OriginManagerID != 3 {
		t.Fatal("origin manager not resolved to the manager-record id")
	}

	_, err = f.svc.Upload(context.Background(), actor.Actor{Type: actor.TypeManager, ID: 11},
		"record.pdf", "application/pdf", strings.NewReader("%PDF-1.4"))
	if !errors.Is(err, access.ErrForbidden) {
		t.Fatalf("unverified manager: err = %v, want ErrForbidden", err)
	}

	_, err = f.svc.Upload(context.Background(), actor.Actor{Type: actor.TypeManager, ID: 99},
		"record.pdf", "application/pdf", strings.NewReader("%PDF-1.4"))
	if !errors.Is(err, access.ErrForbidden) {
		t.Fatalf("manager without record: err = %v, want ErrForbidden", err)
	}

	_, err = f.svc.Upload(context.Background(), actor.Actor{Type: actor.TypeAdmin, ID: 1},
		"record.pdf", "application/pdf", strings.NewReader("%PDF-1.4"))
	if !errors.Is(err, access.ErrForbidden) {
		t.Fatalf("admin upload: err = %v, want ErrForbidden", err)
	}
}

func TestTriggerOCRLifecycle(t *testing.T) {
	f := newPipelineFixture()
	uploader := actor.Actor{Type: actor.TypeUser, ID: 7}
	ctx := context.Background()

	doc, err := f.svc.Upload(ctx, uploader, "notes.txt", "text/plain", strings.NewReader("page one\fpage two"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	processed, err := f.svc.TriggerOCR(ctx, doc.ID, uploader)
	if err != nil {
		t.Fatalf("TriggerOCR: %v", err)
	}
	if processed.Status != documents.StatusProcessed {
		t.Fatalf("status = %s, want PROCESSED", processed.Status)
	}
	if processed.OCRText == nil || !strings.Contains(*processed.OCRText, "page two") {
		t.Fatal("extracted text not recorded")
	}
	if processed.PageCount == nil || *processed.PageCount != 2 {
		t.Fatalf("page count = %v, want 2", processed.PageCount)
	}
	if processed.OCRCompletedAt == nil {
		t.Fatal("completion time not recorded")
	}
}

func TestTriggerOCRAuthorization(t *testing.T) {
	f := newPipelineFixture()
	uploader := actor.Actor{Type: actor.TypeUser, ID: 7}
	ctx := context.Background()

	doc, err := f.svc.Upload(ctx, uploader, "notes.txt", "text/plain", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if _, err := f.authority.CreateGrant(ctx, access.CreateGrantInput{
		DocumentID:  doc.ID,
		SubjectType: actor.TypeUser,
		SubjectID:   42,
	}, uploader); err != nil {
		t.Fatalf("CreateGrant: %v", err)
	}

	// A grant holder can view but not trigger processing.
	_, err = f.svc.TriggerOCR(ctx, doc.ID, actor.Actor{Type: actor.TypeUser, ID: 42})
	if !errors.Is(err, access.ErrForbidden) {
		t.Fatalf("grantee trigger: err = %v, want ErrForbidden", err)
	}

	// A stranger sees the same not-found as for any read.
	_, err = f.svc.TriggerOCR(ctx, doc.ID, actor.Actor{Type: actor.TypeUser, ID: 99})
	if !errors.Is(err, access.ErrNotFound) {
		t.Fatalf("stranger trigger: err = %v, want ErrNotFound", err)
	}
}

func TestTriggerOCRNotProcessable(t *testing.T) {
	f := newPipelineFixture()
	uploader := actor.Actor{Type: actor.TypeUser, ID: 7}
	ctx := context.Background()

	doc, err := f.svc.Upload(ctx, uploader, "notes.txt", "text/plain", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	f.docRepo.docs[doc.ID].Status = documents.StatusProcessing

	_, err = f.svc.TriggerOCR(ctx, doc.ID, uploader)
	if !errors.Is(err, ErrNotProcessable) {
		t.Fatalf("err = %v, want ErrNotProcessable", err)
	}
}

func TestRetryAfterFailure(t *testing.T) {
	f := newPipelineFixture()
	uploader := actor.Actor{Type: actor.TypeUser, ID: 7}
	ctx := context.Background()

	doc, err := f.svc.Upload(ctx, uploader, "notes.txt", "text/plain", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	f.processor.fail = true
	failed, err := f.svc.TriggerOCR(ctx, doc.ID, uploader)
	if err != nil {
		t.Fatalf("TriggerOCR with failing engine: %v", err)
	}
	if failed.Status != documents.StatusFailed {
		t.Fatalf("status = %s, want FAILED", failed.Status)
	}
	if failed.OCRError == nil {
		t.Fatal("failure reason not recorded")
	}

	// Retry is only valid from FAILED.
	f.processor.fail = false
	recovered, err := f.svc.Retry(ctx, doc.ID, uploader)
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if recovered.Status != documents.StatusProcessed {
		t.Fatalf("status after retry = %s, want PROCESSED", recovered.Status)
	}

	_, err = f.svc.Retry(ctx, doc.ID, uploader)
	if !errors.Is(err, ErrNotProcessable) {
		t.Fatalf("retry from PROCESSED: err = %v, want ErrNotProcessable", err)
	}
}

func TestDownload(t *testing.T) {
	f := newPipelineFixture()
	uploader := actor.Actor{Type: actor.TypeUser, ID: 7}
	ctx := context.Background()

	doc, err := f.svc.Upload(ctx, uploader, "notes.txt", "text/plain", strings.NewReader("secret content"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if _, err := f.authority.CreateGrant(ctx, access.CreateGrantInput{
		DocumentID:  doc.ID,
		SubjectType: actor.TypeUser,
		SubjectID:   42,
	}, uploader); err != nil {
		t.Fatalf("CreateGrant: %v", err)
	}

	rc, got, err := f.svc.Download(ctx, doc.ID, actor.Actor{Type: actor.TypeUser, ID: 42})
	if err != nil {
		t.Fatalf("Download as grantee: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "secret content" {
		t.Fatalf("content = %q", data)
	}
	if got.ID != doc.ID {
		t.Fatal("wrong document metadata")
	}

	_, _, err = f.svc.Download(ctx, doc.ID, actor.Actor{Type: actor.TypeUser, ID: 99})
	if !errors.Is(err, access.ErrNotFound) {
		t.Fatalf("stranger download: err = %v, want ErrNotFound", err)
	}
}

func TestDeleteAndRetentionSweep(t *testing.T) {
	f := newPipelineFixture()
	uploader := actor.Actor{Type: actor.TypeUser, ID: 7}
	ctx := context.Background()

	doc, err := f.svc.Upload(ctx, uploader, "notes.txt", "text/plain", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	// Only the origin authority may delete.
	if _, err := f.authority.CreateGrant(ctx, access.CreateGrantInput{
		DocumentID:  doc.ID,
		SubjectType: actor.TypeUser,
		SubjectID:   42,
	}, uploader); err != nil {
		t.Fatalf("CreateGrant: %v", err)
	}
	_, err = f.svc.Delete(ctx, doc.ID, actor.Actor{Type: actor.TypeUser, ID: 42})
	if !errors.Is(err, access.ErrForbidden) {
		t.Fatalf("grantee delete: err = %v, want ErrForbidden", err)
	}

	archived, err := f.svc.Delete(ctx, doc.ID, uploader)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if archived.Status != documents.StatusArchived {
		t.Fatalf("status = %s, want ARCHIVED", archived.Status)
	}
	if archived.ScheduledDeletionAt == nil {
		t.Fatal("no scheduled deletion recorded")
	}

	// Not yet expired: sweep leaves it alone.
	n, err := f.svc.RetentionSweep(ctx)
	if err != nil || n != 0 {
		t.Fatalf("early sweep purged %d (err=%v), want 0", n, err)
	}

	// Force the window into the past and sweep again.
	past := time.Now().UTC().Add(-time.Hour)
	f.docRepo.docs[doc.ID].ScheduledDeletionAt = &past
	n, err = f.svc.RetentionSweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("sweep purged %d, want 1", n)
	}
	if _, err := f.docRepo.FindByID(ctx, doc.ID); !errors.Is(err, documents.ErrNotFound) {
		t.Fatal("document row survived the sweep")
	}
	if _, err := f.blobs.Stat(ctx, archived.BlobID); !errors.Is(err, blobstore.ErrBlobNotFound) {
		t.Fatal("blob survived the sweep")
	}
}
