package documents

import (
	"time"

	"github.com/google/uuid"
)

// Status is the document processing status.
type Status string

const (
	StatusUploaded   Status = "UPLOADED"
	StatusStored     Status = "STORED"
	StatusQueued     Status = "QUEUED"
	StatusProcessing Status = "PROCESSING"
	StatusProcessed  Status = "PROCESSED"
	StatusFailed     Status = "FAILED"
	StatusArchived   Status = "ARCHIVED"
)

// AllStatuses lists every document status, in lifecycle order.
var AllStatuses = []Status{
	StatusUploaded, StatusStored, StatusQueued,
	StatusProcessing, StatusProcessed, StatusFailed, StatusArchived,
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusUploaded, StatusStored, StatusQueued,
		StatusProcessing, StatusProcessed, StatusFailed, StatusArchived:
		return true
	}
	return false
}

// Document maps to the document table. Every document has exactly one
// authority root: either OriginManagerID is set (managed), or it is null and
// OriginUserContextID carries the uploading user acting as their own manager
// (self-managed). OriginManagerID is immutable after creation.
type Document struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	OriginManagerID     *int64     `db:"origin_manager_id" json:"origin_manager_id,omitempty"`
	OriginUserContextID *int64     `db:"origin_user_context_id" json:"origin_user_context_id,omitempty"`
	Status              Status     `db:"status" json:"status"`
	FileName            string     `db:"file_name" json:"file_name"`
	ContentType         string     `db:"content_type" json:"content_type"`
	SizeBytes           int64      `db:"size_bytes" json:"size_bytes"`
	BlobID              string     `db:"blob_id" json:"-"`
	PageCount           *int       `db:"page_count" json:"page_count,omitempty"`
	OCRText             *string    `db:"ocr_text" json:"-"`
	OCRError            *string    `db:"ocr_error" json:"ocr_error,omitempty"`
	OCRCompletedAt      *time.Time `db:"ocr_completed_at" json:"ocr_completed_at,omitempty"`
	DeletedAt           *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
	ScheduledDeletionAt *time.Time `db:"scheduled_deletion_at" json:"scheduled_deletion_at,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// SelfManaged reports whether the document's authority root is the uploading
// user rather than a manager record.
func (d *Document) SelfManaged() bool { return d.OriginManagerID == nil }
