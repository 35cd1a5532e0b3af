package documents

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medvault/medvault/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG returns a Postgres-backed document repository.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const documentCols = `id, origin_manager_id, origin_user_context_id, status,
	file_name, content_type, size_bytes, blob_id,
	page_count, ocr_text, ocr_error, ocr_completed_at,
	deleted_at, scheduled_deletion_at, created_at, updated_at`

func scanDocument(row pgx.Row) (*Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.OriginManagerID, &d.OriginUserContextID, &d.Status,
		&d.FileName, &d.ContentType, &d.SizeBytes, &d.BlobID,
		&d.PageCount, &d.OCRText, &d.OCRError, &d.OCRCompletedAt,
		&d.DeletedAt, &d.ScheduledDeletionAt, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &d, err
}

func (r *repoPG) Create(ctx context.Context, d *Document) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO document (id, origin_manager_id, origin_user_context_id, status,
			file_name, content_type, size_bytes, blob_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		d.ID, d.OriginManagerID, d.OriginUserContextID, d.Status,
		d.FileName, d.ContentType, d.SizeBytes, d.BlobID)
	return err
}

func (r *repoPG) FindByID(ctx context.Context, id uuid.UUID) (*Document, error) {
	return scanDocument(r.conn(ctx).QueryRow(ctx,
		`SELECT `+documentCols+` FROM document WHERE id = $1`, id))
}

func (r *repoPG) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+documentCols+` FROM document WHERE id = ANY($1) AND deleted_at IS NULL`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *repoPG) FindByOriginManager(ctx context.Context, managerID int64, opts ListOptions) ([]*Document, int, error) {
	where := `origin_manager_id = $1 AND deleted_at IS NULL`
	args := []interface{}{managerID}
	if opts.Status != nil {
		where += ` AND status = $2`
		args = append(args, *opts.Status)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM document WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limitPos := len(args) + 1
	args = append(args, opts.Limit, opts.Offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+documentCols+` FROM document WHERE `+where+
			` ORDER BY created_at DESC LIMIT $`+strconv.Itoa(limitPos)+` OFFSET $`+strconv.Itoa(limitPos+1), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE document SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) SetOCRResult(ctx context.Context, id uuid.UUID, text string, pageCount int, completedAt time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE document
		SET ocr_text = $2, page_count = $3, ocr_completed_at = $4, ocr_error = NULL, updated_at = NOW()
		WHERE id = $1`,
		id, text, pageCount, completedAt)
	return err
}

func (r *repoPG) SetOCRFailure(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE document SET ocr_error = $2, updated_at = NOW() WHERE id = $1`,
		id, reason)
	return err
}

func (r *repoPG) SoftDelete(ctx context.Context, id uuid.UUID, deletedAt, scheduledDeletionAt time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE document
		SET status = $2, deleted_at = $3, scheduled_deletion_at = $4, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`,
		id, StatusArchived, deletedAt, scheduledDeletionAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) PurgeExpired(ctx context.Context, now time.Time) ([]*Document, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		DELETE FROM document
		WHERE scheduled_deletion_at IS NOT NULL AND scheduled_deletion_at <= $1
		RETURNING `+documentCols, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var purged []*Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		purged = append(purged, d)
	}
	return purged, rows.Err()
}
