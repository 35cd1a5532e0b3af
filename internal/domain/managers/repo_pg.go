package managers

import (
	"context"
	"errors"

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

type directoryPG struct{ pool *pgxpool.Pool }

// NewDirectoryPG returns a Postgres-backed manager directory.
func NewDirectoryPG(pool *pgxpool.Pool) Directory { return &directoryPG{pool: pool} }

func (r *directoryPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const managerCols = `id, user_id, organization_name, verification_status, created_at, updated_at`

func scanManager(row pgx.Row) (*Manager, error) {
	var m Manager
	err := row.Scan(&m.ID, &m.UserID, &m.OrganizationName, &m.VerificationStatus, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &m, err
}

func (r *directoryPG) Create(ctx context.Context, m *Manager) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO manager (user_id, organization_name, verification_status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`,
		m.UserID, m.OrganizationName, m.VerificationStatus).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

func (r *directoryPG) FindByID(ctx context.Context, id int64) (*Manager, error) {
	return scanManager(r.conn(ctx).QueryRow(ctx,
		`SELECT `+managerCols+` FROM manager WHERE id = $1`, id))
}

func (r *directoryPG) FindByUserID(ctx context.Context, userID int64) (*Manager, error) {
	return scanManager(r.conn(ctx).QueryRow(ctx,
		`SELECT `+managerCols+` FROM manager WHERE user_id = $1`, userID))
}

func (r *directoryPG) SetVerificationStatus(ctx context.Context, id int64, status VerificationStatus) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE manager SET verification_status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *directoryPG) List(ctx context.Context, limit, offset int) ([]*Manager, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM manager`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+managerCols+` FROM manager ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Manager
	for rows.Next() {
		m, err := scanManager(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}
