package access

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medvault/medvault/internal/domain/actor"
	"github.com/medvault/medvault/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type grantRepoPG struct{ pool *pgxpool.Pool }

// NewGrantRepoPG returns a Postgres-backed grant repository. The
// single-active-grant invariant is enforced by a partial unique index over
// non-revoked rows, so concurrent creates for the same tuple cannot both
// succeed.
func NewGrantRepoPG(pool *pgxpool.Pool) GrantRepository { return &grantRepoPG{pool: pool} }

func (r *grantRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const grantCols = `id, document_id, subject_type, subject_id, grant_type,
	granted_by_type, granted_by_id, created_at, revoked_at, revoked_by_type, revoked_by_id`

func scanGrant(row pgx.Row) (*AccessGrant, error) {
	var g AccessGrant
	err := row.Scan(&g.ID, &g.DocumentID, &g.SubjectType, &g.SubjectID, &g.GrantType,
		&g.GrantedByType, &g.GrantedByID, &g.CreatedAt, &g.RevokedAt, &g.RevokedByType, &g.RevokedByID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrGrantNotFound
	}
	return &g, err
}

func (r *grantRepoPG) Create(ctx context.Context, g *AccessGrant) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO access_grant (document_id, subject_type, subject_id, grant_type, granted_by_type, granted_by_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		g.DocumentID, g.SubjectType, g.SubjectID, g.GrantType, g.GrantedByType, g.GrantedByID).
		Scan(&g.ID, &g.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyGranted
	}
	return err
}

func (r *grantRepoPG) FindByID(ctx context.Context, id uuid.UUID) (*AccessGrant, error) {
	return scanGrant(r.conn(ctx).QueryRow(ctx,
		`SELECT `+grantCols+` FROM access_grant WHERE id = $1`, id))
}

func (r *grantRepoPG) FindActive(ctx context.Context, documentID uuid.UUID, subjectType actor.Type, subjectID int64) (*AccessGrant, error) {
	return scanGrant(r.conn(ctx).QueryRow(ctx, `
		SELECT `+grantCols+` FROM access_grant
		WHERE document_id = $1 AND subject_type = $2 AND subject_id = $3 AND revoked_at IS NULL`,
		documentID, subjectType, subjectID))
}

func (r *grantRepoPG) FindByDocument(ctx context.Context, documentID uuid.UUID) ([]*AccessGrant, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+grantCols+` FROM access_grant
		WHERE document_id = $1
		ORDER BY created_at DESC`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGrants(rows)
}

func (r *grantRepoPG) FindActiveBySubject(ctx context.Context, subjectType actor.Type, subjectID int64) ([]*AccessGrant, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+grantCols+` FROM access_grant
		WHERE subject_type = $1 AND subject_id = $2 AND revoked_at IS NULL
		ORDER BY created_at DESC`, subjectType, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGrants(rows)
}

func collectGrants(rows pgx.Rows) ([]*AccessGrant, error) {
	var grants []*AccessGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

func (r *grantRepoPG) Revoke(ctx context.Context, id uuid.UUID, by actor.Actor, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE access_grant
		SET revoked_at = $2, revoked_by_type = $3, revoked_by_id = $4
		WHERE id = $1 AND revoked_at IS NULL`,
		id, at, by.Type, by.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyRevoked
	}
	return nil
}
