package records

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthvault/vault/internal/platform/db"
	"github.com/healthvault/vault/pkg/pagination"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type recordRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &recordRepoPG{pool: pool}
}

func (r *recordRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const recordCols = `id, user_id, title, description, category, file_url, file_name, file_size,
	file_type, storage_provider, storage_key, date_of_record, tags, is_encrypted,
	created_at, updated_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.UserID, &rec.Title, &rec.Description, &rec.Category,
		&rec.FileURL, &rec.FileName, &rec.FileSize, &rec.FileType, &rec.StorageProvider,
		&rec.StorageKey, &rec.DateOfRecord, &rec.Tags, &rec.IsEncrypted, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	return &rec, nil
}

func (r *recordRepoPG) Create(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_records (id, user_id, title, description, category, file_url,
			file_name, file_size, file_type, storage_provider, storage_key, date_of_record,
			tags, is_encrypted)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at, updated_at`,
		rec.ID, rec.UserID, rec.Title, rec.Description, rec.Category, rec.FileURL,
		rec.FileName, rec.FileSize, rec.FileType, rec.StorageProvider, rec.StorageKey,
		rec.DateOfRecord, rec.Tags, rec.IsEncrypted,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
}

func (r *recordRepoPG) List(ctx context.Context, userID uuid.UUID, f Filter, page pagination.Params) ([]*Record, int, error) {
	where := []string{"user_id = $1"}
	args := []interface{}{userID}
	idx := 2
	if f.Category != "" {
		where = append(where, fmt.Sprintf("category = $%d", idx))
		args = append(args, f.Category)
		idx++
	}
	if f.StartDate != nil {
		where = append(where, fmt.Sprintf("date_of_record >= $%d", idx))
		args = append(args, *f.StartDate)
		idx++
	}
	if f.EndDate != nil {
		where = append(where, fmt.Sprintf("date_of_record <= $%d", idx))
		args = append(args, *f.EndDate)
		idx++
	}
	if f.Tag != "" {
		where = append(where, fmt.Sprintf("$%d = ANY(tags)", idx))
		args = append(args, f.Tag)
		idx++
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, "SELECT COUNT(*) FROM medical_records WHERE "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM medical_records WHERE %s
		ORDER BY date_of_record DESC LIMIT $%d OFFSET $%d`, recordCols, whereClause, idx, idx+1)
	args = append(args, page.Limit, page.Offset())

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

func (r *recordRepoPG) Update(ctx context.Context, userID, id uuid.UUID, p Patch, now time.Time) (*Record, error) {
	var tags []string
	if p.Tags != nil {
		tags = *p.Tags
	}
	return scanRecord(r.conn(ctx).QueryRow(ctx, `
		UPDATE medical_records SET
			title = COALESCE($3, title),
			description = COALESCE($4, description),
			category = COALESCE($5, category),
			date_of_record = COALESCE($6, date_of_record),
			tags = CASE WHEN $7::boolean THEN $8::text[] ELSE tags END,
			updated_at = $9
		WHERE id = $1 AND user_id = $2
		RETURNING `+recordCols,
		id, userID, p.Title, p.Description, p.Category, p.DateOfRecord, p.Tags != nil, tags, now))
}

func (r *recordRepoPG) Delete(ctx context.Context, userID, id uuid.UUID) (*Record, error) {
	return scanRecord(r.conn(ctx).QueryRow(ctx,
		`DELETE FROM medical_records WHERE id = $1 AND user_id = $2 RETURNING `+recordCols, id, userID))
}
