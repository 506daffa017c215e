package reminder

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
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type reminderRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &reminderRepoPG{pool: pool}
}

func (r *reminderRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const reminderCols = `r.id, r.user_id, r.type, r.title, r.description, r.scheduled_for,
	r.recurrence, r.status, r.notification_preference, r.metadata, r.last_sent,
	r.created_at, r.updated_at`

func scanReminder(row pgx.Row, extra ...interface{}) (*Reminder, error) {
	var rem Reminder
	dest := []interface{}{&rem.ID, &rem.UserID, &rem.Type, &rem.Title, &rem.Description,
		&rem.ScheduledFor, &rem.Recurrence, &rem.Status, &rem.NotificationPreference,
		&rem.Metadata, &rem.LastSent, &rem.CreatedAt, &rem.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrReminderNotFound
		}
		return nil, err
	}
	return &rem, nil
}

func (r *reminderRepoPG) Create(ctx context.Context, rem *Reminder) error {
	rem.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO reminders (id, user_id, type, title, description, scheduled_for,
			recurrence, status, notification_preference, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		rem.ID, rem.UserID, rem.Type, rem.Title, rem.Description, rem.ScheduledFor,
		rem.Recurrence, rem.Status, rem.NotificationPreference, rem.Metadata,
	).Scan(&rem.CreatedAt, &rem.UpdatedAt)
}

func (r *reminderRepoPG) List(ctx context.Context, userID uuid.UUID, f Filter) ([]*Reminder, error) {
	where := []string{"r.user_id = $1"}
	args := []interface{}{userID}
	idx := 2
	if f.Status != "" {
		where = append(where, fmt.Sprintf("r.status = $%d", idx))
		args = append(args, f.Status)
		idx++
	}
	if f.Type != "" {
		where = append(where, fmt.Sprintf("r.type = $%d", idx))
		args = append(args, f.Type)
		idx++
	}
	if f.StartDate != nil {
		where = append(where, fmt.Sprintf("r.scheduled_for >= $%d", idx))
		args = append(args, *f.StartDate)
		idx++
	}
	if f.EndDate != nil {
		where = append(where, fmt.Sprintf("r.scheduled_for <= $%d", idx))
		args = append(args, *f.EndDate)
		idx++
	}
	limit := f.Limit
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}
	query := fmt.Sprintf(`SELECT %s FROM reminders r WHERE %s ORDER BY r.scheduled_for ASC LIMIT $%d`,
		reminderCols, strings.Join(where, " AND "), idx)
	args = append(args, limit)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rem)
	}
	return out, rows.Err()
}

func (r *reminderRepoPG) Update(ctx context.Context, userID, id uuid.UUID, p Patch, now time.Time) (*Reminder, error) {
	return scanReminder(r.conn(ctx).QueryRow(ctx, `
		UPDATE reminders r SET
			type = COALESCE($3, r.type),
			title = COALESCE($4, r.title),
			description = COALESCE($5, r.description),
			scheduled_for = COALESCE($6, r.scheduled_for),
			recurrence = COALESCE($7, r.recurrence),
			status = COALESCE($8, r.status),
			notification_preference = COALESCE($9, r.notification_preference),
			metadata = COALESCE($10, r.metadata),
			updated_at = $11
		WHERE r.id = $1 AND r.user_id = $2
		RETURNING `+reminderCols,
		id, userID, p.Type, p.Title, p.Description, p.ScheduledFor, p.Recurrence, p.Status,
		p.NotificationPreference, p.Metadata, now))
}

func (r *reminderRepoPG) Delete(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM reminders WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrReminderNotFound
	}
	return nil
}

func (r *reminderRepoPG) ListDue(ctx context.Context, from, to time.Time) ([]*Due, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+reminderCols+`, u.id, u.email, u.full_name, u.phone
		FROM reminders r
		JOIN users u ON u.id = r.user_id
		WHERE r.status = $1 AND r.scheduled_for BETWEEN $2 AND $3
		ORDER BY r.scheduled_for ASC`, StatusPending, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Due
	for rows.Next() {
		var owner Contact
		rem, err := scanReminder(rows, &owner.UserID, &owner.Email, &owner.FullName, &owner.Phone)
		if err != nil {
			return nil, err
		}
		out = append(out, &Due{Reminder: rem, Owner: owner})
	}
	return out, rows.Err()
}

func (r *reminderRepoPG) MarkSent(ctx context.Context, id uuid.UUID, sent LastSent, complete bool) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE reminders SET
			last_sent = $2,
			status = CASE WHEN $3::boolean THEN $4 ELSE status END,
			updated_at = $5
		WHERE id = $1`, id, sent, complete, StatusCompleted, sent.SentAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrReminderNotFound
	}
	return nil
}
