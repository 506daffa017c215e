package account

import (
	"context"
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

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

func (r *userRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const userCols = `id, firebase_uid, email, full_name, phone, date_of_birth,
	profile_picture, last_login, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.FirebaseUID, &u.Email, &u.FullName, &u.Phone, &u.DateOfBirth,
		&u.ProfilePicture, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (id, firebase_uid, email, full_name, phone, date_of_birth, last_login)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		u.ID, u.FirebaseUID, u.Email, u.FullName, u.Phone, u.DateOfBirth, u.LastLogin,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if db.IsUniqueViolation(err, "") {
		return ErrUserExists
	}
	return err
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
}

func (r *userRepoPG) GetByFirebaseUID(ctx context.Context, uid string) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE firebase_uid = $1`, uid))
}

func (r *userRepoPG) ExistsByUIDOrEmail(ctx context.Context, uid, email string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE firebase_uid = $1 OR email = $2)`, uid, email,
	).Scan(&exists)
	return exists, err
}

// UpdateProfile applies the non-nil fields with COALESCE so a single statement
// both patches and returns the row.
func (r *userRepoPG) UpdateProfile(ctx context.Context, uid string, p profilePatch, now time.Time) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx, `
		UPDATE users SET
			full_name = COALESCE($2, full_name),
			phone = COALESCE($3, phone),
			date_of_birth = CASE WHEN $5 THEN NULL ELSE COALESCE($4, date_of_birth) END,
			profile_picture = COALESCE($6, profile_picture),
			last_login = $7,
			updated_at = $7
		WHERE firebase_uid = $1
		RETURNING `+userCols,
		uid, p.FullName, p.Phone, p.DateOfBirth, p.ClearBirth, p.ProfilePicture, now))
}
