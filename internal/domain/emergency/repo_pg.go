package emergency

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

const hashConstraint = "emergency_profiles_qr_hash_key"

type profileRepoPG struct{ pool *pgxpool.Pool }

func NewProfileRepoPG(pool *pgxpool.Pool) ProfileRepository {
	return &profileRepoPG{pool: pool}
}

func (r *profileRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const profileCols = `ep.id, ep.user_id, ep.blood_group, ep.allergies, ep.current_medications,
	ep.emergency_contacts, ep.show_blood_group, ep.show_allergies, ep.show_medications,
	ep.show_emergency_contacts, ep.qr_hash, ep.qr_expires_at, ep.access_logs,
	ep.created_at, ep.updated_at`

// returningCols is profileCols for RETURNING clauses, where the alias is not
// in scope.
const returningCols = `id, user_id, blood_group, allergies, current_medications,
	emergency_contacts, show_blood_group, show_allergies, show_medications,
	show_emergency_contacts, qr_hash, qr_expires_at, access_logs,
	created_at, updated_at`

func scanProfile(row pgx.Row, extra ...interface{}) (*Profile, error) {
	var p Profile
	dest := []interface{}{&p.ID, &p.UserID, &p.BloodGroup, &p.Allergies, &p.CurrentMedications,
		&p.EmergencyContacts, &p.VisibilitySettings.BloodGroup, &p.VisibilitySettings.Allergies,
		&p.VisibilitySettings.CurrentMedications, &p.VisibilitySettings.EmergencyContacts,
		&p.QRCode.Hash, &p.QRCode.ExpiresAt, &p.AccessLogs, &p.CreatedAt, &p.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	p.normalize()
	return &p, nil
}

func (r *profileRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	return scanProfile(r.conn(ctx).QueryRow(ctx,
		`SELECT `+profileCols+` FROM emergency_profiles ep WHERE ep.user_id = $1`, userID))
}

func (r *profileRepoPG) GetByHash(ctx context.Context, hash string) (*Profile, *Owner, error) {
	var o Owner
	p, err := scanProfile(r.conn(ctx).QueryRow(ctx, `
		SELECT `+profileCols+`, u.full_name, u.date_of_birth
		FROM emergency_profiles ep
		JOIN users u ON u.id = ep.user_id
		WHERE ep.qr_hash = $1`, hash), &o.FullName, &o.DateOfBirth)
	if err != nil {
		return nil, nil, err
	}
	return p, &o, nil
}

func (r *profileRepoPG) Upsert(ctx context.Context, userID uuid.UUID, patch ProfilePatch, now time.Time) (*Profile, error) {
	v := patch.Visibility
	return scanProfile(r.conn(ctx).QueryRow(ctx, `
		INSERT INTO emergency_profiles (id, user_id, blood_group, allergies, current_medications,
			emergency_contacts, show_blood_group, show_allergies, show_medications,
			show_emergency_contacts, created_at, updated_at)
		VALUES ($1, $2, COALESCE($3, 'Unknown'), COALESCE($4, '[]'::jsonb), COALESCE($5, '[]'::jsonb),
			COALESCE($6, '[]'::jsonb), COALESCE($7, TRUE), COALESCE($8, TRUE), COALESCE($9, TRUE),
			COALESCE($10, TRUE), $11, $11)
		ON CONFLICT (user_id) DO UPDATE SET
			blood_group = COALESCE($3, emergency_profiles.blood_group),
			allergies = COALESCE($4, emergency_profiles.allergies),
			current_medications = COALESCE($5, emergency_profiles.current_medications),
			emergency_contacts = COALESCE($6, emergency_profiles.emergency_contacts),
			show_blood_group = COALESCE($7, emergency_profiles.show_blood_group),
			show_allergies = COALESCE($8, emergency_profiles.show_allergies),
			show_medications = COALESCE($9, emergency_profiles.show_medications),
			show_emergency_contacts = COALESCE($10, emergency_profiles.show_emergency_contacts),
			updated_at = $11
		RETURNING `+returningCols,
		uuid.New(), userID, patch.BloodGroup, patch.Allergies, patch.CurrentMedications,
		patch.EmergencyContacts, v.BloodGroup, v.Allergies, v.CurrentMedications,
		v.EmergencyContacts, now))
}

func (r *profileRepoPG) IssueToken(ctx context.Context, userID uuid.UUID, hash string, expiresAt, now time.Time) (*Profile, error) {
	p, err := scanProfile(r.conn(ctx).QueryRow(ctx, `
		INSERT INTO emergency_profiles (id, user_id, qr_hash, qr_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			qr_hash = EXCLUDED.qr_hash,
			qr_expires_at = EXCLUDED.qr_expires_at,
			updated_at = EXCLUDED.updated_at
		RETURNING `+returningCols,
		uuid.New(), userID, hash, expiresAt, now))
	if db.IsUniqueViolation(err, hashConstraint) {
		return nil, ErrHashCollision
	}
	return p, err
}

func (r *profileRepoPG) UpdateVisibility(ctx context.Context, userID uuid.UUID, patch VisibilityPatch, now time.Time) (*Profile, error) {
	return scanProfile(r.conn(ctx).QueryRow(ctx, `
		UPDATE emergency_profiles SET
			show_blood_group = COALESCE($2, show_blood_group),
			show_allergies = COALESCE($3, show_allergies),
			show_medications = COALESCE($4, show_medications),
			show_emergency_contacts = COALESCE($5, show_emergency_contacts),
			updated_at = $6
		WHERE user_id = $1
		RETURNING `+returningCols,
		userID, patch.BloodGroup, patch.Allergies, patch.CurrentMedications, patch.EmergencyContacts, now))
}

// AppendAccessLog concatenates a one-element array onto access_logs in place,
// so concurrent public reads never lose entries.
func (r *profileRepoPG) AppendAccessLog(ctx context.Context, profileID uuid.UUID, entry AccessLog) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE emergency_profiles SET access_logs = access_logs || $2::jsonb WHERE id = $1`,
		profileID, []AccessLog{entry})
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}
