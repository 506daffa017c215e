package emergency

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ProfileRepository persists emergency profiles. Every method is a single
// statement, so concurrent writers to the same profile never interleave
// partial updates.
type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error)
	// GetByHash returns the profile holding hash together with its owner.
	GetByHash(ctx context.Context, hash string) (*Profile, *Owner, error)
	Upsert(ctx context.Context, userID uuid.UUID, patch ProfilePatch, now time.Time) (*Profile, error)
	// IssueToken creates the profile if needed and overwrites its token.
	// ErrHashCollision is returned when another profile already holds hash.
	IssueToken(ctx context.Context, userID uuid.UUID, hash string, expiresAt, now time.Time) (*Profile, error)
	// UpdateVisibility patches flags on an existing profile only.
	UpdateVisibility(ctx context.Context, userID uuid.UUID, patch VisibilityPatch, now time.Time) (*Profile, error)
	AppendAccessLog(ctx context.Context, profileID uuid.UUID, entry AccessLog) error
}
