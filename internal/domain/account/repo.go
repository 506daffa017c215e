package account

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserRepository persists accounts.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByFirebaseUID(ctx context.Context, uid string) (*User, error)
	// ExistsByUIDOrEmail reports whether either key is already taken.
	ExistsByUIDOrEmail(ctx context.Context, uid, email string) (bool, error)
	UpdateProfile(ctx context.Context, uid string, p profilePatch, now time.Time) (*User, error)
}
