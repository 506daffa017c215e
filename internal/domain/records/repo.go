package records

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/healthvault/vault/pkg/pagination"
)

type Repository interface {
	Create(ctx context.Context, r *Record) error
	// List returns one page ordered by dateOfRecord descending, plus the
	// total number of matches.
	List(ctx context.Context, userID uuid.UUID, f Filter, page pagination.Params) ([]*Record, int, error)
	Update(ctx context.Context, userID, id uuid.UUID, p Patch, now time.Time) (*Record, error)
	// Delete removes the row and returns it so the caller can drop the blob.
	Delete(ctx context.Context, userID, id uuid.UUID) (*Record, error)
}
