package reminder

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *Reminder) error
	// List returns the user's reminders ordered by scheduledFor ascending.
	List(ctx context.Context, userID uuid.UUID, f Filter) ([]*Reminder, error)
	Update(ctx context.Context, userID, id uuid.UUID, p Patch, now time.Time) (*Reminder, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	// ListDue returns Pending reminders scheduled within [from, to].
	ListDue(ctx context.Context, from, to time.Time) ([]*Due, error)
	// MarkSent stores the delivery record and, when complete is set, moves
	// the reminder to Completed in the same statement.
	MarkSent(ctx context.Context, id uuid.UUID, sent LastSent, complete bool) error
}
