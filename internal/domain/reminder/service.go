package reminder

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/healthvault/vault/internal/domain/account"
	"github.com/healthvault/vault/internal/platform/apperr"
	"github.com/healthvault/vault/pkg/dates"
)

// MaxListLimit caps how many reminders List returns.
const MaxListLimit = 100

var (
	ErrReminderNotFound = apperr.NotFound("Reminder not found")
	ErrScheduleRequired = apperr.Validation("scheduledFor (date/time) is required")
	ErrScheduleInvalid  = apperr.Validation("scheduledFor is not a valid date/time")
	ErrNoPhone          = apperr.Validation("Cannot create SMS reminder: user has no phone number on profile")
)

// UserLookup resolves the caller's account.
type UserLookup interface {
	GetByFirebaseUID(ctx context.Context, uid string) (*account.User, error)
}

type Service struct {
	reminders Repository
	users     UserLookup
	loc       *time.Location
	now       func() time.Time
}

// NewService builds the reminder service. Zone-less timestamps in requests
// are read in loc.
func NewService(reminders Repository, users UserLookup, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{reminders: reminders, users: users, loc: loc, now: time.Now}
}

// CreateInput is the body of POST /api/reminders.
type CreateInput struct {
	Type                   string    `json:"type"`
	Title                  string    `json:"title"`
	Description            *string   `json:"description"`
	ScheduledFor           string    `json:"scheduledFor"`
	Recurrence             string    `json:"recurrence"`
	Status                 string    `json:"status"`
	NotificationPreference string    `json:"notificationPreference"`
	Metadata               *Metadata `json:"metadata"`
}

// Create validates and stores a reminder. SMS preferences require a phone
// on the owner's profile that contains at least one digit.
func (s *Service) Create(ctx context.Context, uid string, in CreateInput) (*Reminder, error) {
	user, err := s.users.GetByFirebaseUID(ctx, uid)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(in.ScheduledFor) == "" {
		return nil, ErrScheduleRequired
	}
	scheduled, err := dates.ParseIn(in.ScheduledFor, s.loc)
	if err != nil {
		return nil, ErrScheduleInvalid
	}

	rem := &Reminder{
		UserID:                 user.ID,
		Type:                   in.Type,
		Title:                  strings.TrimSpace(in.Title),
		Description:            in.Description,
		ScheduledFor:           scheduled.UTC(),
		Recurrence:             orDefault(in.Recurrence, RecurrenceOnce),
		Status:                 orDefault(in.Status, StatusPending),
		NotificationPreference: orDefault(in.NotificationPreference, PreferencePush),
	}
	if in.Metadata != nil {
		rem.Metadata = *in.Metadata
	}
	if err := validate(rem); err != nil {
		return nil, err
	}
	if rem.WantsSMS() && digits(user.PhoneNumber()) == "" {
		return nil, ErrNoPhone
	}

	if err := s.reminders.Create(ctx, rem); err != nil {
		return nil, err
	}
	return rem, nil
}

func validate(r *Reminder) error {
	if r.Title == "" {
		return apperr.Validation("title is required")
	}
	if !validTypes[r.Type] {
		return apperr.Validation("Invalid reminder type: %s", r.Type)
	}
	if !validRecurrences[r.Recurrence] {
		return apperr.Validation("Invalid recurrence: %s", r.Recurrence)
	}
	if !validStatuses[r.Status] {
		return apperr.Validation("Invalid status: %s", r.Status)
	}
	if !validPreferences[r.NotificationPreference] {
		return apperr.Validation("Invalid notification preference: %s", r.NotificationPreference)
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// ListQuery carries raw query-string filters.
type ListQuery struct {
	Status    string
	Type      string
	StartDate string
	EndDate   string
}

// List returns up to MaxListLimit of the caller's reminders, soonest first.
func (s *Service) List(ctx context.Context, uid string, q ListQuery) ([]*Reminder, error) {
	user, err := s.users.GetByFirebaseUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	f := Filter{Status: q.Status, Type: q.Type, Limit: MaxListLimit}
	if q.StartDate != "" {
		t, err := dates.ParseIn(q.StartDate, s.loc)
		if err != nil {
			return nil, apperr.Validation("Invalid startDate")
		}
		f.StartDate = &t
	}
	if q.EndDate != "" {
		t, err := dates.ParseIn(q.EndDate, s.loc)
		if err != nil {
			return nil, apperr.Validation("Invalid endDate")
		}
		f.EndDate = &t
	}

	out, err := s.reminders.List(ctx, user.ID, f)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*Reminder{}
	}
	return out, nil
}

// UpdateInput is the body of PUT /api/reminders/:reminderId. Absent fields
// are left unchanged.
type UpdateInput struct {
	Type                   *string   `json:"type"`
	Title                  *string   `json:"title"`
	Description            *string   `json:"description"`
	ScheduledFor           *string   `json:"scheduledFor"`
	Recurrence             *string   `json:"recurrence"`
	Status                 *string   `json:"status"`
	NotificationPreference *string   `json:"notificationPreference"`
	Metadata               *Metadata `json:"metadata"`
}

// Update patches one of the caller's reminders. The SMS phone check is not
// repeated here.
func (s *Service) Update(ctx context.Context, uid string, id uuid.UUID, in UpdateInput) (*Reminder, error) {
	user, err := s.users.GetByFirebaseUID(ctx, uid)
	if err != nil {
		return nil, err
	}

	p := Patch{
		Type:                   in.Type,
		Title:                  in.Title,
		Description:            in.Description,
		Recurrence:             in.Recurrence,
		Status:                 in.Status,
		NotificationPreference: in.NotificationPreference,
		Metadata:               in.Metadata,
	}
	switch {
	case p.Type != nil && !validTypes[*p.Type]:
		return nil, apperr.Validation("Invalid reminder type: %s", *p.Type)
	case p.Title != nil && strings.TrimSpace(*p.Title) == "":
		return nil, apperr.Validation("title is required")
	case p.Recurrence != nil && !validRecurrences[*p.Recurrence]:
		return nil, apperr.Validation("Invalid recurrence: %s", *p.Recurrence)
	case p.Status != nil && !validStatuses[*p.Status]:
		return nil, apperr.Validation("Invalid status: %s", *p.Status)
	case p.NotificationPreference != nil && !validPreferences[*p.NotificationPreference]:
		return nil, apperr.Validation("Invalid notification preference: %s", *p.NotificationPreference)
	}
	if in.ScheduledFor != nil && strings.TrimSpace(*in.ScheduledFor) != "" {
		t, err := dates.ParseIn(*in.ScheduledFor, s.loc)
		if err != nil {
			return nil, ErrScheduleInvalid
		}
		t = t.UTC()
		p.ScheduledFor = &t
	}

	return s.reminders.Update(ctx, user.ID, id, p, s.now().UTC())
}

func (s *Service) Delete(ctx context.Context, uid string, id uuid.UUID) error {
	user, err := s.users.GetByFirebaseUID(ctx, uid)
	if err != nil {
		return err
	}
	return s.reminders.Delete(ctx, user.ID, id)
}
