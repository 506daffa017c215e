package reminder

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/healthvault/vault/internal/domain/account"
)

type mockRepo struct {
	mu        sync.Mutex
	reminders map[uuid.UUID]*Reminder
	contacts  map[uuid.UUID]Contact
	markErr   error
	listErr   error
}

func newMockRepo() *mockRepo {
	return &mockRepo{reminders: make(map[uuid.UUID]*Reminder), contacts: make(map[uuid.UUID]Contact)}
}

func (m *mockRepo) Create(_ context.Context, r *Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	cp := *r
	m.reminders[r.ID] = &cp
	return nil
}

func (m *mockRepo) get(id uuid.UUID) *Reminder {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reminders[id]
	if !ok {
		return nil
	}
	cp := *r
	return &cp
}

func (m *mockRepo) List(_ context.Context, userID uuid.UUID, f Filter) ([]*Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Reminder
	for _, r := range m.reminders {
		if r.UserID != userID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.Type != "" && r.Type != f.Type {
			continue
		}
		if f.StartDate != nil && r.ScheduledFor.Before(*f.StartDate) {
			continue
		}
		if f.EndDate != nil && r.ScheduledFor.After(*f.EndDate) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *mockRepo) Update(_ context.Context, userID, id uuid.UUID, p Patch, now time.Time) (*Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reminders[id]
	if !ok || r.UserID != userID {
		return nil, ErrReminderNotFound
	}
	if p.Type != nil {
		r.Type = *p.Type
	}
	if p.Title != nil {
		r.Title = *p.Title
	}
	if p.Description != nil {
		r.Description = p.Description
	}
	if p.ScheduledFor != nil {
		r.ScheduledFor = *p.ScheduledFor
	}
	if p.Recurrence != nil {
		r.Recurrence = *p.Recurrence
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.NotificationPreference != nil {
		r.NotificationPreference = *p.NotificationPreference
	}
	if p.Metadata != nil {
		r.Metadata = *p.Metadata
	}
	r.UpdatedAt = now
	cp := *r
	return &cp, nil
}

func (m *mockRepo) Delete(_ context.Context, userID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reminders[id]
	if !ok || r.UserID != userID {
		return ErrReminderNotFound
	}
	delete(m.reminders, id)
	return nil
}

func (m *mockRepo) ListDue(_ context.Context, from, to time.Time) ([]*Due, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*Due
	for _, r := range m.reminders {
		if r.Status != StatusPending || r.ScheduledFor.Before(from) || r.ScheduledFor.After(to) {
			continue
		}
		cp := *r
		out = append(out, &Due{Reminder: &cp, Owner: m.contacts[r.UserID]})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Reminder.ScheduledFor.Before(out[j].Reminder.ScheduledFor)
	})
	return out, nil
}

func (m *mockRepo) MarkSent(_ context.Context, id uuid.UUID, sent LastSent, complete bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	r, ok := m.reminders[id]
	if !ok {
		return ErrReminderNotFound
	}
	r.LastSent = &sent
	if complete {
		r.Status = StatusCompleted
	}
	r.UpdatedAt = sent.SentAt
	return nil
}

type mockUsers struct {
	users map[string]*account.User
}

func (m *mockUsers) GetByFirebaseUID(_ context.Context, uid string) (*account.User, error) {
	u, ok := m.users[uid]
	if !ok {
		return nil, account.ErrUserNotFound
	}
	return u, nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var errDB = errors.New("connection reset")
