package emergency

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/healthvault/vault/internal/domain/account"
)

type mockProfileRepo struct {
	mu       sync.Mutex
	byUser   map[uuid.UUID]*Profile
	owners   map[uuid.UUID]*Owner
	appendFn func(entry AccessLog) error
}

func newMockProfileRepo() *mockProfileRepo {
	return &mockProfileRepo{byUser: make(map[uuid.UUID]*Profile), owners: make(map[uuid.UUID]*Owner)}
}

func clone(p *Profile) *Profile {
	cp := *p
	cp.Allergies = append([]Allergy{}, p.Allergies...)
	cp.CurrentMedications = append([]Medication{}, p.CurrentMedications...)
	cp.EmergencyContacts = append([]Contact{}, p.EmergencyContacts...)
	cp.AccessLogs = append([]AccessLog{}, p.AccessLogs...)
	if p.QRCode.Hash != nil {
		h := *p.QRCode.Hash
		cp.QRCode.Hash = &h
	}
	return &cp
}

func (m *mockProfileRepo) getOrCreate(userID uuid.UUID, now time.Time) *Profile {
	p, ok := m.byUser[userID]
	if !ok {
		p = &Profile{ID: uuid.New(), UserID: userID, BloodGroup: "Unknown", VisibilitySettings: DefaultVisibility(), CreatedAt: now}
		p.normalize()
		m.byUser[userID] = p
	}
	return p
}

func (m *mockProfileRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byUser[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return clone(p), nil
}

func (m *mockProfileRepo) GetByHash(_ context.Context, hash string) (*Profile, *Owner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for uid, p := range m.byUser {
		if p.QRCode.Hash != nil && *p.QRCode.Hash == hash {
			owner := m.owners[uid]
			if owner == nil {
				owner = &Owner{}
			}
			return clone(p), owner, nil
		}
	}
	return nil, nil, ErrProfileNotFound
}

func (m *mockProfileRepo) Upsert(_ context.Context, userID uuid.UUID, patch ProfilePatch, now time.Time) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.getOrCreate(userID, now)
	if patch.BloodGroup != nil {
		p.BloodGroup = *patch.BloodGroup
	}
	if patch.Allergies != nil {
		p.Allergies = append([]Allergy{}, *patch.Allergies...)
	}
	if patch.CurrentMedications != nil {
		p.CurrentMedications = append([]Medication{}, *patch.CurrentMedications...)
	}
	if patch.EmergencyContacts != nil {
		p.EmergencyContacts = append([]Contact{}, *patch.EmergencyContacts...)
	}
	p.VisibilitySettings = patch.Visibility.Apply(p.VisibilitySettings)
	p.UpdatedAt = now
	return clone(p), nil
}

func (m *mockProfileRepo) IssueToken(_ context.Context, userID uuid.UUID, hash string, expiresAt, now time.Time) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for uid, p := range m.byUser {
		if uid != userID && p.QRCode.Hash != nil && *p.QRCode.Hash == hash {
			return nil, ErrHashCollision
		}
	}
	p := m.getOrCreate(userID, now)
	h := hash
	exp := expiresAt
	p.QRCode = QRCode{Hash: &h, ExpiresAt: &exp}
	p.UpdatedAt = now
	return clone(p), nil
}

func (m *mockProfileRepo) UpdateVisibility(_ context.Context, userID uuid.UUID, patch VisibilityPatch, now time.Time) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byUser[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	p.VisibilitySettings = patch.Apply(p.VisibilitySettings)
	p.UpdatedAt = now
	return clone(p), nil
}

func (m *mockProfileRepo) AppendAccessLog(_ context.Context, profileID uuid.UUID, entry AccessLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendFn != nil {
		if err := m.appendFn(entry); err != nil {
			return err
		}
	}
	for _, p := range m.byUser {
		if p.ID == profileID {
			p.AccessLogs = append(p.AccessLogs, entry)
			return nil
		}
	}
	return ErrProfileNotFound
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

type fakeRenderer struct {
	err error
}

func (f fakeRenderer) DataURL(content string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "data:image/png;base64," + content, nil
}

type fakeLinks struct{ base string }

func (f fakeLinks) EmergencyURL(token string) string {
	return strings.TrimRight(f.base, "/") + "/emergency/" + token
}

var errRender = errors.New("render failed")
