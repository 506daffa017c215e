package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/healthvault/vault/internal/platform/apperr"
	"github.com/healthvault/vault/pkg/dates"
)

var (
	ErrUserNotFound = apperr.NotFound("User not found")
	ErrUserExists   = apperr.Conflict("User already exists")
)

// Service provides account registration and profile maintenance.
type Service struct {
	users UserRepository
	now   func() time.Time
}

func NewService(users UserRepository) *Service {
	return &Service{users: users, now: time.Now}
}

// Register creates the account for a Firebase uid. Email is lower-cased
// before the uniqueness check.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	if !ValidEmail(in.Email) {
		return nil, apperr.Validation("Invalid email address")
	}
	if strings.TrimSpace(in.FirebaseUID) == "" {
		return nil, apperr.Validation("firebaseUid is required")
	}
	if strings.TrimSpace(in.FullName) == "" {
		return nil, apperr.Validation("fullName is required")
	}
	dob, err := dates.ParseOptional(in.DateOfBirth)
	if err != nil {
		return nil, apperr.Validation("Invalid dateOfBirth")
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	exists, err := s.users.ExistsByUIDOrEmail(ctx, in.FirebaseUID, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserExists
	}

	now := s.now().UTC()
	u := &User{
		FirebaseUID: in.FirebaseUID,
		Email:       email,
		FullName:    strings.TrimSpace(in.FullName),
		Phone:       trimmed(in.Phone),
		DateOfBirth: dob,
		LastLogin:   &now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// GetByFirebaseUID resolves the caller's account.
func (s *Service) GetByFirebaseUID(ctx context.Context, uid string) (*User, error) {
	if uid == "" {
		return nil, ErrUserNotFound
	}
	return s.users.GetByFirebaseUID(ctx, uid)
}

// UpdateProfile patches the caller's profile and stamps lastLogin.
func (s *Service) UpdateProfile(ctx context.Context, uid string, in ProfileUpdate) (*User, error) {
	var p profilePatch
	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		if name == "" {
			return nil, apperr.Validation("fullName cannot be empty")
		}
		p.FullName = &name
	}
	p.Phone = trimmedKeepEmpty(in.Phone)
	p.ProfilePicture = trimmedKeepEmpty(in.ProfilePicture)
	if in.DateOfBirth != nil {
		if strings.TrimSpace(*in.DateOfBirth) == "" {
			p.ClearBirth = true
		} else {
			dob, err := dates.ParseOptional(in.DateOfBirth)
			if err != nil {
				return nil, apperr.Validation("Invalid dateOfBirth")
			}
			p.DateOfBirth = dob
		}
	}

	u, err := s.users.UpdateProfile(ctx, uid, p, s.now().UTC())
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func trimmedKeepEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
