package emergency

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthvault/vault/internal/domain/account"
	"github.com/healthvault/vault/internal/platform/apperr"
)

var (
	ErrProfileNotFound   = apperr.NotFound("Emergency profile not found")
	ErrInvalidToken      = apperr.NotFound("Invalid or expired QR code")
	ErrInvalidVisibility = apperr.Validation("Invalid visibility settings")
	ErrHashCollision     = errors.New("qr hash already in use")
)

const maxIssueAttempts = 3

// UserLookup resolves the caller's account.
type UserLookup interface {
	GetByFirebaseUID(ctx context.Context, uid string) (*account.User, error)
}

// QRRenderer renders a URL as an image data URL.
type QRRenderer interface {
	DataURL(content string) (string, error)
}

// LinkBuilder produces the shareable URL for a token.
type LinkBuilder interface {
	EmergencyURL(token string) string
}

// Service mediates between an owner's emergency data and anonymous QR readers.
type Service struct {
	profiles ProfileRepository
	users    UserLookup
	qr       QRRenderer
	links    LinkBuilder
	now      func() time.Time
	random   io.Reader
	logger   zerolog.Logger
}

func NewService(profiles ProfileRepository, users UserLookup, qr QRRenderer, links LinkBuilder, logger zerolog.Logger) *Service {
	return &Service{
		profiles: profiles,
		users:    users,
		qr:       qr,
		links:    links,
		now:      time.Now,
		random:   rand.Reader,
		logger:   logger.With().Str("component", "emergency").Logger(),
	}
}

// IssueToken replaces the caller's token with a fresh one valid for 30 days,
// creating the profile if needed, and renders its QR code.
func (s *Service) IssueToken(ctx context.Context, uid string) (*IssuedToken, error) {
	user, err := s.users.GetByFirebaseUID(ctx, uid)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	expiresAt := now.Add(tokenLifetime)

	var hash string
	for attempt := 1; ; attempt++ {
		hash, err = s.newToken()
		if err != nil {
			return nil, err
		}
		_, err = s.profiles.IssueToken(ctx, user.ID, hash, expiresAt, now)
		if errors.Is(err, ErrHashCollision) && attempt < maxIssueAttempts {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("issue token: %w", err)
		}
		break
	}

	url := s.links.EmergencyURL(hash)
	img, err := s.qr.DataURL(url)
	if err != nil {
		return nil, fmt.Errorf("render qr: %w", err)
	}
	return &IssuedToken{QRCode: img, Hash: hash, ExpiresAt: expiresAt, ShareableURL: url}, nil
}

func (s *Service) newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := io.ReadFull(s.random, b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// ReadPublicProfile returns the visibility-filtered view for a token and
// records the access. Unknown and expired tokens are indistinguishable.
func (s *Service) ReadPublicProfile(ctx context.Context, hash string, meta AccessMeta) (*PublicView, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return nil, ErrInvalidToken
	}
	profile, owner, err := s.profiles.GetByHash(ctx, hash)
	if errors.Is(err, ErrProfileNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if !profile.TokenValid(now) {
		return nil, ErrInvalidToken
	}

	data, fields := filterVisible(profile)
	view := &PublicView{
		UserInfo:      UserInfo{FullName: owner.FullName},
		EmergencyData: data,
	}
	if owner.DateOfBirth != nil {
		age := Age(*owner.DateOfBirth, now)
		view.UserInfo.Age = &age
	}

	entry := AccessLog{
		AccessedAt:     now,
		IPAddress:      meta.IPAddress,
		UserAgent:      meta.UserAgent,
		AccessedFields: fields,
	}
	if err := s.profiles.AppendAccessLog(ctx, profile.ID, entry); err != nil {
		return nil, fmt.Errorf("record access: %w", err)
	}
	return view, nil
}

// filterVisible copies fields whose flag is set; list fields also need at
// least one entry.
func filterVisible(p *Profile) (EmergencyData, []string) {
	var data EmergencyData
	fields := []string{}
	v := p.VisibilitySettings
	if v.BloodGroup {
		data.BloodGroup = p.BloodGroup
		fields = append(fields, FieldBloodGroup)
	}
	if v.Allergies && len(p.Allergies) > 0 {
		data.Allergies = p.Allergies
		fields = append(fields, FieldAllergies)
	}
	if v.CurrentMedications && len(p.CurrentMedications) > 0 {
		data.CurrentMedications = p.CurrentMedications
		fields = append(fields, FieldCurrentMedications)
	}
	if v.EmergencyContacts && len(p.EmergencyContacts) > 0 {
		data.EmergencyContacts = p.EmergencyContacts
		fields = append(fields, FieldEmergencyContacts)
	}
	return data, fields
}

// Age is whole years between birth and now by calendar date.
func Age(birth, now time.Time) int {
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age
}

// ReadPrivateProfile returns the owner's full profile. The QR image and
// shareable URL are rendered on every call while the token is valid.
func (s *Service) ReadPrivateProfile(ctx context.Context, uid string) (*PrivateView, error) {
	user, err := s.users.GetByFirebaseUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	profile, err := s.profiles.GetByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	view := &PrivateView{
		Profile:     profile,
		AccessLogs:  profile.RecentAccessLogs(10),
		QRHash:      profile.QRCode.Hash,
		QRExpiresAt: profile.QRCode.ExpiresAt,
	}
	if profile.TokenValid(s.now()) {
		url := s.links.EmergencyURL(*profile.QRCode.Hash)
		img, err := s.qr.DataURL(url)
		if err != nil {
			s.logger.Warn().Err(err).Msg("render qr for private profile")
		} else {
			view.QRCodeImage = &img
			view.ShareableURL = &url
		}
	}
	return view, nil
}

// ProfileInput is the body of POST /api/emergency/profile. Absent fields keep
// their stored values.
type ProfileInput struct {
	BloodGroup         *string         `json:"bloodGroup"`
	Allergies          *[]Allergy      `json:"allergies"`
	CurrentMedications *[]Medication   `json:"currentMedications"`
	EmergencyContacts  *[]Contact      `json:"emergencyContacts"`
	VisibilitySettings json.RawMessage `json:"visibilitySettings"`
}

// SaveProfile creates or updates the caller's profile.
func (s *Service) SaveProfile(ctx context.Context, uid string, in ProfileInput) (*Profile, error) {
	user, err := s.users.GetByFirebaseUID(ctx, uid)
	if err != nil {
		return nil, err
	}

	patch := ProfilePatch{
		BloodGroup:         in.BloodGroup,
		Allergies:          in.Allergies,
		CurrentMedications: in.CurrentMedications,
		EmergencyContacts:  in.EmergencyContacts,
	}
	if patch.BloodGroup != nil && !validBloodGroups[*patch.BloodGroup] {
		return nil, apperr.Validation("Invalid blood group: %s", *patch.BloodGroup)
	}
	if len(in.VisibilitySettings) > 0 && string(in.VisibilitySettings) != "null" {
		vis, err := ParseVisibility(in.VisibilitySettings)
		if err != nil {
			return nil, err
		}
		patch.Visibility = vis
	}

	return s.profiles.Upsert(ctx, user.ID, patch, s.now().UTC())
}

// UpdateVisibility applies a visibility patch. With create=false the profile
// must already exist; otherwise it is created with default data.
func (s *Service) UpdateVisibility(ctx context.Context, uid string, body []byte, create bool) (Visibility, error) {
	patch, err := ParseVisibility(body)
	if err != nil {
		return Visibility{}, err
	}
	user, err := s.users.GetByFirebaseUID(ctx, uid)
	if err != nil {
		return Visibility{}, err
	}

	var p *Profile
	if create {
		p, err = s.profiles.Upsert(ctx, user.ID, ProfilePatch{Visibility: patch}, s.now().UTC())
	} else {
		p, err = s.profiles.UpdateVisibility(ctx, user.ID, patch, s.now().UTC())
	}
	if err != nil {
		return Visibility{}, err
	}
	return p.VisibilitySettings, nil
}

// GetVisibility returns stored settings, or all-visible defaults when the
// caller has no profile yet.
func (s *Service) GetVisibility(ctx context.Context, uid string) (Visibility, error) {
	user, err := s.users.GetByFirebaseUID(ctx, uid)
	if err != nil {
		return Visibility{}, err
	}
	p, err := s.profiles.GetByUserID(ctx, user.ID)
	if errors.Is(err, ErrProfileNotFound) {
		return DefaultVisibility(), nil
	}
	if err != nil {
		return Visibility{}, err
	}
	return p.VisibilitySettings, nil
}

// ResetVisibility makes every field visible again.
func (s *Service) ResetVisibility(ctx context.Context, uid string) (Visibility, error) {
	user, err := s.users.GetByFirebaseUID(ctx, uid)
	if err != nil {
		return Visibility{}, err
	}
	p, err := s.profiles.UpdateVisibility(ctx, user.ID, allVisible(), s.now().UTC())
	if err != nil {
		return Visibility{}, err
	}
	return p.VisibilitySettings, nil
}

// VisibilityAudit pairs every access with the current flag of each field it
// exposed.
func (s *Service) VisibilityAudit(ctx context.Context, uid string) (*Audit, error) {
	user, err := s.users.GetByFirebaseUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	p, err := s.profiles.GetByUserID(ctx, user.ID)
	if errors.Is(err, ErrProfileNotFound) {
		return &Audit{AuditLog: []AuditEntry{}, RecentAccesses: []AccessLog{}}, nil
	}
	if err != nil {
		return nil, err
	}

	audit := &Audit{
		AuditLog:       make([]AuditEntry, 0, len(p.AccessLogs)),
		RecentAccesses: p.RecentAccessLogs(10),
	}
	for _, log := range p.AccessLogs {
		entry := AuditEntry{
			AccessedAt:         log.AccessedAt,
			AccessedFields:     log.AccessedFields,
			VisibilityAtAccess: make([]FieldVisibility, 0, len(log.AccessedFields)),
		}
		for _, f := range log.AccessedFields {
			entry.VisibilityAtAccess = append(entry.VisibilityAtAccess, FieldVisibility{
				Field:      f,
				WasVisible: p.VisibilitySettings.Visible(f),
			})
		}
		audit.AuditLog = append(audit.AuditLog, entry)
	}
	return audit, nil
}
