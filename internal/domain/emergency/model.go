package emergency

import (
	"time"

	"github.com/google/uuid"
)

// Exposable field names, in the order they are reported in access logs.
const (
	FieldBloodGroup         = "bloodGroup"
	FieldAllergies          = "allergies"
	FieldCurrentMedications = "currentMedications"
	FieldEmergencyContacts  = "emergencyContacts"
)

var visibilityFields = []string{FieldBloodGroup, FieldAllergies, FieldCurrentMedications, FieldEmergencyContacts}

var validBloodGroups = map[string]bool{
	"A+": true, "A-": true, "B+": true, "B-": true,
	"AB+": true, "AB-": true, "O+": true, "O-": true, "Unknown": true,
}

const (
	tokenBytes    = 20
	tokenLifetime = 30 * 24 * time.Hour
)

type Allergy struct {
	Name     string `json:"name"`
	Severity string `json:"severity,omitempty"`
	Reaction string `json:"reaction,omitempty"`
}

type Medication struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage,omitempty"`
	Frequency string `json:"frequency,omitempty"`
	Purpose   string `json:"purpose,omitempty"`
}

type Contact struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship,omitempty"`
	Phone        string `json:"phone,omitempty"`
	IsPrimary    bool   `json:"isPrimary"`
}

// Visibility holds one flag per exposable field.
type Visibility struct {
	BloodGroup         bool `json:"bloodGroup"`
	Allergies          bool `json:"allergies"`
	CurrentMedications bool `json:"currentMedications"`
	EmergencyContacts  bool `json:"emergencyContacts"`
}

func DefaultVisibility() Visibility {
	return Visibility{BloodGroup: true, Allergies: true, CurrentMedications: true, EmergencyContacts: true}
}

// Visible reports the flag for a field name.
func (v Visibility) Visible(field string) bool {
	switch field {
	case FieldBloodGroup:
		return v.BloodGroup
	case FieldAllergies:
		return v.Allergies
	case FieldCurrentMedications:
		return v.CurrentMedications
	case FieldEmergencyContacts:
		return v.EmergencyContacts
	}
	return false
}

// VisibilityPatch is a partial visibility update; nil flags keep their value.
type VisibilityPatch struct {
	BloodGroup         *bool
	Allergies          *bool
	CurrentMedications *bool
	EmergencyContacts  *bool
}

// QRCode is the shareable access token. Both fields are nil until the first
// issuance.
type QRCode struct {
	Hash      *string    `json:"hash"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

type AccessLog struct {
	AccessedAt     time.Time `json:"accessedAt"`
	IPAddress      string    `json:"ipAddress"`
	UserAgent      string    `json:"userAgent"`
	AccessedFields []string  `json:"accessedFields"`
}

// Profile is the per-user emergency record.
type Profile struct {
	ID                 uuid.UUID    `json:"id"`
	UserID             uuid.UUID    `json:"userId"`
	BloodGroup         string       `json:"bloodGroup"`
	Allergies          []Allergy    `json:"allergies"`
	CurrentMedications []Medication `json:"currentMedications"`
	EmergencyContacts  []Contact    `json:"emergencyContacts"`
	VisibilitySettings Visibility   `json:"visibilitySettings"`
	QRCode             QRCode       `json:"qrCode"`
	AccessLogs         []AccessLog  `json:"accessLogs"`
	CreatedAt          time.Time    `json:"createdAt"`
	UpdatedAt          time.Time    `json:"updatedAt"`
}

// TokenValid reports whether a token exists and expires strictly after now.
func (p *Profile) TokenValid(now time.Time) bool {
	return p.QRCode.Hash != nil && *p.QRCode.Hash != "" &&
		p.QRCode.ExpiresAt != nil && p.QRCode.ExpiresAt.After(now)
}

// RecentAccessLogs returns up to the last n entries, oldest first.
func (p *Profile) RecentAccessLogs(n int) []AccessLog {
	if len(p.AccessLogs) <= n {
		return append([]AccessLog{}, p.AccessLogs...)
	}
	return append([]AccessLog{}, p.AccessLogs[len(p.AccessLogs)-n:]...)
}

func (p *Profile) normalize() {
	if p.Allergies == nil {
		p.Allergies = []Allergy{}
	}
	if p.CurrentMedications == nil {
		p.CurrentMedications = []Medication{}
	}
	if p.EmergencyContacts == nil {
		p.EmergencyContacts = []Contact{}
	}
	if p.AccessLogs == nil {
		p.AccessLogs = []AccessLog{}
	}
}

// ProfilePatch is an upsert payload. Nil fields keep their stored value (or
// the column default on insert).
type ProfilePatch struct {
	BloodGroup         *string
	Allergies          *[]Allergy
	CurrentMedications *[]Medication
	EmergencyContacts  *[]Contact
	Visibility         VisibilityPatch
}

// Owner is the subset of the account shown on the public view.
type Owner struct {
	FullName    string
	DateOfBirth *time.Time
}

// UserInfo is the identity block of the public view.
type UserInfo struct {
	FullName string `json:"fullName"`
	Age      *int   `json:"age"`
}

// EmergencyData holds only the fields that passed the visibility filter.
type EmergencyData struct {
	BloodGroup         string       `json:"bloodGroup,omitempty"`
	Allergies          []Allergy    `json:"allergies,omitempty"`
	CurrentMedications []Medication `json:"currentMedications,omitempty"`
	EmergencyContacts  []Contact    `json:"emergencyContacts,omitempty"`
}

// PublicView is what an anonymous QR scan returns.
type PublicView struct {
	UserInfo      UserInfo      `json:"userInfo"`
	EmergencyData EmergencyData `json:"emergencyData"`
}

// PrivateView is the owner's view of their profile.
type PrivateView struct {
	Profile      *Profile    `json:"profile"`
	AccessLogs   []AccessLog `json:"accessLogs"`
	QRCodeImage  *string     `json:"qrCodeImage"`
	ShareableURL *string     `json:"shareableUrl"`
	QRHash       *string     `json:"qrHash"`
	QRExpiresAt  *time.Time  `json:"qrExpiresAt"`
}

// IssuedToken is returned by QR generation.
type IssuedToken struct {
	QRCode       string    `json:"qrCode"`
	Hash         string    `json:"hash"`
	ExpiresAt    time.Time `json:"expiresAt"`
	ShareableURL string    `json:"shareableUrl"`
}

type FieldVisibility struct {
	Field      string `json:"field"`
	WasVisible bool   `json:"wasVisible"`
}

type AuditEntry struct {
	AccessedAt         time.Time         `json:"accessedAt"`
	AccessedFields     []string          `json:"accessedFields"`
	VisibilityAtAccess []FieldVisibility `json:"visibilityAtAccess"`
}

type Audit struct {
	AuditLog       []AuditEntry `json:"auditLog"`
	RecentAccesses []AccessLog  `json:"recentAccesses"`
}

// AccessMeta describes the anonymous reader of a public profile.
type AccessMeta struct {
	IPAddress string
	UserAgent string
}
