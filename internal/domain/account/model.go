package account

import (
	"time"

	"github.com/google/uuid"
)

// User is an account keyed by the external auth subject (Firebase uid).
type User struct {
	ID             uuid.UUID  `json:"id"`
	FirebaseUID    string     `json:"firebaseUid"`
	Email          string     `json:"email"`
	FullName       string     `json:"fullName"`
	Phone          *string    `json:"phone,omitempty"`
	DateOfBirth    *time.Time `json:"dateOfBirth,omitempty"`
	ProfilePicture *string    `json:"profilePicture,omitempty"`
	LastLogin      *time.Time `json:"lastLogin,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// PhoneNumber returns the stored phone or "".
func (u *User) PhoneNumber() string {
	if u.Phone == nil {
		return ""
	}
	return *u.Phone
}

// RegisterInput is the body of POST /api/auth/register.
type RegisterInput struct {
	FirebaseUID string  `json:"firebaseUid"`
	Email       string  `json:"email"`
	FullName    string  `json:"fullName"`
	Phone       *string `json:"phone"`
	DateOfBirth *string `json:"dateOfBirth"`
}

// ProfileUpdate is a partial update; nil fields are left unchanged.
type ProfileUpdate struct {
	FullName       *string `json:"fullName"`
	Phone          *string `json:"phone"`
	DateOfBirth    *string `json:"dateOfBirth"`
	ProfilePicture *string `json:"profilePicture"`
}

// profilePatch is a ProfileUpdate after parsing.
type profilePatch struct {
	FullName       *string
	Phone          *string
	DateOfBirth    *time.Time
	ClearBirth     bool
	ProfilePicture *string
}
