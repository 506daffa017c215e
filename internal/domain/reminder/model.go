package reminder

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending   = "Pending"
	StatusCompleted = "Completed"
	StatusSkipped   = "Skipped"
	StatusCancelled = "Cancelled"
)

const (
	RecurrenceOnce    = "Once"
	RecurrenceDaily   = "Daily"
	RecurrenceWeekly  = "Weekly"
	RecurrenceMonthly = "Monthly"
	RecurrenceCustom  = "Custom"
)

const (
	PreferencePush    = "Push"
	PreferenceEmail   = "Email"
	PreferenceBoth    = "Both"
	PreferenceSMS     = "SMS"
	PreferenceSMSPush = "SMS+Push"
)

// ChannelSMS is the only delivery channel the dispatcher implements.
const ChannelSMS = "SMS"

var (
	validTypes       = set("Medication", "Appointment", "Follow-up", "Test", "Other")
	validRecurrences = set(RecurrenceOnce, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, RecurrenceCustom)
	validStatuses    = set(StatusPending, StatusCompleted, StatusSkipped, StatusCancelled)
	validPreferences = set(PreferencePush, PreferenceEmail, PreferenceBoth, PreferenceSMS, PreferenceSMSPush)
)

func set(vals ...string) map[string]bool {
	m := make(map[string]bool, len(vals))
	for _, v := range vals {
		m[v] = true
	}
	return m
}

// Metadata is free-form detail shown alongside a reminder.
type Metadata struct {
	MedicationName string `json:"medicationName,omitempty"`
	Dosage         string `json:"dosage,omitempty"`
	DoctorName     string `json:"doctorName,omitempty"`
	Location       string `json:"location,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

// LastSent records the most recent delivery.
type LastSent struct {
	Channel string    `json:"channel"`
	SID     string    `json:"sid"`
	Status  string    `json:"status"`
	To      string    `json:"to"`
	Body    string    `json:"body"`
	SentAt  time.Time `json:"sentAt"`
}

type Reminder struct {
	ID                     uuid.UUID `json:"id"`
	UserID                 uuid.UUID `json:"userId"`
	Type                   string    `json:"type"`
	Title                  string    `json:"title"`
	Description            *string   `json:"description,omitempty"`
	ScheduledFor           time.Time `json:"scheduledFor"`
	Recurrence             string    `json:"recurrence"`
	Status                 string    `json:"status"`
	NotificationPreference string    `json:"notificationPreference"`
	Metadata               Metadata  `json:"metadata"`
	LastSent               *LastSent `json:"lastSent,omitempty"`
	CreatedAt              time.Time `json:"createdAt"`
	UpdatedAt              time.Time `json:"updatedAt"`
}

// WantsSMS reports whether the preference includes the SMS channel.
func (r *Reminder) WantsSMS() bool {
	return r.NotificationPreference == PreferenceSMS || r.NotificationPreference == PreferenceSMSPush
}

// Contact is the owner data the dispatcher needs to deliver a reminder.
type Contact struct {
	UserID   uuid.UUID
	Email    string
	FullName string
	Phone    *string
}

// Due is a pending reminder inside the dispatch window, joined with its owner.
type Due struct {
	Reminder *Reminder
	Owner    Contact
}

// Filter narrows List. Zero values are ignored.
type Filter struct {
	Status    string
	Type      string
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
}

// Patch is a partial update. Nil fields keep their stored value.
type Patch struct {
	Type                   *string
	Title                  *string
	Description            *string
	ScheduledFor           *time.Time
	Recurrence             *string
	Status                 *string
	NotificationPreference *string
	Metadata               *Metadata
}

// digits strips everything but 0-9.
func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
