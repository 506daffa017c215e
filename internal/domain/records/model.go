package records

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

var validCategories = map[string]bool{
	"Prescription": true,
	"Lab Report":   true,
	"Doctor Note":  true,
	"Scan Report":  true,
	"Vaccination":  true,
	"Other":        true,
}

const defaultCategory = "Other"

// Record is an uploaded medical document. The blob handle stays server-side.
type Record struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"userId"`
	Title           string    `json:"title"`
	Description     *string   `json:"description,omitempty"`
	Category        string    `json:"category"`
	FileURL         string    `json:"fileUrl"`
	FileName        string    `json:"fileName"`
	FileSize        int64     `json:"fileSize"`
	FileType        string    `json:"fileType"`
	StorageProvider string    `json:"-"`
	StorageKey      string    `json:"-"`
	DateOfRecord    time.Time `json:"dateOfRecord"`
	Tags            []string  `json:"tags"`
	IsEncrypted     bool      `json:"isEncrypted"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type Filter struct {
	Category  string
	StartDate *time.Time
	EndDate   *time.Time
	Tag       string
}

// Patch is a partial update. Nil fields keep their stored value.
type Patch struct {
	Title        *string
	Description  *string
	Category     *string
	DateOfRecord *time.Time
	Tags         *[]string
}

// splitTags turns "a, b,,c" into [a b c].
func splitTags(s string) []string {
	out := []string{}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
