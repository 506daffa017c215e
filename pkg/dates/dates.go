// Package dates parses the timestamp shapes browsers submit: full RFC 3339,
// datetime-local inputs without a zone, and bare dates.
package dates

import (
	"fmt"
	"strings"
	"time"
)

var zoned = []string{
	time.RFC3339Nano,
	time.RFC3339,
}

var local = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Parse reads s, interpreting zone-less values as UTC.
func Parse(s string) (time.Time, error) {
	return ParseIn(s, time.UTC)
}

// ParseIn reads s, interpreting zone-less values in loc.
func ParseIn(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, f := range zoned {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, f := range local {
		if t, err := time.ParseInLocation(f, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", s)
}

// ParseOptional parses a pointer input. Nil or blank yields nil.
func ParseOptional(s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := Parse(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
