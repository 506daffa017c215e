package account

import (
	"regexp"
	"strings"
)

var (
	localPartRe = regexp.MustCompile("^[A-Za-z0-9.!#$%&'*+/=?^_`{|}~-]+$")
	tldRe       = regexp.MustCompile(`^[a-z]{2,6}$`)
	domainRe    = regexp.MustCompile(`^[A-Za-z0-9.-]+$`)
)

// ValidEmail applies a strict address check: one '@', a local part of at most
// 64 atext/dot characters, dot-separated domain labels of 1-63 characters and
// an alphabetic TLD of 2-6 letters.
func ValidEmail(email string) bool {
	e := strings.TrimSpace(email)
	if e == "" || len(e) > 254 || strings.Contains(e, " ") {
		return false
	}

	parts := strings.Split(e, "@")
	if len(parts) != 2 {
		return false
	}
	local, domain := parts[0], parts[1]
	if local == "" || domain == "" || len(local) > 64 {
		return false
	}
	if !localPartRe.MatchString(local) {
		return false
	}

	labels := strings.Split(strings.ToLower(domain), ".")
	for _, l := range labels {
		if l == "" || len(l) > 63 {
			return false
		}
	}
	if !tldRe.MatchString(labels[len(labels)-1]) {
		return false
	}
	return domainRe.MatchString(domain)
}
