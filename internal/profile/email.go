package profile

import (
	"net/mail"
	"strings"
)

// NormalizeEmail trims and lower-cases an e-mail address. Every e-mail
// stored or compared by the service goes through it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether email is a bare address (no display name).
func ValidEmail(email string) bool {
	if email == "" || len(email) > 254 {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email && strings.Contains(email[strings.LastIndexByte(email, '@')+1:], ".")
}
