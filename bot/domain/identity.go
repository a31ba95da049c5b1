package domain

import (
	"errors"
	"regexp"
	"strings"
)

// identityRe matches the email-shaped account identifier: ASCII local part,
// ASCII domain with at least one dot. Comparison against the registry is
// case-insensitive, but the value itself is stored as entered.
var identityRe = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

var (
	// ErrIdentityFormat reports a string that is not a valid Apple ID.
	ErrIdentityFormat = errors.New("invalid identity format")
	// ErrPhonePrefix reports a phone number lacking the '+' country code.
	ErrPhonePrefix = errors.New("phone must start with '+'")
	// ErrPhoneLength reports a phone number too short to carry a country
	// and area code.
	ErrPhoneLength = errors.New("phone too short")
)

// Identity is the email-shaped account identifier used as the registry key.
// It is immutable once created; uniqueness is enforced by the pair store.
type Identity string

// ParseIdentity validates the raw input and returns it as an Identity.
func ParseIdentity(raw string) (Identity, error) {
	s := strings.TrimSpace(raw)
	if !identityRe.MatchString(s) {
		return "", ErrIdentityFormat
	}
	return Identity(s), nil
}

// IsValidIdentity reports whether raw passes identity validation.
func IsValidIdentity(raw string) bool {
	_, err := ParseIdentity(raw)
	return err == nil
}

// Fold returns the case-folded form used for registry comparisons.
func (id Identity) Fold() string {
	return strings.ToLower(string(id))
}

// String returns the identity as entered.
func (id Identity) String() string {
	return string(id)
}

// ValidatePhone checks the registration shape for phone numbers: a leading
// '+' country code and at least 10 characters overall.
func ValidatePhone(raw string) error {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "+") {
		return ErrPhonePrefix
	}
	if len(s) < 10 {
		return ErrPhoneLength
	}
	return nil
}
