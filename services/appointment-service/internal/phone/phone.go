// Package phone canonicalizes customer phone numbers to E.164.
//
// Validation is a loose shape check, not a carrier lookup. Normalize does not
// reject short numbers, so user-facing paths call Valid first.
package phone

import (
	"errors"
	"regexp"
	"strings"
)

const defaultCountryCode = "1"

var ErrInvalidPhone = errors.New("invalid phone number")

var e164Digits = regexp.MustCompile(`^[1-9]\d{1,14}$`)

func digits(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func Valid(raw string) bool {
	return e164Digits.MatchString(digits(raw))
}

// Normalize strips formatting and prefixes "+". Ten digit numbers are
// treated as North American and get the +1 country code.
func Normalize(raw string) (string, error) {
	d := digits(raw)
	if d == "" {
		return "", ErrInvalidPhone
	}
	if len(d) == 10 {
		return "+" + defaultCountryCode + d, nil
	}
	return "+" + d, nil
}
