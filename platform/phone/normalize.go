// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// NormalizeE164 formats a phone number to E.164 for the given region.
// If parsing fails or the number is invalid, it returns the input with
// everything but digits stripped, so equal raw numbers still compare
// equal after normalization.
func NormalizeE164(input, region string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}

	number, err := phonenumbers.Parse(trimmed, region)
	if err != nil {
		return digitsOnly(trimmed)
	}

	if !phonenumbers.IsValidNumber(number) {
		return digitsOnly(trimmed)
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
