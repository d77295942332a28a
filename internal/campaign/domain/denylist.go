package domain

import "strings"

// Denylist holds guarantor name patterns that exclude a subject from
// matching. Institutional guarantors (county custody, foster agencies)
// mean the billing account does not represent a family household.
type Denylist struct {
	patterns []string
}

// NewDenylist builds a denylist from raw patterns. Patterns are
// matched case-insensitively as substrings of the guarantor name.
func NewDenylist(patterns []string) Denylist {
	upper := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if trimmed := strings.ToUpper(strings.TrimSpace(p)); trimmed != "" {
			upper = append(upper, trimmed)
		}
	}
	return Denylist{patterns: upper}
}

// Blocked reports whether the guarantor name matches any pattern
func (d Denylist) Blocked(guarantorName string) bool {
	name := strings.ToUpper(guarantorName)
	for _, p := range d.patterns {
		if strings.Contains(name, p) {
			return true
		}
	}
	return false
}
