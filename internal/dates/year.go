// Package dates extracts publication years from free-form document dates.
package dates

import (
	"strings"
	"time"
)

// Unknown is the wire value stored in index entries when no year could be parsed.
const Unknown = -1

// layouts are tried in order. Upstream records carry all of them without a
// format discriminator, so day-first wins over month-first for slashed dates.
var layouts = []string{
	"2006",
	"2-1-2006",
	"2/1/2006",
	"1/2/2006",
	"2.1.2006",
	"2.1.2006.",
}

// ParseYear returns the four-digit year of s, or false when no layout matches.
func ParseYear(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return t.Year(), true
	}
	return 0, false
}

// YearOrUnknown is ParseYear collapsed to the index wire format.
func YearOrUnknown(s string) int {
	if year, ok := ParseYear(s); ok {
		return year
	}
	return Unknown
}
