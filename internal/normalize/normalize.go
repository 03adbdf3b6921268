// Package normalize provides utilities for normalizing names and language tags.
package normalize

import (
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// languageNameToCode maps language names seen in imported records to ISO 639-1 codes.
//
//nolint:gochecknoglobals // Static lookup table for language normalization
var languageNameToCode = map[string]string{
	"english": "en", "german": "de", "french": "fr", "russian": "ru",
	"italian": "it", "spanish": "es", "hungarian": "hu", "slovenian": "sl",
	"serbian": "sr", "croatian": "hr", "bosnian": "bs", "montenegrin": "sr",
	"macedonian": "mk", "bulgarian": "bg", "slovak": "sk", "czech": "cs",
	"romanian": "ro", "greek": "el", "polish": "pl", "ukrainian": "uk",
	"srpski": "sr", "hrvatski": "hr", "bosanski": "bs", "engleski": "en",
}

// LanguageCode converts various language representations to ISO 639-1 codes.
// It handles:
//   - ISO 639-1 codes: "sr" -> "sr"
//   - ISO 639-2/3 codes: "srp" -> "sr"
//   - Script or region suffixed tags: "SR-CYR", "sr_Latn", "en-US" -> "sr", "sr", "en"
//   - Language names: "Serbian", "srpski" -> "sr"
//
// Returns empty string for unrecognized values.
func LanguageCode(raw string) string {
	s := strings.ToLower(strings.TrimSpace(sanitizeString(raw)))
	if s == "" {
		return ""
	}

	if code, ok := languageNameToCode[s]; ok {
		return code
	}

	if idx := strings.IndexAny(s, "-_"); idx > 0 {
		s = s[:idx]
	}

	if len(s) < 2 || len(s) > 3 {
		return ""
	}

	base, err := language.ParseBase(s)
	if err != nil {
		return ""
	}
	return base.String()
}

// Languages decides which language tags belong to the deployment's primary bucket.
type Languages struct {
	Primary string
	Related []string
}

// NewLanguages normalizes the configured codes.
func NewLanguages(primary string, related ...string) Languages {
	l := Languages{Primary: LanguageCode(primary)}
	for _, r := range related {
		if code := LanguageCode(r); code != "" && code != l.Primary && !slices.Contains(l.Related, code) {
			l.Related = append(l.Related, code)
		}
	}
	return l
}

// IsPrimary reports whether tag is the primary language or one of its close relatives.
func (l Languages) IsPrimary(tag string) bool {
	code := LanguageCode(tag)
	if code == "" {
		return false
	}
	return code == l.Primary || slices.Contains(l.Related, code)
}

// FoldName lowercases s and strips diacritics, so "Petrović" and "petrovic" compare equal.
// Cyrillic text keeps its script.
func FoldName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, sanitizeString(s))
	if err != nil {
		folded = s
	}
	folded = strings.Map(func(r rune) rune {
		switch r {
		case 'đ', 'Đ':
			return 'd'
		case 'ł', 'Ł':
			return 'l'
		case 'ø', 'Ø':
			return 'o'
		}
		return unicode.ToLower(r)
	}, folded)
	return strings.Join(strings.Fields(folded), " ")
}

// NameTokens splits a stated name into folded lookup tokens.
// Initials and punctuation are dropped.
func NameTokens(name string) []string {
	fields := strings.FieldsFunc(FoldName(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 2 || slices.Contains(tokens, f) {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// sanitizeString removes null bytes from strings, which can cause
// issues in databases and JSON parsing. Extracted file text sometimes carries them.
func sanitizeString(s string) string {
	return strings.Map(func(r rune) rune {
		if r == 0 {
			return -1
		}
		return r
	}, s)
}
