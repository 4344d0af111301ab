package utils

import (
	"strings"
	"unicode"
)

// SanitizeString trims surrounding whitespace and drops control and
// invisible format characters (CR/LF, NUL, zero-width joiners) that
// firmware sometimes leaves in ids and location strings.
func SanitizeString(input string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			return -1
		}
		return r
	}, input)
	return strings.TrimSpace(cleaned)
}

// NormalizeID trims surrounding whitespace from an identifier. The inside of
// the id is never rewritten; pair it with ValidID to reject hidden
// characters.
func NormalizeID(id string) string {
	return strings.TrimSpace(id)
}

// ValidID reports whether id is free of control and invisible format
// characters.
func ValidID(id string) bool {
	return strings.IndexFunc(id, func(r rune) bool {
		return unicode.IsControl(r) || unicode.Is(unicode.Cf, r)
	}) < 0
}
