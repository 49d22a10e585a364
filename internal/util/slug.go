package util

import (
	"strings"
	"unicode"
)

// Slugify lowercases input and collapses anything that is not a letter or
// number into single dashes, for use in artifact file names.
func Slugify(input string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(input) {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash {
			b.WriteByte('-')
			lastDash = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "conversation"
	}
	return slug
}
