package prompt

import (
	"strings"
	"unicode"
)

// strippedChars are removed from user text before it is interpolated so a
// brief cannot smuggle markup, template syntax or quoting into the prompt.
const strippedChars = `<>{}[]"'`

// Sanitize removes markup-like characters, replaces control characters with
// spaces, collapses whitespace runs and trims. Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case strings.ContainsRune(strippedChars, r):
			return -1
		case unicode.IsControl(r):
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(cleaned), " ")
}

// SanitizeList flattens list values into one comma-joined string, then
// sanitizes it.
func SanitizeList(items []string) string {
	var kept []string
	for _, it := range items {
		if v := Sanitize(it); v != "" {
			kept = append(kept, v)
		}
	}
	return Sanitize(strings.Join(kept, ", "))
}

// trimClause strips trailing separators so joining with ". " never produces
// doubled punctuation.
func trimClause(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), ".,;: ")
}
