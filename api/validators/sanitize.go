package validators

import (
	"strings"
	"unicode"
)

// SanitizeString trims s, drops control characters and truncates to maxLen
// runes. maxLen <= 0 means no limit.
func SanitizeString(s string, maxLen int) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
	if maxLen <= 0 {
		return cleaned
	}
	runes := []rune(cleaned)
	if len(runes) <= maxLen {
		return cleaned
	}
	return strings.TrimSpace(string(runes[:maxLen]))
}
