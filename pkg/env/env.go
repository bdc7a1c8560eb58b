// Package env reads the few process variables that platforms inject
// directly (PORT, DYNO, LOG_FORMAT) and that envconfig does not own.
package env

import (
	"os"
	"strings"
)

// Lookup returns the first non-blank value among keys, trimmed.
func Lookup(keys ...string) (string, bool) {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value, true
		}
	}
	return "", false
}

// Get is Lookup with a fallback.
func Get(fallback string, keys ...string) string {
	if value, ok := Lookup(keys...); ok {
		return value
	}
	return fallback
}
