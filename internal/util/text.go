package util

import "strings"

// SanitizePostgresText drops invalid UTF-8 and NUL bytes, neither of which a
// Postgres text column accepts.
func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}
