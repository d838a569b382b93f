// Package logsanitize provides helpers for sanitizing server-supplied
// values (auth URLs, error descriptions, status strings) before they are
// passed to structured logging.
package logsanitize

import "strings"

// maxFieldLen bounds the length of a logged field. Server-supplied error
// bodies can be arbitrarily large; anything past this is noise in a log line.
const maxFieldLen = 512

// Sanitize replaces control characters in a log field value to reduce the
// risk of log injection (CWE-117).
//
// Replaced ranges:
//   - C0 controls 0x00-0x1F (except horizontal tab 0x09)
//   - DEL 0x7F and C1 controls 0x80-0x9F
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\t' {
			return '_'
		}
		if r >= 0x7f && r <= 0x9f {
			return '_'
		}
		return r
	}, s)
}

// Field sanitizes a server-supplied value and truncates it to maxFieldLen
// runes. Truncation is marked with a trailing ellipsis.
func Field(s string) string {
	s = Sanitize(s)
	runes := []rune(s)
	if len(runes) <= maxFieldLen {
		return s
	}
	return string(runes[:maxFieldLen]) + "..."
}
