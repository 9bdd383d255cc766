// Package security provides helpers for handling untrusted input: fragments
// typed by users, widget ids from configuration, and URLs carrying
// credentials that must not reach the logs.
package security

import (
	"net/url"
	"strings"
	"unicode"
)

// MaxLogLength is the default length SanitizeForLog truncates to.
const MaxLogLength = 200

// SanitizeForLog makes an untrusted string safe to log. Newlines, carriage
// returns and tabs are escaped, other control characters are dropped and
// the result is truncated to MaxLogLength.
func SanitizeForLog(s string) string {
	return SanitizeForLogWithLength(s, MaxLogLength)
}

// SanitizeForLogWithLength sanitizes a string for logging with a custom max length.
func SanitizeForLogWithLength(s string, maxLen int) string {
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(min(len(s), maxLen+10))

	count := 0
	for _, r := range s {
		if count >= maxLen {
			b.WriteString("...")
			break
		}

		switch r {
		case '\n':
			b.WriteString("\\n")
			count += 2
		case '\r':
			b.WriteString("\\r")
			count += 2
		case '\t':
			b.WriteString("\\t")
			count += 2
		default:
			if !unicode.IsControl(r) {
				b.WriteRune(r)
				count++
			}
		}
	}

	return b.String()
}

// sensitiveParams are query parameter names whose values are masked.
var sensitiveParams = []string{
	"password",
	"secret",
	"token",
	"key",
	"credential",
	"auth",
}

// MaskURL returns raw with the userinfo password and any sensitive query
// parameters replaced by [REDACTED]. Unparseable input is returned
// sanitized but otherwise unchanged.
func MaskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return SanitizeForLog(raw)
	}

	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "[REDACTED]")
		}
	}

	if u.RawQuery != "" {
		q := u.Query()
		for name := range q {
			if isSensitiveKey(name) {
				q.Set(name, "[REDACTED]")
			}
		}
		u.RawQuery = q.Encode()
	}

	// url.URL escapes the brackets; keep the marker readable.
	return strings.ReplaceAll(u.String(), "%5BREDACTED%5D", "[REDACTED]")
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, pattern := range sensitiveParams {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
