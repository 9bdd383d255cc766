package query

import (
	"net/url"
	"strings"
)

const upperhex = "0123456789ABCDEF"

// unreserved reports whether c passes through encodeURIComponent as is.
func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}

// Escape percent-encodes the UTF-8 bytes of s the way browsers encode a
// URI component: A-Z a-z 0-9 and -_.!~*'() stay literal, spaces become %20.
func Escape(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if !unreserved(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

// Unescape reverses Escape. A literal '+' is kept as is.
func Unescape(s string) (string, error) {
	return url.PathUnescape(s)
}
