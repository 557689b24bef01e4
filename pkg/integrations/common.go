package integrations

import (
	"net/http"
	"strings"
	"time"
)

const httpTimeout = 10 * time.Second

// NewHTTPClient creates an HTTP client with the standard registry timeout.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

const hexDigits = "0123456789ABCDEF"

// EscapeName percent-encodes a package name for use as a path segment.
//
// Space, '"', '<', '>', '`', '#', '?', '{', '}', '%' and control characters
// are escaped. With slash set, '/' is escaped too, which turns a scoped name
// into the single segment a registry expects ("@scope%2Fpkg"); without it
// a scoped name maps to nested directories.
func EscapeName(name string, slash bool) string {
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if shouldEscape(c) || (slash && c == '/') {
			b.WriteByte('%')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0f])
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func shouldEscape(c byte) bool {
	if c < 0x20 || c == 0x7f {
		return true
	}
	switch c {
	case ' ', '"', '<', '>', '`', '#', '?', '{', '}', '%':
		return true
	}
	return false
}

// NormalizeRepoURL strips the "git+" transport prefix and a trailing ".git"
// from a repository URL, for display.
func NormalizeRepoURL(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "git+")
	return strings.TrimSuffix(s, ".git")
}
