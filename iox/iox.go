// Package iox provides I/O helpers for resource cleanup and response bodies.
package iox

import (
	"io"
	"strings"
)

// MaxDrainBytes bounds how much of an unread body DrainClose consumes.
const MaxDrainBytes = 64 << 10

// DiscardClose closes c and discards the error.
// Use in defer statements where close errors are unactionable:
//
//	defer iox.DiscardClose(f)
func DiscardClose(c io.Closer) { _ = c.Close() }

// DrainClose reads what is left of rc, up to MaxDrainBytes, then closes it.
// An HTTP transport only reuses a connection whose body was read to EOF.
//
//	defer iox.DrainClose(resp.Body)
func DrainClose(rc io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, MaxDrainBytes))
	_ = rc.Close()
}

// Snippet reads at most n bytes from r and returns them trimmed.
// Read errors truncate the result.
func Snippet(r io.Reader, n int64) string {
	b, _ := io.ReadAll(io.LimitReader(r, n))
	return strings.TrimSpace(string(b))
}
