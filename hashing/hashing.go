// Package hashing produces short, stable fingerprints of personal identifiers
// (phone numbers, e-mail addresses, device shares) so that logs, spans and
// metrics can correlate them without carrying the raw values.
package hashing

import (
	"strconv"

	"github.com/zeebo/xxh3"
)

// Fingerprint returns the 64-bit xxh3 hash of s in hex. Empty input yields "".
func Fingerprint(s string) string {
	if s == "" {
		return ""
	}

	return strconv.FormatUint(xxh3.HashString(s), 16)
}

// Redact returns a short label suitable for log attributes.
func Redact(s string) string {
	if s == "" {
		return "none"
	}

	fp := Fingerprint(s)
	if len(fp) > 8 {
		fp = fp[:8]
	}

	return "h:" + fp
}
