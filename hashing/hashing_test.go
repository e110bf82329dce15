package hashing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Fingerprint(""))
	assert.Equal(t, Fingerprint("+15551234567"), Fingerprint("+15551234567"))
	assert.NotEqual(t, Fingerprint("+15551234567"), Fingerprint("+15551234568"))
}

func TestRedact(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "none", Redact(""))

	got := Redact("alice@example.com")
	assert.Contains(t, got, "h:")
	assert.LessOrEqual(t, len(got), 10)
	assert.NotContains(t, got, "alice")
}
