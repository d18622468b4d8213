package accounting_test

import (
	"testing"
	"time"

	"github.com/serroba/linktrail/internal/accounting"
	"github.com/stretchr/testify/assert"
)

// bucketStart is an exact multiple of 30s in unix time.
var bucketStart = time.Unix(1_700_000_010, 0).UTC()

func TestFingerprint(t *testing.T) {
	window := 30 * time.Second

	t.Run("format is code ip and bucket", func(t *testing.T) {
		fp := accounting.Fingerprint("abc123", "203.0.113.5", bucketStart, window)

		assert.Equal(t, "abc123-203.0.113.5-56666667", fp)
	})

	t.Run("same bucket yields same fingerprint", func(t *testing.T) {
		first := accounting.Fingerprint("abc123", "203.0.113.5", bucketStart, window)
		last := accounting.Fingerprint("abc123", "203.0.113.5", bucketStart.Add(window-time.Millisecond), window)

		assert.Equal(t, first, last)
	})

	t.Run("next bucket differs", func(t *testing.T) {
		k := accounting.Fingerprint("abc123", "203.0.113.5", bucketStart.Add(window-time.Millisecond), window)
		next := accounting.Fingerprint("abc123", "203.0.113.5", bucketStart.Add(window), window)

		assert.NotEqual(t, k, next)
	})

	t.Run("ip and code participate", func(t *testing.T) {
		base := accounting.Fingerprint("abc123", "203.0.113.5", bucketStart, window)

		assert.NotEqual(t, base, accounting.Fingerprint("abc124", "203.0.113.5", bucketStart, window))
		assert.NotEqual(t, base, accounting.Fingerprint("abc123", "203.0.113.6", bucketStart, window))
	})

	t.Run("non-positive window disables dedup", func(t *testing.T) {
		first := accounting.Fingerprint("abc123", "203.0.113.5", bucketStart, 0)
		second := accounting.Fingerprint("abc123", "203.0.113.5", bucketStart.Add(time.Nanosecond), 0)

		assert.NotEqual(t, first, second)
	})

	t.Run("sub-millisecond window does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			accounting.Fingerprint("abc123", "203.0.113.5", bucketStart, 500*time.Microsecond)
		})
	})
}
