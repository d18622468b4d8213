package accounting

import (
	"context"
	"fmt"
	"time"

	"github.com/serroba/linktrail/internal/shortener"
)

// DefaultWindow is the dedup bucket width used when none is configured.
const DefaultWindow = 30 * time.Second

// Store is the persistence contract of click accounting.
type Store interface {
	// HasVisit reports whether the link already has a visit with the fingerprint.
	HasVisit(ctx context.Context, linkID, fingerprint string) (bool, error)
	// RecordVisitIfNew inserts the visit and increments the link's click
	// counter by one as a single atomic operation, only when no visit with the
	// same fingerprint exists for the link. It reports whether it recorded.
	RecordVisitIfNew(ctx context.Context, visit *shortener.Visit) (bool, error)
}

// Fingerprint identifies hits from one client on one code within one window.
// Windows are fixed buckets of unix time, so two hits straddling a bucket
// boundary count twice. A non-positive window disables deduplication.
func Fingerprint(code, ip string, now time.Time, window time.Duration) string {
	if window <= 0 {
		return fmt.Sprintf("%s-%s-n%d", code, ip, now.UnixNano())
	}

	if window < time.Millisecond {
		return fmt.Sprintf("%s-%s-%d", code, ip, now.UnixNano()/window.Nanoseconds())
	}

	return fmt.Sprintf("%s-%s-%d", code, ip, now.UnixMilli()/window.Milliseconds())
}

// Deduplicator decides whether a hit was already accounted in its window.
type Deduplicator struct {
	store  Store
	window time.Duration
}

// NewDeduplicator creates a deduplicator over the given store.
func NewDeduplicator(store Store, window time.Duration) *Deduplicator {
	return &Deduplicator{store: store, window: window}
}

// Window returns the configured bucket width.
func (d *Deduplicator) Window() time.Duration {
	return d.window
}

// Fingerprint computes the fingerprint for a hit using the configured window.
func (d *Deduplicator) Fingerprint(code, ip string, now time.Time) string {
	return Fingerprint(code, ip, now, d.window)
}

// IsDuplicate reports whether the fingerprint is already recorded for the link.
func (d *Deduplicator) IsDuplicate(ctx context.Context, linkID, fingerprint string) (bool, error) {
	return d.store.HasVisit(ctx, linkID, fingerprint)
}
