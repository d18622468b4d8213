package shortener

import "time"

// Code represents a short URL code. Codes are stored bare; full short URLs are
// only built at the presentation boundary.
type Code string

// Status is the lifecycle state of a link.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Link represents a shortened URL owned by a single account.
type Link struct {
	ID          string
	OwnerID     string
	Code        Code
	Destination string
	Status      Status
	ExpiresAt   *time.Time
	Remarks     string
	Clicks      int64
	CreatedAt   time.Time
}

// Expired reports whether the link has an expiration that is already in the past.
func (l *Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// MarkInactiveIfExpired returns the link with its status derived at now.
// The argument is never mutated: when a transition happens a copy is returned.
func MarkInactiveIfExpired(link *Link, now time.Time) *Link {
	if link.Status != StatusActive || !link.Expired(now) {
		return link
	}

	expired := *link
	expired.Status = StatusInactive

	return &expired
}

// Visit is one accounted click on a link.
type Visit struct {
	ID          string
	LinkID      string
	Fingerprint string
	Device      string
	IPAddress   string
	UserAgent   string
	VisitedAt   time.Time
}
