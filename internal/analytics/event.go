package analytics

import (
	"time"

	"github.com/serroba/linktrail/internal/shortener"
)

const (
	TopicLinkCreated   = "link.created"
	TopicVisitRecorded = "visit.recorded"
)

// LinkCreatedEvent is emitted after a link is stored.
type LinkCreatedEvent struct {
	LinkID      string     `json:"linkId"`
	OwnerID     string     `json:"ownerId"`
	Code        string     `json:"code"`
	Destination string     `json:"destination"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// VisitRecordedEvent is emitted after click accounting recorded a new visit.
type VisitRecordedEvent struct {
	VisitID   string    `json:"visitId"`
	LinkID    string    `json:"linkId"`
	Code      string    `json:"code"`
	Device    string    `json:"device"`
	IPAddress string    `json:"ipAddress"`
	VisitedAt time.Time `json:"visitedAt"`
}

func NewLinkCreatedEvent(link *shortener.Link) *LinkCreatedEvent {
	return &LinkCreatedEvent{
		LinkID:      link.ID,
		OwnerID:     link.OwnerID,
		Code:        string(link.Code),
		Destination: link.Destination,
		ExpiresAt:   link.ExpiresAt,
		CreatedAt:   link.CreatedAt,
	}
}

func NewVisitRecordedEvent(link *shortener.Link, visit *shortener.Visit) *VisitRecordedEvent {
	return &VisitRecordedEvent{
		VisitID:   visit.ID,
		LinkID:    link.ID,
		Code:      string(link.Code),
		Device:    visit.Device,
		IPAddress: visit.IPAddress,
		VisitedAt: visit.VisitedAt,
	}
}
