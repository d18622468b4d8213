package handlers

import (
	"time"

	"github.com/serroba/linktrail/internal/analytics"
	"github.com/serroba/linktrail/internal/shortener"
)

// RedirectRequest is the request for resolving a short code.
type RedirectRequest struct {
	Code string `doc:"The short code" example:"abc123" path:"code"`
}

// RedirectResponse is either an uncached 302 or, for JSON clients, a 200
// preview carrying the destination.
type RedirectResponse struct {
	Status       int
	Location     string `header:"Location"`
	ContentType  string `header:"Content-Type"`
	CacheControl string `header:"Cache-Control"`
	Pragma       string `header:"Pragma"`
	Expires      string `header:"Expires"`
	Body         []byte
}

// RedirectPreview is the JSON body returned instead of a redirect.
type RedirectPreview struct {
	RedirectURL string `json:"redirectUrl"`
}

// LinkBody is the public representation of a link.
type LinkBody struct {
	ID          string     `json:"id"`
	Code        string     `json:"code"`
	ShortURL    string     `json:"shortUrl"`
	Destination string     `json:"destination"`
	Status      string     `json:"status"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	Remarks     string     `json:"remarks,omitempty"`
	Clicks      int64      `json:"clicks"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// VisitBody is the public representation of a visit.
type VisitBody struct {
	ID          string    `json:"id"`
	LinkID      string    `json:"linkId"`
	Code        string    `json:"code,omitempty"`
	Destination string    `json:"destination,omitempty"`
	Device      string    `json:"device"`
	IPAddress   string    `json:"ipAddress"`
	UserAgent   string    `json:"userAgent"`
	VisitedAt   time.Time `json:"visitedAt"`
}

// CreateLinkRequest is the request body for creating a link.
type CreateLinkRequest struct {
	Body struct {
		URL       string     `doc:"The destination URL"                example:"https://example.com/very/long/path" json:"url"                 minLength:"1"`
		Code      string     `doc:"Optional custom short code"         example:"launch-2024"                        json:"code,omitempty"`
		ExpiresAt *time.Time `doc:"Optional expiration timestamp"                                                   json:"expiresAt,omitempty"`
		Remarks   string     `doc:"Free-form note kept with the link"                                               json:"remarks,omitempty"`
	}
}

// LinkResponse wraps a single link.
type LinkResponse struct {
	Body LinkBody
}

// CreateLinkResponse is the response for a successfully created link.
type CreateLinkResponse struct {
	Location string `doc:"The short URL location" header:"Location"`
	Body     LinkBody
}

// LinkIDRequest addresses one owned link.
type LinkIDRequest struct {
	ID string `doc:"The link ID" path:"id"`
}

// UpdateLinkRequest changes the mutable fields of a link.
type UpdateLinkRequest struct {
	ID   string `doc:"The link ID" path:"id"`
	Body struct {
		URL       *string    `doc:"New destination URL" json:"url,omitempty"`
		ExpiresAt *time.Time `doc:"New expiration"      json:"expiresAt,omitempty"`
		Remarks   *string    `doc:"New remarks"         json:"remarks,omitempty"`
	}
}

// ListLinksResponse is the owner's dashboard.
type ListLinksResponse struct {
	Body struct {
		Links  []LinkBody  `json:"links"`
		Visits []VisitBody `json:"visits"`
	}
}

// DeviceCountBody counts visits per device.
type DeviceCountBody struct {
	Device string `json:"device"`
	Count  int    `json:"count"`
}

// DayCountBody counts visits per UTC day.
type DayCountBody struct {
	Day   string `example:"2024-05-01" json:"day"`
	Count int    `json:"count"`
}

// StatsResponse holds the analytics of one link.
type StatsResponse struct {
	Body struct {
		Link        LinkBody          `json:"link"`
		TotalVisits int               `json:"totalVisits"`
		Devices     []DeviceCountBody `json:"devices"`
		Daily       []DayCountBody    `json:"daily"`
		Visits      []VisitBody       `json:"visits"`
	}
}

// QRResponse is a PNG QR code of the short URL.
type QRResponse struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// ReservedResponse is the empty answer for well-known paths.
type ReservedResponse struct{}

func (h *LinkHandler) linkBody(link *shortener.Link) LinkBody {
	return LinkBody{
		ID:          link.ID,
		Code:        string(link.Code),
		ShortURL:    h.shortURL(link.Code),
		Destination: link.Destination,
		Status:      string(link.Status),
		ExpiresAt:   link.ExpiresAt,
		Remarks:     link.Remarks,
		Clicks:      link.Clicks,
		CreatedAt:   link.CreatedAt,
	}
}

func visitBody(visit *shortener.Visit) VisitBody {
	return VisitBody{
		ID:        visit.ID,
		LinkID:    visit.LinkID,
		Device:    visit.Device,
		IPAddress: visit.IPAddress,
		UserAgent: visit.UserAgent,
		VisitedAt: visit.VisitedAt,
	}
}

func ownerVisitBody(visit analytics.OwnerVisit) VisitBody {
	body := visitBody(visit.Visit)
	body.Code = string(visit.Code)
	body.Destination = visit.Destination

	return body
}
