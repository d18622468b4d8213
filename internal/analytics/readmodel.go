// Package analytics exposes read-only projections over links and visits and
// the events emitted when either changes.
package analytics

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/serroba/linktrail/internal/shortener"
)

// ErrForbidden is returned when a link exists but belongs to another owner.
var ErrForbidden = errors.New("link belongs to another owner")

// LinkStore is the link side of the read model.
type LinkStore interface {
	GetByID(ctx context.Context, id string) (*shortener.Link, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*shortener.Link, error)
}

// VisitStore lists visits for a set of links, newest first.
type VisitStore interface {
	ListVisits(ctx context.Context, linkIDs []string) ([]*shortener.Visit, error)
}

// OwnerVisit is a visit with the fields of its link denormalized.
type OwnerVisit struct {
	*shortener.Visit
	Code        shortener.Code
	Destination string
}

// Activity is everything an owner sees on the dashboard.
type Activity struct {
	Links  []*shortener.Link
	Visits []OwnerVisit
}

// DeviceCount is the number of visits per device category.
type DeviceCount struct {
	Device string
	Count  int
}

// DayCount is the number of visits on one UTC day.
type DayCount struct {
	Day   string
	Count int
}

// LinkStats are the analytics of a single link.
type LinkStats struct {
	Link        *shortener.Link
	Visits      []*shortener.Visit
	TotalVisits int
	Devices     []DeviceCount
	Daily       []DayCount
}

// ReadModel answers owner-scoped analytics queries.
type ReadModel struct {
	links  LinkStore
	visits VisitStore
	now    func() time.Time
}

func NewReadModel(links LinkStore, visits VisitStore) *ReadModel {
	return &ReadModel{links: links, visits: visits, now: time.Now}
}

// ListForOwner returns the owner's links, newest first, and all their visits,
// newest first.
func (r *ReadModel) ListForOwner(ctx context.Context, ownerID string) (*Activity, error) {
	links, err := r.links.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	now := r.now()
	byID := make(map[string]*shortener.Link, len(links))
	ids := make([]string, 0, len(links))

	for i, link := range links {
		links[i] = shortener.MarkInactiveIfExpired(link, now)
		byID[link.ID] = links[i]
		ids = append(ids, link.ID)
	}

	activity := &Activity{Links: links, Visits: []OwnerVisit{}}

	if len(ids) == 0 {
		return activity, nil
	}

	visits, err := r.visits.ListVisits(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, visit := range visits {
		link := byID[visit.LinkID]
		if link == nil {
			continue
		}

		activity.Visits = append(activity.Visits, OwnerVisit{
			Visit:       visit,
			Code:        link.Code,
			Destination: link.Destination,
		})
	}

	return activity, nil
}

// StatsFor returns the visits of one link with device and daily grouping.
func (r *ReadModel) StatsFor(ctx context.Context, linkID, ownerID string) (*LinkStats, error) {
	link, err := r.links.GetByID(ctx, linkID)
	if err != nil {
		return nil, err
	}

	if link.OwnerID != ownerID {
		return nil, ErrForbidden
	}

	visits, err := r.visits.ListVisits(ctx, []string{link.ID})
	if err != nil {
		return nil, err
	}

	return &LinkStats{
		Link:        shortener.MarkInactiveIfExpired(link, r.now()),
		Visits:      visits,
		TotalVisits: len(visits),
		Devices:     countDevices(visits),
		Daily:       countDays(visits),
	}, nil
}

// countDevices orders by count descending, then device name.
func countDevices(visits []*shortener.Visit) []DeviceCount {
	counts := make(map[string]int)
	for _, v := range visits {
		counts[v.Device]++
	}

	result := make([]DeviceCount, 0, len(counts))
	for device, count := range counts {
		result = append(result, DeviceCount{Device: device, Count: count})
	}

	slices.SortFunc(result, func(a, b DeviceCount) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}

		if a.Device < b.Device {
			return -1
		}

		if a.Device > b.Device {
			return 1
		}

		return 0
	})

	return result
}

// countDays orders by day ascending.
func countDays(visits []*shortener.Visit) []DayCount {
	counts := make(map[string]int)
	for _, v := range visits {
		counts[v.VisitedAt.UTC().Format(time.DateOnly)]++
	}

	result := make([]DayCount, 0, len(counts))
	for day, count := range counts {
		result = append(result, DayCount{Day: day, Count: count})
	}

	slices.SortFunc(result, func(a, b DayCount) int {
		if a.Day < b.Day {
			return -1
		}

		if a.Day > b.Day {
			return 1
		}

		return 0
	})

	return result
}
