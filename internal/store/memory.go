package store

import (
	"context"
	"slices"
	"sync"

	"github.com/serroba/linktrail/internal/accounting"
	"github.com/serroba/linktrail/internal/analytics"
	"github.com/serroba/linktrail/internal/shortener"
)

// MemoryStore keeps links and visits in process memory. Every operation holds
// one mutex, which makes RecordVisitIfNew and Delete atomic.
type MemoryStore struct {
	mu           sync.RWMutex
	links        map[string]*shortener.Link     // id -> link
	codes        map[shortener.Code]string      // code -> id
	visits       map[string][]*shortener.Visit  // link id -> visits
	fingerprints map[string]map[string]struct{} // link id -> fingerprints
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		links:        make(map[string]*shortener.Link),
		codes:        make(map[shortener.Code]string),
		visits:       make(map[string][]*shortener.Visit),
		fingerprints: make(map[string]map[string]struct{}),
	}
}

func (m *MemoryStore) Create(_ context.Context, link *shortener.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.codes[link.Code]; taken {
		return shortener.ErrCodeConflict
	}

	stored := *link
	m.links[link.ID] = &stored
	m.codes[link.Code] = link.ID

	return nil
}

func (m *MemoryStore) GetByCode(_ context.Context, code shortener.Code) (*shortener.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.codes[code]
	if !ok {
		return nil, shortener.ErrNotFound
	}

	return m.copyLink(id)
}

func (m *MemoryStore) GetByID(_ context.Context, id string) (*shortener.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.copyLink(id)
}

func (m *MemoryStore) ListByOwner(_ context.Context, ownerID string) ([]*shortener.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*shortener.Link

	for _, link := range m.links {
		if link.OwnerID == ownerID {
			cp := *link
			result = append(result, &cp)
		}
	}

	slices.SortFunc(result, func(a, b *shortener.Link) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return result, nil
}

func (m *MemoryStore) Update(_ context.Context, link *shortener.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.links[link.ID]
	if !ok {
		return shortener.ErrNotFound
	}

	stored.Destination = link.Destination
	stored.Remarks = link.Remarks
	stored.Status = link.Status

	if link.ExpiresAt != nil {
		expiresAt := *link.ExpiresAt
		stored.ExpiresAt = &expiresAt
	} else {
		stored.ExpiresAt = nil
	}

	return nil
}

func (m *MemoryStore) SetStatus(_ context.Context, id string, status shortener.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.links[id]
	if !ok {
		return shortener.ErrNotFound
	}

	stored.Status = status

	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, ok := m.links[id]
	if !ok {
		return shortener.ErrNotFound
	}

	delete(m.visits, id)
	delete(m.fingerprints, id)
	delete(m.codes, link.Code)
	delete(m.links, id)

	return nil
}

func (m *MemoryStore) HasVisit(_ context.Context, linkID, fingerprint string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.fingerprints[linkID][fingerprint]

	return ok, nil
}

func (m *MemoryStore) RecordVisitIfNew(_ context.Context, visit *shortener.Visit) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, ok := m.links[visit.LinkID]
	if !ok {
		return false, shortener.ErrNotFound
	}

	seen := m.fingerprints[visit.LinkID]
	if seen == nil {
		seen = make(map[string]struct{})
		m.fingerprints[visit.LinkID] = seen
	}

	if _, dup := seen[visit.Fingerprint]; dup {
		return false, nil
	}

	stored := *visit
	seen[visit.Fingerprint] = struct{}{}
	m.visits[visit.LinkID] = append(m.visits[visit.LinkID], &stored)
	link.Clicks++

	return true, nil
}

// ListVisits returns the visits of the given links, newest first.
func (m *MemoryStore) ListVisits(_ context.Context, linkIDs []string) ([]*shortener.Visit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*shortener.Visit

	for _, id := range linkIDs {
		for _, visit := range m.visits[id] {
			cp := *visit
			result = append(result, &cp)
		}
	}

	slices.SortStableFunc(result, func(a, b *shortener.Visit) int {
		return b.VisitedAt.Compare(a.VisitedAt)
	})

	return result, nil
}

// Shutdown is a no-op; the store owns no external resources.
func (m *MemoryStore) Shutdown() error {
	return nil
}

func (m *MemoryStore) copyLink(id string) (*shortener.Link, error) {
	link, ok := m.links[id]
	if !ok {
		return nil, shortener.ErrNotFound
	}

	cp := *link

	return &cp, nil
}

var (
	_ shortener.Repository = (*MemoryStore)(nil)
	_ accounting.Store     = (*MemoryStore)(nil)
	_ analytics.VisitStore = (*MemoryStore)(nil)
)
