package shortener_test

import (
	"context"
	"sort"
	"sync"

	"github.com/serroba/linktrail/internal/shortener"
)

type mockRepository struct {
	mu        sync.Mutex
	links     map[string]*shortener.Link
	createErr error
	creates   []shortener.Code
}

func newMockRepository(links ...*shortener.Link) *mockRepository {
	m := &mockRepository{links: make(map[string]*shortener.Link)}
	for _, l := range links {
		m.links[l.ID] = l
	}

	return m
}

func (m *mockRepository) Create(_ context.Context, link *shortener.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.creates = append(m.creates, link.Code)

	if m.createErr != nil {
		return m.createErr
	}

	for _, existing := range m.links {
		if existing.Code == link.Code {
			return shortener.ErrCodeConflict
		}
	}

	stored := *link
	m.links[link.ID] = &stored

	return nil
}

func (m *mockRepository) GetByCode(_ context.Context, code shortener.Code) (*shortener.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range m.links {
		if l.Code == code {
			cp := *l

			return &cp, nil
		}
	}

	return nil, shortener.ErrNotFound
}

func (m *mockRepository) GetByID(_ context.Context, id string) (*shortener.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.links[id]
	if !ok {
		return nil, shortener.ErrNotFound
	}

	cp := *l

	return &cp, nil
}

func (m *mockRepository) ListByOwner(_ context.Context, ownerID string) ([]*shortener.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*shortener.Link

	for _, l := range m.links {
		if l.OwnerID == ownerID {
			cp := *l
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })

	return result, nil
}

func (m *mockRepository) Update(_ context.Context, link *shortener.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.links[link.ID]; !ok {
		return shortener.ErrNotFound
	}

	stored := *link
	m.links[link.ID] = &stored

	return nil
}

func (m *mockRepository) SetStatus(_ context.Context, id string, status shortener.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.links[id]
	if !ok {
		return shortener.ErrNotFound
	}

	l.Status = status

	return nil
}

func (m *mockRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.links[id]; !ok {
		return shortener.ErrNotFound
	}

	delete(m.links, id)

	return nil
}

func sequenceGenerator(codes ...string) shortener.CodeGenerator {
	var mu sync.Mutex

	i := 0

	return func() string {
		mu.Lock()
		defer mu.Unlock()

		code := codes[i%len(codes)]
		i++

		return code
	}
}
