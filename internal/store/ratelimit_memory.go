package store

import (
	"context"
	"sync"
	"time"

	"github.com/serroba/linktrail/internal/ratelimit"
)

// RateLimitMemoryStore is an in-memory ratelimit.Store for single-instance
// deployments and tests.
type RateLimitMemoryStore struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	now      func() time.Time
}

// NewRateLimitMemoryStore creates a new in-memory rate limit store.
func NewRateLimitMemoryStore() *RateLimitMemoryStore {
	return &RateLimitMemoryStore{
		requests: make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Record prunes timestamps older than window, adds the current request and
// returns the number of requests left in the window.
func (s *RateLimitMemoryStore) Record(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-window)

	timestamps := s.requests[key]

	// Timestamps are appended in order, so the first one inside the window
	// splits expired from live entries.
	first := len(timestamps)
	for i, ts := range timestamps {
		if ts.After(cutoff) {
			first = i

			break
		}
	}

	live := append(timestamps[first:len(timestamps):len(timestamps)], now)
	s.requests[key] = live

	return int64(len(live)), nil
}

// Len returns the number of tracked keys.
func (s *RateLimitMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.requests)
}

// Sweep drops keys whose newest request is older than maxWindow.
func (s *RateLimitMemoryStore) Sweep(maxWindow time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxWindow)

	for key, timestamps := range s.requests {
		if len(timestamps) == 0 || !timestamps[len(timestamps)-1].After(cutoff) {
			delete(s.requests, key)
		}
	}
}

var _ ratelimit.Store = (*RateLimitMemoryStore)(nil)
