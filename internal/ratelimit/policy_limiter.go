package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Store counts requests per key in a sliding window. Record adds one request
// and returns how many the window now holds.
type Store interface {
	Record(ctx context.Context, key string, window time.Duration) (count int64, err error)
}

// LimitExceeded describes the first limit a request broke. Scope is empty for
// per-endpoint limits.
type LimitExceeded struct {
	Scope  Scope
	Config LimitConfig
	Count  int64
}

// RetryAfter is an upper bound on when the client may try again.
func (e *LimitExceeded) RetryAfter() time.Duration {
	return e.Config.Window
}

func (e *LimitExceeded) Error() string {
	if e.Scope == "" {
		return fmt.Sprintf("rate limit exceeded: %d/%d requests in %s", e.Count, e.Config.Max, e.Config.Window)
	}

	return fmt.Sprintf("rate limit exceeded: %s scope, %d/%d requests in %s",
		e.Scope, e.Count, e.Config.Max, e.Config.Window)
}

// PolicyLimiter enforces a Policy, plus ad hoc limits attached to single routes.
type PolicyLimiter struct {
	store  Store
	policy *Policy
}

func NewPolicyLimiter(store Store, policy *Policy) *PolicyLimiter {
	return &PolicyLimiter{store: store, policy: policy}
}

// Allow counts the request against each resolved scope and stops at the first
// limit exceeded. Scopes the policy has no limits for are ignored.
func (l *PolicyLimiter) Allow(ctx context.Context, clientKey string, scopes []Scope) (bool, *LimitExceeded, error) {
	for _, scope := range scopes {
		exceeded, err := l.count(ctx, clientKey+":"+string(scope), l.policy.Limits[scope])
		if err != nil {
			return false, nil, fmt.Errorf("record %s limit: %w", scope, err)
		}

		if exceeded != nil {
			exceeded.Scope = scope

			return false, exceeded, nil
		}
	}

	return true, nil, nil
}

// AllowRoute applies limits that replace the policy for one route. Counters are
// keyed by the route template, so all paths behind it share a budget per client.
func (l *PolicyLimiter) AllowRoute(
	ctx context.Context,
	clientKey, route string,
	limits []LimitConfig,
) (bool, *LimitExceeded, error) {
	exceeded, err := l.count(ctx, clientKey+":custom:"+route, limits)
	if err != nil {
		return false, nil, fmt.Errorf("record limit for %s: %w", route, err)
	}

	return exceeded == nil, exceeded, nil
}

func (l *PolicyLimiter) count(ctx context.Context, prefix string, limits []LimitConfig) (*LimitExceeded, error) {
	for _, limit := range limits {
		n, err := l.store.Record(ctx, fmt.Sprintf("%s:%d", prefix, limit.Window.Milliseconds()), limit.Window)
		if err != nil {
			return nil, err
		}

		if n > limit.Max {
			return &LimitExceeded{Config: limit, Count: n}, nil
		}
	}

	return nil, nil
}

func (l *PolicyLimiter) Policy() *Policy {
	return l.policy
}
