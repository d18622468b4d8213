package ratelimit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/serroba/linktrail/internal/ratelimit"
	"github.com/serroba/linktrail/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct{}

func (failingStore) Record(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("store down")
}

func TestPolicyLimiter_Allow(t *testing.T) {
	t.Run("allows up to the limit then reports the exceeded scope", func(t *testing.T) {
		policy := ratelimit.NewPolicyBuilder().AddLimit(ratelimit.ScopeWrite, 3, time.Minute).Build()
		limiter := ratelimit.NewPolicyLimiter(store.NewRateLimitMemoryStore(), policy)
		scopes := []ratelimit.Scope{ratelimit.ScopeGlobal, ratelimit.ScopeWrite}

		for range 3 {
			allowed, exceeded, err := limiter.Allow(context.Background(), "client1", scopes)

			require.NoError(t, err)
			assert.True(t, allowed)
			assert.Nil(t, exceeded)
		}

		allowed, exceeded, err := limiter.Allow(context.Background(), "client1", scopes)

		require.NoError(t, err)
		assert.False(t, allowed)
		require.NotNil(t, exceeded)
		assert.Equal(t, ratelimit.ScopeWrite, exceeded.Scope)
		assert.Equal(t, int64(4), exceeded.Count)
	})

	t.Run("every window of a scope is enforced", func(t *testing.T) {
		policy := ratelimit.NewPolicyBuilder().
			AddLimit(ratelimit.ScopeWrite, 5, time.Minute).
			AddLimit(ratelimit.ScopeWrite, 2, time.Hour).
			Build()
		limiter := ratelimit.NewPolicyLimiter(store.NewRateLimitMemoryStore(), policy)
		scopes := []ratelimit.Scope{ratelimit.ScopeWrite}

		for range 2 {
			allowed, _, _ := limiter.Allow(context.Background(), "client1", scopes)
			assert.True(t, allowed)
		}

		allowed, exceeded, err := limiter.Allow(context.Background(), "client1", scopes)

		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Equal(t, time.Hour, exceeded.Config.Window)
	})

	t.Run("tracks clients independently", func(t *testing.T) {
		policy := ratelimit.NewPolicyBuilder().AddLimit(ratelimit.ScopeRedirect, 1, time.Minute).Build()
		limiter := ratelimit.NewPolicyLimiter(store.NewRateLimitMemoryStore(), policy)
		scopes := []ratelimit.Scope{ratelimit.ScopeRedirect}

		first, _, _ := limiter.Allow(context.Background(), "client1", scopes)
		second, _, _ := limiter.Allow(context.Background(), "client1", scopes)
		other, _, _ := limiter.Allow(context.Background(), "client2", scopes)

		assert.True(t, first)
		assert.False(t, second)
		assert.True(t, other)
	})

	t.Run("allows again after the window slides", func(t *testing.T) {
		policy := ratelimit.NewPolicyBuilder().AddLimit(ratelimit.ScopeRead, 1, 50*time.Millisecond).Build()
		limiter := ratelimit.NewPolicyLimiter(store.NewRateLimitMemoryStore(), policy)
		scopes := []ratelimit.Scope{ratelimit.ScopeRead}

		allowed, _, _ := limiter.Allow(context.Background(), "client1", scopes)
		assert.True(t, allowed)

		allowed, _, _ = limiter.Allow(context.Background(), "client1", scopes)
		assert.False(t, allowed)

		time.Sleep(60 * time.Millisecond)

		allowed, _, err := limiter.Allow(context.Background(), "client1", scopes)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("propagates store errors", func(t *testing.T) {
		policy := ratelimit.NewPolicyBuilder().AddLimit(ratelimit.ScopeRead, 1, time.Minute).Build()
		limiter := ratelimit.NewPolicyLimiter(failingStore{}, policy)

		_, _, err := limiter.Allow(context.Background(), "client1", []ratelimit.Scope{ratelimit.ScopeRead})

		assert.ErrorContains(t, err, "store down")
	})

	t.Run("exceeded limit suggests its window for retry", func(t *testing.T) {
		policy := ratelimit.NewPolicyBuilder().AddLimit(ratelimit.ScopeRedirect, 1, 30*time.Second).Build()
		limiter := ratelimit.NewPolicyLimiter(store.NewRateLimitMemoryStore(), policy)
		scopes := []ratelimit.Scope{ratelimit.ScopeRedirect}

		_, _, _ = limiter.Allow(context.Background(), "client1", scopes)
		_, exceeded, err := limiter.Allow(context.Background(), "client1", scopes)

		require.NoError(t, err)
		require.NotNil(t, exceeded)
		assert.Equal(t, 30*time.Second, exceeded.RetryAfter())
		assert.Same(t, policy, limiter.Policy())
	})
}

func TestDefaultPolicy(t *testing.T) {
	policy := ratelimit.DefaultPolicy()

	assert.Equal(t, []ratelimit.LimitConfig{{Window: time.Minute, Max: 1000}}, policy.Limits[ratelimit.ScopeRedirect])
	assert.Equal(t, []ratelimit.LimitConfig{
		{Window: time.Minute, Max: 10},
		{Window: time.Hour, Max: 100},
	}, policy.Limits[ratelimit.ScopeWrite])
}

func TestPolicy_LongestWindow(t *testing.T) {
	assert.Equal(t, time.Hour, ratelimit.DefaultPolicy().LongestWindow())
	assert.Zero(t, ratelimit.NewPolicyBuilder().Build().LongestWindow())
}

func TestPolicyLimiter_AllowRoute(t *testing.T) {
	limiter := ratelimit.NewPolicyLimiter(store.NewRateLimitMemoryStore(), ratelimit.DefaultPolicy())
	limits := []ratelimit.LimitConfig{{Window: 30 * time.Second, Max: 2}}

	for range 2 {
		allowed, exceeded, err := limiter.AllowRoute(context.Background(), "client1", "/{code}", limits)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Nil(t, exceeded)
	}

	allowed, exceeded, err := limiter.AllowRoute(context.Background(), "client1", "/{code}", limits)

	require.NoError(t, err)
	assert.False(t, allowed)
	require.NotNil(t, exceeded)
	assert.Empty(t, exceeded.Scope)
	assert.Equal(t, int64(3), exceeded.Count)
	assert.Equal(t, "rate limit exceeded: 3/2 requests in 30s", exceeded.Error())

	allowed, _, err = limiter.AllowRoute(context.Background(), "client2", "/{code}", limits)
	require.NoError(t, err)
	assert.True(t, allowed, "other clients keep their own budget")
}

func TestLimitExceeded_Error(t *testing.T) {
	exceeded := &ratelimit.LimitExceeded{
		Scope:  ratelimit.ScopeWrite,
		Config: ratelimit.LimitConfig{Window: time.Minute, Max: 10},
		Count:  11,
	}

	assert.Equal(t, "rate limit exceeded: write scope, 11/10 requests in 1m0s", exceeded.Error())
}
