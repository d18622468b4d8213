//go:build integration

package store_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/serroba/linktrail/internal/shortener"
	"github.com/serroba/linktrail/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getRedisAddr() string {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return addr
	}

	return "localhost:6379"
}

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: getRedisAddr()})
	t.Cleanup(func() { _ = client.Close() })

	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	return client
}

// pausedReader holds GetByCode between its backend read and its return.
type pausedReader struct {
	shortener.Repository

	reached chan struct{}
	release chan struct{}
}

func (p *pausedReader) GetByCode(ctx context.Context, code shortener.Code) (*shortener.Link, error) {
	link, err := p.Repository.GetByCode(ctx, code)

	close(p.reached)
	<-p.release

	return link, err
}

func TestRedisCacheRepositoryIntegration(t *testing.T) {
	ctx := context.Background()
	client := newRedisClient(t)

	t.Run("serves resolves from cache after the first miss", func(t *testing.T) {
		mem := store.NewMemoryStore()
		cache := store.NewRedisCacheRepository(mem, client, time.Minute)
		expires := time.Now().Add(time.Hour).UTC().Truncate(time.Microsecond)
		link := newLink(uuid.NewString(), "alice", shortener.Code("rc"+uuid.NewString()[:8]))
		link.ExpiresAt = &expires

		require.NoError(t, cache.Create(ctx, link))
		t.Cleanup(func() { client.Del(ctx, "link:"+string(link.Code)) })

		first, err := cache.GetByCode(ctx, link.Code)
		require.NoError(t, err)
		assert.Equal(t, link.Destination, first.Destination)

		exists, err := client.Exists(ctx, "link:"+string(link.Code)).Result()
		require.NoError(t, err)
		assert.Equal(t, int64(1), exists)

		cached, err := cache.GetByCode(ctx, link.Code)
		require.NoError(t, err)
		assert.Equal(t, link.ID, cached.ID)
		require.NotNil(t, cached.ExpiresAt)
		assert.True(t, expires.Equal(*cached.ExpiresAt))
	})

	t.Run("status change evicts the entry", func(t *testing.T) {
		mem := store.NewMemoryStore()
		cache := store.NewRedisCacheRepository(mem, client, time.Minute)
		link := newLink(uuid.NewString(), "alice", shortener.Code("rc"+uuid.NewString()[:8]))

		require.NoError(t, cache.Create(ctx, link))
		_, err := cache.GetByCode(ctx, link.Code)
		require.NoError(t, err)

		require.NoError(t, cache.SetStatus(ctx, link.ID, shortener.StatusInactive))

		got, err := cache.GetByCode(ctx, link.Code)
		require.NoError(t, err)
		assert.Equal(t, shortener.StatusInactive, got.Status)

		client.Del(ctx, "link:"+string(link.Code), "link:fence:"+string(link.Code))
	})

	t.Run("delete evicts the entry", func(t *testing.T) {
		mem := store.NewMemoryStore()
		cache := store.NewRedisCacheRepository(mem, client, time.Minute)
		link := newLink(uuid.NewString(), "alice", shortener.Code("rc"+uuid.NewString()[:8]))

		require.NoError(t, cache.Create(ctx, link))
		_, _ = cache.GetByCode(ctx, link.Code)

		require.NoError(t, cache.Delete(ctx, link.ID))

		_, err := cache.GetByCode(ctx, link.Code)
		assert.ErrorIs(t, err, shortener.ErrNotFound)
	})

	t.Run("reader that loaded before a delete does not recache the link", func(t *testing.T) {
		mem := store.NewMemoryStore()
		link := newLink(uuid.NewString(), "alice", shortener.Code("rc"+uuid.NewString()[:8]))
		require.NoError(t, mem.Create(ctx, link))

		reader := &pausedReader{
			Repository: mem,
			reached:    make(chan struct{}),
			release:    make(chan struct{}),
		}
		slow := store.NewRedisCacheRepository(reader, client, time.Minute)
		cache := store.NewRedisCacheRepository(mem, client, time.Minute)
		t.Cleanup(func() {
			client.Del(ctx, "link:"+string(link.Code), "link:fence:"+string(link.Code))
		})

		var wg sync.WaitGroup

		wg.Go(func() {
			got, err := slow.GetByCode(ctx, link.Code)
			assert.NoError(t, err)
			assert.Equal(t, link.ID, got.ID)
		})

		<-reader.reached
		require.NoError(t, cache.Delete(ctx, link.ID))
		close(reader.release)
		wg.Wait()

		exists, err := client.Exists(ctx, "link:"+string(link.Code)).Result()
		require.NoError(t, err)
		assert.Equal(t, int64(0), exists)

		_, err = cache.GetByCode(ctx, link.Code)
		assert.ErrorIs(t, err, shortener.ErrNotFound)
	})

	t.Run("writes leave a fence that expires", func(t *testing.T) {
		mem := store.NewMemoryStore()
		cache := store.NewRedisCacheRepository(mem, client, time.Minute)
		link := newLink(uuid.NewString(), "alice", shortener.Code("rc"+uuid.NewString()[:8]))
		t.Cleanup(func() {
			client.Del(ctx, "link:"+string(link.Code), "link:fence:"+string(link.Code))
		})

		require.NoError(t, cache.Create(ctx, link))
		require.NoError(t, cache.SetStatus(ctx, link.ID, shortener.StatusInactive))

		ttl, err := client.PTTL(ctx, "link:fence:"+string(link.Code)).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
		assert.LessOrEqual(t, ttl, 30*time.Second)
	})
}

func TestRateLimitRedisStoreIntegration(t *testing.T) {
	ctx := context.Background()
	client := newRedisClient(t)
	s := store.NewRateLimitRedisStore(client)
	key := "test:" + uuid.NewString()

	t.Cleanup(func() { client.Del(ctx, "ratelimit:"+key) })

	for want := int64(1); want <= 3; want++ {
		count, err := s.Record(ctx, key, time.Minute)

		require.NoError(t, err)
		assert.Equal(t, want, count)
	}

	time.Sleep(120 * time.Millisecond)

	count, err := s.Record(ctx, key, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
