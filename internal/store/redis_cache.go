package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/linktrail/internal/shortener"
)

// fenceTTL bounds how long a reader may sit between its backend read and its
// cache write and still be kept from caching a stale link.
const fenceTTL = 30 * time.Second

// populateScript writes the cached hash only while no write fence exists for
// the code. KEYS: entry, fence. ARGV: ttl in ms, then field/value pairs.
var populateScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[2]) == 1 then
	return 0
end
redis.call("DEL", KEYS[1])
redis.call("HSET", KEYS[1], unpack(ARGV, 2))
if tonumber(ARGV[1]) > 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return 1
`)

// RedisCacheRepository wraps a Repository with a Redis read-through cache for
// GetByCode, the lookup on the redirect path. Cached links do not carry the
// click counter.
//
// Writes go to the underlying store first, then set a short-lived fence for
// the code and evict the entry in one transaction. Populating is refused while
// the fence lives, so a reader that loaded the link before the write cannot
// put it back afterwards.
type RedisCacheRepository struct {
	store  shortener.Repository
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCacheRepository creates a new Redis-cached repository decorator.
func NewRedisCacheRepository(
	store shortener.Repository, client *redis.Client, ttl time.Duration,
) *RedisCacheRepository {
	return &RedisCacheRepository{
		store:  store,
		client: client,
		prefix: "link:",
		ttl:    ttl,
	}
}

func (r *RedisCacheRepository) Create(ctx context.Context, link *shortener.Link) error {
	return r.store.Create(ctx, link)
}

// GetByCode checks the cache first and populates it on a miss.
func (r *RedisCacheRepository) GetByCode(ctx context.Context, code shortener.Code) (*shortener.Link, error) {
	if link, err := r.getFromCache(ctx, code); err == nil {
		return link, nil
	}

	link, err := r.store.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	r.cacheLink(ctx, link)

	return link, nil
}

func (r *RedisCacheRepository) GetByID(ctx context.Context, id string) (*shortener.Link, error) {
	return r.store.GetByID(ctx, id)
}

func (r *RedisCacheRepository) ListByOwner(ctx context.Context, ownerID string) ([]*shortener.Link, error) {
	return r.store.ListByOwner(ctx, ownerID)
}

func (r *RedisCacheRepository) Update(ctx context.Context, link *shortener.Link) error {
	if err := r.store.Update(ctx, link); err != nil {
		return err
	}

	r.invalidate(ctx, link.Code)

	return nil
}

func (r *RedisCacheRepository) SetStatus(ctx context.Context, id string, status shortener.Status) error {
	link, err := r.store.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err = r.store.SetStatus(ctx, id, status); err != nil {
		return err
	}

	r.invalidate(ctx, link.Code)

	return nil
}

func (r *RedisCacheRepository) Delete(ctx context.Context, id string) error {
	link, err := r.store.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err = r.store.Delete(ctx, id); err != nil {
		return err
	}

	r.invalidate(ctx, link.Code)

	return nil
}

func (r *RedisCacheRepository) getFromCache(ctx context.Context, code shortener.Code) (*shortener.Link, error) {
	result, err := r.client.HGetAll(ctx, r.prefix+string(code)).Result()
	if err != nil {
		return nil, err
	}

	if len(result) == 0 {
		return nil, shortener.ErrNotFound
	}

	link := &shortener.Link{
		ID:          result["id"],
		OwnerID:     result["owner_id"],
		Code:        code,
		Destination: result["destination"],
		Status:      shortener.Status(result["status"]),
		Remarks:     result["remarks"],
	}

	if link.ID == "" || link.Destination == "" {
		return nil, errors.New("incomplete cache entry")
	}

	if nanos, err := strconv.ParseInt(result["created_at"], 10, 64); err == nil {
		link.CreatedAt = time.Unix(0, nanos).UTC()
	}

	if ts := result["expires_at"]; ts != "" {
		if nanos, err := strconv.ParseInt(ts, 10, 64); err == nil {
			expiresAt := time.Unix(0, nanos).UTC()
			link.ExpiresAt = &expiresAt
		}
	}

	return link, nil
}

func (r *RedisCacheRepository) cacheLink(ctx context.Context, link *shortener.Link) {
	expiresAt := ""
	if link.ExpiresAt != nil {
		expiresAt = strconv.FormatInt(link.ExpiresAt.UnixNano(), 10)
	}

	_ = populateScript.Run(ctx, r.client,
		[]string{r.prefix + string(link.Code), r.fenceKey(link.Code)},
		r.ttl.Milliseconds(),
		"id", link.ID,
		"owner_id", link.OwnerID,
		"destination", link.Destination,
		"status", string(link.Status),
		"remarks", link.Remarks,
		"expires_at", expiresAt,
		"created_at", link.CreatedAt.UnixNano(),
	).Err()
}

func (r *RedisCacheRepository) invalidate(ctx context.Context, code shortener.Code) {
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.fenceKey(code), 1, fenceTTL)
	pipe.Del(ctx, r.prefix+string(code))
	_, _ = pipe.Exec(ctx)
}

func (r *RedisCacheRepository) fenceKey(code shortener.Code) string {
	return r.prefix + "fence:" + string(code)
}

// Shutdown is a no-op for RedisCacheRepository (client managed externally).
func (r *RedisCacheRepository) Shutdown() error {
	return nil
}

// Compile-time check.
var _ shortener.Repository = (*RedisCacheRepository)(nil)
