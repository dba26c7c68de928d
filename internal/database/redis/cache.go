// Package redis provides a read-through cache in front of a URL record store.
// Only the immutable part of a record (short code, original URL, creation and
// expiry times) is cached; click counters and details always come from the
// underlying store.
package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/linkpulse/url-shortener/internal/models"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "shorturl:"

type urlRepository interface {
	Create(ctx context.Context, url *models.URL) (*models.URL, error)
	Exists(ctx context.Context, shortCode string) (bool, error)
	GetByShortCode(ctx context.Context, shortCode string) (*models.URL, error)
	GetLink(ctx context.Context, shortCode string) (*models.URL, error)
	AppendClick(ctx context.Context, shortCode string, click models.Click) (*models.URL, error)
	Ping(ctx context.Context) error
}

// CachedURLRepository decorates a store with a Redis cache for GetLink.
// Cache failures are never surfaced; the store is consulted instead.
type CachedURLRepository struct {
	store  urlRepository
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewCachedURLRepository(store urlRepository, client *redis.Client, ttl time.Duration) *CachedURLRepository {
	return &CachedURLRepository{
		store:  store,
		client: client,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (r *CachedURLRepository) Create(ctx context.Context, url *models.URL) (*models.URL, error) {
	created, err := r.store.Create(ctx, url)
	if err != nil {
		return nil, err
	}

	r.cacheLink(ctx, created)

	return created, nil
}

func (r *CachedURLRepository) Exists(ctx context.Context, shortCode string) (bool, error) {
	if n, err := r.client.Exists(ctx, keyPrefix+shortCode).Result(); err == nil && n > 0 {
		return true, nil
	}

	return r.store.Exists(ctx, shortCode)
}

func (r *CachedURLRepository) GetByShortCode(ctx context.Context, shortCode string) (*models.URL, error) {
	return r.store.GetByShortCode(ctx, shortCode)
}

// GetLink returns the cached link when present. A cached link carries no
// click counter.
func (r *CachedURLRepository) GetLink(ctx context.Context, shortCode string) (*models.URL, error) {
	if url, ok := r.getFromCache(ctx, shortCode); ok {
		return url, nil
	}

	url, err := r.store.GetLink(ctx, shortCode)
	if err != nil {
		return nil, err
	}

	r.cacheLink(ctx, url)

	return url, nil
}

func (r *CachedURLRepository) AppendClick(ctx context.Context, shortCode string, click models.Click) (*models.URL, error) {
	return r.store.AppendClick(ctx, shortCode, click)
}

func (r *CachedURLRepository) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

func (r *CachedURLRepository) getFromCache(ctx context.Context, shortCode string) (*models.URL, bool) {
	result, err := r.client.HGetAll(ctx, keyPrefix+shortCode).Result()
	if err != nil || len(result) == 0 {
		return nil, false
	}

	id, err := strconv.ParseInt(result["id"], 10, 64)
	if err != nil {
		return nil, false
	}
	createdAt, err := strconv.ParseInt(result["created_at"], 10, 64)
	if err != nil {
		return nil, false
	}
	expiry, err := strconv.ParseInt(result["expiry"], 10, 64)
	if err != nil {
		return nil, false
	}

	return &models.URL{
		ID:          id,
		ShortCode:   shortCode,
		OriginalURL: result["original_url"],
		CreatedAt:   time.Unix(0, createdAt).UTC(),
		Expiry:      time.Unix(0, expiry).UTC(),
	}, true
}

func (r *CachedURLRepository) cacheLink(ctx context.Context, url *models.URL) {
	ttl := url.Expiry.Sub(r.now())
	if ttl <= 0 {
		return
	}
	if r.ttl > 0 && r.ttl < ttl {
		ttl = r.ttl
	}

	key := keyPrefix + url.ShortCode
	pipe := r.client.TxPipeline()

	pipe.HSet(ctx, key, map[string]any{
		"id":           url.ID,
		"original_url": url.OriginalURL,
		"created_at":   url.CreatedAt.UnixNano(),
		"expiry":       url.Expiry.UnixNano(),
	})
	pipe.Expire(ctx, key, ttl)

	_, _ = pipe.Exec(ctx)
}
