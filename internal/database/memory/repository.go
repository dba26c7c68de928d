// Package memory provides an in-process URL record store. It is used for
// local development and tests; records are lost on restart.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/linkpulse/url-shortener/internal/database"
	"github.com/linkpulse/url-shortener/internal/models"
)

// URLRepository is a mutex-guarded map of records keyed by short code.
type URLRepository struct {
	mu     sync.RWMutex
	nextID int64
	urls   map[string]*models.URL
}

func NewURLRepository() *URLRepository {
	return &URLRepository{
		urls: make(map[string]*models.URL),
	}
}

func (r *URLRepository) Create(ctx context.Context, url *models.URL) (*models.URL, error) {
	const op = "database.memory.URLRepository.Create"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.urls[url.ShortCode]; ok {
		return nil, fmt.Errorf("%s: %w", op, database.ErrShortCodeExists)
	}

	r.nextID++

	rec := &models.URL{
		ID:           r.nextID,
		ShortCode:    url.ShortCode,
		OriginalURL:  url.OriginalURL,
		CreatedAt:    url.CreatedAt,
		Expiry:       url.Expiry,
		ClickDetails: models.Clicks{},
	}
	r.urls[rec.ShortCode] = rec

	return clone(rec, true), nil
}

func (r *URLRepository) Exists(ctx context.Context, shortCode string) (bool, error) {
	const op = "database.memory.URLRepository.Exists"

	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.urls[shortCode]
	return ok, nil
}

func (r *URLRepository) GetByShortCode(ctx context.Context, shortCode string) (*models.URL, error) {
	return r.get(ctx, "database.memory.URLRepository.GetByShortCode", shortCode, true)
}

func (r *URLRepository) GetLink(ctx context.Context, shortCode string) (*models.URL, error) {
	return r.get(ctx, "database.memory.URLRepository.GetLink", shortCode, false)
}

func (r *URLRepository) get(ctx context.Context, op, shortCode string, withDetails bool) (*models.URL, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.urls[shortCode]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
	}

	return clone(rec, withDetails), nil
}

// AppendClick records a click against a record that is still active at the
// click's timestamp.
func (r *URLRepository) AppendClick(ctx context.Context, shortCode string, click models.Click) (*models.URL, error) {
	const op = "database.memory.URLRepository.AppendClick"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.urls[shortCode]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
	}
	if rec.IsExpired(click.Timestamp) {
		return nil, fmt.Errorf("%s: %w", op, database.ErrURLExpired)
	}

	rec.Clicks++
	rec.ClickDetails = append(rec.ClickDetails, click)

	return clone(rec, false), nil
}

func (r *URLRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

func clone(rec *models.URL, withDetails bool) *models.URL {
	c := *rec
	c.ClickDetails = nil

	if withDetails {
		c.ClickDetails = slices.Clone(rec.ClickDetails)
		if c.ClickDetails == nil {
			c.ClickDetails = models.Clicks{}
		}
	}

	return &c
}
