package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/linkpulse/url-shortener/internal/database"
	"github.com/linkpulse/url-shortener/internal/models"
)

var (
	// ErrURLExpired is returned when a short code exists but its expiry has passed.
	ErrURLExpired = errors.New("url expired")

	// ErrInvalidValidity is returned for a negative validity period.
	ErrInvalidValidity = errors.New("invalid validity")
)

// URLRepository is the storage the service works against.
type URLRepository interface {
	Create(ctx context.Context, url *models.URL) (*models.URL, error)
	Exists(ctx context.Context, shortCode string) (bool, error)
	GetByShortCode(ctx context.Context, shortCode string) (*models.URL, error)
	GetLink(ctx context.Context, shortCode string) (*models.URL, error)
	AppendClick(ctx context.Context, shortCode string, click models.Click) (*models.URL, error)
	Ping(ctx context.Context) error
}

// GeoResolver gives a best-effort location for a client IP.
type GeoResolver interface {
	Resolve(ctx context.Context, ip string) (*models.GeoLocation, error)
}

type Config struct {
	DefaultValidity time.Duration
	StorageTimeout  time.Duration
}

// ShortenParams describes a shortening request. A zero Validity selects the
// configured default and an empty ShortCode lets the allocator pick one.
type ShortenParams struct {
	OriginalURL string
	Validity    time.Duration
	ShortCode   string
}

// ClickMeta is the request context recorded with a click.
type ClickMeta struct {
	Referrer string
	ClientIP string
}

// URLService implements creation, redirect resolution and statistics for
// short URLs.
type URLService struct {
	repo      URLRepository
	allocator *Allocator
	geo       GeoResolver
	logger    *slog.Logger
	cfg       Config
	now       func() time.Time
}

func NewURLService(repo URLRepository, geo GeoResolver, logger *slog.Logger, cfg Config) *URLService {
	return &URLService{
		repo:      repo,
		allocator: NewAllocator(repo, cfg.StorageTimeout),
		geo:       geo,
		logger:    logger.With(slog.String("package", "service")),
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *URLService) storageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.StorageTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.StorageTimeout)
}

// ShortenURL stores a new short URL. A custom code is checked for syntax and
// uniqueness; otherwise a random code is allocated.
func (s *URLService) ShortenURL(ctx context.Context, params ShortenParams) (*models.URL, error) {
	const op = "service.URLService.ShortenURL"

	if params.Validity < 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidValidity)
	}

	validity := params.Validity
	if validity == 0 {
		validity = s.cfg.DefaultValidity
	}

	createdAt := s.now().UTC()
	record := &models.URL{
		OriginalURL: params.OriginalURL,
		CreatedAt:   createdAt,
		Expiry:      createdAt.Add(validity),
	}

	if params.ShortCode != "" {
		url, err := s.createCustom(ctx, record, params.ShortCode)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return url, nil
	}

	var created *models.URL

	_, err := s.allocator.AllocateWith(ctx, func(shortCode string) error {
		rctx, cancel := s.storageCtx(ctx)
		defer cancel()

		candidate := *record
		candidate.ShortCode = shortCode

		url, err := s.repo.Create(rctx, &candidate)
		if err != nil {
			return err
		}

		created = url
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrExhaustedRetries) {
			s.logger.Error("short code allocation exhausted", slog.String("op", op))
		}
		return nil, fmt.Errorf("%s: failed to shorten url: %w", op, err)
	}

	return created, nil
}

func (s *URLService) createCustom(ctx context.Context, record *models.URL, shortCode string) (*models.URL, error) {
	rctx, cancel := s.storageCtx(ctx)
	defer cancel()

	shortCode, err := s.allocator.Reserve(rctx, shortCode)
	if err != nil {
		return nil, err
	}

	record.ShortCode = shortCode

	url, err := s.repo.Create(rctx, record)
	if err != nil {
		if errors.Is(err, database.ErrShortCodeExists) {
			return nil, ErrShortCodeConflict
		}
		return nil, fmt.Errorf("failed to create url: %w", err)
	}

	return url, nil
}

// ResolveShortCode returns the link for an active short code and records a
// click against it. Expired links are reported with ErrURLExpired and left
// untouched.
func (s *URLService) ResolveShortCode(ctx context.Context, shortCode string, meta ClickMeta) (*models.URL, error) {
	const op = "service.URLService.ResolveShortCode"

	if !ValidShortCode(shortCode) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidShortCode)
	}

	url, err := s.lookup(ctx, shortCode, false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	click := models.Click{
		Timestamp: s.now().UTC(),
		Referrer:  meta.Referrer,
		Geo:       s.resolveGeo(ctx, meta.ClientIP),
	}

	rctx, cancel := s.storageCtx(ctx)
	defer cancel()

	if _, err := s.repo.AppendClick(rctx, shortCode, click); err != nil {
		if errors.Is(err, database.ErrURLExpired) {
			return nil, fmt.Errorf("%s: %w", op, ErrURLExpired)
		}
		return nil, fmt.Errorf("%s: failed to record click: %w", op, err)
	}

	return url, nil
}

// GetURLStats returns the full record of an active short code.
func (s *URLService) GetURLStats(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "service.URLService.GetURLStats"

	if !ValidShortCode(shortCode) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidShortCode)
	}

	url, err := s.lookup(ctx, shortCode, true)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return url, nil
}

// Ping reports whether the storage is reachable.
func (s *URLService) Ping(ctx context.Context) error {
	const op = "service.URLService.Ping"

	rctx, cancel := s.storageCtx(ctx)
	defer cancel()

	if err := s.repo.Ping(rctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *URLService) lookup(ctx context.Context, shortCode string, withDetails bool) (*models.URL, error) {
	rctx, cancel := s.storageCtx(ctx)
	defer cancel()

	var (
		url *models.URL
		err error
	)
	if withDetails {
		url, err = s.repo.GetByShortCode(rctx, shortCode)
	} else {
		url, err = s.repo.GetLink(rctx, shortCode)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get url: %w", err)
	}

	if url.IsExpired(s.now()) {
		return nil, ErrURLExpired
	}

	return url, nil
}

func (s *URLService) resolveGeo(ctx context.Context, ip string) *models.GeoLocation {
	if s.geo == nil {
		return nil
	}

	loc, err := s.geo.Resolve(ctx, ip)
	if err != nil {
		s.logger.Warn("failed to resolve geo location", slog.String("ip", ip), slog.Any("err", err))
		return nil
	}

	return loc
}
