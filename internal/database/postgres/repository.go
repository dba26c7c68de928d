package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/linkpulse/url-shortener/internal/database"
	"github.com/linkpulse/url-shortener/internal/models"
)

type urlRecord struct {
	ID           int64         `db:"id"`
	ShortCode    string        `db:"short_code"`
	OriginalURL  string        `db:"original_url"`
	CreatedAt    time.Time     `db:"created_at"`
	Expiry       time.Time     `db:"expiry"`
	Clicks       int64         `db:"clicks"`
	ClickDetails models.Clicks `db:"click_details"`
}

func (r *urlRecord) ToURL() *models.URL {
	return &models.URL{
		ID:           r.ID,
		ShortCode:    r.ShortCode,
		OriginalURL:  r.OriginalURL,
		CreatedAt:    r.CreatedAt,
		Expiry:       r.Expiry,
		Clicks:       r.Clicks,
		ClickDetails: r.ClickDetails,
	}
}

// URLRepository stores URL records in PostgreSQL. The unique index on
// short_code is the authority on short code uniqueness.
type URLRepository struct {
	db *sqlx.DB
}

func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{
		db: db,
	}
}

func (r *URLRepository) Create(ctx context.Context, url *models.URL) (*models.URL, error) {
	const op = "database.postgres.URLRepository.Create"

	rec := new(urlRecord)
	query := `INSERT INTO urls(short_code, original_url, created_at, expiry)
		VALUES ($1, $2, $3, $4)
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query, url.ShortCode, url.OriginalURL, url.CreatedAt, url.Expiry)
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrShortCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to create url record: %w", op, err)
	}

	return rec.ToURL(), nil
}

func (r *URLRepository) Exists(ctx context.Context, shortCode string) (bool, error) {
	const op = "database.postgres.URLRepository.Exists"

	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM urls WHERE short_code = $1)`

	if err := r.db.GetContext(ctx, &exists, query, shortCode); err != nil {
		return false, fmt.Errorf("%s: failed to check url record: %w", op, err)
	}

	return exists, nil
}

func (r *URLRepository) GetByShortCode(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "database.postgres.URLRepository.GetByShortCode"

	rec := new(urlRecord)
	query := `SELECT * FROM urls
		WHERE short_code = $1`

	err := r.db.GetContext(ctx, rec, query, shortCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get url record: %w", op, err)
	}

	return rec.ToURL(), nil
}

// GetLink loads a record without its click details.
func (r *URLRepository) GetLink(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "database.postgres.URLRepository.GetLink"

	rec := new(urlRecord)
	query := `SELECT id, short_code, original_url, created_at, expiry, clicks
		FROM urls
		WHERE short_code = $1`

	err := r.db.GetContext(ctx, rec, query, shortCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get url link: %w", op, err)
	}

	return rec.ToURL(), nil
}

// AppendClick increments the click counter and appends the click to the
// details in a single statement, so concurrent clicks serialize on the row lock.
// Only a record still active at the click's timestamp is updated.
// The returned record carries the new counter but no click details.
func (r *URLRepository) AppendClick(ctx context.Context, shortCode string, click models.Click) (*models.URL, error) {
	const op = "database.postgres.URLRepository.AppendClick"

	payload, err := json.Marshal(click)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to encode click: %w", op, err)
	}

	rec := new(urlRecord)
	query := `UPDATE urls
		SET clicks = clicks + 1,
			click_details = click_details || jsonb_build_array($2::jsonb)
		WHERE short_code = $1 AND expiry > $3
		RETURNING id, short_code, original_url, created_at, expiry, clicks`

	err = r.db.GetContext(ctx, rec, query, shortCode, string(payload), click.Timestamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.missingClickTarget(ctx, op, shortCode)
		}

		return nil, fmt.Errorf("%s: failed to append click: %w", op, err)
	}

	return rec.ToURL(), nil
}

// missingClickTarget tells an expired record apart from an absent one after
// an UPDATE matched no rows.
func (r *URLRepository) missingClickTarget(ctx context.Context, op, shortCode string) error {
	exists, err := r.Exists(ctx, shortCode)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if exists {
		return fmt.Errorf("%s: %w", op, database.ErrURLExpired)
	}

	return fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
}

func (r *URLRepository) Ping(ctx context.Context) error {
	const op = "database.postgres.URLRepository.Ping"

	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
