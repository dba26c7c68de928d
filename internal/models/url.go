package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// URL represents a shortened URL and its associated click analytics.
type URL struct {
	// ID is the unique identifier for the shortened URL record.
	ID int64
	// ShortCode is the 5 to 7 character alphanumeric key associated with the original URL.
	ShortCode string
	// OriginalURL is the original, full-length URL that the short code points to.
	OriginalURL string
	// CreatedAt is the timestamp indicating when the shortened URL was created.
	CreatedAt time.Time
	// Expiry is the timestamp after which the short code no longer resolves.
	Expiry time.Time
	// Clicks is the number of recorded redirects. It always equals len(ClickDetails)
	// when the details were loaded.
	Clicks int64
	// ClickDetails holds the recorded redirects in chronological order.
	ClickDetails Clicks
}

// IsExpired reports whether the URL is past its expiry at the given moment.
func (u *URL) IsExpired(now time.Time) bool {
	return !u.Expiry.After(now)
}

// Click represents a single recorded visit to a short code.
type Click struct {
	Timestamp time.Time    `json:"timestamp"`
	Referrer  string       `json:"referrer,omitempty"`
	Geo       *GeoLocation `json:"geo,omitempty"`
}

// GeoLocation is a best-effort location of the visitor.
type GeoLocation struct {
	Country   string  `json:"country"`
	City      string  `json:"city"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Clicks is an ordered list of clicks stored as a JSON array.
type Clicks []Click

// Value implements driver.Valuer.
func (c Clicks) Value() (driver.Value, error) {
	if c == nil {
		return []byte("[]"), nil
	}

	return json.Marshal(c)
}

// Scan implements sql.Scanner.
func (c *Clicks) Scan(src any) error {
	var data []byte

	switch v := src.(type) {
	case nil:
		*c = Clicks{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("models.Clicks.Scan: unsupported type %T", src)
	}

	var clicks Clicks
	if err := json.Unmarshal(data, &clicks); err != nil {
		return fmt.Errorf("models.Clicks.Scan: failed to decode clicks: %w", err)
	}
	if clicks == nil {
		clicks = Clicks{}
	}

	*c = clicks
	return nil
}
