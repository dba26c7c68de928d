// Package database holds the errors shared by every URL record store
// implementation.
package database

import "errors"

var (
	// ErrShortCodeExists is returned by Create when the unique constraint on
	// the short code rejects the insert.
	ErrShortCodeExists = errors.New("short code exists")
	// ErrURLNotFound is returned when no record matches the short code.
	ErrURLNotFound = errors.New("url not found")
	// ErrURLExpired is returned by AppendClick when the record expired
	// before the click's timestamp.
	ErrURLExpired = errors.New("url expired")
)
