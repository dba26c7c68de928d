package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"time"

	"github.com/linkpulse/url-shortener/internal/database"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	shortCodeAlphabet   = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	minShortCodeLength  = 5
	maxShortCodeLength  = 7
	maxAllocateAttempts = 5
)

var shortCodeRegexp = regexp.MustCompile(`^[A-Za-z0-9]{5,7}$`)

var (
	// ErrExhaustedRetries is returned when no free short code was found
	// within the attempt budget.
	ErrExhaustedRetries = errors.New("exhausted retries allocating short code")

	// ErrInvalidShortCode is returned for codes outside [A-Za-z0-9]{5,7}.
	ErrInvalidShortCode = errors.New("invalid short code")

	// ErrShortCodeConflict is returned when a requested custom code is taken.
	ErrShortCodeConflict = errors.New("short code already in use")
)

// ValidShortCode reports whether code is syntactically a short code.
func ValidShortCode(code string) bool {
	return shortCodeRegexp.MatchString(code)
}

type shortCodeChecker interface {
	Exists(ctx context.Context, shortCode string) (bool, error)
}

// Allocator picks unused short codes. It only reads from the store; the
// caller owns the insert. A positive timeout bounds every store check.
type Allocator struct {
	store    shortCodeChecker
	timeout  time.Duration
	generate func() (string, error)
}

func NewAllocator(store shortCodeChecker, timeout time.Duration) *Allocator {
	return &Allocator{
		store:    store,
		timeout:  timeout,
		generate: randomShortCode,
	}
}

func randomShortCode() (string, error) {
	n := minShortCodeLength + rand.IntN(maxShortCodeLength-minShortCodeLength+1)
	return gonanoid.Generate(shortCodeAlphabet, n)
}

// Allocate returns a short code that was free at the time of the check.
func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	return a.AllocateWith(ctx, nil)
}

// AllocateWith runs claim for each free candidate. A claim failing with
// database.ErrShortCodeExists lost a race against a concurrent insert and
// consumes an attempt like any other collision. Any other claim error
// aborts the allocation.
func (a *Allocator) AllocateWith(ctx context.Context, claim func(shortCode string) error) (string, error) {
	const op = "service.Allocator.AllocateWith"

	for i := 0; i < maxAllocateAttempts; i++ {
		shortCode, err := a.generate()
		if err != nil {
			return "", fmt.Errorf("%s: failed to generate short code: %w", op, err)
		}

		exists, err := a.exists(ctx, shortCode)
		if err != nil {
			return "", fmt.Errorf("%s: failed to check short code: %w", op, err)
		}
		if exists {
			continue
		}

		if claim == nil {
			return shortCode, nil
		}

		if err := claim(shortCode); err != nil {
			if errors.Is(err, database.ErrShortCodeExists) {
				continue
			}
			return "", fmt.Errorf("%s: %w", op, err)
		}

		return shortCode, nil
	}

	return "", fmt.Errorf("%s: %w", op, ErrExhaustedRetries)
}

// Reserve validates a requested custom code and checks that it is free.
func (a *Allocator) Reserve(ctx context.Context, candidate string) (string, error) {
	const op = "service.Allocator.Reserve"

	if !ValidShortCode(candidate) {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidShortCode)
	}

	exists, err := a.exists(ctx, candidate)
	if err != nil {
		return "", fmt.Errorf("%s: failed to check short code: %w", op, err)
	}
	if exists {
		return "", fmt.Errorf("%s: %w", op, ErrShortCodeConflict)
	}

	return candidate, nil
}

func (a *Allocator) exists(ctx context.Context, shortCode string) (bool, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	return a.store.Exists(ctx, shortCode)
}
