package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a queried record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrSuperseded is returned when a check-and-set on superseded_by finds
	// the fact already has a successor.
	ErrSuperseded = errors.New("fact already superseded")
)

const (
	maxRetries   = 3
	retryBackoff = 50 * time.Millisecond
)

// withRetry re-runs fn for transient connection errors that pgx reports as
// safe to retry. Anything else surfaces immediately.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = fn()
		if err == nil || !pgconn.SafeToRetry(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBackoff << attempt):
		}
	}
	return err
}
