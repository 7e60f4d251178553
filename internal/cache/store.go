// Package cache provides the answer cache: a TTL key-value store over
// canonical query keys with sqlite, redis, and in-memory backends.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/hyperjump/kotae/internal/models"
)

// ErrNotFound is returned by Get when no unexpired record exists for a key.
var ErrNotFound = errors.New("cache: record not found")

// Store is the answer cache. Get treats an expired record as absent; callers
// never perform their own expiry checks.
type Store interface {
	Get(ctx context.Context, key string) (*models.AnswerRecord, error)
	Put(ctx context.Context, key string, record *models.AnswerRecord, ttl time.Duration) error
	// Count returns the number of unexpired records, for status reporting.
	Count(ctx context.Context) (int64, error)
	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
	Close() error
}
