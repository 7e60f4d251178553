package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/hyperjump/kotae/internal/models"
)

// keyPrefix namespaces answer records in a shared Redis instance.
const keyPrefix = "kotae:answer:"

// RedisStore implements Store on Redis with native key TTLs.
type RedisStore struct {
	client *redis.Client
}

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// Get returns the record for key. Redis expires keys natively, so an expired
// record is simply absent.
func (r *RedisStore) Get(ctx context.Context, key string) (*models.AnswerRecord, error) {
	data, err := r.client.Get(ctx, keyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read record: %w", err)
	}
	var rec models.AnswerRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &rec, nil
}

// Put stores the record under key with the given ttl. A non-positive ttl is
// stored with a one-second expiry so the key is immediately reclaimable
// (Redis rejects zero expirations).
func (r *RedisStore) Put(ctx context.Context, key string, record *models.AnswerRecord, ttl time.Duration) error {
	stored := *record
	stored.TTL = ttl
	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	expiry := ttl
	if expiry <= 0 {
		expiry = time.Second
	}
	if err := r.client.Set(ctx, keyPrefix+key, data, expiry).Err(); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// Count returns the number of stored answer keys.
func (r *RedisStore) Count(ctx context.Context) (int64, error) {
	var n int64
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan keys: %w", err)
	}
	return n, nil
}

// Ping verifies the Redis connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
