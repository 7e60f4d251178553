package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hyperjump/kotae/internal/models"
)

// MemoryStore is an in-process cache for tests and single-run CLI use.
// Expiry is checked lazily on read.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*models.AnswerRecord
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*models.AnswerRecord),
		now:     time.Now,
	}
}

// Get returns the record for key, or ErrNotFound if absent or expired.
// Expired records are evicted on read.
func (m *MemoryStore) Get(ctx context.Context, key string) (*models.AnswerRecord, error) {
	m.mu.RLock()
	rec, ok := m.records[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if rec.Expired(m.now()) {
		m.mu.Lock()
		// Re-check under the write lock; a concurrent Put may have replaced it.
		if cur, ok := m.records[key]; ok && cur.Expired(m.now()) {
			delete(m.records, key)
		}
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	return rec, nil
}

// Put stores the record under key with the given ttl, overwriting any
// existing record (last-write-wins).
func (m *MemoryStore) Put(ctx context.Context, key string, record *models.AnswerRecord, ttl time.Duration) error {
	stored := *record
	stored.TTL = ttl
	m.mu.Lock()
	m.records[key] = &stored
	m.mu.Unlock()
	return nil
}

// Count returns the number of unexpired records.
func (m *MemoryStore) Count(ctx context.Context) (int64, error) {
	now := m.now()
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, rec := range m.records {
		if !rec.Expired(now) {
			n++
		}
	}
	return n, nil
}

// Ping always succeeds for the in-memory store.
func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

// Close is a no-op for MemoryStore.
func (m *MemoryStore) Close() error { return nil }
