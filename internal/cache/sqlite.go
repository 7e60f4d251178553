package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kotae/internal/models"
)

// SQLiteStore implements Store using SQLite. Expiry is lazy: expired rows are
// deleted when read and excluded from Count.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS answers (
		key TEXT PRIMARY KEY,
		id TEXT NOT NULL,
		query_canonical TEXT NOT NULL,
		answer_text TEXT NOT NULL,
		sources TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_answers_expires_at ON answers(expires_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Get returns the record for key, or ErrNotFound if absent or expired.
// Expired rows are deleted on read.
func (s *SQLiteStore) Get(ctx context.Context, key string) (*models.AnswerRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, query_canonical, answer_text, sources, created_at, expires_at FROM answers WHERE key = ?`, key)

	var rec models.AnswerRecord
	var sourcesJSON string
	var expiresAt time.Time
	if err := row.Scan(&rec.ID, &rec.QueryCanonical, &rec.AnswerText, &sourcesJSON, &rec.CreatedAt, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read record: %w", err)
	}
	if !time.Now().Before(expiresAt) {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM answers WHERE key = ?`, key)
		return nil, ErrNotFound
	}
	if err := json.Unmarshal([]byte(sourcesJSON), &rec.Sources); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sources: %w", err)
	}
	rec.TTL = expiresAt.Sub(rec.CreatedAt)
	return &rec, nil
}

// Put stores the record under key with the given ttl (last-write-wins upsert).
func (s *SQLiteStore) Put(ctx context.Context, key string, record *models.AnswerRecord, ttl time.Duration) error {
	sourcesJSON, err := json.Marshal(record.Sources)
	if err != nil {
		return fmt.Errorf("failed to marshal sources: %w", err)
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO answers (key, id, query_canonical, answer_text, sources, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   id = excluded.id,
		   query_canonical = excluded.query_canonical,
		   answer_text = excluded.answer_text,
		   sources = excluded.sources,
		   created_at = excluded.created_at,
		   expires_at = excluded.expires_at`,
		key, record.ID, record.QueryCanonical, record.AnswerText, string(sourcesJSON), createdAt, createdAt.Add(ttl))
	if err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// Count returns the number of unexpired records.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM answers WHERE expires_at > ?`, time.Now()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// Ping verifies the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
