// Package retriever finds and fetches web sources for a query. Search
// backends produce candidate URLs; the fetcher downloads and cleans them.
package retriever

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
)

// Candidate is a search result before its page has been fetched.
type Candidate struct {
	Title   string
	URL     string
	Snippet string
}

// SearchBackend turns a query into candidate URLs.
type SearchBackend interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]Candidate, error)
}

// Retriever produces usable source documents for a query.
type Retriever interface {
	// Retrieve returns up to maxSources documents with extracted text.
	// An empty slice with a nil error means every backend was exhausted
	// without finding usable content.
	Retrieve(ctx context.Context, query string, maxSources int) ([]models.SourceDocument, error)
}

// Chain tries search backends in order, fetching candidates from each
// until enough usable documents are collected. A backend that errors or
// returns nothing usable is skipped in favor of the next one.
type Chain struct {
	backends       []SearchBackend
	fetcher        *Fetcher
	backendTimeout time.Duration
	logger         *zap.Logger
}

// NewChain creates a backend chain.
func NewChain(backends []SearchBackend, fetcher *Fetcher, backendTimeout time.Duration, logger *zap.Logger) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{
		backends:       backends,
		fetcher:        fetcher,
		backendTimeout: backendTimeout,
		logger:         logger,
	}
}

// Retrieve walks the backend chain. Each backend gets its own timeout so a
// slow search engine cannot starve the ones behind it.
func (c *Chain) Retrieve(ctx context.Context, query string, maxSources int) ([]models.SourceDocument, error) {
	if maxSources <= 0 {
		return []models.SourceDocument{}, nil
	}

	docs := make([]models.SourceDocument, 0, maxSources)
	seen := make(map[string]bool)

	for _, backend := range c.backends {
		if err := ctx.Err(); err != nil {
			return docs, err
		}

		candidates, err := c.search(ctx, backend, query, maxSources*3)
		if err != nil {
			c.logger.Warn("search backend failed",
				zap.String("backend", backend.Name()),
				zap.Error(err))
			continue
		}

		fresh := make([]Candidate, 0, len(candidates))
		for _, cand := range candidates {
			if cand.URL == "" || seen[cand.URL] {
				continue
			}
			seen[cand.URL] = true
			fresh = append(fresh, cand)
		}
		if len(fresh) == 0 {
			c.logger.Debug("backend returned no new candidates",
				zap.String("backend", backend.Name()))
			continue
		}

		fetched := c.fetcher.FetchAll(ctx, fresh, maxSources-len(docs))
		docs = append(docs, fetched...)

		c.logger.Debug("backend contributed sources",
			zap.String("backend", backend.Name()),
			zap.Int("candidates", len(fresh)),
			zap.Int("usable", len(fetched)))

		if len(docs) >= maxSources {
			break
		}
	}

	for i := range docs {
		docs[i].Rank = i + 1
	}
	return docs, nil
}

// Healthy reports whether the chain has at least one usable backend.
// Backends without their own health check count as usable.
func (c *Chain) Healthy(ctx context.Context) error {
	for _, backend := range c.backends {
		if hb, ok := backend.(interface{ Healthy(context.Context) error }); ok {
			if err := hb.Healthy(ctx); err != nil {
				continue
			}
		}
		return nil
	}
	return errors.New("no usable search backends configured")
}

func (c *Chain) search(ctx context.Context, backend SearchBackend, query string, limit int) ([]Candidate, error) {
	sctx, cancel := context.WithTimeout(ctx, c.backendTimeout)
	defer cancel()
	return backend.Search(sctx, query, limit)
}
