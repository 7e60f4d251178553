package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Status is a point-in-time snapshot of the pipeline's state: one
// reachability flag per collaborator plus counts and effective settings.
type Status struct {
	CacheReachable      bool          `json:"cache_reachable"`
	ClassifierReachable bool          `json:"classifier_reachable"`
	RetrieverReachable  bool          `json:"retriever_reachable"`
	IndexReachable      bool          `json:"index_reachable"`
	CachedAnswers       int64         `json:"cached_answers"`
	IndexedQueries      int           `json:"indexed_queries"`
	SimilarityThreshold float64       `json:"similarity_threshold"`
	MaxSources          int           `json:"max_sources"`
	TTL                 time.Duration `json:"-"`
	TTLHours            float64       `json:"ttl_hours"`
}

// healthReporter is implemented by collaborators that can report readiness
// without doing real work. Collaborators without it count as reachable by
// presence: they are constructed only when usable.
type healthReporter interface {
	Healthy(ctx context.Context) error
}

func reachable(ctx context.Context, collaborator any) bool {
	if collaborator == nil {
		return false
	}
	if hr, ok := collaborator.(healthReporter); ok {
		return hr.Healthy(ctx) == nil
	}
	return true
}

// Status reports collaborator health. A broken cache shows up as
// unreachable with a zero count rather than an error.
func (p *Pipeline) Status(ctx context.Context) Status {
	st := Status{
		ClassifierReachable: reachable(ctx, p.classifier),
		RetrieverReachable:  reachable(ctx, p.retriever),
		IndexReachable:      reachable(ctx, p.index),
		SimilarityThreshold: p.opts.SimilarityThreshold,
		MaxSources:          p.opts.MaxSources,
		TTL:                 p.opts.TTL,
		TTLHours:            p.opts.TTL.Hours(),
	}
	if st.IndexReachable {
		st.IndexedQueries = p.index.Size()
	}
	if err := p.store.Ping(ctx); err != nil {
		p.logger.Warn("cache unreachable", zap.Error(err))
		return st
	}
	st.CacheReachable = true
	if count, err := p.store.Count(ctx); err == nil {
		st.CachedAnswers = count
	}
	return st
}
