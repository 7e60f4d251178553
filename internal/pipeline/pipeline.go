// Package pipeline orchestrates query resolution: classification, similarity
// lookup, caching, retrieval, and synthesis.
package pipeline

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/cache"
	"github.com/hyperjump/kotae/internal/classify"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retriever"
	"github.com/hyperjump/kotae/internal/synthesize"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/pkg/utils"
)

// Options tune the resolution run.
type Options struct {
	// SimilarityThreshold is the minimum score for a past query to count
	// as a duplicate.
	SimilarityThreshold float64
	// MaxSources caps how many usable documents feed synthesis.
	MaxSources int
	// TTL is how long answers stay cached.
	TTL time.Duration
	// RunTimeout bounds a whole resolution run.
	RunTimeout time.Duration
}

// Pipeline resolves free-text queries into cited answers.
type Pipeline struct {
	classifier  classify.Classifier
	embedder    embedding.Embedder
	index       vector.Index
	store       cache.Store
	retriever   retriever.Retriever
	synthesizer synthesize.Synthesizer
	opts        Options
	logger      *zap.Logger
}

// New wires the pipeline collaborators together.
func New(
	classifier classify.Classifier,
	embedder embedding.Embedder,
	index vector.Index,
	store cache.Store,
	ret retriever.Retriever,
	synth synthesize.Synthesizer,
	opts Options,
	logger *zap.Logger,
) *Pipeline {
	if opts.SimilarityThreshold == 0 {
		opts.SimilarityThreshold = 0.8
	}
	if opts.MaxSources <= 0 {
		opts.MaxSources = 5
	}
	if opts.TTL == 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.RunTimeout == 0 {
		opts.RunTimeout = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		classifier:  classifier,
		embedder:    embedder,
		index:       index,
		store:       store,
		retriever:   ret,
		synthesizer: synth,
		opts:        opts,
		logger:      logger,
	}
}

// CacheKey derives the cache and index key for a canonical query.
func CacheKey(canonical string) string {
	sum := md5.Sum([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// Resolve runs the full pipeline for one query. It always returns a typed
// result; infrastructure failures along the way degrade the run rather than
// abort it, so only retrieval and synthesis can fail it outright.
func (p *Pipeline) Resolve(ctx context.Context, raw string) models.PipelineResult {
	start := time.Now()
	query := models.NewQuery(raw)
	if query.Empty() {
		return models.Rejected(query, "empty query", time.Since(start))
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.RunTimeout)
	defer cancel()

	runID := uuid.NewString()
	log := p.logger.With(zap.String("run_id", runID), zap.String("query", utils.Truncate(query.Canonical, 200)))
	log.Info("resolution started")

	verdict := p.classify(ctx, log, query)
	if !verdict.Accepted {
		log.Info("query rejected", zap.String("reason", verdict.Reason))
		return models.Rejected(query, verdict.Reason, time.Since(start))
	}

	key := CacheKey(query.Canonical)
	vec := p.embed(ctx, log, query)

	if record := p.cachedAnswer(ctx, log, key, vec); record != nil {
		log.Info("cache hit", zap.String("record_id", record.ID))
		return models.Answered(query, record, true, time.Since(start))
	}

	// Retrieval always runs with the user's own query. A similar past
	// query may vouch for a cached answer, never for fresh retrieval.
	// Failure reasons are stable strings; collaborator error detail stays
	// in the logs.
	docs, err := p.retriever.Retrieve(ctx, query.Raw, p.opts.MaxSources)
	if err != nil {
		log.Error("retrieval failed", zap.Error(err))
		return models.Failed(query, models.StageRetrieval, "retrieval unavailable", time.Since(start))
	}
	if len(docs) == 0 {
		log.Warn("no usable sources found")
		return models.Failed(query, models.StageRetrieval, "no usable sources found", time.Since(start))
	}
	log.Info("sources retrieved", zap.Int("count", len(docs)))

	answer, err := p.synthesizer.Synthesize(ctx, query.Raw, docs)
	if err != nil {
		log.Error("synthesis failed", zap.Error(err))
		return models.Failed(query, models.StageSynthesis, "synthesis unavailable", time.Since(start))
	}

	record := &models.AnswerRecord{
		ID:             runID,
		QueryCanonical: query.Canonical,
		AnswerText:     answer.Text,
		Sources:        answer.Sources,
		CreatedAt:      time.Now(),
		TTL:            p.opts.TTL,
	}
	p.remember(ctx, log, key, record, vec)

	log.Info("resolution finished",
		zap.Int("sources", len(record.Sources)),
		zap.Duration("elapsed", time.Since(start)))
	return models.Answered(query, record, false, time.Since(start))
}

// classify runs the classifier. A classifier outage accepts the query: an
// occasional junk query reaching retrieval is cheaper than refusing real
// ones.
func (p *Pipeline) classify(ctx context.Context, log *zap.Logger, query models.Query) models.Classification {
	verdict, err := p.classifier.Classify(ctx, query)
	if err != nil {
		log.Warn("classifier unavailable, accepting query", zap.Error(err))
		return models.Classification{Accepted: true, Reason: "classifier unavailable"}
	}
	return verdict
}

// embed returns the query embedding, or nil when the embedder is down. A
// nil vector disables similarity matching and index writes for this run.
func (p *Pipeline) embed(ctx context.Context, log *zap.Logger, query models.Query) []float32 {
	vec, err := p.embedder.Embed(ctx, query.Canonical)
	if err != nil {
		log.Warn("embedding unavailable, skipping similarity", zap.Error(err))
		return nil
	}
	return vec
}

// cachedAnswer checks the cache under the query's own key, then under the
// key of the nearest sufficiently similar past query. Cache or index
// errors degrade to a miss.
func (p *Pipeline) cachedAnswer(ctx context.Context, log *zap.Logger, key string, vec []float32) *models.AnswerRecord {
	if record := p.lookup(ctx, log, key); record != nil {
		return record
	}

	if vec == nil {
		return nil
	}
	neighbor, err := p.index.Nearest(ctx, vec)
	if err != nil {
		log.Warn("similarity search unavailable", zap.Error(err))
		return nil
	}
	if neighbor == nil || neighbor.Score < p.opts.SimilarityThreshold {
		return nil
	}
	if neighbor.Key == key {
		return nil
	}
	log.Debug("similar past query found",
		zap.String("key", neighbor.Key),
		zap.Float64("score", neighbor.Score))
	return p.lookup(ctx, log, neighbor.Key)
}

func (p *Pipeline) lookup(ctx context.Context, log *zap.Logger, key string) *models.AnswerRecord {
	record, err := p.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			log.Warn("cache unavailable, treating as miss", zap.Error(err))
		}
		return nil
	}
	return record
}

// remember persists the fresh answer and indexes the query embedding. Both
// writes are best-effort.
func (p *Pipeline) remember(ctx context.Context, log *zap.Logger, key string, record *models.AnswerRecord, vec []float32) {
	if err := p.store.Put(ctx, key, record, p.opts.TTL); err != nil {
		log.Warn("cache write failed", zap.Error(err))
	}
	if vec != nil {
		if err := p.index.Upsert(ctx, key, vec); err != nil {
			log.Warn("index write failed", zap.Error(err))
		}
	}
}
