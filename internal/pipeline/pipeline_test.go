package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/kotae/internal/cache"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retriever"
	"github.com/hyperjump/kotae/internal/vector"
)

type fakeClassifier struct {
	verdict models.Classification
	err     error
	calls   int
}

func (f *fakeClassifier) Classify(_ context.Context, _ models.Query) (models.Classification, error) {
	f.calls++
	return f.verdict, f.err
}

type fakeEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	return f.vec, f.err
}

func (f *fakeEmbedder) Dimensions() int { return len(f.vec) }
func (f *fakeEmbedder) Close() error    { return nil }

type fakeIndex struct {
	neighbor     *vector.Neighbor
	nearestErr   error
	upsertErr    error
	nearestCalls int
	upsertCalls  int
	upsertedKey  string
}

func (f *fakeIndex) Nearest(_ context.Context, _ []float32) (*vector.Neighbor, error) {
	f.nearestCalls++
	return f.neighbor, f.nearestErr
}

func (f *fakeIndex) Upsert(_ context.Context, key string, _ []float32) error {
	f.upsertCalls++
	f.upsertedKey = key
	return f.upsertErr
}

func (f *fakeIndex) Save(string) error { return nil }
func (f *fakeIndex) Load(string) error { return nil }
func (f *fakeIndex) Size() int         { return 0 }
func (f *fakeIndex) Close() error      { return nil }

type fakeStore struct {
	records  map[string]*models.AnswerRecord
	getErr   error
	putErr   error
	getCalls int
	putCalls int
	putKey   string
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]*models.AnswerRecord{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (*models.AnswerRecord, error) {
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	if record, ok := f.records[key]; ok {
		return record, nil
	}
	return nil, cache.ErrNotFound
}

func (f *fakeStore) Put(_ context.Context, key string, record *models.AnswerRecord, _ time.Duration) error {
	f.putCalls++
	f.putKey = key
	if f.putErr != nil {
		return f.putErr
	}
	f.records[key] = record
	return nil
}

func (f *fakeStore) Count(_ context.Context) (int64, error) { return int64(len(f.records)), nil }
func (f *fakeStore) Ping(_ context.Context) error           { return nil }
func (f *fakeStore) Close() error                           { return nil }

type fakeRetriever struct {
	docs       []models.SourceDocument
	err        error
	healthyErr error
	calls      int
	lastQuery  string
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string, _ int) ([]models.SourceDocument, error) {
	f.calls++
	f.lastQuery = query
	return f.docs, f.err
}

func (f *fakeRetriever) Healthy(_ context.Context) error { return f.healthyErr }

type fakeSynthesizer struct {
	answer *models.Answer
	err    error
	calls  int
}

func (f *fakeSynthesizer) Synthesize(_ context.Context, _ string, _ []models.SourceDocument) (*models.Answer, error) {
	f.calls++
	return f.answer, f.err
}

type harness struct {
	classifier  *fakeClassifier
	embedder    *fakeEmbedder
	index       *fakeIndex
	store       *fakeStore
	retriever   *fakeRetriever
	synthesizer *fakeSynthesizer
	pipeline    *Pipeline
}

func newHarness() *harness {
	h := &harness{
		classifier:  &fakeClassifier{verdict: models.Classification{Accepted: true, Reason: "ok"}},
		embedder:    &fakeEmbedder{vec: []float32{1, 0, 0}},
		index:       &fakeIndex{},
		store:       newFakeStore(),
		retriever:   &fakeRetriever{docs: []models.SourceDocument{{Title: "t", URL: "https://example.com", Text: "body", Rank: 1}}},
		synthesizer: &fakeSynthesizer{answer: &models.Answer{Text: "an answer", Sources: []models.Source{{Title: "t", URL: "https://example.com"}}}},
	}
	h.pipeline = New(h.classifier, h.embedder, h.index, h.store, h.retriever, h.synthesizer, Options{}, nil)
	return h
}

var _ retriever.Retriever = (*fakeRetriever)(nil)

func TestResolveEmptyQuery(t *testing.T) {
	h := newHarness()
	for _, raw := range []string{"", "   ", "\t\n"} {
		result := h.pipeline.Resolve(context.Background(), raw)
		if result.Outcome != models.OutcomeRejected {
			t.Errorf("Resolve(%q): expected rejection, got %s", raw, result.Outcome)
		}
	}
	if h.classifier.calls != 0 || h.embedder.calls != 0 || h.store.getCalls != 0 || h.retriever.calls != 0 {
		t.Errorf("empty queries must not touch collaborators: classifier=%d embedder=%d cache=%d retriever=%d",
			h.classifier.calls, h.embedder.calls, h.store.getCalls, h.retriever.calls)
	}
}

func TestResolveClassifierRejects(t *testing.T) {
	h := newHarness()
	h.classifier.verdict = models.Classification{Accepted: false, Reason: "task list"}

	result := h.pipeline.Resolve(context.Background(), "walk my pet, buy milk")
	if result.Outcome != models.OutcomeRejected {
		t.Fatalf("expected rejection, got %s", result.Outcome)
	}
	if result.Reason != "task list" {
		t.Errorf("expected classifier reason, got %q", result.Reason)
	}
	if h.retriever.calls != 0 || h.synthesizer.calls != 0 {
		t.Error("rejected query must not reach retrieval or synthesis")
	}
}

func TestResolveClassifierOutageAccepts(t *testing.T) {
	h := newHarness()
	h.classifier.err = errors.New("model down")

	result := h.pipeline.Resolve(context.Background(), "what is Go")
	if result.Outcome != models.OutcomeAnswered {
		t.Fatalf("expected answered despite classifier outage, got %s: %s", result.Outcome, result.Reason)
	}
	if h.retriever.calls != 1 {
		t.Errorf("expected retrieval to run, got %d calls", h.retriever.calls)
	}
}

func TestResolveExactCacheHit(t *testing.T) {
	h := newHarness()
	key := CacheKey("what is go")
	cached := &models.AnswerRecord{ID: "old", QueryCanonical: "what is go", AnswerText: "cached", CreatedAt: time.Now(), TTL: time.Hour}
	h.store.records[key] = cached

	result := h.pipeline.Resolve(context.Background(), "  What   is GO ")
	if result.Outcome != models.OutcomeAnswered || !result.CacheHit {
		t.Fatalf("expected cache hit, got %s (hit=%v)", result.Outcome, result.CacheHit)
	}
	if result.Record.ID != "old" {
		t.Errorf("expected cached record, got %q", result.Record.ID)
	}
	if h.retriever.calls != 0 || h.synthesizer.calls != 0 || h.store.putCalls != 0 {
		t.Error("cache hit must not retrieve, synthesize, or re-store")
	}
}

func TestResolveSimilarityHitServesNeighborAnswer(t *testing.T) {
	h := newHarness()
	neighborKey := CacheKey("what is golang")
	h.store.records[neighborKey] = &models.AnswerRecord{ID: "neighbor", AnswerText: "cached", CreatedAt: time.Now(), TTL: time.Hour}
	h.index.neighbor = &vector.Neighbor{Key: neighborKey, Score: 0.93}

	result := h.pipeline.Resolve(context.Background(), "what is go")
	if result.Outcome != models.OutcomeAnswered || !result.CacheHit {
		t.Fatalf("expected similarity-backed cache hit, got %s (hit=%v)", result.Outcome, result.CacheHit)
	}
	if result.Record.ID != "neighbor" {
		t.Errorf("expected neighbor's record, got %q", result.Record.ID)
	}
	if h.retriever.calls != 0 {
		t.Error("similarity hit with cached answer must not retrieve")
	}
}

func TestResolveSimilarityHitNeverRedirectsRetrieval(t *testing.T) {
	h := newHarness()
	// Similar neighbor exists but its cached answer is gone: the run must
	// fall through to retrieval with the user's own query.
	h.index.neighbor = &vector.Neighbor{Key: CacheKey("what is golang"), Score: 0.95}

	result := h.pipeline.Resolve(context.Background(), "what is go")
	if result.Outcome != models.OutcomeAnswered || result.CacheHit {
		t.Fatalf("expected fresh answer, got %s (hit=%v)", result.Outcome, result.CacheHit)
	}
	if h.retriever.calls != 1 {
		t.Fatalf("expected 1 retrieval, got %d", h.retriever.calls)
	}
	if h.retriever.lastQuery != "what is go" {
		t.Errorf("retrieval must use the original query, got %q", h.retriever.lastQuery)
	}
}

func TestResolveBelowThresholdIgnoresNeighbor(t *testing.T) {
	h := newHarness()
	neighborKey := CacheKey("unrelated question")
	h.store.records[neighborKey] = &models.AnswerRecord{ID: "neighbor", CreatedAt: time.Now(), TTL: time.Hour}
	h.index.neighbor = &vector.Neighbor{Key: neighborKey, Score: 0.5}

	result := h.pipeline.Resolve(context.Background(), "what is go")
	if result.CacheHit {
		t.Error("below-threshold neighbor must not authorize a cache hit")
	}
	if result.Outcome != models.OutcomeAnswered {
		t.Fatalf("expected fresh answer, got %s", result.Outcome)
	}
}

func TestResolveFreshRunStoresAndIndexes(t *testing.T) {
	h := newHarness()
	result := h.pipeline.Resolve(context.Background(), "what is go")
	if result.Outcome != models.OutcomeAnswered || result.CacheHit {
		t.Fatalf("expected fresh answer, got %s (hit=%v)", result.Outcome, result.CacheHit)
	}

	key := CacheKey("what is go")
	if h.store.putCalls != 1 || h.store.putKey != key {
		t.Errorf("expected one cache write under %q, got %d writes under %q", key, h.store.putCalls, h.store.putKey)
	}
	if h.index.upsertCalls != 1 || h.index.upsertedKey != key {
		t.Errorf("expected one index upsert under %q, got %d under %q", key, h.index.upsertCalls, h.index.upsertedKey)
	}
	if result.Record.QueryCanonical != "what is go" {
		t.Errorf("unexpected canonical on record: %q", result.Record.QueryCanonical)
	}
	if result.Record.TTL == 0 {
		t.Error("record missing TTL")
	}
}

func TestResolveRepeatQueryHitsCache(t *testing.T) {
	h := newHarness()

	first := h.pipeline.Resolve(context.Background(), "what is go")
	if first.Outcome != models.OutcomeAnswered || first.CacheHit {
		t.Fatalf("expected fresh answer on first run, got %s (hit=%v)", first.Outcome, first.CacheHit)
	}

	second := h.pipeline.Resolve(context.Background(), "What is Go")
	if second.Outcome != models.OutcomeAnswered || !second.CacheHit {
		t.Fatalf("expected cache hit on repeat, got %s (hit=%v)", second.Outcome, second.CacheHit)
	}
	if second.Record.ID != first.Record.ID {
		t.Errorf("repeat must serve the stored record: %q vs %q", second.Record.ID, first.Record.ID)
	}
	if h.retriever.calls != 1 {
		t.Errorf("expected exactly 1 retrieval across both runs, got %d", h.retriever.calls)
	}
}

func TestResolveRetrievalFailure(t *testing.T) {
	h := newHarness()
	h.retriever.err = errors.New("all backends down")

	result := h.pipeline.Resolve(context.Background(), "what is go")
	if result.Outcome != models.OutcomeFailed || result.Stage != models.StageRetrieval {
		t.Fatalf("expected retrieval failure, got %s/%s", result.Outcome, result.Stage)
	}
	if result.Reason != "retrieval unavailable" {
		t.Errorf("reason must be a stable string, got %q", result.Reason)
	}
	if h.synthesizer.calls != 0 {
		t.Error("synthesis must not run after retrieval failure")
	}
}

func TestResolveNoUsableSources(t *testing.T) {
	h := newHarness()
	h.retriever.docs = nil

	result := h.pipeline.Resolve(context.Background(), "what is go")
	if result.Outcome != models.OutcomeFailed || result.Stage != models.StageRetrieval {
		t.Fatalf("expected retrieval-stage failure, got %s/%s", result.Outcome, result.Stage)
	}
	if h.store.putCalls != 0 || h.index.upsertCalls != 0 {
		t.Error("failed runs must not be cached or indexed")
	}
}

func TestResolveSynthesisFailure(t *testing.T) {
	h := newHarness()
	h.synthesizer.err = errors.New("chat API error (502): upstream exploded")

	result := h.pipeline.Resolve(context.Background(), "what is go")
	if result.Outcome != models.OutcomeFailed || result.Stage != models.StageSynthesis {
		t.Fatalf("expected synthesis failure, got %s/%s", result.Outcome, result.Stage)
	}
	if result.Reason != "synthesis unavailable" {
		t.Errorf("reason must be a stable string, got %q", result.Reason)
	}
	if strings.Contains(result.Reason, "upstream exploded") {
		t.Error("collaborator error text leaked into the result reason")
	}
	if h.store.putCalls != 0 {
		t.Error("failed synthesis must not be cached")
	}
}

func TestResolveCacheOutageDegradesToMiss(t *testing.T) {
	h := newHarness()
	h.store.getErr = errors.New("cache down")

	result := h.pipeline.Resolve(context.Background(), "what is go")
	if result.Outcome != models.OutcomeAnswered || result.CacheHit {
		t.Fatalf("expected fresh answer despite cache outage, got %s (hit=%v)", result.Outcome, result.CacheHit)
	}
	if h.retriever.calls != 1 {
		t.Errorf("expected retrieval to run, got %d calls", h.retriever.calls)
	}
}

func TestResolveEmbedderOutageSkipsSimilarity(t *testing.T) {
	h := newHarness()
	h.embedder.err = errors.New("embedder down")

	result := h.pipeline.Resolve(context.Background(), "what is go")
	if result.Outcome != models.OutcomeAnswered {
		t.Fatalf("expected answer despite embedder outage, got %s", result.Outcome)
	}
	if h.index.nearestCalls != 0 || h.index.upsertCalls != 0 {
		t.Error("no embedding means no index reads or writes")
	}
	if h.store.putCalls != 1 {
		t.Errorf("answer should still be cached, got %d writes", h.store.putCalls)
	}
}

func TestResolveWriteFailuresDoNotFailRun(t *testing.T) {
	h := newHarness()
	h.store.putErr = errors.New("disk full")
	h.index.upsertErr = errors.New("index corrupt")

	result := h.pipeline.Resolve(context.Background(), "what is go")
	if result.Outcome != models.OutcomeAnswered {
		t.Fatalf("expected answer despite write failures, got %s: %s", result.Outcome, result.Reason)
	}
}

func TestStatus(t *testing.T) {
	h := newHarness()
	h.store.records["k"] = &models.AnswerRecord{}

	st := h.pipeline.Status(context.Background())
	if !st.CacheReachable {
		t.Error("expected cache reachable")
	}
	if !st.ClassifierReachable || !st.RetrieverReachable || !st.IndexReachable {
		t.Errorf("expected all collaborators reachable, got %+v", st)
	}
	if st.CachedAnswers != 1 {
		t.Errorf("expected 1 cached answer, got %d", st.CachedAnswers)
	}
	if st.SimilarityThreshold != 0.8 || st.MaxSources != 5 {
		t.Errorf("unexpected defaults: %+v", st)
	}
}

func TestStatusRetrieverDown(t *testing.T) {
	h := newHarness()
	h.retriever.healthyErr = errors.New("no usable backends")

	st := h.pipeline.Status(context.Background())
	if st.RetrieverReachable {
		t.Error("expected retriever unreachable when its health check fails")
	}
	if !st.ClassifierReachable || !st.CacheReachable {
		t.Errorf("other collaborators should stay reachable, got %+v", st)
	}
}
