package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/cache"
	"github.com/hyperjump/kotae/internal/classify"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/pipeline"
	"github.com/hyperjump/kotae/internal/vector"
)

type stubRetriever struct {
	docs []models.SourceDocument
}

func (s *stubRetriever) Retrieve(_ context.Context, _ string, _ int) ([]models.SourceDocument, error) {
	return s.docs, nil
}

type stubSynthesizer struct{}

func (s *stubSynthesizer) Synthesize(_ context.Context, _ string, docs []models.SourceDocument) (*models.Answer, error) {
	sources := make([]models.Source, len(docs))
	for i, d := range docs {
		sources[i] = models.Source{Title: d.Title, URL: d.URL}
	}
	return &models.Answer{Text: "stub answer", Sources: sources}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	index, err := vector.NewMemoryIndex(8)
	if err != nil {
		t.Fatalf("create index: %v", err)
	}
	p := pipeline.New(
		classify.NewRuleClassifier(),
		embedding.NewMockEmbedder(8),
		index,
		cache.NewMemoryStore(),
		&stubRetriever{docs: []models.SourceDocument{{Title: "doc", URL: "https://example.com", Text: "text", Rank: 1}}},
		&stubSynthesizer{},
		pipeline.Options{},
		zap.NewNop(),
	)
	return NewServer(p, &config.ServerConfig{Host: "127.0.0.1", Port: 0}, time.Minute, zap.NewNop())
}

func TestHandleQueryAnswered(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(`{"query":"what is go?"}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result models.PipelineResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Outcome != models.OutcomeAnswered {
		t.Errorf("expected answered, got %s", result.Outcome)
	}
	if result.Record == nil || result.Record.AnswerText != "stub answer" {
		t.Errorf("unexpected record: %+v", result.Record)
	}
}

func TestHandleQueryRejected(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(`{"query":"walk my pet, buy milk, pay rent"}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleQueryBadRequest(t *testing.T) {
	srv := newTestServer(t)

	for _, body := range []string{"not json", `{"query":""}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(body))
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestHandleStatus(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var st pipeline.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !st.CacheReachable {
		t.Error("expected reachable cache")
	}
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
