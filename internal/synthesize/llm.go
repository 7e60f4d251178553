package synthesize

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
)

const synthesizeSystemPrompt = `You are a research assistant. Answer the user's question using ONLY the
numbered sources provided. Cite every claim with the source number in square
brackets, e.g. [1] or [2][3]. If the sources do not contain the answer, say so
plainly. Do not invent sources or citations.`

// ChatCompleter is the slice of the chat client the synthesizer needs.
type ChatCompleter interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

var citationRe = regexp.MustCompile(`\[(\d+)\]`)

// LLMSynthesizer asks a chat model to compose a cited answer from the
// source documents.
type LLMSynthesizer struct {
	client ChatCompleter
	logger *zap.Logger
}

// NewLLMSynthesizer creates a model-backed synthesizer.
func NewLLMSynthesizer(client ChatCompleter, logger *zap.Logger) *LLMSynthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMSynthesizer{client: client, logger: logger}
}

// Synthesize builds the prompt, calls the model, and attaches the sources
// the answer actually cites.
func (s *LLMSynthesizer) Synthesize(ctx context.Context, query string, docs []models.SourceDocument) (*models.Answer, error) {
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}

	user := fmt.Sprintf("Question: %s\n\nSources:\n\n%s", query, buildSourceBlocks(docs))
	text, err := s.client.Complete(ctx, synthesizeSystemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("synthesis request: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("synthesis returned empty answer")
	}

	sources := citedSources(text, docs)
	s.logger.Debug("answer synthesized",
		zap.Int("documents", len(docs)),
		zap.Int("cited", len(sources)))

	return &models.Answer{Text: text, Sources: sources}, nil
}

// citedSources maps [n] citations in the answer back to documents. When the
// answer carries no recognizable citations, all documents are attributed in
// rank order rather than returning an answer with no provenance.
func citedSources(text string, docs []models.SourceDocument) []models.Source {
	cited := make(map[int]bool)
	for _, m := range citationRe.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > len(docs) {
			continue
		}
		cited[n] = true
	}

	if len(cited) == 0 {
		sources := make([]models.Source, len(docs))
		for i, doc := range docs {
			sources[i] = models.Source{Title: doc.Title, URL: doc.URL}
		}
		return sources
	}

	nums := make([]int, 0, len(cited))
	for n := range cited {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	sources := make([]models.Source, 0, len(nums))
	for _, n := range nums {
		doc := docs[n-1]
		sources = append(sources, models.Source{Title: doc.Title, URL: doc.URL})
	}
	return sources
}
