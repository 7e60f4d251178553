package synthesize

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
)

// extractiveSentences is how many sentences the fallback answer keeps.
const extractiveSentences = 5

var sentenceSplitRe = regexp.MustCompile(`[.!?]+\s+`)
var wordRe = regexp.MustCompile(`[a-zA-Z]{3,}`)

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "this": true,
	"with": true, "are": true, "was": true, "has": true, "have": true,
	"from": true, "not": true, "but": true, "its": true, "their": true,
	"can": true, "will": true, "also": true, "which": true, "been": true,
}

// Extractive is an offline fallback that picks the most representative
// sentences from the sources by word frequency. It produces a legible
// digest rather than a composed answer, so it only runs when no chat model
// is configured.
type Extractive struct{}

// NewExtractive creates the fallback synthesizer.
func NewExtractive() *Extractive {
	return &Extractive{}
}

// Synthesize ranks sentences across all documents and keeps the top ones in
// their original order.
func (e *Extractive) Synthesize(_ context.Context, query string, docs []models.SourceDocument) (*models.Answer, error) {
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}

	type scored struct {
		index int
		text  string
		score float64
	}

	var sentences []scored
	freq := make(map[string]int)
	for _, doc := range docs {
		for _, raw := range sentenceSplitRe.Split(doc.Text, -1) {
			raw = strings.TrimSpace(raw)
			if len(raw) < 20 {
				continue
			}
			sentences = append(sentences, scored{index: len(sentences), text: raw})
			for _, w := range wordRe.FindAllString(strings.ToLower(raw), -1) {
				if !stopwords[w] {
					freq[w]++
				}
			}
		}
	}
	if len(sentences) == 0 {
		return nil, ErrNoDocuments
	}

	// Query terms count double so the digest stays on topic.
	for _, w := range wordRe.FindAllString(strings.ToLower(query), -1) {
		if !stopwords[w] {
			freq[w] *= 2
		}
	}

	for i := range sentences {
		words := wordRe.FindAllString(strings.ToLower(sentences[i].text), -1)
		if len(words) == 0 {
			continue
		}
		total := 0
		for _, w := range words {
			total += freq[w]
		}
		sentences[i].score = float64(total) / float64(len(words))
	}

	sort.SliceStable(sentences, func(i, j int) bool {
		return sentences[i].score > sentences[j].score
	})
	top := sentences
	if len(top) > extractiveSentences {
		top = top[:extractiveSentences]
	}
	sort.Slice(top, func(i, j int) bool { return top[i].index < top[j].index })

	var b strings.Builder
	for _, s := range top {
		b.WriteString(s.text)
		if !strings.HasSuffix(s.text, ".") {
			b.WriteString(".")
		}
		b.WriteString(" ")
	}

	sources := make([]models.Source, len(docs))
	for i, doc := range docs {
		sources[i] = models.Source{Title: doc.Title, URL: doc.URL}
	}
	return &models.Answer{Text: strings.TrimSpace(b.String()), Sources: sources}, nil
}
