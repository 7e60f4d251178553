package models

import "time"

// Source identifies a web page cited by an answer.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// SourceDocument is a candidate web document produced by the retriever.
// It lives for the duration of one pipeline run; only title and URL survive
// into the final result for attribution.
type SourceDocument struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Text  string `json:"-"`
	Rank  int    `json:"rank"`
}

// Answer is the synthesizer output: prose text plus the sources actually cited,
// in citation order.
type Answer struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
}

// AnswerRecord is the unit of caching: a synthesized answer keyed by the
// canonical query that produced it. Never mutated after creation; a
// re-resolution writes a new record over the old one.
type AnswerRecord struct {
	ID             string        `json:"id"`
	QueryCanonical string        `json:"query_canonical"`
	AnswerText     string        `json:"answer_text"`
	Sources        []Source      `json:"sources"`
	CreatedAt      time.Time     `json:"created_at"`
	TTL            time.Duration `json:"ttl"`
}

// Expired reports whether the record's TTL has elapsed at the given time.
// A zero or negative TTL means the record is already expired.
func (r *AnswerRecord) Expired(now time.Time) bool {
	return !now.Before(r.CreatedAt.Add(r.TTL))
}
