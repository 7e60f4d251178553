// Package models defines core data structures for queries, answers, and pipeline results.
package models

import "strings"

// Query is a raw user query together with its canonical form.
// Immutable once created; the canonical form is the cache and index key.
type Query struct {
	Raw       string `json:"raw"`
	Canonical string `json:"canonical"`
}

// NewQuery builds a Query from a raw input string.
func NewQuery(raw string) Query {
	return Query{Raw: raw, Canonical: Canonicalize(raw)}
}

// Empty reports whether the canonical form is empty (whitespace-only input).
func (q Query) Empty() bool {
	return q.Canonical == ""
}

// Canonicalize returns the normalized form of a query: trimmed, case-folded,
// with internal whitespace runs collapsed to single spaces.
func Canonicalize(raw string) string {
	return strings.ToLower(strings.Join(strings.Fields(raw), " "))
}

// Classification is the outcome of query classification. Transient; produced
// and consumed within a single pipeline run.
type Classification struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}
