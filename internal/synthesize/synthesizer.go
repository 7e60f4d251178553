// Package synthesize turns fetched source documents into a cited answer.
package synthesize

import (
	"context"
	"errors"

	"github.com/hyperjump/kotae/internal/models"
)

// ErrNoDocuments is returned when synthesis is attempted with no sources.
var ErrNoDocuments = errors.New("synthesize: no source documents")

// Synthesizer produces an answer with citations from source documents.
type Synthesizer interface {
	Synthesize(ctx context.Context, query string, docs []models.SourceDocument) (*models.Answer, error)
}
