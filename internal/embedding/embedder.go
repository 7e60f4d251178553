// Package embedding provides text embedding for query similarity, via a
// remote OpenAI-compatible API or a deterministic mock.
package embedding

import "context"

// Embedder produces unit-normalized vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Close() error
}
