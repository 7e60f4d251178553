// Package vector provides the query similarity index: nearest-neighbor
// lookup and upsert over embeddings of previously answered queries.
package vector

import "context"

// Index stores one embedding per canonical query key and answers
// nearest-neighbor lookups on a normalized [0,1] similarity scale.
type Index interface {
	// Nearest returns the single best match for the query vector, or nil
	// when the index is empty.
	Nearest(ctx context.Context, query []float32) (*Neighbor, error)
	// Upsert inserts or overwrites the vector for key. Idempotent per key.
	Upsert(ctx context.Context, key string, vec []float32) error
	Save(path string) error
	Load(path string) error
	Size() int
	Close() error
}

// Neighbor is a nearest-neighbor hit: the stored key and its similarity
// score in the same normalized scale used for threshold comparison.
type Neighbor struct {
	Key   string
	Score float64
}
