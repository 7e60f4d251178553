package vector

import (
	"context"
	"path/filepath"
	"testing"
)

func TestMemoryIndex_NearestEmpty(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	n, err := idx.Nearest(context.Background(), []float32{1, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if n != nil {
		t.Errorf("empty index should return nil neighbor, got %+v", n)
	}
}

func TestMemoryIndex_UpsertNearest(t *testing.T) {
	idx, _ := NewMemoryIndex(3)
	ctx := context.Background()

	_ = idx.Upsert(ctx, "a", []float32{1, 0, 0})
	_ = idx.Upsert(ctx, "b", []float32{0, 1, 0})
	if idx.Size() != 2 {
		t.Errorf("Size = %d", idx.Size())
	}

	n, err := idx.Nearest(ctx, []float32{0.9, 0.1, 0})
	if err != nil {
		t.Fatal(err)
	}
	if n == nil || n.Key != "a" {
		t.Fatalf("nearest = %+v, want key a", n)
	}
	if n.Score <= 0 || n.Score > 1 {
		t.Errorf("score out of range: %f", n.Score)
	}
}

func TestMemoryIndex_UpsertOverwrites(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()

	_ = idx.Upsert(ctx, "q", []float32{1, 0})
	_ = idx.Upsert(ctx, "q", []float32{0, 1})
	if idx.Size() != 1 {
		t.Fatalf("re-upsert should not grow the index, size = %d", idx.Size())
	}
	n, _ := idx.Nearest(ctx, []float32{0, 1})
	if n == nil || n.Key != "q" || n.Score < 0.99 {
		t.Errorf("overwritten vector not in effect: %+v", n)
	}
}

func TestMemoryIndex_DimensionMismatch(t *testing.T) {
	idx, _ := NewMemoryIndex(3)
	ctx := context.Background()
	if err := idx.Upsert(ctx, "x", []float32{1, 0}); err == nil {
		t.Error("expected dimension mismatch error on upsert")
	}
	if _, err := idx.Nearest(ctx, []float32{1}); err == nil {
		t.Error("expected dimension mismatch error on nearest")
	}
}

func TestMemoryIndex_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.vec")
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Upsert(ctx, "first query", []float32{1, 0})
	_ = idx.Upsert(ctx, "second query", []float32{0, 1})
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, _ := NewMemoryIndex(2)
	if err := loaded.Load(path); err != nil {
		t.Fatal(err)
	}
	if loaded.Size() != 2 {
		t.Fatalf("loaded size = %d", loaded.Size())
	}
	n, _ := loaded.Nearest(ctx, []float32{0, 1})
	if n == nil || n.Key != "second query" {
		t.Errorf("nearest after load = %+v", n)
	}

	// Loading a missing file is a no-op.
	fresh, _ := NewMemoryIndex(2)
	if err := fresh.Load(filepath.Join(t.TempDir(), "missing.vec")); err != nil {
		t.Errorf("missing file load = %v", err)
	}
}

func TestCosineSimilarity(t *testing.T) {
	if s := CosineSimilarity([]float32{1, 0}, []float32{1, 0}); s < 0.99 {
		t.Errorf("identical vectors similarity = %f", s)
	}
	if s := CosineSimilarity([]float32{1, 0}, []float32{0, 1}); s != 0 {
		t.Errorf("orthogonal vectors similarity = %f", s)
	}
	if s := CosineSimilarity([]float32{1, 0}, []float32{1}); s != 0 {
		t.Errorf("length mismatch similarity = %f", s)
	}
}
