package vector

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
)

// MemoryIndex is an in-memory index using brute-force cosine search over
// normalized vectors. Entries are never deleted; growth is bounded only by
// the number of distinct queries answered (accepted limitation — expiry
// lives in the answer cache, and an orphaned embedding whose cache entry
// expired is a valid state handled by the pipeline's cache fallthrough).
type MemoryIndex struct {
	dimensions int
	keys       []string
	vectors    [][]float32
	byKey      map[string]int
	mu         sync.RWMutex
}

// NewMemoryIndex creates an in-memory index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{
		dimensions: dimensions,
		keys:       make([]string, 0),
		vectors:    make([][]float32, 0),
		byKey:      make(map[string]int),
	}, nil
}

// Nearest returns the best match by cosine similarity on the normalized
// [0,1] scale. Returns nil when the index is empty.
func (m *MemoryIndex) Nearest(ctx context.Context, query []float32) (*Neighbor, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.keys) == 0 {
		return nil, nil
	}
	bestIdx := -1
	bestScore := -1.0
	for i, vec := range m.vectors {
		score := CosineSimilarity(query, vec)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	return &Neighbor{
		Key:   m.keys[bestIdx],
		Score: bestScore,
	}, nil
}

// Upsert inserts the vector for key, overwriting any existing vector.
func (m *MemoryIndex) Upsert(ctx context.Context, key string, vec []float32) error {
	if len(vec) != m.dimensions {
		return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vec), m.dimensions)
	}
	stored := make([]float32, m.dimensions)
	copy(stored, vec)
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.byKey[key]; ok {
		m.vectors[i] = stored
		return nil
	}
	m.byKey[key] = len(m.keys)
	m.keys = append(m.keys, key)
	m.vectors = append(m.vectors, stored)
	return nil
}

// Save persists the index to path. Directory is created if needed. Format:
// dimension (4), n (4), then per entry: keyLen (4), key bytes, vector
// (dimension*4 bytes).
func (m *MemoryIndex) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, uint32(m.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(m.keys))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for i, key := range m.keys {
		keyBytes := []byte(key)
		if err := binary.Write(f, binary.LittleEndian, uint32(len(keyBytes))); err != nil {
			return fmt.Errorf("write key len: %w", err)
		}
		if _, err := f.Write(keyBytes); err != nil {
			return fmt.Errorf("write key: %w", err)
		}
		if _, err := f.Write(float32SliceToBytes(m.vectors[i])); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// Load reads the index from path and replaces the in-memory contents.
// Dimensions must match. If the file does not exist, no error is returned
// and the index is unchanged.
func (m *MemoryIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	var dim, n uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != m.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", dim, m.dimensions)
	}
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = make([]string, 0, n)
	m.vectors = make([][]float32, 0, n)
	m.byKey = make(map[string]int, n)
	buf := make([]byte, m.dimensions*4)
	for i := uint32(0); i < n; i++ {
		var keyLen uint32
		if err := binary.Read(f, binary.LittleEndian, &keyLen); err != nil {
			return fmt.Errorf("read key len: %w", err)
		}
		keyBytes := make([]byte, keyLen)
		if _, err := io.ReadFull(f, keyBytes); err != nil {
			return fmt.Errorf("read key: %w", err)
		}
		if _, err := io.ReadFull(f, buf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		m.byKey[string(keyBytes)] = len(m.keys)
		m.keys = append(m.keys, string(keyBytes))
		m.vectors = append(m.vectors, bytesToFloat32Slice(buf))
	}
	return nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}

// Size returns the number of entries in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.keys)
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}
