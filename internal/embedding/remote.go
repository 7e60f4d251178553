package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hyperjump/kotae/pkg/utils"
)

// RemoteEmbedder calls an OpenAI-compatible /embeddings endpoint. Results
// are unit-normalized and cached in an LRU keyed by text.
type RemoteEmbedder struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	cache      *EmbeddingCache
}

// RemoteConfig configures the remote embedder.
type RemoteConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	CacheSize  int
	Timeout    time.Duration
}

// embeddingRequest is the OpenAI-compatible /embeddings request format.
type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embeddingResponse is the OpenAI-compatible /embeddings response format.
type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewRemoteEmbedder creates a remote embedder. APIKey, Model, and Dimensions
// are required.
func NewRemoteEmbedder(cfg RemoteConfig) (*RemoteEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding: API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedding: model is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("embedding: dimensions must be positive")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 10000
	}
	return &RemoteEmbedder{
		client:     &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		cache:      NewEmbeddingCache(cfg.CacheSize),
	}, nil
}

// Embed returns the embedding for text, from cache when available.
func (e *RemoteEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if emb, ok := e.cache.Get(text); ok {
		return emb, nil
	}

	body, err := json.Marshal(embeddingRequest{Model: e.model, Input: []string{text}})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var out embeddingResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != nil {
			return nil, fmt.Errorf("embedding API error (%d): %s", resp.StatusCode, out.Error.Message)
		}
		return nil, fmt.Errorf("embedding API returned status %d", resp.StatusCode)
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embedding API returned no data")
	}

	emb := out.Data[0].Embedding
	if len(emb) != e.dimensions {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, expected %d", len(emb), e.dimensions)
	}
	utils.NormalizeL2(emb)
	e.cache.Set(text, emb)
	return emb, nil
}

// Dimensions returns the embedding dimension.
func (e *RemoteEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for RemoteEmbedder.
func (e *RemoteEmbedder) Close() error {
	return nil
}
