package retriever

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultBingEndpoint = "https://api.bing.microsoft.com/v7.0/search"

// Bing queries the Bing Web Search v7 API. It requires a subscription key
// and is typically configured as a fallback behind DuckDuckGo.
type Bing struct {
	client   *http.Client
	endpoint string
	apiKey   string
}

type bingResponse struct {
	WebPages struct {
		Value []struct {
			Name    string `json:"name"`
			URL     string `json:"url"`
			Snippet string `json:"snippet"`
		} `json:"value"`
	} `json:"webPages"`
}

// NewBing creates the Bing backend.
func NewBing(endpoint, apiKey string, timeout time.Duration) *Bing {
	if endpoint == "" {
		endpoint = defaultBingEndpoint
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Bing{
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
		apiKey:   apiKey,
	}
}

func (b *Bing) Name() string { return "bing" }

// Healthy reports whether the backend can be used at all: a Bing backend
// without a subscription key will fail every search.
func (b *Bing) Healthy(_ context.Context) error {
	if b.apiKey == "" {
		return fmt.Errorf("bing API key not configured")
	}
	return nil
}

// Search runs a web search and maps the webPages results to candidates.
func (b *Bing) Search(ctx context.Context, query string, limit int) ([]Candidate, error) {
	if b.apiKey == "" {
		return nil, fmt.Errorf("bing API key not configured")
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bing returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read bing response: %w", err)
	}

	var out bingResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode bing response: %w", err)
	}

	candidates := make([]Candidate, 0, len(out.WebPages.Value))
	for _, page := range out.WebPages.Value {
		if page.URL == "" {
			continue
		}
		candidates = append(candidates, Candidate{
			Title:   page.Name,
			URL:     page.URL,
			Snippet: page.Snippet,
		})
		if len(candidates) >= limit {
			break
		}
	}
	return candidates, nil
}
