package retriever

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/kotae/internal/models"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// maxPageBytes bounds how much of a page body is read.
const maxPageBytes = 2 << 20

// Fetcher downloads candidate pages concurrently and extracts their text.
type Fetcher struct {
	client      *http.Client
	userAgent   string
	concurrency int
	logger      *zap.Logger
}

// FetcherConfig holds fetcher settings.
type FetcherConfig struct {
	Timeout     time.Duration
	Concurrency int
	UserAgent   string
}

// NewFetcher creates a page fetcher.
func NewFetcher(cfg FetcherConfig, logger *zap.Logger) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client:      &http.Client{Timeout: cfg.Timeout},
		userAgent:   cfg.UserAgent,
		concurrency: cfg.Concurrency,
		logger:      logger,
	}
}

// FetchAll downloads candidates concurrently and returns up to max usable
// documents in candidate order. Failed or thin pages are dropped without
// counting against max.
func (f *Fetcher) FetchAll(ctx context.Context, candidates []Candidate, max int) []models.SourceDocument {
	if max <= 0 || len(candidates) == 0 {
		return nil
	}

	results := make([]*models.SourceDocument, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, cand := range candidates {
		i, cand := i, cand
		g.Go(func() error {
			doc, err := f.fetchOne(gctx, cand)
			if err != nil {
				f.logger.Debug("page skipped",
					zap.String("url", cand.URL),
					zap.Error(err))
				return nil
			}
			results[i] = doc
			return nil
		})
	}
	// Workers never return errors; Wait only observes context cancellation.
	_ = g.Wait()

	docs := make([]models.SourceDocument, 0, max)
	for _, doc := range results {
		if doc == nil {
			continue
		}
		docs = append(docs, *doc)
		if len(docs) >= max {
			break
		}
	}
	return docs
}

func (f *Fetcher) fetchOne(ctx context.Context, cand Candidate) (*models.SourceDocument, error) {
	var page string
	err := retry.Do(
		func() error {
			body, err := f.get(ctx, cand.URL)
			if err != nil {
				return err
			}
			page = body
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}

	text := ExtractText(page)
	if !Usable(text) {
		return nil, fmt.Errorf("insufficient content (%d chars)", len(text))
	}

	title := cand.Title
	if title == "" {
		title = ExtractTitle(page)
	}
	if title == "" {
		title = cand.URL
	}

	return &models.SourceDocument{
		Title: title,
		URL:   cand.URL,
		Text:  text,
	}, nil
}

func (f *Fetcher) get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "html") && !strings.Contains(ct, "text") {
		return "", fmt.Errorf("unsupported content type %q", ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", err
	}
	return string(body), nil
}
