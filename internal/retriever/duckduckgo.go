package retriever

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/hyperjump/kotae/pkg/utils"
)

const duckDuckGoEndpoint = "https://html.duckduckgo.com/html/"

// result__a anchors carry the outbound link and the result title.
var ddgResultRe = regexp.MustCompile(`(?is)<a[^>]+class="[^"]*result__a[^"]*"[^>]+href="([^"]+)"[^>]*>(.*?)</a>`)

// DuckDuckGo scrapes the HTML (no-JS) DuckDuckGo endpoint. It needs no API
// key, which makes it the default backend.
type DuckDuckGo struct {
	client    *http.Client
	endpoint  string
	userAgent string
}

// NewDuckDuckGo creates the scraping backend.
func NewDuckDuckGo(timeout time.Duration, userAgent string) *DuckDuckGo {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &DuckDuckGo{
		client:    &http.Client{Timeout: timeout},
		endpoint:  duckDuckGoEndpoint,
		userAgent: userAgent,
	}
}

func (d *DuckDuckGo) Name() string { return "duckduckgo" }

// Search fetches the results page and extracts result links.
func (d *DuckDuckGo) Search(ctx context.Context, query string, limit int) ([]Candidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.endpoint+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read results page: %w", err)
	}

	return parseDuckDuckGoResults(string(body), limit), nil
}

func parseDuckDuckGoResults(page string, limit int) []Candidate {
	matches := ddgResultRe.FindAllStringSubmatch(page, -1)
	candidates := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		target := resolveDuckDuckGoURL(html.UnescapeString(m[1]))
		if target == "" {
			continue
		}
		title := utils.CollapseWhitespace(html.UnescapeString(tagRe.ReplaceAllString(m[2], " ")))
		candidates = append(candidates, Candidate{Title: title, URL: target})
		if len(candidates) >= limit {
			break
		}
	}
	return candidates
}

// resolveDuckDuckGoURL unwraps the /l/?uddg= redirect DuckDuckGo wraps
// outbound links in.
func resolveDuckDuckGoURL(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.Contains(u.Path, "/l/") {
		if target := u.Query().Get("uddg"); target != "" {
			href = target
		}
	}
	if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
		return ""
	}
	return href
}
