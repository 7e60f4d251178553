package retriever

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParseDuckDuckGoResults(t *testing.T) {
	page := `<div class="result">
<a rel="nofollow" class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fgo&amp;rut=abc">Go <b>language</b></a>
</div>
<div class="result">
<a class="result__a" href="https://example.org/direct">Direct result</a>
</div>
<div class="result">
<a class="result__a" href="javascript:void(0)">Junk</a>
</div>`

	got := parseDuckDuckGoResults(page, 10)
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %+v", len(got), got)
	}
	if got[0].URL != "https://example.com/go" {
		t.Errorf("redirect not unwrapped: %q", got[0].URL)
	}
	if got[0].Title != "Go language" {
		t.Errorf("title markup not stripped: %q", got[0].Title)
	}
	if got[1].URL != "https://example.org/direct" {
		t.Errorf("unexpected second URL: %q", got[1].URL)
	}
}

func TestParseDuckDuckGoResultsLimit(t *testing.T) {
	page := `<a class="result__a" href="https://a.example/">A</a>
<a class="result__a" href="https://b.example/">B</a>
<a class="result__a" href="https://c.example/">C</a>`
	if got := parseDuckDuckGoResults(page, 2); len(got) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(got))
	}
}

func TestBingSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Ocp-Apim-Subscription-Key"); got != "bing-key" {
			t.Errorf("unexpected subscription key: %q", got)
		}
		if got := r.URL.Query().Get("q"); got != "go generics" {
			t.Errorf("unexpected query: %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"webPages": map[string]any{
				"value": []map[string]string{
					{"name": "Go generics", "url": "https://go.dev/doc/tutorial/generics", "snippet": "intro"},
					{"name": "no url", "url": ""},
				},
			},
		})
	}))
	defer srv.Close()

	b := NewBing(srv.URL, "bing-key", time.Second)
	got, err := b.Search(context.Background(), "go generics", 5)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	if got[0].URL != "https://go.dev/doc/tutorial/generics" {
		t.Errorf("unexpected URL: %q", got[0].URL)
	}
}

func TestBingSearchRequiresKey(t *testing.T) {
	b := NewBing("", "", time.Second)
	if _, err := b.Search(context.Background(), "q", 5); err == nil {
		t.Fatal("expected error without API key")
	}
}
