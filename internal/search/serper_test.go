package search_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dimelab/issue-observatory/internal/config"
	"github.com/dimelab/issue-observatory/internal/logger"
	"github.com/dimelab/issue-observatory/internal/search"
)

func serperConfig(baseURL string) config.SerperConfig {
	return config.SerperConfig{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
	}
}

type serperTestRequest struct {
	Query    string `json:"q"`
	Num      int    `json:"num"`
	Page     int    `json:"page"`
	Country  string `json:"gl"`
	Language string `json:"hl"`
	TBS      string `json:"tbs"`
}

func serperOrganic(first, n int) []map[string]string {
	organic := make([]map[string]string, 0, n)
	for i := 0; i < n; i++ {
		id := first + i
		organic = append(organic, map[string]string{
			"title":   fmt.Sprintf("Result %d", id),
			"link":    fmt.Sprintf("https://www.site%d.example/page", id),
			"snippet": "snippet",
		})
	}

	return organic
}

func TestSerperSearchSendsFiltersAndParsesExpansions(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		seen []serperTestRequest
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-API-KEY"); got != "test-key" {
			t.Errorf("X-API-KEY = %q, want test-key", got)
		}

		var req serperTestRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		mu.Lock()
		seen = append(seen, req)
		mu.Unlock()

		_ = json.NewEncoder(w).Encode(map[string]any{
			"organic": serperOrganic(1, 3),
			"peopleAlsoAsk": []map[string]string{
				{"question": "Is the water clean?"},
				{"question": "Is the water clean?"},
				{"question": "Where does it flow?"},
			},
			"relatedSearches": []map[string]string{
				{"query": "water quality report"},
			},
		})
	}))
	defer server.Close()

	client, err := search.NewSerperClient(serperConfig(server.URL), logger.NewNoOp())
	if err != nil {
		t.Fatalf("NewSerperClient() error: %v", err)
	}

	opts := search.Options{Country: "dk", Language: "da", DateRange: "month"}

	result, err := client.Search(context.Background(), "vandkvalitet", 3, opts)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	if len(seen) != 1 {
		t.Fatalf("server got %d requests, want 1", len(seen))
	}

	req := seen[0]
	if req.Query != "vandkvalitet" || req.Num != 3 || req.Page != 1 {
		t.Errorf("request = %+v, want q/num/page set", req)
	}

	if req.Country != "dk" || req.Language != "da" || req.TBS != "qdr:m" {
		t.Errorf("request filters = %+v, want gl=dk hl=da tbs=qdr:m", req)
	}

	if len(result.Hits) != 3 {
		t.Fatalf("got %d hits, want 3", len(result.Hits))
	}

	if result.Hits[0].Domain != "site1.example" {
		t.Errorf("Domain = %q, want www prefix stripped", result.Hits[0].Domain)
	}

	wantSuggestions := []string{"Is the water clean?", "Where does it flow?"}
	if len(result.Suggestions) != len(wantSuggestions) {
		t.Fatalf("Suggestions = %v, want deduplicated %v", result.Suggestions, wantSuggestions)
	}

	if len(result.RelatedSearches) != 1 || result.RelatedSearches[0] != "water quality report" {
		t.Errorf("RelatedSearches = %v, want one entry", result.RelatedSearches)
	}
}

func TestSerperSearchPaginates(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req serperTestRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		first := (req.Page-1)*10 + 1

		_ = json.NewEncoder(w).Encode(map[string]any{
			"organic": serperOrganic(first, req.Num),
		})
	}))
	defer server.Close()

	client, err := search.NewSerperClient(serperConfig(server.URL), logger.NewNoOp())
	if err != nil {
		t.Fatalf("NewSerperClient() error: %v", err)
	}

	result, err := client.Search(context.Background(), "rivers", 15, search.Options{})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	if len(result.Hits) != 15 {
		t.Fatalf("got %d hits, want 15 across two pages", len(result.Hits))
	}

	if result.Hits[14].Rank != 15 {
		t.Errorf("last rank = %d, want 15", result.Hits[14].Rank)
	}
}

func TestSerperSearchBoundsPaginationOnUnusableResults(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	// Every page is non-empty but holds only entries without title or link,
	// so no hits accumulate and only the page bound can end the loop.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"organic": []map[string]string{
				{"title": "", "link": "https://a.example/"},
				{"title": "No link", "link": ""},
			},
		})
	}))
	defer server.Close()

	client, err := search.NewSerperClient(serperConfig(server.URL), logger.NewNoOp())
	if err != nil {
		t.Fatalf("NewSerperClient() error: %v", err)
	}

	result, err := client.Search(context.Background(), "rivers", 100, search.Options{})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	if len(result.Hits) != 0 {
		t.Errorf("got %d hits, want 0", len(result.Hits))
	}

	if got := calls.Load(); got != 10 {
		t.Errorf("server hit %d times, want pagination capped at 10 pages", got)
	}
}

func TestSerperSearchStopsOnEmptyPage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req serperTestRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		if req.Page > 1 {
			_ = json.NewEncoder(w).Encode(map[string]any{"organic": []any{}})
			return
		}

		_ = json.NewEncoder(w).Encode(map[string]any{"organic": serperOrganic(1, 4)})
	}))
	defer server.Close()

	client, err := search.NewSerperClient(serperConfig(server.URL), logger.NewNoOp())
	if err != nil {
		t.Fatalf("NewSerperClient() error: %v", err)
	}

	result, err := client.Search(context.Background(), "rivers", 30, search.Options{})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	if len(result.Hits) != 4 {
		t.Errorf("got %d hits, want 4 when the provider runs dry", len(result.Hits))
	}
}
