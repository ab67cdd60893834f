package search_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/dimelab/issue-observatory/internal/config"
	"github.com/dimelab/issue-observatory/internal/logger"
	"github.com/dimelab/issue-observatory/internal/search"
)

func braveConfig(baseURL string) config.BraveConfig {
	return config.BraveConfig{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
	}
}

// braveResults builds n result entries with URLs numbered from first.
func braveResults(first, n int) []map[string]string {
	results := make([]map[string]string, 0, n)
	for i := 0; i < n; i++ {
		id := first + i
		results = append(results, map[string]string{
			"title":       fmt.Sprintf("Result %d", id),
			"url":         fmt.Sprintf("https://site%d.example/page", id),
			"description": "snippet",
		})
	}

	return results
}

func writeBravePage(w http.ResponseWriter, results []map[string]string) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"web": map[string]any{"results": results},
	})
}

func TestBraveSearchPaginates(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		requests []string
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Subscription-Token"); got != "test-key" {
			t.Errorf("X-Subscription-Token = %q, want test-key", got)
		}

		count, _ := strconv.Atoi(r.URL.Query().Get("count"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		mu.Lock()
		requests = append(requests, fmt.Sprintf("count=%d offset=%d", count, offset))
		mu.Unlock()

		writeBravePage(w, braveResults(offset*20+1, count))
	}))
	defer server.Close()

	client, err := search.NewBraveClient(braveConfig(server.URL), logger.NewNoOp())
	if err != nil {
		t.Fatalf("NewBraveClient() error: %v", err)
	}

	result, err := client.Search(context.Background(), "rivers", 25, search.Options{})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	if len(result.Hits) != 25 {
		t.Fatalf("got %d hits, want 25", len(result.Hits))
	}

	for i, hit := range result.Hits {
		if hit.Rank != i+1 {
			t.Errorf("hit %d has rank %d, want continuous ranks across pages", i, hit.Rank)
		}
	}

	wantRequests := []string{"count=20 offset=0", "count=5 offset=1"}
	if len(requests) != len(wantRequests) {
		t.Fatalf("requests %v, want %v", requests, wantRequests)
	}

	for i, want := range wantRequests {
		if requests[i] != want {
			t.Errorf("request[%d] = %q, want %q", i, requests[i], want)
		}
	}

	if result.Hits[0].Domain != "site1.example" {
		t.Errorf("Domain = %q, want host without scheme", result.Hits[0].Domain)
	}
}

func TestBraveSearchStopsOnEmptyPage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		if offset == 0 {
			writeBravePage(w, braveResults(1, 7))
			return
		}

		writeBravePage(w, nil)
	}))
	defer server.Close()

	client, err := search.NewBraveClient(braveConfig(server.URL), logger.NewNoOp())
	if err != nil {
		t.Fatalf("NewBraveClient() error: %v", err)
	}

	result, err := client.Search(context.Background(), "rivers", 50, search.Options{})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	if len(result.Hits) != 7 {
		t.Errorf("got %d hits, want 7 when the provider runs dry", len(result.Hits))
	}
}

func TestBraveSearchSkipsMalformedEntries(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		if offset > 0 {
			writeBravePage(w, nil)
			return
		}

		writeBravePage(w, []map[string]string{
			{"title": "Good", "url": "https://a.example/"},
			{"title": "", "url": "https://missing-title.example/"},
			{"title": "No URL", "url": ""},
			{"title": "Also good", "url": "https://b.example/"},
		})
	}))
	defer server.Close()

	client, err := search.NewBraveClient(braveConfig(server.URL), logger.NewNoOp())
	if err != nil {
		t.Fatalf("NewBraveClient() error: %v", err)
	}

	result, err := client.Search(context.Background(), "rivers", 10, search.Options{})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	if len(result.Hits) != 2 {
		t.Fatalf("got %d hits, want malformed entries dropped", len(result.Hits))
	}

	if result.Hits[1].Rank != 2 {
		t.Errorf("rank after skipped entries = %d, want 2", result.Hits[1].Rank)
	}
}

func TestBraveSearchSurfacesAlteredQuery(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		var results []map[string]string
		if offset == 0 {
			results = braveResults(1, 20)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"query": map[string]string{
				"original": "rivres",
				"altered":  "rivers",
			},
			"web": map[string]any{"results": results},
		})
	}))
	defer server.Close()

	client, err := search.NewBraveClient(braveConfig(server.URL), logger.NewNoOp())
	if err != nil {
		t.Fatalf("NewBraveClient() error: %v", err)
	}

	result, err := client.Search(context.Background(), "rivres", 30, search.Options{})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	if len(result.Suggestions) != 1 || result.Suggestions[0] != "rivers" {
		t.Errorf("Suggestions = %v, want the altered query surfaced once", result.Suggestions)
	}

	// A response echoing the query back unchanged yields no suggestion.
	same, err := client.Search(context.Background(), "rivers", 10, search.Options{})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	if len(same.Suggestions) != 0 {
		t.Errorf("Suggestions = %v, want none for an unaltered query", same.Suggestions)
	}
}

func TestBraveSearchErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		statusCode int
		check      func(t *testing.T, err error)
	}{
		{
			name:       "401 is a config error",
			statusCode: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				var configErr *search.ConfigError
				if !errors.As(err, &configErr) {
					t.Fatalf("error %v, want *ConfigError", err)
				}
			},
		},
		{
			name:       "403 is a config error",
			statusCode: http.StatusForbidden,
			check: func(t *testing.T, err error) {
				var configErr *search.ConfigError
				if !errors.As(err, &configErr) {
					t.Fatalf("error %v, want *ConfigError", err)
				}
			},
		},
		{
			name:       "429 is a remote rate limit",
			statusCode: http.StatusTooManyRequests,
			check: func(t *testing.T, err error) {
				var rateErr *search.RateLimitError
				if !errors.As(err, &rateErr) {
					t.Fatalf("error %v, want *RateLimitError", err)
				}
				if rateErr.Local {
					t.Error("RateLimitError.Local = true, want upstream rejection")
				}
			},
		},
		{
			name:       "500 is an api error",
			statusCode: http.StatusInternalServerError,
			check: func(t *testing.T, err error) {
				var apiErr *search.APIError
				if !errors.As(err, &apiErr) {
					t.Fatalf("error %v, want *APIError", err)
				}
				if apiErr.StatusCode != http.StatusInternalServerError {
					t.Errorf("StatusCode = %d, want 500", apiErr.StatusCode)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tt.statusCode)
			}))
			defer server.Close()

			client, err := search.NewBraveClient(braveConfig(server.URL), logger.NewNoOp())
			if err != nil {
				t.Fatalf("NewBraveClient() error: %v", err)
			}

			_, err = client.Search(context.Background(), "rivers", 10, search.Options{})
			if err == nil {
				t.Fatal("Search() = nil error")
			}

			tt.check(t, err)
		})
	}
}

func TestBraveClientRequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := search.NewBraveClient(config.BraveConfig{}, logger.NewNoOp())

	var configErr *search.ConfigError
	if !errors.As(err, &configErr) {
		t.Fatalf("NewBraveClient() error = %v, want *ConfigError", err)
	}
}
