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
	"sync/atomic"
	"testing"
	"time"

	"github.com/dimelab/issue-observatory/internal/config"
	"github.com/dimelab/issue-observatory/internal/logger"
	"github.com/dimelab/issue-observatory/internal/search"
)

func googleConfig(baseURL string) config.GoogleCSEConfig {
	return config.GoogleCSEConfig{
		APIKey:   "test-key",
		EngineID: "test-engine",
		BaseURL:  baseURL,
		Timeout:  5 * time.Second,
	}
}

func googleItems(first, n int) []map[string]string {
	items := make([]map[string]string, 0, n)
	for i := 0; i < n; i++ {
		id := first + i
		items = append(items, map[string]string{
			"title":   fmt.Sprintf("Result %d", id),
			"link":    fmt.Sprintf("https://site%d.example/page", id),
			"snippet": "snippet",
		})
	}

	return items
}

func TestGoogleCSEClientRequiresCredentials(t *testing.T) {
	t.Parallel()

	var configErr *search.ConfigError

	_, err := search.NewGoogleCSEClient(config.GoogleCSEConfig{EngineID: "x"}, logger.NewNoOp())
	if !errors.As(err, &configErr) {
		t.Fatalf("missing api key: error = %v, want *ConfigError", err)
	}

	_, err = search.NewGoogleCSEClient(config.GoogleCSEConfig{APIKey: "x"}, logger.NewNoOp())
	if !errors.As(err, &configErr) {
		t.Fatalf("missing engine id: error = %v, want *ConfigError", err)
	}
}

func TestGoogleCSESearchPaginatesWithStartOffsets(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		starts []int
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		if q.Get("key") != "test-key" || q.Get("cx") != "test-engine" {
			t.Errorf("credentials key=%q cx=%q, want test values", q.Get("key"), q.Get("cx"))
		}

		start, _ := strconv.Atoi(q.Get("start"))
		num, _ := strconv.Atoi(q.Get("num"))

		mu.Lock()
		starts = append(starts, start)
		mu.Unlock()

		_ = json.NewEncoder(w).Encode(map[string]any{
			"items":             googleItems(start, num),
			"searchInformation": map[string]string{"totalResults": "100"},
		})
	}))
	defer server.Close()

	client, err := search.NewGoogleCSEClient(googleConfig(server.URL), logger.NewNoOp())
	if err != nil {
		t.Fatalf("NewGoogleCSEClient() error: %v", err)
	}

	result, err := client.Search(context.Background(), "rivers", 25, search.Options{})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	if len(result.Hits) != 25 {
		t.Fatalf("got %d hits, want 25", len(result.Hits))
	}

	wantStarts := []int{1, 11, 21}
	if len(starts) != len(wantStarts) {
		t.Fatalf("starts = %v, want %v", starts, wantStarts)
	}

	for i, want := range wantStarts {
		if starts[i] != want {
			t.Errorf("starts[%d] = %d, want %d", i, starts[i], want)
		}
	}

	if result.Hits[24].Rank != 25 {
		t.Errorf("last rank = %d, want 25", result.Hits[24].Rank)
	}
}

func TestGoogleCSESearchStopsAtDeclaredTotal(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"items":             googleItems(1, 5),
			"searchInformation": map[string]string{"totalResults": "5"},
		})
	}))
	defer server.Close()

	client, err := search.NewGoogleCSEClient(googleConfig(server.URL), logger.NewNoOp())
	if err != nil {
		t.Fatalf("NewGoogleCSEClient() error: %v", err)
	}

	result, err := client.Search(context.Background(), "rivers", 50, search.Options{})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	if len(result.Hits) != 5 {
		t.Errorf("got %d hits, want 5", len(result.Hits))
	}

	if calls.Load() != 1 {
		t.Errorf("server hit %d times, want pagination to stop at declared total", calls.Load())
	}
}

func TestGoogleCSESearchLocaleParams(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		if q.Get("gl") != "dk" {
			t.Errorf("gl = %q, want dk", q.Get("gl"))
		}
		if q.Get("lr") != "lang_da" {
			t.Errorf("lr = %q, want lang_da", q.Get("lr"))
		}
		if q.Get("dateRestrict") != "y1" {
			t.Errorf("dateRestrict = %q, want y1", q.Get("dateRestrict"))
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"items":             []any{},
			"searchInformation": map[string]string{"totalResults": "0"},
		})
	}))
	defer server.Close()

	client, err := search.NewGoogleCSEClient(googleConfig(server.URL), logger.NewNoOp())
	if err != nil {
		t.Fatalf("NewGoogleCSEClient() error: %v", err)
	}

	opts := search.Options{Country: "dk", Language: "da", DateRange: "year"}

	result, err := client.Search(context.Background(), "floder", 10, opts)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	if len(result.Hits) != 0 {
		t.Errorf("got %d hits, want 0", len(result.Hits))
	}
}
