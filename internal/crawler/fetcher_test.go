package crawler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dimelab/issue-observatory/internal/crawler"
	"github.com/dimelab/issue-observatory/internal/logger"
)

const testPage = `<!DOCTYPE html>
<html lang="da-DK">
<head><title>  Forurening i fjorden  </title></head>
<body>
  <nav>Menu Menu Menu</nav>
  <script>var tracking = true;</script>
  <p>Vandet   er
  ikke rent.</p>
  <a href="/undersider/rapport">Rapport</a>
  <a href="https://example.org/andet#afsnit">Andet</a>
  <a href="/undersider/rapport">Rapport igen</a>
  <a href="mailto:red@example.org">Skriv</a>
  <a href="#top">Til toppen</a>
  <footer>Kontakt os</footer>
</body>
</html>`

func newTestFetcher(timeout time.Duration, maxRetries int) *crawler.HTTPFetcher {
	return crawler.NewHTTPFetcher(timeout, "TestBot/1.0", maxRetries, logger.NewNoOp())
}

func TestHTTPFetcherExtractsContent(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(testPage))
	}))
	defer server.Close()

	fetcher := newTestFetcher(5*time.Second, 0)

	result, err := fetcher.Fetch(context.Background(), server.URL+"/side")
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}

	if result.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", result.StatusCode)
	}

	if result.Title != "Forurening i fjorden" {
		t.Errorf("Title = %q, want trimmed title", result.Title)
	}

	if result.Language != "da" {
		t.Errorf("Language = %q, want primary subtag \"da\"", result.Language)
	}

	if strings.Contains(result.Text, "Menu") || strings.Contains(result.Text, "tracking") ||
		strings.Contains(result.Text, "Kontakt") {
		t.Errorf("Text contains non-content elements: %q", result.Text)
	}

	if !strings.Contains(result.Text, "Vandet er ikke rent.") {
		t.Errorf("Text = %q, want collapsed whitespace body text", result.Text)
	}

	wantLinks := []string{
		server.URL + "/undersider/rapport",
		"https://example.org/andet",
	}

	if len(result.Links) != len(wantLinks) {
		t.Fatalf("Links = %v, want %v", result.Links, wantLinks)
	}

	for i, want := range wantLinks {
		if result.Links[i] != want {
			t.Errorf("Links[%d] = %q, want %q", i, result.Links[i], want)
		}
	}
}

func TestHTTPFetcherNon2xxIsError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := newTestFetcher(5*time.Second, 0)

	result, err := fetcher.Fetch(context.Background(), server.URL+"/missing")
	if err == nil {
		t.Fatal("Fetch() = nil error for 404 response")
	}

	if result == nil || result.StatusCode != http.StatusNotFound {
		t.Errorf("result = %+v, want status code 404 recorded", result)
	}
}

func TestHTTPFetcherDoesNotRetryHTTPErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	fetcher := newTestFetcher(5*time.Second, 3)

	if _, err := fetcher.Fetch(context.Background(), server.URL); err == nil {
		t.Fatal("Fetch() = nil error for 500 response")
	}

	if calls.Load() != 1 {
		t.Errorf("server hit %d times, want 1 (HTTP errors are not retried)", calls.Load())
	}
}

func TestHTTPFetcherTimeout(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	fetcher := newTestFetcher(20*time.Millisecond, 0)

	if _, err := fetcher.Fetch(context.Background(), server.URL); err == nil {
		t.Fatal("Fetch() = nil error, want timeout")
	}
}
