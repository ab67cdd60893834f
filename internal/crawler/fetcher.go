package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/dimelab/issue-observatory/internal/logger"
)

// maxResponseBodyBytes limits the size of fetched page responses.
const maxResponseBodyBytes = 10 * 1024 * 1024 // 10 MB

// fetchBackoffBase is the first retry delay after a transport timeout; it
// doubles on each attempt.
const fetchBackoffBase = time.Second

// nonContentSelectors lists elements stripped before extracting page text.
const nonContentSelectors = "script, style, nav, header, footer, noscript, iframe"

// FetchResult holds everything extracted from one fetched page.
type FetchResult struct {
	FinalURL   string
	StatusCode int
	Title      string
	Text       string
	Language   string
	Links      []string
	Duration   time.Duration
}

// Fetcher retrieves a page and extracts its visible text and outbound links.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*FetchResult, error)
}

// HTTPFetcher fetches pages over plain HTTP with bounded retries on
// transport timeouts. One fetch is in flight at a time per crawler.
type HTTPFetcher struct {
	httpClient *http.Client
	userAgent  string
	maxRetries int
	log        logger.Interface
}

// NewHTTPFetcher creates a fetcher with the given per-request timeout.
func NewHTTPFetcher(timeout time.Duration, userAgent string, maxRetries int, log logger.Interface) *HTTPFetcher {
	return &HTTPFetcher{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
		maxRetries: maxRetries,
		log:        log,
	}
}

// Fetch retrieves rawURL. Transport timeouts are retried up to maxRetries
// times with doubling backoff; the backoff sleep observes ctx so a cancelled
// crawl stops waiting. A non-2xx response is returned as a FetchResult with
// the status code alongside a non-nil error.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	delay := fetchBackoffBase

	var lastErr error

	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			f.log.Debug("retrying fetch", "url", rawURL, "attempt", attempt, "backoff", delay.String())

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}

			delay *= 2
		}

		result, err := f.fetchOnce(ctx, rawURL)
		if err == nil || !isTransportTimeout(err) {
			return result, err
		}

		lastErr = err
	}

	return nil, fmt.Errorf("fetch timed out after %d attempts: %w", f.maxRetries+1, lastErr)
}

// fetchOnce performs a single GET and extracts content on success.
func (f *HTTPFetcher) fetchOnce(ctx context.Context, rawURL string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	start := time.Now()

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http fetch: %w", err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	duration := time.Since(start)

	result := &FetchResult{
		FinalURL:   resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Duration:   duration,
	}

	if readErr != nil {
		return result, fmt.Errorf("read response body: %w", readErr)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return result, fmt.Errorf("http status %d", resp.StatusCode)
	}

	extractInto(result, resp.Request.URL, body)

	return result, nil
}

// extractInto parses the HTML body and fills title, text, language and
// outbound links. Parse failures leave the result with empty content rather
// than failing the fetch; the page was still retrieved.
func extractInto(result *FetchResult, base *url.URL, body []byte) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return
	}

	result.Title = strings.TrimSpace(doc.Find("title").First().Text())
	result.Language = extractLanguage(doc)

	content := doc.Find("body").First()
	if content.Length() > 0 {
		content.Find(nonContentSelectors).Remove()
		result.Text = collapseWhitespace(content.Text())
	}

	result.Links = extractLinks(doc, base)
}

// extractLanguage reads the primary language subtag from <html lang>.
func extractLanguage(doc *goquery.Document) string {
	lang, exists := doc.Find("html").Attr("lang")
	if !exists {
		return ""
	}

	lang = strings.ToLower(strings.TrimSpace(lang))
	if idx := strings.IndexAny(lang, "-_"); idx > 0 {
		lang = lang[:idx]
	}

	return lang
}

// extractLinks collects absolute http(s) outbound links, resolved against
// the final URL and with fragments dropped. Order follows document order;
// duplicates within one page are removed.
func extractLinks(doc *goquery.Document, base *url.URL) []string {
	seen := make(map[string]struct{})

	var links []string

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")

		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}

		resolved, err := base.Parse(href)
		if err != nil {
			return
		}

		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}

		resolved.Fragment = ""

		link := resolved.String()
		if _, dup := seen[link]; dup {
			return
		}

		seen[link] = struct{}{}
		links = append(links, link)
	})

	return links
}

// collapseWhitespace squeezes runs of whitespace into single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// isTransportTimeout reports whether err is a network timeout (as opposed to
// an HTTP-level failure, which is never retried).
func isTransportTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}
