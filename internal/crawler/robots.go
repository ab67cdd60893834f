package crawler

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// defaultRobotsCacheTTL bounds how long a parsed robots.txt is reused.
const defaultRobotsCacheTTL = 24 * time.Hour

// maxRobotsBodyBytes limits the size of robots.txt responses we will read.
const maxRobotsBodyBytes = 512 * 1024 // 512 KB

// RobotsPolicy answers whether a URL may be fetched under robots.txt rules.
type RobotsPolicy interface {
	IsAllowed(ctx context.Context, rawURL string) bool
}

// RobotsChecker fetches and caches robots.txt per host. Missing, errored or
// unparseable robots files are treated as permissive, which is standard
// crawling practice.
type RobotsChecker struct {
	httpClient *http.Client
	userAgent  string
	cacheTTL   time.Duration
	mu         sync.RWMutex
	cache      map[string]*robotsEntry // keyed by host
}

type robotsEntry struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
	allowAll  bool
}

// NewRobotsChecker creates a robots.txt checker.
func NewRobotsChecker(httpClient *http.Client, userAgent string) *RobotsChecker {
	return &RobotsChecker{
		httpClient: httpClient,
		userAgent:  userAgent,
		cacheTTL:   defaultRobotsCacheTTL,
		cache:      make(map[string]*robotsEntry),
	}
}

// IsAllowed checks the host's robots.txt rules for the given URL.
// Unparseable URLs are allowed through; the fetch itself will reject them.
func (r *RobotsChecker) IsAllowed(ctx context.Context, rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return true
	}

	host := strings.ToLower(parsed.Host)

	entry := r.cached(host)
	if entry == nil {
		entry = r.fetchAndCache(ctx, host, parsed.Scheme)
	}

	if entry.allowAll {
		return true
	}

	return entry.data.TestAgent(parsed.Path, r.userAgent)
}

// cached returns a fresh cache entry or nil.
func (r *RobotsChecker) cached(host string) *robotsEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.cache[host]
	if !ok || time.Since(entry.fetchedAt) > r.cacheTTL {
		return nil
	}

	return entry
}

// fetchAndCache retrieves and parses robots.txt for the host. Any failure
// along the way caches a permissive entry.
func (r *RobotsChecker) fetchAndCache(ctx context.Context, host, scheme string) *robotsEntry {
	if scheme == "" {
		scheme = "https"
	}

	entry := &robotsEntry{fetchedAt: time.Now(), allowAll: true}

	body, statusCode, err := r.fetchRobots(ctx, scheme+"://"+host+"/robots.txt")
	if err == nil && statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		if data, parseErr := robotstxt.FromBytes(body); parseErr == nil {
			entry.data = data
			entry.allowAll = false
		}
	}

	r.mu.Lock()
	r.cache[host] = entry
	r.mu.Unlock()

	return entry
}

// fetchRobots performs the HTTP GET for a robots.txt URL.
func (r *RobotsChecker) fetchRobots(ctx context.Context, robotsURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, http.NoBody)
	if err != nil {
		return nil, 0, err
	}

	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, err
	}

	return body, resp.StatusCode, nil
}

// PermissiveRobots allows everything. Used when respect_robots is disabled.
type PermissiveRobots struct{}

// IsAllowed always returns true.
func (PermissiveRobots) IsAllowed(context.Context, string) bool { return true }
