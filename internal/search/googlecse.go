package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dimelab/issue-observatory/internal/config"
	"github.com/dimelab/issue-observatory/internal/domain"
	"github.com/dimelab/issue-observatory/internal/logger"
	"github.com/dimelab/issue-observatory/internal/ratelimit"
)

// Google Custom Search pagination limits. The API serves at most 10 results
// per request and refuses start offsets beyond 100.
const (
	googlePerRequestMax = 10
	googleTotalCap      = 100
)

// googleBackoffBase is the first retry delay; it doubles on each attempt.
const googleBackoffBase = 2 * time.Second

// GoogleCSEClient queries the Google Custom Search JSON API. The API enforces
// a strict quota, so the client carries a per-minute token bucket and an
// aggressive retry policy for transport timeouts.
type GoogleCSEClient struct {
	apiKey            string
	engineID          string
	baseURL           string
	httpClient        *http.Client
	limiter           *ratelimit.TokenBucket
	maxRetries        int
	requestsPerMinute int
	backoff           time.Duration
	log               logger.Interface
}

type googleResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
	SearchInformation struct {
		TotalResults string `json:"totalResults"`
	} `json:"searchInformation"`
}

// NewGoogleCSEClient creates a Google Custom Search client. Both the API key
// and the engine id are required; their absence is a configuration error
// detected here, not at call time.
func NewGoogleCSEClient(cfg config.GoogleCSEConfig, log logger.Interface) (*GoogleCSEClient, error) {
	if cfg.APIKey == "" {
		return nil, &ConfigError{Provider: ProviderGoogleCSE, Reason: "api key is not set"}
	}
	if cfg.EngineID == "" {
		return nil, &ConfigError{Provider: ProviderGoogleCSE, Reason: "engine id is not set"}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 100
	}

	return &GoogleCSEClient{
		apiKey:            cfg.APIKey,
		engineID:          cfg.EngineID,
		baseURL:           cfg.BaseURL,
		httpClient:        &http.Client{Timeout: timeout},
		limiter:           ratelimit.NewTokenBucket(rpm, time.Minute),
		maxRetries:        cfg.MaxRetries,
		requestsPerMinute: rpm,
		backoff:           googleBackoffBase,
		log:               log,
	}, nil
}

// Name returns the provider name.
func (c *GoogleCSEClient) Name() string { return ProviderGoogleCSE }

// Search pages through results with start offsets 1, 11, 21, ... until
// maxResults is reached, the provider returns an empty page, or the declared
// total is exhausted. Ranks run across pages.
func (c *GoogleCSEClient) Search(
	ctx context.Context,
	query string,
	maxResults int,
	opts Options,
) (*Result, error) {
	maxResults = clampMaxResults(maxResults, googleTotalCap, ProviderGoogleCSE, c.log)

	result := &Result{}
	rank := 0
	declaredTotal := -1

	for start := 1; start <= googleTotalCap && len(result.Hits) < maxResults; start += googlePerRequestMax {
		if declaredTotal >= 0 && start > declaredTotal {
			break
		}

		num := googlePerRequestMax
		if remaining := maxResults - len(result.Hits); remaining < num {
			num = remaining
		}

		decoded, err := c.fetchPageWithRetry(ctx, query, num, start, opts)
		if err != nil {
			return nil, err
		}

		if total, parseErr := strconv.Atoi(decoded.SearchInformation.TotalResults); parseErr == nil {
			declaredTotal = total
		}

		if len(decoded.Items) == 0 {
			break
		}

		for _, entry := range decoded.Items {
			if entry.Link == "" || entry.Title == "" {
				c.log.Debug("skipping malformed result entry", "provider", ProviderGoogleCSE)
				continue
			}

			rank++
			result.Hits = append(result.Hits, domain.SearchHit{
				URL:         entry.Link,
				Title:       entry.Title,
				Description: entry.Snippet,
				Rank:        rank,
				Domain:      HitDomain(entry.Link),
			})

			if len(result.Hits) >= maxResults {
				break
			}
		}
	}

	return result, nil
}

// fetchPageWithRetry retries transport timeouts with exponential backoff
// (2s, 4s, 8s, ...). HTTP-level errors are translated immediately and never
// retried. After the final attempt the timeout is folded into an APIError
// carrying the attempt count.
func (c *GoogleCSEClient) fetchPageWithRetry(
	ctx context.Context,
	query string,
	num, start int,
	opts Options,
) (*googleResponse, error) {
	attempts := c.maxRetries + 1
	delay := c.backoff

	for attempt := 1; ; attempt++ {
		decoded, err := c.fetchPage(ctx, query, num, start, opts)
		if err == nil {
			return decoded, nil
		}

		var timeoutErr *TimeoutError
		if !errors.As(err, &timeoutErr) || attempt >= attempts {
			if timeoutErr != nil {
				return nil, &APIError{
					Provider: ProviderGoogleCSE,
					Message: fmt.Sprintf("request timed out after %d attempts (timeout %s)",
						attempt, timeoutErr.Timeout),
				}
			}
			return nil, err
		}

		c.log.Warn("request timed out, retrying",
			"provider", ProviderGoogleCSE,
			"attempt", attempt,
			"backoff", delay.String(),
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
	}
}

// fetchPage issues a single paginated request.
func (c *GoogleCSEClient) fetchPage(
	ctx context.Context,
	query string,
	num, start int,
	opts Options,
) (*googleResponse, error) {
	if !c.limiter.TryConsume(1) {
		return nil, &RateLimitError{
			Provider: ProviderGoogleCSE,
			Local:    true,
			Message:  fmt.Sprintf("limit of %d requests per minute reached", c.requestsPerMinute),
		}
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("cx", c.engineID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(num))
	params.Set("start", strconv.Itoa(start))

	if opts.Country != "" {
		params.Set("gl", opts.Country)
	}
	if opts.Language != "" {
		params.Set("lr", "lang_"+opts.Language)
	}
	if tbs := googleDateRestrict(opts.DateRange); tbs != "" {
		params.Set("dateRestrict", tbs)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, &APIError{Provider: ProviderGoogleCSE, Message: fmt.Sprintf("create request: %v", err)}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, &TimeoutError{Provider: ProviderGoogleCSE, Timeout: c.httpClient.Timeout}
		}
		return nil, &APIError{Provider: ProviderGoogleCSE, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, &APIError{Provider: ProviderGoogleCSE, Message: fmt.Sprintf("read response: %v", readErr)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusToError(ProviderGoogleCSE, resp.StatusCode, body)
	}

	var decoded googleResponse
	if jsonErr := json.Unmarshal(body, &decoded); jsonErr != nil {
		return nil, &APIError{Provider: ProviderGoogleCSE, Message: fmt.Sprintf("decode response: %v", jsonErr)}
	}

	return &decoded, nil
}

// googleDateRestrict maps the generic date-range option to dateRestrict codes.
func googleDateRestrict(dateRange string) string {
	switch dateRange {
	case "day":
		return "d1"
	case "week":
		return "w1"
	case "month":
		return "m1"
	case "year":
		return "y1"
	default:
		return ""
	}
}
