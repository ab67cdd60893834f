package search

import (
	"context"
	"encoding/json"
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

// Brave Search API pagination limits.
const (
	bravePerRequestMax = 20
	braveMaxOffset     = 9
	braveTotalCap      = bravePerRequestMax * (braveMaxOffset + 1)
)

// braveRequestsPerMinute sizes the local token bucket for the Brave API.
const braveRequestsPerMinute = 60

// BraveClient queries the Brave Search web API with offset-based pagination.
type BraveClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *ratelimit.TokenBucket
	log        logger.Interface
}

type braveResponse struct {
	Query struct {
		Original string `json:"original"`
		Altered  string `json:"altered"`
	} `json:"query"`
	Web struct {
		Results []braveResult `json:"results"`
	} `json:"web"`
}

type braveResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// NewBraveClient creates a Brave Search client. A missing API key is a
// configuration error detected here, not at call time.
func NewBraveClient(cfg config.BraveConfig, log logger.Interface) (*BraveClient, error) {
	if cfg.APIKey == "" {
		return nil, &ConfigError{Provider: ProviderBrave, Reason: "api key is not set"}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &BraveClient{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    ratelimit.NewTokenBucket(braveRequestsPerMinute, time.Minute),
		log:        log,
	}, nil
}

// Name returns the provider name.
func (c *BraveClient) Name() string { return ProviderBrave }

// Search pages through results until maxResults is reached, the provider
// returns an empty page, or the offset limit is hit. Ranks run across pages.
// When Brave rewrites the query, the altered form is surfaced as a suggestion.
func (c *BraveClient) Search(
	ctx context.Context,
	query string,
	maxResults int,
	opts Options,
) (*Result, error) {
	maxResults = clampMaxResults(maxResults, braveTotalCap, ProviderBrave, c.log)

	result := &Result{}
	rank := 0

	for offset := 0; offset <= braveMaxOffset && len(result.Hits) < maxResults; offset++ {
		count := bravePerRequestMax
		if remaining := maxResults - len(result.Hits); remaining < count {
			count = remaining
		}

		page, err := c.fetchPage(ctx, query, count, offset, opts)
		if err != nil {
			return nil, err
		}

		if altered := page.Query.Altered; altered != "" && altered != query && len(result.Suggestions) == 0 {
			result.Suggestions = append(result.Suggestions, altered)
		}

		if len(page.Web.Results) == 0 {
			break
		}

		for _, entry := range page.Web.Results {
			if entry.URL == "" || entry.Title == "" {
				c.log.Debug("skipping malformed result entry", "provider", ProviderBrave)
				continue
			}

			rank++
			result.Hits = append(result.Hits, domain.SearchHit{
				URL:         entry.URL,
				Title:       entry.Title,
				Description: entry.Description,
				Rank:        rank,
				Domain:      HitDomain(entry.URL),
			})

			if len(result.Hits) >= maxResults {
				break
			}
		}
	}

	return result, nil
}

// fetchPage issues a single paginated request.
func (c *BraveClient) fetchPage(
	ctx context.Context,
	query string,
	count, offset int,
	opts Options,
) (*braveResponse, error) {
	if !c.limiter.TryConsume(1) {
		return nil, &RateLimitError{
			Provider: ProviderBrave,
			Local:    true,
			Message:  fmt.Sprintf("limit of %d requests per minute reached", braveRequestsPerMinute),
		}
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(count))
	params.Set("offset", strconv.Itoa(offset))

	if opts.Country != "" {
		params.Set("country", opts.Country)
	}
	if opts.Language != "" {
		params.Set("search_lang", opts.Language)
	}
	if opts.DateRange != "" {
		params.Set("freshness", braveFreshness(opts.DateRange))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, &APIError{Provider: ProviderBrave, Message: fmt.Sprintf("create request: %v", err)}
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, &TimeoutError{Provider: ProviderBrave, Timeout: c.httpClient.Timeout}
		}
		return nil, &APIError{Provider: ProviderBrave, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, &APIError{Provider: ProviderBrave, Message: fmt.Sprintf("read response: %v", readErr)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusToError(ProviderBrave, resp.StatusCode, body)
	}

	var decoded braveResponse
	if jsonErr := json.Unmarshal(body, &decoded); jsonErr != nil {
		return nil, &APIError{Provider: ProviderBrave, Message: fmt.Sprintf("decode response: %v", jsonErr)}
	}

	return &decoded, nil
}

// braveFreshness maps the generic date-range option to Brave freshness codes.
func braveFreshness(dateRange string) string {
	switch dateRange {
	case "day":
		return "pd"
	case "week":
		return "pw"
	case "month":
		return "pm"
	case "year":
		return "py"
	default:
		return dateRange
	}
}
