package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dimelab/issue-observatory/internal/config"
	"github.com/dimelab/issue-observatory/internal/domain"
	"github.com/dimelab/issue-observatory/internal/logger"
	"github.com/dimelab/issue-observatory/internal/ratelimit"
)

// Serper API pagination limits.
const (
	serperPerRequestMax = 10
	serperTotalCap      = 100
	serperMaxPages      = serperTotalCap / serperPerRequestMax
)

// serperRequestsPerMinute sizes the local token bucket for the serper API.
const serperRequestsPerMinute = 60

// SerperClient queries the serper.dev Google SERP API. Beyond plain results
// it supports locale and recency filters and surfaces query suggestions and
// related searches from the response.
type SerperClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *ratelimit.TokenBucket
	log        logger.Interface
}

type serperRequest struct {
	Query    string `json:"q"`
	Num      int    `json:"num"`
	Page     int    `json:"page"`
	Country  string `json:"gl,omitempty"`
	Language string `json:"hl,omitempty"`
	TBS      string `json:"tbs,omitempty"`
}

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
	PeopleAlsoAsk []struct {
		Question string `json:"question"`
	} `json:"peopleAlsoAsk"`
	RelatedSearches []struct {
		Query string `json:"query"`
	} `json:"relatedSearches"`
}

// NewSerperClient creates a serper.dev client. A missing API key is a
// configuration error detected here, not at call time.
func NewSerperClient(cfg config.SerperConfig, log logger.Interface) (*SerperClient, error) {
	if cfg.APIKey == "" {
		return nil, &ConfigError{Provider: ProviderSerper, Reason: "api key is not set"}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &SerperClient{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    ratelimit.NewTokenBucket(serperRequestsPerMinute, time.Minute),
		log:        log,
	}, nil
}

// Name returns the provider name.
func (c *SerperClient) Name() string { return ProviderSerper }

// Search pages through results until maxResults is reached, the provider
// returns an empty page, or the absolute cap is hit. Suggestions and related
// searches are accumulated across pages without duplicates.
func (c *SerperClient) Search(
	ctx context.Context,
	query string,
	maxResults int,
	opts Options,
) (*Result, error) {
	maxResults = clampMaxResults(maxResults, serperTotalCap, ProviderSerper, c.log)

	result := &Result{}
	seenSuggestions := make(map[string]struct{})
	seenRelated := make(map[string]struct{})
	rank := 0

	for page := 1; page <= serperMaxPages && len(result.Hits) < maxResults; page++ {
		num := serperPerRequestMax
		if remaining := maxResults - len(result.Hits); remaining < num {
			num = remaining
		}

		decoded, err := c.fetchPage(ctx, query, num, page, opts)
		if err != nil {
			return nil, err
		}

		if len(decoded.Organic) == 0 {
			break
		}

		for _, entry := range decoded.Organic {
			if entry.Link == "" || entry.Title == "" {
				c.log.Debug("skipping malformed result entry", "provider", ProviderSerper)
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

		for _, ask := range decoded.PeopleAlsoAsk {
			if _, seen := seenSuggestions[ask.Question]; ask.Question != "" && !seen {
				seenSuggestions[ask.Question] = struct{}{}
				result.Suggestions = append(result.Suggestions, ask.Question)
			}
		}

		for _, related := range decoded.RelatedSearches {
			if _, seen := seenRelated[related.Query]; related.Query != "" && !seen {
				seenRelated[related.Query] = struct{}{}
				result.RelatedSearches = append(result.RelatedSearches, related.Query)
			}
		}
	}

	return result, nil
}

// fetchPage issues a single paginated request.
func (c *SerperClient) fetchPage(
	ctx context.Context,
	query string,
	num, page int,
	opts Options,
) (*serperResponse, error) {
	if !c.limiter.TryConsume(1) {
		return nil, &RateLimitError{
			Provider: ProviderSerper,
			Local:    true,
			Message:  fmt.Sprintf("limit of %d requests per minute reached", serperRequestsPerMinute),
		}
	}

	payload, err := json.Marshal(serperRequest{
		Query:    query,
		Num:      num,
		Page:     page,
		Country:  opts.Country,
		Language: opts.Language,
		TBS:      serperTBS(opts.DateRange),
	})
	if err != nil {
		return nil, &APIError{Provider: ProviderSerper, Message: fmt.Sprintf("marshal request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, &APIError{Provider: ProviderSerper, Message: fmt.Sprintf("create request: %v", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, &TimeoutError{Provider: ProviderSerper, Timeout: c.httpClient.Timeout}
		}
		return nil, &APIError{Provider: ProviderSerper, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, &APIError{Provider: ProviderSerper, Message: fmt.Sprintf("read response: %v", readErr)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusToError(ProviderSerper, resp.StatusCode, body)
	}

	var decoded serperResponse
	if jsonErr := json.Unmarshal(body, &decoded); jsonErr != nil {
		return nil, &APIError{Provider: ProviderSerper, Message: fmt.Sprintf("decode response: %v", jsonErr)}
	}

	return &decoded, nil
}

// serperTBS maps the generic date-range option to Google time-based search codes.
func serperTBS(dateRange string) string {
	switch dateRange {
	case "day":
		return "qdr:d"
	case "week":
		return "qdr:w"
	case "month":
		return "qdr:m"
	case "year":
		return "qdr:y"
	default:
		return ""
	}
}
