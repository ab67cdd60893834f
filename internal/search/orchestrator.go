package search

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dimelab/issue-observatory/internal/config"
	"github.com/dimelab/issue-observatory/internal/domain"
	"github.com/dimelab/issue-observatory/internal/logger"
)

// ProviderFactory constructs a provider client by name.
type ProviderFactory func(name string, cfg config.ProvidersConfig, log logger.Interface) (Provider, error)

// Orchestrator runs a set of queries against one provider and assembles a
// deduplicated search session. Search is all-or-nothing per call: a provider
// failure aborts the whole run.
type Orchestrator struct {
	providersCfg config.ProvidersConfig
	newProvider  ProviderFactory
	log          logger.Interface
}

// NewOrchestrator creates a search orchestrator.
func NewOrchestrator(providersCfg config.ProvidersConfig, log logger.Interface) *Orchestrator {
	return &Orchestrator{
		providersCfg: providersCfg,
		newProvider:  NewProvider,
		log:          log,
	}
}

// Run executes each query sequentially against the named provider and merges
// the results into a session. Hits are deduplicated by normalized URL keeping
// the best (lowest) rank. Input validation happens before any I/O.
func (o *Orchestrator) Run(
	ctx context.Context,
	queries []string,
	providerName string,
	maxResults int,
	opts Options,
) (*domain.SearchSession, error) {
	cleaned := make([]string, 0, len(queries))
	for _, q := range queries {
		if trimmed := strings.TrimSpace(q); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}

	if len(cleaned) == 0 {
		return nil, ErrNoQueries
	}

	provider, err := o.newProvider(providerName, o.providersCfg, o.log)
	if err != nil {
		return nil, err
	}

	session := &domain.SearchSession{
		ID:        uuid.New().String(),
		Provider:  providerName,
		Queries:   cleaned,
		CreatedAt: time.Now().UTC(),
	}

	seenURLs := make(map[string]int) // normalized url -> index into session.Hits
	seenSuggestions := make(map[string]struct{})
	seenRelated := make(map[string]struct{})

	for _, query := range cleaned {
		result, searchErr := provider.Search(ctx, query, maxResults, opts)
		if searchErr != nil {
			return nil, fmt.Errorf("query %q: %w", query, searchErr)
		}

		o.log.Info("query executed",
			"session_id", session.ID,
			"provider", providerName,
			"query", query,
			"hits", len(result.Hits),
		)

		for _, hit := range result.Hits {
			key := normalizeHitURL(hit.URL)

			if idx, seen := seenURLs[key]; seen {
				if hit.Rank < session.Hits[idx].Rank {
					session.Hits[idx] = hit
				}
				continue
			}

			seenURLs[key] = len(session.Hits)
			session.Hits = append(session.Hits, hit)
		}

		for _, s := range result.Suggestions {
			if _, seen := seenSuggestions[s]; !seen {
				seenSuggestions[s] = struct{}{}
				session.Suggestions = append(session.Suggestions, s)
			}
		}

		for _, r := range result.RelatedSearches {
			if _, seen := seenRelated[r]; !seen {
				seenRelated[r] = struct{}{}
				session.RelatedSearches = append(session.RelatedSearches, r)
			}
		}
	}

	return session, nil
}

// normalizeHitURL folds trivial URL variants onto one dedupe key: the host is
// lowercased with any www. prefix stripped, and the fragment is dropped.
// Unparseable URLs key on their raw form.
func normalizeHitURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return raw
	}

	parsed.Host = strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
	parsed.Fragment = ""

	return parsed.String()
}
