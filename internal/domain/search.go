package domain

import "time"

// SearchHit is one result entry returned by a search provider. Rank is 1-based
// and monotonically increasing across paginated pages of a single call.
type SearchHit struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Rank        int    `json:"rank"`
	Domain      string `json:"domain"`
}

// SearchSession is the assembled output of one orchestrated search run:
// a set of queries executed against a single provider, deduplicated by URL.
type SearchSession struct {
	ID              string      `json:"id"`
	Provider        string      `json:"provider"`
	Queries         []string    `json:"queries"`
	Hits            []SearchHit `json:"hits"`
	Suggestions     []string    `json:"suggestions,omitempty"`
	RelatedSearches []string    `json:"related_searches,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

// SeedURLs returns the hit URLs in rank order, for use as crawl seeds.
func (s *SearchSession) SeedURLs() []string {
	urls := make([]string, 0, len(s.Hits))
	for _, hit := range s.Hits {
		urls = append(urls, hit.URL)
	}
	return urls
}
