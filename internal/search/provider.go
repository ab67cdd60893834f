package search

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/dimelab/issue-observatory/internal/config"
	"github.com/dimelab/issue-observatory/internal/domain"
	"github.com/dimelab/issue-observatory/internal/logger"
)

// Registered provider names.
const (
	ProviderBrave     = "brave"
	ProviderSerper    = "serper"
	ProviderGoogleCSE = "google_cse"
)

// Options carries optional provider parameters. Providers ignore options they
// do not support.
type Options struct {
	Country   string // two-letter country code, e.g. "us"
	Language  string // search language, e.g. "en"
	DateRange string // provider-specific recency filter, e.g. "month"
}

// Result is the output of one provider search call.
type Result struct {
	Hits            []domain.SearchHit
	Suggestions     []string
	RelatedSearches []string
}

// Provider is the shared contract implemented by every search provider
// variant. Search returns up to maxResults hits with 1-based ranks assigned
// in provider order across paginated requests.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int, opts Options) (*Result, error)
}

// NewProvider constructs a provider client by name. The set of providers is
// closed; adding one means adding a case here. Unknown names wrap
// ErrUnknownProvider; missing credentials surface as *ConfigError.
func NewProvider(name string, cfg config.ProvidersConfig, log logger.Interface) (Provider, error) {
	switch name {
	case ProviderBrave:
		return NewBraveClient(cfg.Brave, log)
	case ProviderSerper:
		return NewSerperClient(cfg.Serper, log)
	case ProviderGoogleCSE:
		return NewGoogleCSEClient(cfg.GoogleCSE, log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
}

// ProviderNames lists the registered provider names.
func ProviderNames() []string {
	return []string{ProviderBrave, ProviderSerper, ProviderGoogleCSE}
}

// HitDomain extracts the registrable host from a result URL. It never fails:
// unparseable URLs yield an empty string.
func HitDomain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	host := strings.ToLower(parsed.Hostname())

	return strings.TrimPrefix(host, "www.")
}

// clampMaxResults applies a provider's absolute result cap, logging when the
// caller's request is reduced rather than failing it.
func clampMaxResults(maxResults, cap int, provider string, log logger.Interface) int {
	if maxResults <= 0 {
		return cap
	}

	if maxResults > cap {
		log.Warn("max results clamped to provider cap",
			"provider", provider,
			"requested", maxResults,
			"cap", cap,
		)
		return cap
	}

	return maxResults
}

// isTimeout reports whether err is a transport-level timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}
