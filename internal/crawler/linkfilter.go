// Package crawler implements the depth-bounded, politeness-aware BFS crawler
// and its link admission policy.
package crawler

import (
	"net/url"
	"path"
	"strings"

	"github.com/dimelab/issue-observatory/internal/domain"
)

// excludedExtensions lists file types that are never crawled: documents,
// archives, media and other binary payloads.
var excludedExtensions = map[string]struct{}{
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {},
	".ppt": {}, ".pptx": {}, ".odt": {}, ".rtf": {},
	".zip": {}, ".rar": {}, ".7z": {}, ".gz": {}, ".tar": {}, ".bz2": {},
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".svg": {}, ".webp": {},
	".mp3": {}, ".mp4": {}, ".avi": {}, ".mov": {}, ".wmv": {},
	".exe": {}, ".dmg": {}, ".iso": {}, ".bin": {},
}

// LinkFilter decides whether a candidate URL is admissible under a crawl's
// domain policy. It is a pure predicate with no side effects; visited-set
// bookkeeping belongs to the crawler.
type LinkFilter struct {
	policy          string
	allowedTLDs     []string
	excludedDomains map[string]struct{}
}

// NewLinkFilter builds a filter from the crawl configuration.
func NewLinkFilter(cfg domain.CrawlConfig) *LinkFilter {
	excluded := make(map[string]struct{}, len(cfg.ExcludedDomains))
	for _, d := range cfg.ExcludedDomains {
		excluded[NormalizeDomain(d)] = struct{}{}
	}

	tlds := make([]string, 0, len(cfg.AllowedTLDs))
	for _, tld := range cfg.AllowedTLDs {
		tlds = append(tlds, strings.ToLower(strings.TrimPrefix(tld, ".")))
	}

	return &LinkFilter{
		policy:          cfg.DomainPolicy,
		allowedTLDs:     tlds,
		excludedDomains: excluded,
	}
}

// Admit reports whether rawURL may be enqueued. anchorDomain is the
// normalized domain of the original seed this crawl branch started from;
// under the same_domain policy candidates must match it at every depth.
func (f *LinkFilter) Admit(rawURL, anchorDomain string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}

	host := parsed.Hostname()
	if host == "" {
		return false
	}

	if hasExcludedExtension(parsed.Path) {
		return false
	}

	candidate := NormalizeDomain(host)

	if _, excluded := f.excludedDomains[candidate]; excluded {
		return false
	}

	switch f.policy {
	case domain.PolicySameDomain:
		return candidate == anchorDomain
	case domain.PolicyAllowTLDList:
		return f.matchesAllowedTLD(candidate)
	case domain.PolicyAllowAll:
		return true
	default:
		return false
	}
}

// matchesAllowedTLD checks the candidate's registrable suffix against the
// allow list. Multi-label entries such as "co.uk" are matched as suffixes.
func (f *LinkFilter) matchesAllowedTLD(candidate string) bool {
	for _, tld := range f.allowedTLDs {
		if candidate == tld || strings.HasSuffix(candidate, "."+tld) {
			return true
		}
	}

	return false
}

// NormalizeDomain lowercases a host and strips a leading "www." prefix so
// that www and bare variants of a domain compare equal.
func NormalizeDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))

	return strings.TrimPrefix(host, "www.")
}

// hasExcludedExtension reports whether the URL path ends in a file type the
// crawler never fetches.
func hasExcludedExtension(urlPath string) bool {
	ext := strings.ToLower(path.Ext(urlPath))
	if ext == "" {
		return false
	}

	_, excluded := excludedExtensions[ext]

	return excluded
}
