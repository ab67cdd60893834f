package crawler_test

import (
	"testing"

	"github.com/dimelab/issue-observatory/internal/crawler"
	"github.com/dimelab/issue-observatory/internal/domain"
)

func TestLinkFilterSameDomain(t *testing.T) {
	t.Parallel()

	filter := crawler.NewLinkFilter(domain.CrawlConfig{
		DomainPolicy: domain.PolicySameDomain,
	})

	tests := []struct {
		name   string
		url    string
		anchor string
		want   bool
	}{
		{"same domain", "https://example.org/page", "example.org", true},
		{"www variant matches bare anchor", "https://www.example.org/page", "example.org", true},
		{"different domain", "https://other.org/page", "example.org", false},
		{"subdomain is a different domain", "https://blog.example.org/", "example.org", false},
		{"case insensitive host", "https://EXAMPLE.ORG/page", "example.org", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := filter.Admit(tt.url, tt.anchor); got != tt.want {
				t.Errorf("Admit(%q, %q) = %v, want %v", tt.url, tt.anchor, got, tt.want)
			}
		})
	}
}

func TestLinkFilterAllowAll(t *testing.T) {
	t.Parallel()

	filter := crawler.NewLinkFilter(domain.CrawlConfig{
		DomainPolicy:    domain.PolicyAllowAll,
		ExcludedDomains: []string{"ads.example.org"},
	})

	tests := []struct {
		name   string
		url    string
		want   bool
	}{
		{"any http domain", "http://anywhere.net/x", true},
		{"any https domain", "https://elsewhere.io/", true},
		{"excluded domain", "https://ads.example.org/banner", false},
		{"excluded domain www variant", "https://www.ads.example.org/banner", false},
		{"ftp scheme", "ftp://files.example.org/x", false},
		{"mailto", "mailto:someone@example.org", false},
		{"no host", "https:///path-only", false},
		{"pdf document", "https://anywhere.net/report.pdf", false},
		{"zip archive", "https://anywhere.net/data.ZIP", false},
		{"image", "https://anywhere.net/photo.jpeg", false},
		{"html page with extension", "https://anywhere.net/page.html", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := filter.Admit(tt.url, "example.org"); got != tt.want {
				t.Errorf("Admit(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestLinkFilterAllowTLDList(t *testing.T) {
	t.Parallel()

	filter := crawler.NewLinkFilter(domain.CrawlConfig{
		DomainPolicy: domain.PolicyAllowTLDList,
		AllowedTLDs:  []string{"dk", ".co.uk"},
	})

	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"allowed tld", "https://avis.dk/artikel", true},
		{"allowed tld subdomain", "https://nyheder.avis.dk/", true},
		{"multi-label tld", "https://paper.co.uk/story", true},
		{"other tld", "https://journal.fr/article", false},
		{"tld embedded in name", "https://dk-fan.com/", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := filter.Admit(tt.url, "avis.dk"); got != tt.want {
				t.Errorf("Admit(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestNormalizeDomain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		host string
		want string
	}{
		{"Example.ORG", "example.org"},
		{"www.example.org", "example.org"},
		{"example.org.", "example.org"},
		{"wwwexample.org", "wwwexample.org"},
	}

	for _, tt := range tests {
		if got := crawler.NormalizeDomain(tt.host); got != tt.want {
			t.Errorf("NormalizeDomain(%q) = %q, want %q", tt.host, got, tt.want)
		}
	}
}
