package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// Domain policy constants for crawl link admission.
const (
	PolicySameDomain   = "same_domain"
	PolicyAllowAll     = "allow_all"
	PolicyAllowTLDList = "allow_tld_list"
)

// Depth bounds for a crawl.
const (
	MinCrawlDepth = 1
	MaxCrawlDepth = 3
)

// ErrInvalidConfig is wrapped by all CrawlConfig validation failures.
var ErrInvalidConfig = errors.New("invalid crawl config")

// CrawlConfig holds the immutable configuration of a crawl job.
type CrawlConfig struct {
	SeedURLs        []string `json:"seed_urls"`
	MaxDepth        int      `json:"max_depth"`
	DomainPolicy    string   `json:"domain_policy"`
	AllowedTLDs     []string `json:"allowed_tlds,omitempty"`
	ExcludedDomains []string `json:"excluded_domains,omitempty"`
	DelayMinSeconds float64  `json:"delay_min_seconds"`
	DelayMaxSeconds float64  `json:"delay_max_seconds"`
	MaxRetries      int      `json:"max_retries"`
	TimeoutSeconds  int      `json:"timeout_seconds"`
	RespectRobots   bool     `json:"respect_robots"`
}

// Validate checks invariants before any I/O. All failures wrap ErrInvalidConfig.
func (c *CrawlConfig) Validate() error {
	if len(c.SeedURLs) == 0 {
		return fmt.Errorf("%w: at least one seed URL is required", ErrInvalidConfig)
	}

	if c.MaxDepth < MinCrawlDepth || c.MaxDepth > MaxCrawlDepth {
		return fmt.Errorf("%w: max_depth %d outside [%d,%d]",
			ErrInvalidConfig, c.MaxDepth, MinCrawlDepth, MaxCrawlDepth)
	}

	if c.DelayMinSeconds < 0 {
		return fmt.Errorf("%w: delay_min_seconds must be >= 0", ErrInvalidConfig)
	}

	if c.DelayMaxSeconds < c.DelayMinSeconds {
		return fmt.Errorf("%w: delay_max_seconds %v < delay_min_seconds %v",
			ErrInvalidConfig, c.DelayMaxSeconds, c.DelayMinSeconds)
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max_retries must be >= 0", ErrInvalidConfig)
	}

	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("%w: timeout_seconds must be > 0", ErrInvalidConfig)
	}

	switch c.DomainPolicy {
	case PolicySameDomain, PolicyAllowAll:
	case PolicyAllowTLDList:
		if len(c.AllowedTLDs) == 0 {
			return fmt.Errorf("%w: %s requires allowed_tlds", ErrInvalidConfig, PolicyAllowTLDList)
		}
	default:
		return fmt.Errorf("%w: unknown domain_policy %q", ErrInvalidConfig, c.DomainPolicy)
	}

	return nil
}

// Scan implements the sql.Scanner interface for JSONB columns.
func (c *CrawlConfig) Scan(value any) error {
	if value == nil {
		*c = CrawlConfig{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return errors.New("unsupported type for CrawlConfig")
	}

	return json.Unmarshal(data, c)
}

// Value implements the driver.Valuer interface for JSONB columns.
func (c CrawlConfig) Value() (driver.Value, error) {
	return json.Marshal(c)
}
