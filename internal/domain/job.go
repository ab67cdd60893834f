// Package domain provides domain models used across the application.
package domain

import (
	"time"
)

// CrawlJob status constants.
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"
)

// CrawlJob is the mutable aggregate of a single crawl. Progress counters are
// monotonically non-decreasing until the job reaches a terminal status.
type CrawlJob struct {
	// Identity
	ID     string      `db:"id"     json:"id"`
	Config CrawlConfig `db:"config" json:"config"`

	// Lifecycle
	Status       string     `db:"status"        json:"status"`
	ErrorMessage *string    `db:"error_message" json:"error_message,omitempty"`
	StartedAt    *time.Time `db:"started_at"    json:"started_at,omitempty"`
	CompletedAt  *time.Time `db:"completed_at"  json:"completed_at,omitempty"`

	// Progress
	TotalURLs    int `db:"total_urls"    json:"total_urls"`
	URLsScraped  int `db:"urls_scraped"  json:"urls_scraped"`
	URLsFailed   int `db:"urls_failed"   json:"urls_failed"`
	URLsSkipped  int `db:"urls_skipped"  json:"urls_skipped"`
	CurrentDepth int `db:"current_depth" json:"current_depth"`
	ErrorCount   int `db:"error_count"   json:"error_count"`

	// Timestamps
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// IsTerminal reports whether the job has reached a terminal status.
func (j *CrawlJob) IsTerminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// ProgressCounters is the counter snapshot persisted after each fetch.
type ProgressCounters struct {
	TotalURLs    int `json:"total_urls"`
	URLsScraped  int `json:"urls_scraped"`
	URLsFailed   int `json:"urls_failed"`
	URLsSkipped  int `json:"urls_skipped"`
	CurrentDepth int `json:"current_depth"`
	ErrorCount   int `json:"error_count"`
}

// JobStatistics is the derived, read-only view of a job's progress.
type JobStatistics struct {
	JobID                string         `json:"job_id"`
	Status               string         `json:"status"`
	TotalURLs            int            `json:"total_urls"`
	URLsScraped          int            `json:"urls_scraped"`
	URLsFailed           int            `json:"urls_failed"`
	URLsSkipped          int            `json:"urls_skipped"`
	CurrentDepth         int            `json:"current_depth"`
	ErrorCount           int            `json:"error_count"`
	ProgressPercentage   float64        `json:"progress_percentage"`
	DepthDistribution    map[int]int    `json:"depth_distribution"`
	LanguageDistribution map[string]int `json:"language_distribution"`
	StartedAt            *time.Time     `json:"started_at,omitempty"`
	CompletedAt          *time.Time     `json:"completed_at,omitempty"`
}
