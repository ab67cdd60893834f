package database

import (
	"context"
	"errors"
	"time"

	"github.com/dimelab/issue-observatory/internal/domain"
)

// ErrJobNotFound is returned when a job id does not exist.
var ErrJobNotFound = errors.New("job not found")

// JobRepository defines the contract for crawl job data access.
type JobRepository interface {
	Create(ctx context.Context, job *domain.CrawlJob) error
	GetByID(ctx context.Context, id string) (*domain.CrawlJob, error)
	List(ctx context.Context, status string, limit, offset int) ([]*domain.CrawlJob, error)

	// MarkRunning flips a pending job to running, recording startedAt.
	// Returns false when the job was not pending (compare-and-set).
	MarkRunning(ctx context.Context, id string, startedAt time.Time) (bool, error)

	// MarkTerminal records a terminal status with completedAt and an
	// optional error message.
	MarkTerminal(ctx context.Context, id, status string, errorMessage *string, completedAt time.Time) error

	// RequestCancel raises the cancellation flag observed by the crawler.
	RequestCancel(ctx context.Context, id string) error
	IsCancelled(ctx context.Context, id string) (bool, error)

	UpdateProgress(ctx context.Context, id string, counters domain.ProgressCounters) error
}

// PageRepository defines the contract for fetched page data access.
type PageRepository interface {
	Append(ctx context.Context, page *domain.FetchedPage) error
	ListByJob(ctx context.Context, jobID string, limit, offset int) ([]*domain.FetchedPage, error)
	CountByJob(ctx context.Context, jobID string) (int, error)
	DepthDistribution(ctx context.Context, jobID string) (map[int]int, error)
	LanguageDistribution(ctx context.Context, jobID string) (map[string]int, error)
}
