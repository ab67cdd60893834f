// Package job implements the crawl job lifecycle: creation, the
// pending -> running -> terminal state machine, cancellation and statistics.
package job

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dimelab/issue-observatory/internal/config"
	"github.com/dimelab/issue-observatory/internal/crawler"
	"github.com/dimelab/issue-observatory/internal/database"
	"github.com/dimelab/issue-observatory/internal/domain"
	"github.com/dimelab/issue-observatory/internal/logger"
)

// CrawlRunner executes a crawl for one job, mutating its progress counters.
type CrawlRunner interface {
	Run(ctx context.Context, job *domain.CrawlJob) error
}

// RunnerFactory builds a CrawlRunner for a job's config. Swapped out in tests.
type RunnerFactory func(cfg domain.CrawlConfig) CrawlRunner

// Service coordinates job persistence and crawl execution.
type Service struct {
	jobs      database.JobRepository
	pages     database.PageRepository
	defaults  config.CrawlerConfig
	log       logger.Interface
	newRunner RunnerFactory
}

// NewService creates a job service wired to the real crawler.
func NewService(
	jobs database.JobRepository,
	pages database.PageRepository,
	defaults config.CrawlerConfig,
	log logger.Interface,
) *Service {
	s := &Service{
		jobs:     jobs,
		pages:    pages,
		defaults: defaults,
		log:      log,
	}
	s.newRunner = s.buildCrawler

	return s
}

// CreateJob validates the config, applies crawler-wide defaults to unset
// tuning fields and persists the job in pending status. Validation failures
// wrap domain.ErrInvalidConfig.
func (s *Service) CreateJob(ctx context.Context, cfg domain.CrawlConfig) (*domain.CrawlJob, error) {
	s.applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	j := &domain.CrawlJob{
		ID:     uuid.New().String(),
		Config: cfg,
		Status: domain.JobStatusPending,
	}

	if err := s.jobs.Create(ctx, j); err != nil {
		return nil, err
	}

	s.log.Info("job created", "job_id", j.ID, "seeds", len(cfg.SeedURLs), "max_depth", cfg.MaxDepth)

	return j, nil
}

// GetJob retrieves a job by id.
func (s *Service) GetJob(ctx context.Context, id string) (*domain.CrawlJob, error) {
	return s.jobs.GetByID(ctx, id)
}

// ListJobs retrieves jobs, optionally filtered by status.
func (s *Service) ListJobs(ctx context.Context, status string, limit, offset int) ([]*domain.CrawlJob, error) {
	return s.jobs.List(ctx, status, limit, offset)
}

// StartJob atomically flips a pending job to running and returns the updated
// job. Any other current status yields an InvalidStateError; the crawl itself
// is run separately via Execute.
func (s *Service) StartJob(ctx context.Context, id string) (*domain.CrawlJob, error) {
	j, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	startedAt := time.Now().UTC()

	ok, err := s.jobs.MarkRunning(ctx, id, startedAt)
	if err != nil {
		return nil, err
	}

	if !ok {
		// Lost the race or the job was never pending; refetch for the
		// status the caller will see in the error.
		if current, getErr := s.jobs.GetByID(ctx, id); getErr == nil {
			j = current
		}

		return nil, &InvalidStateError{JobID: id, CurrentStatus: j.Status, Action: "start"}
	}

	j.Status = domain.JobStatusRunning
	j.StartedAt = &startedAt

	s.log.Info("job started", "job_id", id)

	return j, nil
}

// Execute runs the crawl for a job already in running status and records the
// terminal outcome: completed on normal exit, cancelled when the crawl
// observed a cancellation request, failed otherwise.
func (s *Service) Execute(ctx context.Context, j *domain.CrawlJob) error {
	runErr := s.newRunner(j.Config).Run(ctx, j)

	status := domain.JobStatusCompleted

	var errorMessage *string

	switch {
	case runErr == nil:
	case errors.Is(runErr, crawler.ErrCancelled):
		status = domain.JobStatusCancelled
	default:
		status = domain.JobStatusFailed
		msg := runErr.Error()
		errorMessage = &msg
	}

	completedAt := time.Now().UTC()

	if err := s.jobs.MarkTerminal(ctx, j.ID, status, errorMessage, completedAt); err != nil {
		s.log.Error("failed to record job outcome", "job_id", j.ID, "status", status, "error", err)
		return err
	}

	j.Status = status
	j.ErrorMessage = errorMessage
	j.CompletedAt = &completedAt

	s.log.Info("job finished", "job_id", j.ID, "status", status)

	if status == domain.JobStatusFailed {
		return runErr
	}

	return nil
}

// Run starts a job and executes its crawl in the calling goroutine.
func (s *Service) Run(ctx context.Context, id string) (*domain.CrawlJob, error) {
	j, err := s.StartJob(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.Execute(ctx, j); err != nil {
		return j, err
	}

	return j, nil
}

// CancelJob requests cancellation of a running job. On any non-running job
// the request is an idempotent no-op; the crawl loop observes the flag and
// transitions the job to cancelled.
func (s *Service) CancelJob(ctx context.Context, id string) error {
	j, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if j.Status != domain.JobStatusRunning {
		return nil
	}

	if err := s.jobs.RequestCancel(ctx, id); err != nil {
		return err
	}

	s.log.Info("job cancellation requested", "job_id", id)

	return nil
}

// Statistics builds the derived progress view for a job.
func (s *Service) Statistics(ctx context.Context, id string) (*domain.JobStatistics, error) {
	j, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	depths, err := s.pages.DepthDistribution(ctx, id)
	if err != nil {
		return nil, err
	}

	languages, err := s.pages.LanguageDistribution(ctx, id)
	if err != nil {
		return nil, err
	}

	total := j.TotalURLs
	if total < 1 {
		total = 1
	}

	return &domain.JobStatistics{
		JobID:                j.ID,
		Status:               j.Status,
		TotalURLs:            j.TotalURLs,
		URLsScraped:          j.URLsScraped,
		URLsFailed:           j.URLsFailed,
		URLsSkipped:          j.URLsSkipped,
		CurrentDepth:         j.CurrentDepth,
		ErrorCount:           j.ErrorCount,
		ProgressPercentage:   float64(j.URLsScraped) / float64(total) * 100,
		DepthDistribution:    depths,
		LanguageDistribution: languages,
		StartedAt:            j.StartedAt,
		CompletedAt:          j.CompletedAt,
	}, nil
}

// applyDefaults fills unset tuning fields from the crawler-wide configuration.
func (s *Service) applyDefaults(cfg *domain.CrawlConfig) {
	if cfg.DelayMinSeconds == 0 && cfg.DelayMaxSeconds == 0 {
		cfg.DelayMinSeconds = s.defaults.DelayMinSeconds
		cfg.DelayMaxSeconds = s.defaults.DelayMaxSeconds
	}

	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = s.defaults.MaxRetries
	}

	if cfg.TimeoutSeconds == 0 {
		cfg.TimeoutSeconds = s.defaults.TimeoutSeconds
	}
}

// buildCrawler is the default RunnerFactory.
func (s *Service) buildCrawler(cfg domain.CrawlConfig) CrawlRunner {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	fetcher := crawler.NewHTTPFetcher(timeout, s.defaults.UserAgent, cfg.MaxRetries, s.log)

	var robots crawler.RobotsPolicy = crawler.PermissiveRobots{}
	if cfg.RespectRobots {
		robots = crawler.NewRobotsChecker(&http.Client{Timeout: timeout}, s.defaults.UserAgent)
	}

	return crawler.New(fetcher, robots, &storeAdapter{jobs: s.jobs, pages: s.pages}, s.log)
}

// storeAdapter presents the two repositories as the crawler's JobStore.
type storeAdapter struct {
	jobs  database.JobRepository
	pages database.PageRepository
}

func (a *storeAdapter) AppendPage(ctx context.Context, page *domain.FetchedPage) error {
	return a.pages.Append(ctx, page)
}

func (a *storeAdapter) UpdateProgress(ctx context.Context, jobID string, counters domain.ProgressCounters) error {
	return a.jobs.UpdateProgress(ctx, jobID, counters)
}

func (a *storeAdapter) IsCancelled(ctx context.Context, jobID string) (bool, error) {
	return a.jobs.IsCancelled(ctx, jobID)
}
