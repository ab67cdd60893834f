package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dimelab/issue-observatory/internal/domain"
)

// PostgresJobRepository handles database operations for crawl jobs.
type PostgresJobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a new job repository.
func NewJobRepository(db *sqlx.DB) *PostgresJobRepository {
	return &PostgresJobRepository{db: db}
}

// Create inserts a new job.
func (r *PostgresJobRepository) Create(ctx context.Context, job *domain.CrawlJob) error {
	query := `
		INSERT INTO crawl_jobs (id, config, status)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query, job.ID, job.Config, job.Status).
		Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetByID retrieves a job by its id.
func (r *PostgresJobRepository) GetByID(ctx context.Context, id string) (*domain.CrawlJob, error) {
	var job domain.CrawlJob

	query := `
		SELECT id, config, status, error_message, started_at, completed_at,
		       total_urls, urls_scraped, urls_failed, urls_skipped,
		       current_depth, error_count, created_at, updated_at
		FROM crawl_jobs
		WHERE id = $1
	`

	err := r.db.GetContext(ctx, &job, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// List retrieves jobs ordered by creation time, optionally filtered by status.
func (r *PostgresJobRepository) List(
	ctx context.Context,
	status string,
	limit, offset int,
) ([]*domain.CrawlJob, error) {
	var jobs []*domain.CrawlJob

	var (
		query string
		args  []any
	)

	if status != "" {
		query = `
			SELECT id, config, status, error_message, started_at, completed_at,
			       total_urls, urls_scraped, urls_failed, urls_skipped,
			       current_depth, error_count, created_at, updated_at
			FROM crawl_jobs
			WHERE status = $1
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3
		`
		args = []any{status, limit, offset}
	} else {
		query = `
			SELECT id, config, status, error_message, started_at, completed_at,
			       total_urls, urls_scraped, urls_failed, urls_skipped,
			       current_depth, error_count, created_at, updated_at
			FROM crawl_jobs
			ORDER BY created_at DESC
			LIMIT $1 OFFSET $2
		`
		args = []any{limit, offset}
	}

	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	if jobs == nil {
		jobs = []*domain.CrawlJob{}
	}

	return jobs, nil
}

// MarkRunning flips a pending job to running. The WHERE clause on status
// makes the transition a compare-and-set: zero rows affected means the job
// was not pending.
func (r *PostgresJobRepository) MarkRunning(
	ctx context.Context,
	id string,
	startedAt time.Time,
) (bool, error) {
	query := `
		UPDATE crawl_jobs
		SET status = $1, started_at = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`

	result, err := r.db.ExecContext(ctx, query, domain.JobStatusRunning, startedAt, id, domain.JobStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to mark job running: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// MarkTerminal records a terminal status for the job.
func (r *PostgresJobRepository) MarkTerminal(
	ctx context.Context,
	id, status string,
	errorMessage *string,
	completedAt time.Time,
) error {
	query := `
		UPDATE crawl_jobs
		SET status = $1, error_message = $2, completed_at = $3, updated_at = NOW()
		WHERE id = $4
	`

	result, err := r.db.ExecContext(ctx, query, status, errorMessage, completedAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark job terminal: %w", err)
	}

	return checkFound(result, id)
}

// RequestCancel raises the cancellation flag for a job.
func (r *PostgresJobRepository) RequestCancel(ctx context.Context, id string) error {
	query := `UPDATE crawl_jobs SET cancel_requested = TRUE, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to request cancel: %w", err)
	}

	return checkFound(result, id)
}

// IsCancelled reports whether cancellation was requested for the job.
func (r *PostgresJobRepository) IsCancelled(ctx context.Context, id string) (bool, error) {
	var cancelled bool

	query := `SELECT cancel_requested FROM crawl_jobs WHERE id = $1`

	err := r.db.GetContext(ctx, &cancelled, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("%w: %s", ErrJobNotFound, id)
		}
		return false, fmt.Errorf("failed to check cancellation: %w", err)
	}

	return cancelled, nil
}

// UpdateProgress persists a counter snapshot.
func (r *PostgresJobRepository) UpdateProgress(
	ctx context.Context,
	id string,
	counters domain.ProgressCounters,
) error {
	query := `
		UPDATE crawl_jobs
		SET total_urls = $1, urls_scraped = $2, urls_failed = $3,
		    urls_skipped = $4, current_depth = $5, error_count = $6,
		    updated_at = NOW()
		WHERE id = $7
	`

	result, err := r.db.ExecContext(ctx, query,
		counters.TotalURLs,
		counters.URLsScraped,
		counters.URLsFailed,
		counters.URLsSkipped,
		counters.CurrentDepth,
		counters.ErrorCount,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}

	return checkFound(result, id)
}

// checkFound translates zero affected rows into ErrJobNotFound.
func checkFound(result sql.Result, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	return nil
}
