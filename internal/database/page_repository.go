package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/dimelab/issue-observatory/internal/domain"
)

// PostgresPageRepository handles database operations for fetched pages.
type PostgresPageRepository struct {
	db *sqlx.DB
}

// NewPageRepository creates a new page repository.
func NewPageRepository(db *sqlx.DB) *PostgresPageRepository {
	return &PostgresPageRepository{db: db}
}

// Append inserts one fetched page record.
func (r *PostgresPageRepository) Append(ctx context.Context, page *domain.FetchedPage) error {
	query := `
		INSERT INTO fetched_pages (
			id, job_id, url, final_url, parent_url, http_status, status,
			error_message, title, extracted_text, language, outbound_links,
			depth_level, fetch_duration_ms, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.db.ExecContext(ctx, query,
		page.ID,
		page.JobID,
		page.URL,
		page.FinalURL,
		page.ParentURL,
		page.HTTPStatus,
		page.Status,
		page.ErrorMessage,
		page.Title,
		page.ExtractedText,
		page.Language,
		page.OutboundLinks,
		page.DepthLevel,
		page.FetchDurationMs,
		page.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append page: %w", err)
	}

	return nil
}

// ListByJob retrieves pages for a job in the order they were recorded.
func (r *PostgresPageRepository) ListByJob(
	ctx context.Context,
	jobID string,
	limit, offset int,
) ([]*domain.FetchedPage, error) {
	var pages []*domain.FetchedPage

	query := `
		SELECT id, job_id, url, final_url, parent_url, http_status, status,
		       error_message, title, extracted_text, language, outbound_links,
		       depth_level, fetch_duration_ms, created_at
		FROM fetched_pages
		WHERE job_id = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`

	if err := r.db.SelectContext(ctx, &pages, query, jobID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}

	if pages == nil {
		pages = []*domain.FetchedPage{}
	}

	return pages, nil
}

// CountByJob returns the number of pages recorded for a job.
func (r *PostgresPageRepository) CountByJob(ctx context.Context, jobID string) (int, error) {
	var count int

	query := `SELECT COUNT(*) FROM fetched_pages WHERE job_id = $1`

	if err := r.db.GetContext(ctx, &count, query, jobID); err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}

	return count, nil
}

// DepthDistribution returns page counts per BFS depth level.
func (r *PostgresPageRepository) DepthDistribution(
	ctx context.Context,
	jobID string,
) (map[int]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT depth_level, COUNT(*) FROM fetched_pages WHERE job_id = $1 GROUP BY depth_level`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get depth distribution: %w", err)
	}
	defer rows.Close()

	dist := make(map[int]int)

	for rows.Next() {
		var depth, count int
		if scanErr := rows.Scan(&depth, &count); scanErr != nil {
			return nil, fmt.Errorf("failed to scan depth distribution: %w", scanErr)
		}
		dist[depth] = count
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to read depth distribution: %w", rowsErr)
	}

	return dist, nil
}

// LanguageDistribution returns page counts per extracted language.
func (r *PostgresPageRepository) LanguageDistribution(
	ctx context.Context,
	jobID string,
) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT language, COUNT(*) FROM fetched_pages WHERE job_id = $1 GROUP BY language`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get language distribution: %w", err)
	}
	defer rows.Close()

	dist := make(map[string]int)

	for rows.Next() {
		var (
			language string
			count    int
		)

		if scanErr := rows.Scan(&language, &count); scanErr != nil {
			return nil, fmt.Errorf("failed to scan language distribution: %w", scanErr)
		}

		dist[language] = count
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to read language distribution: %w", rowsErr)
	}

	return dist, nil
}
