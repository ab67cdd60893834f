package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dimelab/issue-observatory/internal/domain"
)

// MemoryStore is an in-memory implementation of JobRepository and
// PageRepository. It backs tests and crawls run without a database.
type MemoryStore struct {
	mu        sync.Mutex
	jobs      map[string]*domain.CrawlJob
	cancelled map[string]bool
	pages     map[string][]*domain.FetchedPage // keyed by job id
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:      make(map[string]*domain.CrawlJob),
		cancelled: make(map[string]bool),
		pages:     make(map[string][]*domain.FetchedPage),
	}
}

// Create stores a new job.
func (m *MemoryStore) Create(_ context.Context, job *domain.CrawlJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	cloned := *job
	m.jobs[job.ID] = &cloned

	return nil
}

// GetByID returns a copy of the stored job.
func (m *MemoryStore) GetByID(_ context.Context, id string) (*domain.CrawlJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	cloned := *job

	return &cloned, nil
}

// List returns stored jobs, optionally filtered by status.
func (m *MemoryStore) List(_ context.Context, status string, limit, offset int) ([]*domain.CrawlJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	jobs := make([]*domain.CrawlJob, 0, len(m.jobs))

	for _, job := range m.jobs {
		if status != "" && job.Status != status {
			continue
		}

		cloned := *job
		jobs = append(jobs, &cloned)
	}

	if offset >= len(jobs) {
		return []*domain.CrawlJob{}, nil
	}

	jobs = jobs[offset:]
	if limit > 0 && limit < len(jobs) {
		jobs = jobs[:limit]
	}

	return jobs, nil
}

// MarkRunning flips a pending job to running.
func (m *MemoryStore) MarkRunning(_ context.Context, id string, startedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	if job.Status != domain.JobStatusPending {
		return false, nil
	}

	job.Status = domain.JobStatusRunning
	job.StartedAt = &startedAt
	job.UpdatedAt = time.Now().UTC()

	return true, nil
}

// MarkTerminal records a terminal status.
func (m *MemoryStore) MarkTerminal(
	_ context.Context,
	id, status string,
	errorMessage *string,
	completedAt time.Time,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	job.Status = status
	job.ErrorMessage = errorMessage
	job.CompletedAt = &completedAt
	job.UpdatedAt = time.Now().UTC()

	return nil
}

// RequestCancel raises the cancellation flag.
func (m *MemoryStore) RequestCancel(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	m.cancelled[id] = true

	return nil
}

// IsCancelled reports whether cancellation was requested.
func (m *MemoryStore) IsCancelled(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[id]; !ok {
		return false, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	return m.cancelled[id], nil
}

// UpdateProgress stores a counter snapshot.
func (m *MemoryStore) UpdateProgress(_ context.Context, id string, counters domain.ProgressCounters) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	job.TotalURLs = counters.TotalURLs
	job.URLsScraped = counters.URLsScraped
	job.URLsFailed = counters.URLsFailed
	job.URLsSkipped = counters.URLsSkipped
	job.CurrentDepth = counters.CurrentDepth
	job.ErrorCount = counters.ErrorCount
	job.UpdatedAt = time.Now().UTC()

	return nil
}

// Append stores a fetched page record.
func (m *MemoryStore) Append(_ context.Context, page *domain.FetchedPage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cloned := *page
	m.pages[page.JobID] = append(m.pages[page.JobID], &cloned)

	return nil
}

// ListByJob returns recorded pages in insertion order.
func (m *MemoryStore) ListByJob(
	_ context.Context,
	jobID string,
	limit, offset int,
) ([]*domain.FetchedPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pages := m.pages[jobID]

	if offset >= len(pages) {
		return []*domain.FetchedPage{}, nil
	}

	pages = pages[offset:]
	if limit > 0 && limit < len(pages) {
		pages = pages[:limit]
	}

	out := make([]*domain.FetchedPage, 0, len(pages))

	for _, page := range pages {
		cloned := *page
		out = append(out, &cloned)
	}

	return out, nil
}

// CountByJob returns the number of recorded pages.
func (m *MemoryStore) CountByJob(_ context.Context, jobID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.pages[jobID]), nil
}

// DepthDistribution returns page counts per depth level.
func (m *MemoryStore) DepthDistribution(_ context.Context, jobID string) (map[int]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dist := make(map[int]int)
	for _, page := range m.pages[jobID] {
		dist[page.DepthLevel]++
	}

	return dist, nil
}

// LanguageDistribution returns page counts per language.
func (m *MemoryStore) LanguageDistribution(_ context.Context, jobID string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dist := make(map[string]int)
	for _, page := range m.pages[jobID] {
		dist[page.Language]++
	}

	return dist, nil
}
