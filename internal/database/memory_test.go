package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dimelab/issue-observatory/internal/database"
	"github.com/dimelab/issue-observatory/internal/domain"
)

func newJob(id string) *domain.CrawlJob {
	return &domain.CrawlJob{
		ID: id,
		Config: domain.CrawlConfig{
			SeedURLs:     []string{"https://example.org"},
			MaxDepth:     1,
			DomainPolicy: domain.PolicySameDomain,
		},
		Status: domain.JobStatusPending,
	}
}

func TestMemoryStoreJobLifecycle(t *testing.T) {
	t.Parallel()

	store := database.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newJob("j1")))

	fetched, err := store.GetByID(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, fetched.Status)

	// The stored copy must not alias the caller's struct.
	fetched.Status = domain.JobStatusFailed
	again, err := store.GetByID(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, again.Status)

	ok, err := store.MarkRunning(ctx, "j1", time.Now())
	require.NoError(t, err)
	assert.True(t, ok, "pending job should transition to running")

	ok, err = store.MarkRunning(ctx, "j1", time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "running job must not transition twice")

	msg := "boom"
	require.NoError(t, store.MarkTerminal(ctx, "j1", domain.JobStatusFailed, &msg, time.Now()))

	final, err := store.GetByID(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, final.Status)
	require.NotNil(t, final.ErrorMessage)
	assert.Equal(t, "boom", *final.ErrorMessage)
	assert.NotNil(t, final.CompletedAt)
}

func TestMemoryStoreUnknownJob(t *testing.T) {
	t.Parallel()

	store := database.NewMemoryStore()
	ctx := context.Background()

	_, err := store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, database.ErrJobNotFound)

	_, err = store.MarkRunning(ctx, "missing", time.Now())
	assert.ErrorIs(t, err, database.ErrJobNotFound)

	err = store.RequestCancel(ctx, "missing")
	assert.ErrorIs(t, err, database.ErrJobNotFound)
}

func TestMemoryStoreCancellationFlag(t *testing.T) {
	t.Parallel()

	store := database.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newJob("j1")))

	cancelled, err := store.IsCancelled(ctx, "j1")
	require.NoError(t, err)
	assert.False(t, cancelled)

	require.NoError(t, store.RequestCancel(ctx, "j1"))

	cancelled, err = store.IsCancelled(ctx, "j1")
	require.NoError(t, err)
	assert.True(t, cancelled)
}

func TestMemoryStoreListFiltersByStatus(t *testing.T) {
	t.Parallel()

	store := database.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newJob("j1")))
	require.NoError(t, store.Create(ctx, newJob("j2")))

	ok, err := store.MarkRunning(ctx, "j2", time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	pending, err := store.List(ctx, domain.JobStatusPending, 10, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "j1", pending[0].ID)

	all, err := store.List(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	offset, err := store.List(ctx, "", 10, 1)
	require.NoError(t, err)
	assert.Len(t, offset, 1)
}

func TestMemoryStorePagesAndDistributions(t *testing.T) {
	t.Parallel()

	store := database.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newJob("j1")))

	pages := []*domain.FetchedPage{
		{ID: "p1", JobID: "j1", URL: "https://example.org/", Status: domain.PageStatusSuccess, Language: "da", DepthLevel: 0},
		{ID: "p2", JobID: "j1", URL: "https://example.org/a", Status: domain.PageStatusSuccess, Language: "da", DepthLevel: 1},
		{ID: "p3", JobID: "j1", URL: "https://example.org/b", Status: domain.PageStatusFailed, Language: "unknown", DepthLevel: 1},
	}
	for _, p := range pages {
		require.NoError(t, store.Append(ctx, p))
	}

	count, err := store.CountByJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	listed, err := store.ListByJob(ctx, "j1", 2, 1)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "p2", listed[0].ID)

	depths, err := store.DepthDistribution(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, map[int]int{0: 1, 1: 2}, depths)

	langs, err := store.LanguageDistribution(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"da": 2, "unknown": 1}, langs)
}

func TestMemoryStoreUpdateProgress(t *testing.T) {
	t.Parallel()

	store := database.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newJob("j1")))

	counters := domain.ProgressCounters{
		TotalURLs:    5,
		URLsScraped:  3,
		URLsFailed:   1,
		URLsSkipped:  1,
		CurrentDepth: 2,
		ErrorCount:   1,
	}
	require.NoError(t, store.UpdateProgress(ctx, "j1", counters))

	fetched, err := store.GetByID(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, 5, fetched.TotalURLs)
	assert.Equal(t, 3, fetched.URLsScraped)
	assert.Equal(t, 2, fetched.CurrentDepth)
}
