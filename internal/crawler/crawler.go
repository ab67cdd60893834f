package crawler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/dimelab/issue-observatory/internal/domain"
	"github.com/dimelab/issue-observatory/internal/logger"
)

// ErrCancelled is returned by Run when the job was cancelled mid-crawl.
// Pages recorded before the cancellation are kept.
var ErrCancelled = errors.New("crawl cancelled")

// ErrNoValidSeeds is returned when none of the configured seed URLs has a
// usable scheme and host. The job fails before any fetch begins.
var ErrNoValidSeeds = errors.New("no valid seed URLs")

// cancelPollInterval bounds how often the store is asked about cancellation.
const cancelPollInterval = 2 * time.Second

// JobStore is the persistence collaborator the crawler reports through.
// Each AppendPage plus the matching UpdateProgress forms one logical update
// applied after every fetch, never batched.
type JobStore interface {
	AppendPage(ctx context.Context, page *domain.FetchedPage) error
	UpdateProgress(ctx context.Context, jobID string, counters domain.ProgressCounters) error
	IsCancelled(ctx context.Context, jobID string) (bool, error)
}

// frontierEntry is one not-yet-fetched URL in the BFS queue. anchorDomain is
// the normalized domain of the seed this branch descends from; the
// same_domain policy compares against it at every depth.
type frontierEntry struct {
	url          string
	depth        int
	parentURL    *string
	anchorDomain string
}

// Crawler drains a frontier of seed URLs breadth-first, one fetch in flight
// at a time, recording a FetchedPage per attempt and feeding admissible
// discovered links back into the frontier for the next depth level.
type Crawler struct {
	fetcher Fetcher
	robots  RobotsPolicy
	store   JobStore
	log     logger.Interface

	// sleep is swapped out in tests to avoid real politeness delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a crawler.
func New(fetcher Fetcher, robots RobotsPolicy, store JobStore, log logger.Interface) *Crawler {
	return &Crawler{
		fetcher: fetcher,
		robots:  robots,
		store:   store,
		log:     log,
		sleep:   sleepCtx,
	}
}

// Run executes the crawl for the given job, mutating its progress counters in
// place. It returns nil on normal completion, ErrCancelled when cancellation
// was observed, and any other error only for unrecoverable orchestration
// failures; per-page fetch errors are folded into counters and never abort
// the job.
func (c *Crawler) Run(ctx context.Context, job *domain.CrawlJob) error {
	cfg := job.Config

	frontier, err := seedFrontier(cfg.SeedURLs)
	if err != nil {
		return err
	}

	filter := NewLinkFilter(cfg)
	seen := make(map[string]struct{}, len(frontier))

	for _, entry := range frontier {
		seen[entry.url] = struct{}{}
	}

	job.TotalURLs = len(frontier)

	lastCancelCheck := time.Time{}
	fetchedAny := false

	for len(frontier) > 0 {
		cancelled, cancelErr := c.checkCancelled(ctx, job.ID, &lastCancelCheck)
		if cancelErr != nil {
			return cancelErr
		}
		if cancelled {
			c.log.Info("crawl cancelled", "job_id", job.ID, "urls_scraped", job.URLsScraped)
			return ErrCancelled
		}

		entry := frontier[0]
		frontier = frontier[1:]

		if entry.depth > cfg.MaxDepth {
			continue
		}

		// Politeness: pause between consecutive fetches regardless of outcome.
		if fetchedAny {
			if sleepErr := c.politenessDelay(ctx, cfg); sleepErr != nil {
				return ErrCancelled
			}
		}
		fetchedAny = true

		job.CurrentDepth = entry.depth

		page, links := c.fetchOne(ctx, job, entry)

		if page.Status == domain.PageStatusSuccess && entry.depth < cfg.MaxDepth {
			admitted, skipped := c.admitLinks(links, entry, filter, seen)
			frontier = append(frontier, admitted...)
			job.TotalURLs += len(admitted)
			job.URLsSkipped += skipped
		}

		if persistErr := c.persist(ctx, job, page); persistErr != nil {
			return persistErr
		}
	}

	c.log.Info("crawl finished",
		"job_id", job.ID,
		"urls_scraped", job.URLsScraped,
		"urls_failed", job.URLsFailed,
		"urls_skipped", job.URLsSkipped,
	)

	return nil
}

// fetchOne fetches a single frontier entry and builds its FetchedPage record,
// updating the job counters for the outcome.
func (c *Crawler) fetchOne(
	ctx context.Context,
	job *domain.CrawlJob,
	entry frontierEntry,
) (*domain.FetchedPage, []string) {
	page := &domain.FetchedPage{
		ID:         uuid.New().String(),
		JobID:      job.ID,
		URL:        entry.url,
		FinalURL:   entry.url,
		ParentURL:  entry.parentURL,
		DepthLevel: entry.depth,
		CreatedAt:  time.Now().UTC(),
	}

	if job.Config.RespectRobots && !c.robots.IsAllowed(ctx, entry.url) {
		msg := "blocked by robots.txt"
		page.Status = domain.PageStatusFailed
		page.ErrorMessage = &msg
		job.URLsFailed++
		job.ErrorCount++

		c.log.Debug("url blocked by robots", "job_id", job.ID, "url", entry.url)

		return page, nil
	}

	result, err := c.fetcher.Fetch(ctx, entry.url)

	if result != nil {
		page.FinalURL = result.FinalURL
		page.HTTPStatus = result.StatusCode
		page.FetchDurationMs = result.Duration.Milliseconds()
	}

	if err != nil {
		msg := err.Error()
		page.Status = domain.PageStatusFailed
		page.ErrorMessage = &msg
		job.URLsFailed++
		job.ErrorCount++

		c.log.Debug("fetch failed", "job_id", job.ID, "url", entry.url, "error", msg)

		return page, nil
	}

	page.Status = domain.PageStatusSuccess
	page.Title = result.Title
	page.ExtractedText = result.Text
	page.Language = languageOrUnknown(result.Language)
	page.OutboundLinks = result.Links
	job.URLsScraped++

	return page, result.Links
}

// admitLinks filters discovered links and returns the next-depth frontier
// entries plus the count of candidates rejected by policy.
func (c *Crawler) admitLinks(
	links []string,
	parent frontierEntry,
	filter *LinkFilter,
	seen map[string]struct{},
) ([]frontierEntry, int) {
	var admitted []frontierEntry

	skipped := 0
	parentURL := parent.url

	for _, link := range links {
		if _, dup := seen[link]; dup {
			continue
		}

		if !filter.Admit(link, parent.anchorDomain) {
			skipped++
			continue
		}

		seen[link] = struct{}{}
		admitted = append(admitted, frontierEntry{
			url:          link,
			depth:        parent.depth + 1,
			parentURL:    &parentURL,
			anchorDomain: parent.anchorDomain,
		})
	}

	return admitted, skipped
}

// persist applies the page record and the counter snapshot as one logical
// update. A store failure is unrecoverable for the job.
func (c *Crawler) persist(ctx context.Context, job *domain.CrawlJob, page *domain.FetchedPage) error {
	if err := c.store.AppendPage(ctx, page); err != nil {
		return fmt.Errorf("append page: %w", err)
	}

	counters := domain.ProgressCounters{
		TotalURLs:    job.TotalURLs,
		URLsScraped:  job.URLsScraped,
		URLsFailed:   job.URLsFailed,
		URLsSkipped:  job.URLsSkipped,
		CurrentDepth: job.CurrentDepth,
		ErrorCount:   job.ErrorCount,
	}

	if err := c.store.UpdateProgress(ctx, job.ID, counters); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}

	return nil
}

// checkCancelled polls the context and, at most every cancelPollInterval,
// the store's cancellation flag.
func (c *Crawler) checkCancelled(ctx context.Context, jobID string, lastCheck *time.Time) (bool, error) {
	select {
	case <-ctx.Done():
		return true, nil
	default:
	}

	if time.Since(*lastCheck) < cancelPollInterval {
		return false, nil
	}

	*lastCheck = time.Now()

	cancelled, err := c.store.IsCancelled(ctx, jobID)
	if err != nil {
		return false, fmt.Errorf("check cancellation: %w", err)
	}

	return cancelled, nil
}

// politenessDelay sleeps for a duration uniformly sampled from the
// configured [delayMin, delayMax] window.
func (c *Crawler) politenessDelay(ctx context.Context, cfg domain.CrawlConfig) error {
	window := cfg.DelayMaxSeconds - cfg.DelayMinSeconds
	seconds := cfg.DelayMinSeconds

	if window > 0 {
		seconds += rand.Float64() * window
	}

	if seconds <= 0 {
		return nil
	}

	return c.sleep(ctx, time.Duration(seconds*float64(time.Second)))
}

// seedFrontier builds depth-1 frontier entries from the configured seeds.
// Seeds without a scheme and host are dropped and duplicates are folded into
// one entry; if none survive the crawl cannot start.
func seedFrontier(seedURLs []string) ([]frontierEntry, error) {
	entries := make([]frontierEntry, 0, len(seedURLs))
	seen := make(map[string]struct{}, len(seedURLs))

	for _, seed := range seedURLs {
		parsed, err := url.Parse(seed)
		if err != nil || parsed.Scheme == "" || parsed.Hostname() == "" {
			continue
		}

		if _, dup := seen[seed]; dup {
			continue
		}
		seen[seed] = struct{}{}

		entries = append(entries, frontierEntry{
			url:          seed,
			depth:        1,
			anchorDomain: NormalizeDomain(parsed.Hostname()),
		})
	}

	if len(entries) == 0 {
		return nil, ErrNoValidSeeds
	}

	return entries, nil
}

// languageOrUnknown substitutes "unknown" for pages without a lang tag.
func languageOrUnknown(lang string) string {
	if lang == "" {
		return "unknown"
	}

	return lang
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
