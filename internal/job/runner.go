package job

import (
	"context"
	"sync"

	"github.com/dimelab/issue-observatory/internal/domain"
	"github.com/dimelab/issue-observatory/internal/logger"
)

// Runner launches crawls in background goroutines so API handlers can return
// immediately after the pending -> running transition.
type Runner struct {
	svc *Service
	log logger.Interface
	wg  sync.WaitGroup
}

// NewRunner creates a runner around the job service.
func NewRunner(svc *Service, log logger.Interface) *Runner {
	return &Runner{svc: svc, log: log}
}

// Launch flips the job to running and executes the crawl asynchronously. The
// returned job reflects the running state; the start error (not found,
// invalid state) is reported synchronously.
func (r *Runner) Launch(ctx context.Context, id string) (*domain.CrawlJob, error) {
	j, err := r.svc.StartJob(ctx, id)
	if err != nil {
		return nil, err
	}

	r.wg.Add(1)

	go func() {
		defer r.wg.Done()

		// The crawl outlives the request context.
		if execErr := r.svc.Execute(context.Background(), j); execErr != nil {
			r.log.Error("crawl execution failed", "job_id", j.ID, "error", execErr)
		}
	}()

	return j, nil
}

// Wait blocks until all launched crawls have finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}
