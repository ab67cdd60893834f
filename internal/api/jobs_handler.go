package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dimelab/issue-observatory/internal/database"
	"github.com/dimelab/issue-observatory/internal/domain"
	"github.com/dimelab/issue-observatory/internal/job"
)

const (
	defaultJobsLimit  = 50
	defaultPagesLimit = 100
)

// JobsHandler handles crawl job HTTP requests.
type JobsHandler struct {
	svc                  *job.Service
	runner               *job.Runner
	pages                database.PageRepository
	defaultRespectRobots bool
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(
	svc *job.Service,
	runner *job.Runner,
	pages database.PageRepository,
	defaultRespectRobots bool,
) *JobsHandler {
	return &JobsHandler{
		svc:                  svc,
		runner:               runner,
		pages:                pages,
		defaultRespectRobots: defaultRespectRobots,
	}
}

// CreateJobRequest is the payload for POST /api/v1/jobs.
type CreateJobRequest struct {
	SeedURLs        []string `json:"seed_urls"`
	MaxDepth        int      `json:"max_depth"`
	DomainPolicy    string   `json:"domain_policy"`
	AllowedTLDs     []string `json:"allowed_tlds"`
	ExcludedDomains []string `json:"excluded_domains"`
	DelayMinSeconds float64  `json:"delay_min_seconds"`
	DelayMaxSeconds float64  `json:"delay_max_seconds"`
	MaxRetries      int      `json:"max_retries"`
	TimeoutSeconds  int      `json:"timeout_seconds"`
	RespectRobots   *bool    `json:"respect_robots"`
}

// CreateJob handles POST /api/v1/jobs.
func (h *JobsHandler) CreateJob(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	respectRobots := h.defaultRespectRobots
	if req.RespectRobots != nil {
		respectRobots = *req.RespectRobots
	}

	cfg := domain.CrawlConfig{
		SeedURLs:        req.SeedURLs,
		MaxDepth:        req.MaxDepth,
		DomainPolicy:    req.DomainPolicy,
		AllowedTLDs:     req.AllowedTLDs,
		ExcludedDomains: req.ExcludedDomains,
		DelayMinSeconds: req.DelayMinSeconds,
		DelayMaxSeconds: req.DelayMaxSeconds,
		MaxRetries:      req.MaxRetries,
		TimeoutSeconds:  req.TimeoutSeconds,
		RespectRobots:   respectRobots,
	}

	created, err := h.svc.CreateJob(c.Request.Context(), cfg)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

// ListJobs handles GET /api/v1/jobs.
func (h *JobsHandler) ListJobs(c *gin.Context) {
	status := c.Query("status")
	limit, offset := pagination(c, defaultJobsLimit)

	jobs, err := h.svc.ListJobs(c.Request.Context(), status, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "count": len(jobs)})
}

// GetJob handles GET /api/v1/jobs/:id.
func (h *JobsHandler) GetJob(c *gin.Context) {
	found, err := h.svc.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, found)
}

// StartJob handles POST /api/v1/jobs/:id/start. The crawl runs in the
// background; the response reflects the running state.
func (h *JobsHandler) StartJob(c *gin.Context) {
	started, err := h.runner.Launch(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, started)
}

// CancelJob handles POST /api/v1/jobs/:id/cancel.
func (h *JobsHandler) CancelJob(c *gin.Context) {
	id := c.Param("id")

	if err := h.svc.CancelJob(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": id, "message": "cancellation requested"})
}

// GetStatistics handles GET /api/v1/jobs/:id/statistics.
func (h *JobsHandler) GetStatistics(c *gin.Context) {
	stats, err := h.svc.Statistics(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ListPages handles GET /api/v1/jobs/:id/pages.
func (h *JobsHandler) ListPages(c *gin.Context) {
	id := c.Param("id")
	limit, offset := pagination(c, defaultPagesLimit)

	ctx := c.Request.Context()

	// Surface not-found before an empty page list.
	if _, err := h.svc.GetJob(ctx, id); err != nil {
		respondError(c, err)
		return
	}

	pages, err := h.pages.ListByJob(ctx, id, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	total, err := h.pages.CountByJob(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"pages": pages, "total": total})
}
