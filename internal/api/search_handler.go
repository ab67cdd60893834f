package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dimelab/issue-observatory/internal/search"
)

const defaultMaxResults = 20

// SearchHandler handles search session HTTP requests.
type SearchHandler struct {
	orchestrator *search.Orchestrator
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(orchestrator *search.Orchestrator) *SearchHandler {
	return &SearchHandler{orchestrator: orchestrator}
}

// SearchRequest is the payload for POST /api/v1/searches.
type SearchRequest struct {
	Queries    []string `json:"queries"`
	Provider   string   `json:"provider"`
	MaxResults int      `json:"max_results"`
	Country    string   `json:"country"`
	Language   string   `json:"language"`
	DateRange  string   `json:"date_range"`
}

// RunSearch handles POST /api/v1/searches. The run is synchronous; a provider
// failure on any query aborts the whole session.
func (h *SearchHandler) RunSearch(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	opts := search.Options{
		Country:   req.Country,
		Language:  req.Language,
		DateRange: req.DateRange,
	}

	session, err := h.orchestrator.Run(c.Request.Context(), req.Queries, req.Provider, maxResults, opts)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}
