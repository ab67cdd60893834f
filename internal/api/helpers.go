package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dimelab/issue-observatory/internal/database"
	"github.com/dimelab/issue-observatory/internal/domain"
	"github.com/dimelab/issue-observatory/internal/job"
	"github.com/dimelab/issue-observatory/internal/search"
)

// respondError maps domain error types onto HTTP status codes and writes a
// JSON error body.
func respondError(c *gin.Context, err error) {
	var (
		invalidState *job.InvalidStateError
		configErr    *search.ConfigError
		rateLimitErr *search.RateLimitError
		timeoutErr   *search.TimeoutError
		apiErr       *search.APIError
	)

	switch {
	case errors.Is(err, domain.ErrInvalidConfig),
		errors.Is(err, search.ErrNoQueries),
		errors.Is(err, search.ErrUnknownProvider):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, database.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &invalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &rateLimitErr):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	case errors.As(err, &timeoutErr):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
	case errors.As(err, &apiErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.As(err, &configErr):
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// pagination extracts limit/offset query parameters with defaults.
func pagination(c *gin.Context, defaultLimit int) (limit, offset int) {
	limit = intQuery(c, "limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}

	offset = intQuery(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	return limit, offset
}

// intQuery parses an integer query parameter, falling back to a default.
func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return value
}
