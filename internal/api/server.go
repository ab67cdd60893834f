// Package api implements the HTTP API for search sessions and crawl jobs.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dimelab/issue-observatory/internal/logger"
)

const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 120 * time.Second
)

// SetupRouter creates and configures the Gin router with all routes.
func SetupRouter(log logger.Interface, searches *SearchHandler, jobs *JobsHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(log))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	v1.POST("/searches", searches.RunSearch)

	v1.POST("/jobs", jobs.CreateJob)
	v1.GET("/jobs", jobs.ListJobs)
	v1.GET("/jobs/:id", jobs.GetJob)
	v1.POST("/jobs/:id/start", jobs.StartJob)
	v1.POST("/jobs/:id/cancel", jobs.CancelJob)
	v1.GET("/jobs/:id/statistics", jobs.GetStatistics)
	v1.GET("/jobs/:id/pages", jobs.ListPages)

	return router
}

// NewHTTPServer wraps the router in an http.Server with sane timeouts.
func NewHTTPServer(addr string, router *gin.Engine) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// loggingMiddleware logs each HTTP request with latency and status.
func loggingMiddleware(log logger.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.Info("HTTP Request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}
