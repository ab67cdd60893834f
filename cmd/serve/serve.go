// Package serve implements the serve command that runs the HTTP API.
package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dimelab/issue-observatory/cmd/common"
	"github.com/dimelab/issue-observatory/internal/api"
	"github.com/dimelab/issue-observatory/internal/database"
	"github.com/dimelab/issue-observatory/internal/job"
	"github.com/dimelab/issue-observatory/internal/search"
)

const shutdownTimeout = 30 * time.Second

var cmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE:  runServe,
}

// Command returns the serve command for use in the root command.
func Command() *cobra.Command {
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	deps, err := common.NewCommandDeps()
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}

	db, err := database.NewPostgresConnection(deps.Config.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err = database.Migrate(cmd.Context(), db); err != nil {
		return err
	}

	jobs := database.NewJobRepository(db)
	pages := database.NewPageRepository(db)

	svc := job.NewService(jobs, pages, deps.Config.Crawler, deps.Logger)
	runner := job.NewRunner(svc, deps.Logger)
	orchestrator := search.NewOrchestrator(deps.Config.Providers, deps.Logger)

	router := api.SetupRouter(
		deps.Logger,
		api.NewSearchHandler(orchestrator),
		api.NewJobsHandler(svc, runner, pages, deps.Config.Crawler.RespectRobots),
	)

	srv := api.NewHTTPServer(":"+deps.Config.Port, router)

	errCh := make(chan error, 1)

	go func() {
		deps.Logger.Info("HTTP server listening", "port", deps.Config.Port)

		if serveErr := srv.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err = <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		deps.Logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err = srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// Let in-flight crawls finish writing their terminal status.
	runner.Wait()

	return nil
}
