// Package crawl implements the crawl command for running a depth-bounded
// crawl job from the command line.
package crawl

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dimelab/issue-observatory/cmd/common"
	"github.com/dimelab/issue-observatory/internal/database"
	"github.com/dimelab/issue-observatory/internal/domain"
	"github.com/dimelab/issue-observatory/internal/job"
	"github.com/dimelab/issue-observatory/internal/search"
)

// defaultSeedResults caps how many search hits seed the frontier when crawling
// from --query.
const defaultSeedResults = 10

var cmd = &cobra.Command{
	Use:   "crawl",
	Short: "Run a crawl job over seed URLs",
	Long: `Creates a crawl job and runs it to completion in the foreground. Seeds
come from --seed flags, from a search session run with --query, or both. With
--memory the job and its pages are kept in memory instead of PostgreSQL.

Examples:
  observatory crawl --seed https://example.org --depth 2 --memory
  observatory crawl --query "pfas forurening" --provider serper --depth 2
  observatory crawl --seed https://a.dk --seed https://b.dk --policy allow_tld_list --tld dk`,
	RunE: runCrawl,
}

// Command returns the crawl command for use in the root command.
func Command() *cobra.Command {
	cmd.Flags().StringArray("seed", nil, "seed URL (repeatable)")
	cmd.Flags().StringArrayP("query", "q", nil, "search query to derive seeds from (repeatable)")
	cmd.Flags().StringP("provider", "p", search.ProviderBrave,
		"search provider for --query ("+strings.Join(search.ProviderNames(), ", ")+")")
	cmd.Flags().IntP("max-results", "n", defaultSeedResults, "maximum search results to seed from")
	cmd.Flags().Int("depth", domain.MinCrawlDepth, "maximum crawl depth (1-3)")
	cmd.Flags().String("policy", domain.PolicySameDomain, "domain policy: same_domain, allow_all or allow_tld_list")
	cmd.Flags().StringArray("tld", nil, "allowed TLD for allow_tld_list (repeatable)")
	cmd.Flags().StringArray("exclude", nil, "domain to exclude (repeatable)")
	cmd.Flags().Bool("no-robots", false, "ignore robots.txt")
	cmd.Flags().Bool("memory", false, "run without PostgreSQL, keeping results in memory")

	return cmd
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	deps, err := common.NewCommandDeps()
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}

	seeds, _ := cmd.Flags().GetStringArray("seed")
	queries, _ := cmd.Flags().GetStringArray("query")
	provider, _ := cmd.Flags().GetString("provider")
	maxResults, _ := cmd.Flags().GetInt("max-results")
	depth, _ := cmd.Flags().GetInt("depth")
	policy, _ := cmd.Flags().GetString("policy")
	tlds, _ := cmd.Flags().GetStringArray("tld")
	excluded, _ := cmd.Flags().GetStringArray("exclude")
	noRobots, _ := cmd.Flags().GetBool("no-robots")
	inMemory, _ := cmd.Flags().GetBool("memory")

	if len(seeds) == 0 && len(queries) == 0 {
		return fmt.Errorf("at least one --seed or --query is required")
	}

	if len(queries) > 0 {
		orchestrator := search.NewOrchestrator(deps.Config.Providers, deps.Logger)

		session, searchErr := orchestrator.Run(cmd.Context(), queries, provider, maxResults, search.Options{})
		if searchErr != nil {
			return fmt.Errorf("seed search failed: %w", searchErr)
		}

		deps.Logger.Info("seeding crawl from search session",
			"session_id", session.ID, "hits", len(session.Hits))

		seeds = append(seeds, session.SeedURLs()...)
	}

	var (
		jobs  database.JobRepository
		pages database.PageRepository
	)

	if inMemory {
		store := database.NewMemoryStore()
		jobs, pages = store, store
	} else {
		db, dbErr := database.NewPostgresConnection(deps.Config.Database)
		if dbErr != nil {
			return fmt.Errorf("failed to connect to database: %w", dbErr)
		}
		defer db.Close()

		if migrateErr := database.Migrate(cmd.Context(), db); migrateErr != nil {
			return migrateErr
		}

		jobs = database.NewJobRepository(db)
		pages = database.NewPageRepository(db)
	}

	svc := job.NewService(jobs, pages, deps.Config.Crawler, deps.Logger)

	cfg := domain.CrawlConfig{
		SeedURLs:        seeds,
		MaxDepth:        depth,
		DomainPolicy:    policy,
		AllowedTLDs:     tlds,
		ExcludedDomains: excluded,
		RespectRobots:   deps.Config.Crawler.RespectRobots && !noRobots,
	}

	created, err := svc.CreateJob(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	finished, err := svc.Run(cmd.Context(), created.ID)
	if finished != nil {
		renderSummary(finished)
	}

	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}

	return nil
}

// renderSummary prints the job's final counters.
func renderSummary(j *domain.CrawlJob) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)

	t.AppendHeader(table.Row{"Job", "Status", "Total", "Scraped", "Failed", "Skipped", "Depth"})
	t.AppendRow(table.Row{
		j.ID,
		j.Status,
		j.TotalURLs,
		j.URLsScraped,
		j.URLsFailed,
		j.URLsSkipped,
		j.CurrentDepth,
	})
	t.Render()
}
