// Package search implements the search command for running query sessions
// against a web search provider.
package search

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dimelab/issue-observatory/cmd/common"
	"github.com/dimelab/issue-observatory/internal/domain"
	"github.com/dimelab/issue-observatory/internal/search"
)

const (
	defaultMaxResults = 20

	titleColumnWidth = 60
	urlColumnWidth   = 80
)

var cmd = &cobra.Command{
	Use:   "search",
	Short: "Run a search session against a provider",
	Long: `Runs one or more queries against a search provider and prints the
deduplicated hits ranked across queries.

Examples:
  observatory search -p brave -q "river pollution"
  observatory search -p serper -q "pfas" -q "forever chemicals" -n 50 --language da`,
	RunE: runSearch,
}

// Command returns the search command for use in the root command.
func Command() *cobra.Command {
	cmd.Flags().StringP("provider", "p", search.ProviderBrave,
		"search provider ("+strings.Join(search.ProviderNames(), ", ")+")")
	cmd.Flags().StringArrayP("query", "q", nil, "query to run (repeatable)")
	cmd.Flags().IntP("max-results", "n", defaultMaxResults, "maximum results per query")
	cmd.Flags().String("country", "", "country code filter, e.g. dk")
	cmd.Flags().String("language", "", "language code filter, e.g. da")
	cmd.Flags().String("date-range", "", "recency filter: day, week, month or year")

	if err := cmd.MarkFlagRequired("query"); err != nil {
		fmt.Fprintf(os.Stderr, "Error marking query flag as required: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func runSearch(cmd *cobra.Command, _ []string) error {
	deps, err := common.NewCommandDeps()
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}

	queries, _ := cmd.Flags().GetStringArray("query")
	provider, _ := cmd.Flags().GetString("provider")
	maxResults, _ := cmd.Flags().GetInt("max-results")

	opts := search.Options{}
	opts.Country, _ = cmd.Flags().GetString("country")
	opts.Language, _ = cmd.Flags().GetString("language")
	opts.DateRange, _ = cmd.Flags().GetString("date-range")

	orchestrator := search.NewOrchestrator(deps.Config.Providers, deps.Logger)

	session, err := orchestrator.Run(cmd.Context(), queries, provider, maxResults, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	renderSession(session)

	return nil
}

// renderSession prints the session hits as a table plus any query expansions.
func renderSession(session *domain.SearchSession) {
	if len(session.Hits) == 0 {
		fmt.Fprintf(os.Stdout, "No results for queries: %s\n", strings.Join(session.Queries, ", "))
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, WidthMax: titleColumnWidth},
		{Number: 4, WidthMax: urlColumnWidth},
	})

	t.AppendHeader(table.Row{"Rank", "Domain", "Title", "URL"})

	for _, hit := range session.Hits {
		t.AppendRow(table.Row{hit.Rank, hit.Domain, hit.Title, hit.URL})
	}

	t.AppendFooter(table.Row{"Total", len(session.Hits), "", "Session: " + session.ID})
	t.Render()

	if len(session.Suggestions) > 0 {
		fmt.Fprintf(os.Stdout, "\nSuggestions: %s\n", strings.Join(session.Suggestions, "; "))
	}

	if len(session.RelatedSearches) > 0 {
		fmt.Fprintf(os.Stdout, "Related searches: %s\n", strings.Join(session.RelatedSearches, "; "))
	}
}
