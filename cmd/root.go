// Package cmd implements the command-line interface for the issue
// observatory: search session runs, crawl jobs and the HTTP API server.
package cmd

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dimelab/issue-observatory/cmd/common"
	"github.com/dimelab/issue-observatory/cmd/crawl"
	"github.com/dimelab/issue-observatory/cmd/search"
	"github.com/dimelab/issue-observatory/cmd/serve"
)

var rootCmd = &cobra.Command{
	Use:   "observatory",
	Short: "Search-driven web observation pipeline",
	Long:  `Runs web search sessions across providers and depth-bounded crawls over their results.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	// Load .env early so environment variables are visible to viper.
	_ = godotenv.Load()

	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&common.CfgFile,
		"config",
		"",
		"config file (default is ./config.yml)",
	)

	rootCmd.AddCommand(search.Command())
	rootCmd.AddCommand(crawl.Command())
	rootCmd.AddCommand(serve.Command())
}
