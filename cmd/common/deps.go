// Package common provides shared dependency wiring for CLI commands.
package common

import (
	"fmt"

	"github.com/dimelab/issue-observatory/internal/config"
	"github.com/dimelab/issue-observatory/internal/logger"
)

// CfgFile holds the path to the configuration file set by the root command.
var CfgFile string

// CommandDeps bundles the dependencies every command needs.
type CommandDeps struct {
	Config *config.Config
	Logger logger.Interface
}

// NewCommandDeps loads configuration and builds the logger.
func NewCommandDeps() (*CommandDeps, error) {
	cfg, err := config.Load(CfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return &CommandDeps{Config: cfg, Logger: log}, nil
}
