// Package cli assembles the coveriq command tree.  One binary serves the
// JSON API, runs the extraction worker, applies schema migrations, and moves
// workbooks in and out of the platform.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turtacn/CoverIQ-Intelligence/internal/config"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// rootOptions holds the global flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

// NewRootCommand builds the coveriq root command with all subcommands
// attached.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "coveriq",
		Short: "CoverIQ-Intelligence delegated-authority data platform",
		Long: "CoverIQ-Intelligence manages delegated-authority business end to end:\n" +
			"member GWP books, contract documents, LLM field extraction, binding\n" +
			"authorities, and portfolio modelling, exposed over a JSON API.",
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"config file path (default: COVERIQ_* environment variables)")

	cmd.AddCommand(
		newServeCmd(opts),
		newWorkerCmd(opts),
		newMigrateCmd(opts),
		newImportCmd(opts),
		newExportCmd(opts),
	)
	return cmd
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCommand().Execute()
}

// loadConfig reads the YAML file when one was given, otherwise the
// environment.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.configPath != "" {
		return config.Load(o.configPath)
	}
	return config.LoadFromEnv()
}

// newLogger builds the process logger from config and installs it as the
// package default so code without an injected logger still logs structured.
func newLogger(cfg *config.Config) (logging.Logger, error) {
	log, err := logging.NewLogger(logging.LogConfig{
		Level:            cfg.Log.Level,
		Format:           cfg.Log.Format,
		OutputPaths:      cfg.Log.OutputPaths,
		ErrorOutputPaths: cfg.Log.ErrorOutputPaths,
	})
	if err != nil {
		return nil, err
	}
	logging.SetDefault(log)
	return log, nil
}
