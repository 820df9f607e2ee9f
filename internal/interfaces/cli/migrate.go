package cli

import (
	"github.com/spf13/cobra"

	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/database/postgres"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}

			conn, err := postgres.NewConnection(cfg.Database, log)
			if err != nil {
				return err
			}
			defer conn.Close()

			path := cfg.Database.MigrationPath
			if path == "" {
				path = "migrations"
			}
			return conn.RunMigrations(path)
		},
	}
}
