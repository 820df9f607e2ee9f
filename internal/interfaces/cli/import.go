package cli

import (
	"os"

	"github.com/spf13/cobra"
)

func newImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <workbook.xlsx>",
		Short: "Import a member and GWP workbook",
		Long: "Loads a workbook with \"Member master\" and \"GWP Breakdown\" sheets.\n" +
			"Re-importing the same workbook is idempotent: existing members are\n" +
			"reused and breakdown rows upsert on their dimension combination.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}

			a, err := newApp(cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			stats, err := a.members.ImportExcel(cmd.Context(), f)
			if err != nil {
				return err
			}
			cmd.Printf("Imported %d members and %d GWP rows (%d rows skipped)\n",
				stats.MembersImported, stats.GWPRowsImported, stats.RowsSkipped)
			for name, count := range stats.DimensionCounts {
				cmd.Printf("  %s: %d new values\n", name, count)
			}
			return nil
		},
	}
}
