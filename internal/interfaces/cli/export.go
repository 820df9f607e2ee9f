package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/turtacn/CoverIQ-Intelligence/internal/application/export"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export platform data to files",
	}
	cmd.AddCommand(
		newExportMemberGWPCmd(opts),
		newExportPortfolioCmd(opts),
	)
	return cmd
}

func newExportMemberGWPCmd(opts *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "member-gwp",
		Short: "Export the full member GWP book as an importable workbook",
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

			result, err := a.exports.MemberGWP(cmd.Context())
			if err != nil {
				return err
			}
			return writeExport(cmd, result, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: generated filename)")
	return cmd
}

func newExportPortfolioCmd(opts *rootOptions) *cobra.Command {
	var (
		output string
		format string
	)

	cmd := &cobra.Command{
		Use:   "portfolio <id>",
		Short: "Export one portfolio with its summary and items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}

			parsed, err := export.ParseFormat(format)
			if err != nil {
				return err
			}

			a, err := newApp(cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.exports.Portfolio(cmd.Context(), args[0], parsed)
			if err != nil {
				return err
			}
			return writeExport(cmd, result, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: generated filename)")
	cmd.Flags().StringVarP(&format, "format", "f", string(export.FormatExcel), "output format: xlsx, csv, or json")
	return cmd
}

func writeExport(cmd *cobra.Command, result *export.Result, output string) error {
	if output == "" {
		output = result.Filename
	}
	if err := os.WriteFile(output, result.Data, 0o644); err != nil {
		return err
	}
	cmd.Printf("Wrote %s (%d bytes)\n", output, len(result.Data))
	return nil
}
