package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/monorkin/particle-monitor/internal/config"
	"github.com/monorkin/particle-monitor/internal/export"
)

var (
	exportFrom string
	exportTo   string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Upload aggregates of a range of days to Dropbox",
	Long: `Upload the aggregates recorded between --from and --to (inclusive, local
calendar days) as a single CSV. Both default to today.

Examples:
  particle-monitor export
  particle-monitor export --from 2024-01-01 --to 2024-01-07`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	today := time.Now()

	first, err := parseDay(exportFrom, today)
	if err != nil {
		return fmt.Errorf("invalid --from: %w", err)
	}

	last, err := parseDay(exportTo, today)
	if err != nil {
		return fmt.Errorf("invalid --to: %w", err)
	}

	return runWithContext(cmd, func(ctx context.Context) error {
		application, err := initializeApp()
		if err != nil {
			return err
		}
		defer application.Close()

		credentials, err := application.LoadCredentials()
		if err != nil {
			return err
		}

		store, err := application.OpenStore(config.DBPath(dbPath))
		if err != nil {
			return err
		}

		exporter := application.Exporter(store, credentials)
		if err := exporter.ExportRange(ctx, first, last); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s\n", exporter.RangeName(first, last))
		return nil
	})
}

// parseDay parses a YYYY-MM-DD local calendar day, or returns fallback for
// an empty value.
func parseDay(value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}

	return time.ParseInLocation(export.DATE_LAYOUT, value, time.Local)
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportFrom, "from", "", "First day to export, YYYY-MM-DD (default today)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "Last day to export, YYYY-MM-DD (default today)")
}
