package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/monorkin/particle-monitor/internal/models"
)

var measurementDate string

// measurementCmd represents the measurement command
var measurementCmd = &cobra.Command{
	Use:     "measurement",
	Aliases: []string{"m", "measurements"},
	Short:   "Show stored measurements",
	Long:    `Commands for inspecting the aggregates and readings stored in the local database.`,
}

// measurementListCmd represents the measurement list command
var measurementListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the aggregates of a day",
	Long: `List every aggregate recorded on a local calendar day, oldest first.

Examples:
  particle-monitor measurement list
  particle-monitor measurement list --date 2024-01-01`,
	Args: cobra.NoArgs,
	RunE: runMeasurementList,
}

// measurementLatestCmd represents the measurement latest command
var measurementLatestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Show the newest aggregate as JSON",
	Args:  cobra.NoArgs,
	RunE:  runMeasurementLatest,
}

func runMeasurementList(cmd *cobra.Command, args []string) error {
	date, err := parseDay(measurementDate, time.Now())
	if err != nil {
		return fmt.Errorf("invalid --date: %w", err)
	}

	application, store, err := initializeAppWithStore()
	if err != nil {
		return err
	}
	defer application.Close()

	logger.Debug("Fetching aggregates", "date", date.Format(time.DateOnly))

	aggregates, err := store.AggregatesOn(cmd.Context(), date)
	if err != nil {
		return err
	}

	if len(aggregates) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No measurements found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "KEY\tTIME\tPM2.5 MEAN\tPM2.5 STD\tPM10 MEAN\tPM10 STD\tPOLL")
	fmt.Fprintln(w, "---\t----\t----------\t---------\t---------\t--------\t----")

	for _, aggregate := range aggregates {
		fmt.Fprintf(w, "%d\t%s\t%.2f\t%.2f\t%.2f\t%.2f\t%s\n",
			aggregate.Key,
			aggregate.Time.Format(time.DateTime),
			aggregate.PM25.Mean,
			aggregate.PM25.Std,
			aggregate.PM10.Mean,
			aggregate.PM10.Std,
			aggregate.PollID,
		)
	}

	logger.Debug("Measurement list completed", "count", len(aggregates))
	return nil
}

func runMeasurementLatest(cmd *cobra.Command, args []string) error {
	application, store, err := initializeAppWithStore()
	if err != nil {
		return err
	}
	defer application.Close()

	aggregate, err := store.LatestAggregate(cmd.Context())
	if err != nil {
		return err
	}
	if aggregate == nil {
		return fmt.Errorf("no measurements found")
	}

	readings, err := store.CountReadingsByPoll(cmd.Context(), aggregate.PollID)
	if err != nil {
		return err
	}

	response := AggregateInfo{
		Key:      aggregate.Key,
		Time:     aggregate.Time.Format(time.RFC3339),
		PollID:   aggregate.PollID,
		PM25:     aggregate.PM25,
		PM10:     aggregate.PM10,
		Readings: readings,
	}

	output, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format response: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(output))

	logger.Debug("Measurement latest completed", "key", aggregate.Key)
	return nil
}

// AggregateInfo represents an aggregate for JSON output
type AggregateInfo struct {
	Key      uint         `json:"key"`
	Time     string       `json:"time"`
	PollID   string       `json:"poll_id"`
	PM25     models.Stats `json:"pm25"`
	PM10     models.Stats `json:"pm10"`
	Readings int64        `json:"readings"`
}

func init() {
	rootCmd.AddCommand(measurementCmd)

	measurementCmd.AddCommand(measurementListCmd)
	measurementCmd.AddCommand(measurementLatestCmd)

	measurementListCmd.Flags().StringVar(&measurementDate, "date", "", "Day to list, YYYY-MM-DD (default today)")
}
