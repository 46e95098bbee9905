package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/monorkin/particle-monitor/internal/app"
	"github.com/monorkin/particle-monitor/internal/config"
	"github.com/monorkin/particle-monitor/internal/database"
	"github.com/monorkin/particle-monitor/internal/poll"
)

var fixedExport bool

// pollCmd represents the poll command
var pollCmd = &cobra.Command{
	Use:     "poll",
	Aliases: []string{"p"},
	Short:   "Sample the sensor and store the results",
	Long: `Commands that wake the sensor, collect readings over a window, store the raw
readings and their aggregate, and put the sensor back to sleep.`,
}

var pollHourlyCmd = &cobra.Command{
	Use:   "hourly",
	Short: "Run a single poll window now",
	Long:  `Run one poll window immediately. Cron provides the cadence, e.g. "0 7-22 * * *".`,
	Args:  cobra.NoArgs,
	RunE:  runPollHourly,
}

var pollDailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Poll at random times over the day, then upload",
	Long: `Draw the configured number of random poll times within the configured horizon,
run a window at each of them and upload the day's aggregates to Dropbox.`,
	Args: cobra.NoArgs,
	RunE: runPollDaily,
}

var pollFixedCmd = &cobra.Command{
	Use:   "fixed",
	Short: "Poll on the hour over today's configured range",
	Long: `Run a window at the top of every hour between hourly_from and hourly_to
without relying on cron, then upload the day's aggregates unless --export=false.`,
	Args: cobra.NoArgs,
	RunE: runPollFixed,
}

func runPollHourly(cmd *cobra.Command, args []string) error {
	return runWithContext(cmd, func(ctx context.Context) error {
		return withScheduler(false, func(scheduler *poll.Scheduler) error {
			result, err := scheduler.RunOnce(ctx)
			if err != nil {
				return err
			}

			logger.Info("Poll done", "poll_id", result.PollID, "samples", result.Samples, "aggregated", result.Aggregate != nil)
			return nil
		})
	})
}

func runPollDaily(cmd *cobra.Command, args []string) error {
	return runWithContext(cmd, func(ctx context.Context) error {
		return withScheduler(true, func(scheduler *poll.Scheduler) error {
			_, err := scheduler.RunDaily(ctx)
			return err
		})
	})
}

func runPollFixed(cmd *cobra.Command, args []string) error {
	return runWithContext(cmd, func(ctx context.Context) error {
		return withScheduler(fixedExport, func(scheduler *poll.Scheduler) error {
			_, err := scheduler.RunFixed(ctx)
			return err
		})
	})
}

// withScheduler wires a scheduler against the real sensor and database.
// When uploading, the credentials are read before anything else so a bad
// credentials file fails the run before any polling happens.
func withScheduler(upload bool, fn func(scheduler *poll.Scheduler) error) error {
	application, err := initializeApp()
	if err != nil {
		return err
	}
	defer application.Close()

	var credentials *config.Credentials
	if upload {
		credentials, err = application.LoadCredentials()
		if err != nil {
			return err
		}
	}

	store, err := application.OpenStore(config.DBPath(dbPath))
	if err != nil {
		return err
	}

	sensor, err := application.OpenSensor()
	if err != nil {
		return err
	}

	scheduler := application.Scheduler(
		application.Window(sensor, store),
		exporterFor(application, store, credentials),
	)

	return fn(scheduler)
}

func exporterFor(application *app.App, store *database.Store, credentials *config.Credentials) poll.Exporter {
	if credentials == nil {
		return nil
	}

	return application.Exporter(store, credentials)
}

func init() {
	rootCmd.AddCommand(pollCmd)

	pollCmd.AddCommand(pollHourlyCmd)
	pollCmd.AddCommand(pollDailyCmd)
	pollCmd.AddCommand(pollFixedCmd)

	pollFixedCmd.Flags().BoolVar(&fixedExport, "export", true, "Upload the day's aggregates when polling is done")
}
