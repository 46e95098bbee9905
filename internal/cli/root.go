package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/monorkin/particle-monitor/internal/app"
	"github.com/monorkin/particle-monitor/internal/config"
	"github.com/monorkin/particle-monitor/internal/database"
	"github.com/monorkin/particle-monitor/internal/version"
)

var (
	verbose      bool
	settingsPath string
	dbPath       string
	logger       *slog.Logger
	logFile      *os.File
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "particle-monitor",
	Short: "Home particulate matter monitor",
	Long: `Samples an SDS011 particulate matter sensor over a serial port, stores raw and
aggregated PM2.5/PM10 readings in a local SQLite database and uploads a daily
CSV of the aggregates to Dropbox.

Meant to be driven by cron:
  @reboot      particle-monitor sensor sleep
  0 7-22 * * * particle-monitor poll hourly
  0 8 * * *    particle-monitor poll daily`,
	Version:       version.GetVersion(),
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	defer closeLogFile()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose (debug) logging")
	rootCmd.PersistentFlags().StringVar(&settingsPath, "config", "", "Settings file (default "+config.DefaultSettingsPath()+")")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides "+config.DB_PATH_ENV+")")
}

// setupLogger configures the logger based on the verbose flag. With a log
// file configured, records go to stdout and the file as plain text.
func setupLogger(settings *config.Settings) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	closeLogFile()

	if settings.LogFile != "" {
		file, err := os.OpenFile(settings.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logFile = file

		logger = slog.New(slog.NewTextHandler(io.MultiWriter(os.Stdout, file), &slog.HandlerOptions{
			Level: level,
		}))
	} else {
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.DateTime,
		}))
	}

	slog.SetDefault(logger)
	return nil
}

func closeLogFile() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// initializeApp loads the settings, writing the defaults out on first run,
// and builds the App the command works with.
func initializeApp() (*app.App, error) {
	path := settingsPath
	if path == "" {
		path = config.DefaultSettingsPath()
	}

	isNew, settings, err := config.LoadOrInitializeSettings(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	if err := setupLogger(settings); err != nil {
		return nil, err
	}

	if isNew {
		if err := settings.SaveTo(path); err != nil {
			logger.Warn("Failed to save default settings", "path", path, "error", err)
		} else {
			logger.Debug("Wrote default settings", "path", path)
		}
	}

	return app.New(settings, logger), nil
}

// initializeAppWithStore is initializeApp plus an open, migrated database.
func initializeAppWithStore() (*app.App, *database.Store, error) {
	application, err := initializeApp()
	if err != nil {
		return nil, nil, err
	}

	store, err := application.OpenStore(config.DBPath(dbPath))
	if err != nil {
		application.Close()
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	return application, store, nil
}

// runWithContext runs fn with a context that is cancelled on SIGINT or
// SIGTERM.
func runWithContext(cmd *cobra.Command, fn func(ctx context.Context) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return fn(ctx)
}
