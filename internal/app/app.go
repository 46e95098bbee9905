package app

import (
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/monorkin/particle-monitor/dropbox/api"
	"github.com/monorkin/particle-monitor/internal/config"
	"github.com/monorkin/particle-monitor/internal/database"
	"github.com/monorkin/particle-monitor/internal/export"
	"github.com/monorkin/particle-monitor/internal/poll"
	"github.com/monorkin/particle-monitor/internal/wallclock"
	"github.com/monorkin/particle-monitor/sds011"
)

// App owns the resources one invocation works with. Nothing here is global;
// commands build an App and pass its parts down explicitly.
type App struct {
	Settings *config.Settings
	Logger   *slog.Logger
	Clock    wallclock.WallClock

	db     *gorm.DB
	store  *database.Store
	sensor *sds011.Sensor
}

func New(settings *config.Settings, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}

	return &App{
		Settings: settings,
		Logger:   logger,
		Clock:    wallclock.System(),
	}
}

// OpenStore opens the database at dbPath on first use.
func (app *App) OpenStore(dbPath string) (*database.Store, error) {
	if app.store != nil {
		return app.store, nil
	}

	app.Logger.Debug("Opening database", "path", dbPath)

	db, err := database.Open(dbPath)
	if err != nil {
		return nil, err
	}

	app.db = db
	app.store = database.NewStore(db)
	return app.store, nil
}

// OpenSensor opens the configured serial port on first use.
func (app *App) OpenSensor() (*sds011.Sensor, error) {
	if app.sensor != nil {
		return app.sensor, nil
	}

	app.Logger.Debug("Opening sensor", "port", app.Settings.SerialPort)

	sensor, err := sds011.Open(app.Settings.SerialPort, app.Logger)
	if err != nil {
		return nil, err
	}

	app.sensor = sensor
	return sensor, nil
}

func (app *App) Window(gateway poll.Gateway, store poll.Store) *poll.Window {
	return poll.NewWindow(gateway, store, app.Clock, poll.WindowConfig{
		Stabilization: app.Settings.Stabilization(),
	}, app.Logger)
}

func (app *App) Scheduler(window poll.Runner, exporter poll.Exporter) *poll.Scheduler {
	return poll.NewScheduler(window, exporter, app.Clock, poll.SchedulerConfig{
		WindowDuration: app.Settings.WindowDuration(),
		Horizon:        app.Settings.Horizon(),
		Polls:          app.Settings.Polls,
		HourlyFrom:     app.Settings.HourlyFrom,
		HourlyTo:       app.Settings.HourlyTo,
	}, app.Logger)
}

// LoadCredentials reads the Dropbox token. Commands that upload call it
// before doing any other work.
func (app *App) LoadCredentials() (*config.Credentials, error) {
	credentials, err := config.LoadCredentials(app.Settings.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	return credentials, nil
}

func (app *App) Exporter(source export.Source, credentials *config.Credentials) *export.Exporter {
	uploader := api.NewClientWithLogger(credentials.Token, app.Logger).
		WithContentURL(app.Settings.DropboxURL)

	return export.NewExporter(source, uploader, export.Config{
		Dir:          app.Settings.ExportDir,
		RemoteFolder: app.Settings.RemoteFolder,
	}, app.Logger)
}

func (app *App) Close() error {
	var errs []error

	if app.sensor != nil {
		errs = append(errs, app.sensor.Close())
		app.sensor = nil
	}

	if app.db != nil {
		errs = append(errs, database.Close(app.db))
		app.db = nil
		app.store = nil
	}

	return errors.Join(errs...)
}
