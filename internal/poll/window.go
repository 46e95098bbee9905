package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/monorkin/particle-monitor/internal/models"
	"github.com/monorkin/particle-monitor/internal/wallclock"
	"github.com/monorkin/particle-monitor/sds011"
)

const DefaultStabilization = 15 * time.Second

// Gateway is the sensor as seen by a poll window. Query reports false when
// the sensor had no valid reading to give.
type Gateway interface {
	Wake() error
	Sleep() error
	Query() (sds011.Sample, bool)
}

// Store persists what a poll window collects.
type Store interface {
	SaveReading(ctx context.Context, reading *models.Reading) error
	SaveAggregate(ctx context.Context, aggregate *models.Aggregate) error
}

type WindowConfig struct {
	// Stabilization is how long the sensor runs after waking before it is
	// queried. Zero means DefaultStabilization.
	Stabilization time.Duration
}

// Result describes one completed poll window. Aggregate is nil when no
// readings were collected.
type Result struct {
	PollID    string
	Samples   int
	Aggregate *models.Aggregate
}

// Window drives one sampling cycle: wake, stabilize, sample, aggregate,
// sleep.
type Window struct {
	gateway Gateway
	store   Store
	clock   wallclock.WallClock
	config  WindowConfig
	logger  *slog.Logger
	newID   func() string
}

func NewWindow(gateway Gateway, store Store, clock wallclock.WallClock, config WindowConfig, logger *slog.Logger) *Window {
	if clock == nil {
		clock = wallclock.System()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.Stabilization <= 0 {
		config.Stabilization = DefaultStabilization
	}

	return &Window{
		gateway: gateway,
		store:   store,
		clock:   clock,
		config:  config,
		logger:  logger,
		newID:   uuid.NewString,
	}
}

// Run samples the sensor for duration once it has stabilized. The sensor is
// put back to sleep on every path out of Run.
func (w *Window) Run(ctx context.Context, duration time.Duration) (result *Result, err error) {
	w.logger.Debug("Waking up sensor", "time", w.clock.Now())

	defer func() {
		if sleepErr := w.gateway.Sleep(); sleepErr != nil {
			w.logger.Error("Failed to put sensor to sleep", "error", sleepErr)
			err = errors.Join(err, fmt.Errorf("failed to put sensor to sleep: %w", sleepErr))
		}
	}()

	if err := w.gateway.Wake(); err != nil {
		return nil, fmt.Errorf("failed to wake sensor: %w", err)
	}

	if err := wallclock.Sleep(ctx, w.clock, w.config.Stabilization); err != nil {
		return nil, err
	}

	pollID := w.newID()
	logger := w.logger.With("poll_id", pollID)

	var pm25, pm10 []float64

	end := w.clock.Now().Add(duration)
	for w.clock.Now().Before(end) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sample, ok := w.gateway.Query()
		if !ok {
			continue
		}

		pm25 = append(pm25, sample.PM25)
		pm10 = append(pm10, sample.PM10)

		// Each reading is committed as it arrives.
		reading := &models.Reading{
			Time:   models.NewTimestamp(w.clock.Now()),
			PM25:   sample.PM25,
			PM10:   sample.PM10,
			PollID: pollID,
		}
		if err := w.store.SaveReading(ctx, reading); err != nil {
			return nil, err
		}
	}

	logger.Debug("Polling ended", "pm25_count", len(pm25), "pm10_count", len(pm10))

	result = &Result{PollID: pollID, Samples: len(pm25)}

	pm25Stats, ok25 := Summarize(pm25)
	pm10Stats, ok10 := Summarize(pm10)
	if !ok25 || !ok10 {
		logger.Warn("Failed to save aggregate data: no readings collected")
		return result, nil
	}

	aggregate := &models.Aggregate{
		Time:   models.NewTimestamp(w.clock.Now()),
		PM25:   pm25Stats,
		PM10:   pm10Stats,
		PollID: pollID,
	}
	if err := w.store.SaveAggregate(ctx, aggregate); err != nil {
		return nil, err
	}

	logger.Info("Saved aggregated data",
		"samples", len(pm25),
		"pm25_mean", pm25Stats.Mean,
		"pm10_mean", pm10Stats.Mean,
	)

	result.Aggregate = aggregate
	return result, nil
}
