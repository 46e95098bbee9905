package poll

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/monorkin/particle-monitor/internal/wallclock"
)

// Runner runs a single poll window. *Window implements it.
type Runner interface {
	Run(ctx context.Context, duration time.Duration) (*Result, error)
}

// Exporter ships one calendar day of aggregates off the device.
type Exporter interface {
	Export(ctx context.Context, date time.Time) error
}

type SchedulerConfig struct {
	WindowDuration time.Duration
	// Horizon and Polls drive the randomized daily mode.
	Horizon time.Duration
	Polls   int
	// HourlyFrom and HourlyTo bound the fixed cadence, inclusive.
	HourlyFrom int
	HourlyTo   int
}

// Report summarises a scheduler run.
type Report struct {
	Planned    int
	Completed  int
	Failed     int
	// Skipped counts hours RunFixed left out because they had passed.
	Skipped    int
	Aggregates int
	Exported   bool
}

type Scheduler struct {
	window   Runner
	exporter Exporter
	clock    wallclock.WallClock
	config   SchedulerConfig
	logger   *slog.Logger
	rng      *rand.Rand
}

// NewScheduler builds a Scheduler. exporter may be nil, in which case runs
// end without exporting.
func NewScheduler(window Runner, exporter Exporter, clock wallclock.WallClock, config SchedulerConfig, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = wallclock.System()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		window:   window,
		exporter: exporter,
		clock:    clock,
		config:   config,
		logger:   logger,
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// WithRand replaces the source used to draw random poll times.
func (s *Scheduler) WithRand(rng *rand.Rand) *Scheduler {
	s.rng = rng
	return s
}

// RunOnce runs a single window immediately.
func (s *Scheduler) RunOnce(ctx context.Context) (*Result, error) {
	return s.window.Run(ctx, s.config.WindowDuration)
}

// RunDaily polls at Polls random instants within Horizon from now, then
// exports today's aggregates.
func (s *Scheduler) RunDaily(ctx context.Context) (*Report, error) {
	times := RandomTimes(s.clock.Now(), s.config.Horizon, s.config.Polls, s.rng)
	return s.Run(ctx, times)
}

// RunFixed polls once per hour over the configured hour range of today,
// then exports today's aggregates. Hours that have already started before
// the run are left out.
func (s *Scheduler) RunFixed(ctx context.Context) (*Report, error) {
	now := s.clock.Now()
	hours := HourlyTimes(now, s.config.HourlyFrom, s.config.HourlyTo)

	upcoming := make([]time.Time, 0, len(hours))
	for _, hour := range hours {
		if hour.Before(now) {
			s.logger.Warn("Hour already passed, skipping", "at", hour)
			continue
		}
		upcoming = append(upcoming, hour)
	}

	return s.run(ctx, upcoming, &Report{
		Planned: len(hours),
		Skipped: len(hours) - len(upcoming),
	})
}

// Run waits for each instant in order and runs a window at it. An instant
// that has already passed, because an earlier window overran it, is polled
// right away. A failing window is logged and the run moves on to the next
// instant. After the last instant the calendar day the run started on is
// exported.
func (s *Scheduler) Run(ctx context.Context, times []time.Time) (*Report, error) {
	return s.run(ctx, times, &Report{Planned: len(times)})
}

func (s *Scheduler) run(ctx context.Context, times []time.Time, report *Report) (*Report, error) {
	started := s.clock.Now()

	s.logger.Debug("Poll times planned", "count", len(times))
	for _, t := range times {
		s.logger.Debug("Poll time", "at", t)
	}

	for _, next := range times {
		if late := s.clock.Now().Sub(next); late > 0 {
			s.logger.Debug("Poll time already passed, polling late", "at", next, "late", late)
		} else {
			s.logger.Debug("Waiting for next poll", "at", next)
		}
		if err := wallclock.SleepUntil(ctx, s.clock, next); err != nil {
			return report, err
		}

		result, err := s.window.Run(ctx, s.config.WindowDuration)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}

			s.logger.Error("Poll window failed", "at", next, "error", err)
			report.Failed++
			continue
		}

		report.Completed++
		if result.Aggregate != nil {
			report.Aggregates++
		}
	}

	s.logger.Info("Polling done",
		"completed", report.Completed,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"aggregates", report.Aggregates,
	)

	if s.exporter == nil {
		return report, nil
	}

	s.logger.Debug("Exporting a day of data", "date", started.Format("2006-01-02"))
	if err := s.exporter.Export(ctx, started); err != nil {
		return report, fmt.Errorf("failed to export %s: %w", started.Format("2006-01-02"), err)
	}
	report.Exported = true

	s.logger.Info("Done for today")
	return report, nil
}
