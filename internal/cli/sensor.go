package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/monorkin/particle-monitor/internal/app"
	"github.com/monorkin/particle-monitor/internal/wallclock"
	"github.com/monorkin/particle-monitor/sds011"
)

var readSeconds int

// sensorCmd represents the sensor command
var sensorCmd = &cobra.Command{
	Use:     "sensor",
	Aliases: []string{"s"},
	Short:   "Control the SDS011 sensor",
	Long:    `Commands for putting the sensor to sleep, waking it and taking ad-hoc readings.`,
}

var sensorSleepCmd = &cobra.Command{
	Use:   "sleep",
	Short: "Stop the fan and laser",
	Long:  `Put the sensor into sleep mode. Run this at boot so the sensor does not run until the first poll.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSensor(func(application *app.App, sensor *sds011.Sensor) error {
			return sensor.Sleep()
		})
	},
}

var sensorWakeCmd = &cobra.Command{
	Use:   "wake",
	Short: "Start the fan and laser",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSensor(func(application *app.App, sensor *sds011.Sensor) error {
			return sensor.Wake()
		})
	},
}

var sensorReadCmd = &cobra.Command{
	Use:   "read",
	Short: "Print readings without storing them",
	Long: `Wake the sensor, wait for it to stabilise, print one line per reading for
the given number of seconds and put the sensor back to sleep.`,
	Args: cobra.NoArgs,
	RunE: runSensorRead,
}

func withSensor(fn func(application *app.App, sensor *sds011.Sensor) error) error {
	application, err := initializeApp()
	if err != nil {
		return err
	}
	defer application.Close()

	sensor, err := application.OpenSensor()
	if err != nil {
		return err
	}

	return fn(application, sensor)
}

func runSensorRead(cmd *cobra.Command, args []string) error {
	if readSeconds <= 0 {
		return fmt.Errorf("--seconds must be positive, got %d", readSeconds)
	}

	return runWithContext(cmd, func(ctx context.Context) error {
		return withSensor(func(application *app.App, sensor *sds011.Sensor) error {
			return readFor(ctx, cmd, application, sensor)
		})
	})
}

func readFor(ctx context.Context, cmd *cobra.Command, application *app.App, sensor *sds011.Sensor) (err error) {
	if err := sensor.Wake(); err != nil {
		return err
	}
	defer func() {
		if sleepErr := sensor.Sleep(); err == nil {
			err = sleepErr
		}
	}()

	clock := application.Clock
	stabilization := application.Settings.Stabilization()

	logger.Debug("Waiting for sensor to stabilise", "delay", stabilization)
	if err := wallclock.Sleep(ctx, clock, stabilization); err != nil {
		return err
	}

	return printReadings(ctx, cmd, sensor, clock, time.Duration(readSeconds)*time.Second)
}

func printReadings(ctx context.Context, cmd *cobra.Command, sensor *sds011.Sensor, clock wallclock.WallClock, duration time.Duration) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "TIME\tPM2.5\tPM10")
	fmt.Fprintln(w, "----\t-----\t----")

	deadline := clock.Now().Add(duration)
	for clock.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}

		sample, ok := sensor.Query()
		if !ok {
			continue
		}

		fmt.Fprintf(w, "%s\t%.1f\t%.1f\n", clock.Now().Format(time.TimeOnly), sample.PM25, sample.PM10)
	}

	return nil
}

func init() {
	rootCmd.AddCommand(sensorCmd)

	sensorCmd.AddCommand(sensorSleepCmd)
	sensorCmd.AddCommand(sensorWakeCmd)
	sensorCmd.AddCommand(sensorReadCmd)

	sensorReadCmd.Flags().IntVar(&readSeconds, "seconds", 10, "How long to read for")
}
