package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/monorkin/particle-monitor/internal/models"
)

const (
	DATE_LAYOUT           = "2006-01-02"
	DEFAULT_DIR           = "."
	DEFAULT_REMOTE_FOLDER = "/Airstuff"
)

// Header is the CSV header row: an unnamed row index followed by the
// aggregated table's columns.
var Header = []string{
	"", "key", "time",
	"pm25_min", "pm25_max", "pm25_mean", "pm25_std",
	"pm10_min", "pm10_max", "pm10_mean", "pm10_std",
	"poll_id",
}

// Source yields the aggregates of an inclusive range of calendar days.
type Source interface {
	AggregatesBetween(ctx context.Context, first, last time.Time) ([]models.Aggregate, error)
}

// Uploader stores bytes under a remote name.
type Uploader interface {
	Upload(ctx context.Context, content []byte, remotePath string) error
}

type Config struct {
	// Dir holds the local file while it is uploaded.
	Dir string
	// RemoteFolder is prefixed to every remote file name.
	RemoteFolder string
	// PID tags ad-hoc exports so concurrent manual runs do not collide.
	PID int
}

type Exporter struct {
	source   Source
	uploader Uploader
	config   Config
	logger   *slog.Logger
}

func NewExporter(source Source, uploader Uploader, config Config, logger *slog.Logger) *Exporter {
	if config.Dir == "" {
		config.Dir = DEFAULT_DIR
	}
	if config.RemoteFolder == "" {
		config.RemoteFolder = DEFAULT_REMOTE_FOLDER
	}
	if config.PID == 0 {
		config.PID = os.Getpid()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Exporter{
		source:   source,
		uploader: uploader,
		config:   config,
		logger:   logger,
	}
}

// Export uploads one day of aggregates as file_<date>.csv.
func (e *Exporter) Export(ctx context.Context, date time.Time) error {
	return e.export(ctx, date, date, e.DailyName(date))
}

// ExportRange uploads the aggregates of [first, last] in a single file
// tagged with the process id.
func (e *Exporter) ExportRange(ctx context.Context, first, last time.Time) error {
	return e.export(ctx, first, last, e.RangeName(first, last))
}

func (e *Exporter) DailyName(date time.Time) string {
	return path.Join(e.config.RemoteFolder, fmt.Sprintf("file_%s.csv", date.Format(DATE_LAYOUT)))
}

func (e *Exporter) RangeName(first, last time.Time) string {
	firstDay := first.Format(DATE_LAYOUT)
	lastDay := last.Format(DATE_LAYOUT)

	name := fmt.Sprintf("aggr_%s_%d.csv", firstDay, e.config.PID)
	if firstDay != lastDay {
		name = fmt.Sprintf("aggr_%s_%s_%d.csv", firstDay, lastDay, e.config.PID)
	}

	return path.Join(e.config.RemoteFolder, name)
}

func (e *Exporter) export(ctx context.Context, first, last time.Time, remotePath string) error {
	if last.Format(DATE_LAYOUT) < first.Format(DATE_LAYOUT) {
		return fmt.Errorf("invalid export range: %s is before %s", last.Format(DATE_LAYOUT), first.Format(DATE_LAYOUT))
	}

	aggregates, err := e.source.AggregatesBetween(ctx, first, last)
	if err != nil {
		return err
	}

	localPath, err := e.writeFile(aggregates)
	if err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(localPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			e.logger.Error("Failed to remove exported file", "path", localPath, "error", err)
		}
	}()

	content, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("failed to read exported file: %w", err)
	}

	e.logger.Debug("Uploading aggregates", "rows", len(aggregates), "remote_path", remotePath)
	if err := e.uploader.Upload(ctx, content, remotePath); err != nil {
		return fmt.Errorf("failed to upload %s: %w", remotePath, err)
	}

	e.logger.Info("Exported aggregates", "rows", len(aggregates), "remote_path", remotePath)
	return nil
}

func (e *Exporter) writeFile(aggregates []models.Aggregate) (string, error) {
	if err := os.MkdirAll(e.config.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	file, err := os.CreateTemp(e.config.Dir, "aggregated-*.csv")
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}

	writeErr := WriteCSV(file, aggregates)
	closeErr := file.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		os.Remove(file.Name())
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	return file.Name(), nil
}

// WriteCSV writes the header and one row per aggregate, indexed from 0.
func WriteCSV(w io.Writer, aggregates []models.Aggregate) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(Header); err != nil {
		return err
	}

	for i, aggregate := range aggregates {
		record := []string{
			strconv.Itoa(i),
			strconv.FormatUint(uint64(aggregate.Key), 10),
			aggregate.Time.String(),
			formatFloat(aggregate.PM25.Min),
			formatFloat(aggregate.PM25.Max),
			formatFloat(aggregate.PM25.Mean),
			formatFloat(aggregate.PM25.Std),
			formatFloat(aggregate.PM10.Min),
			formatFloat(aggregate.PM10.Max),
			formatFloat(aggregate.PM10.Mean),
			formatFloat(aggregate.PM10.Std),
			aggregate.PollID,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
