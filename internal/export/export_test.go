package export_test

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/monorkin/particle-monitor/internal/database"
	"github.com/monorkin/particle-monitor/internal/export"
	"github.com/monorkin/particle-monitor/internal/models"
)

type mockUploader struct {
	mock.Mock
	content []byte
	// filesDuringUpload is how many files sat in the export dir while
	// Upload ran.
	filesDuringUpload int
	dir               string
}

func (m *mockUploader) Upload(ctx context.Context, content []byte, remotePath string) error {
	m.content = content
	entries, _ := os.ReadDir(m.dir)
	m.filesDuringUpload = len(entries)

	args := m.Called(remotePath)
	return args.Error(0)
}

func seedStore(t *testing.T) *database.Store {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "particledata.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	store := database.NewStore(db)
	for _, seed := range []struct {
		at     time.Time
		pollID string
	}{
		{time.Date(2024, 1, 1, 9, 12, 0, 0, time.Local), "first"},
		{time.Date(2024, 1, 1, 17, 45, 30, 0, time.Local), "second"},
		{time.Date(2024, 1, 2, 8, 3, 0, 0, time.Local), "next-day"},
	} {
		require.NoError(t, store.SaveAggregate(context.Background(), &models.Aggregate{
			Time:   models.NewTimestamp(seed.at),
			PM25:   models.Stats{Min: 12.3, Max: 12.3, Mean: 12.3, Std: 0},
			PM10:   models.Stats{Min: 8.1, Max: 8.1, Mean: 8.1, Std: 0},
			PollID: seed.pollID,
		}))
	}

	return store
}

func readCSV(t *testing.T, content []byte) [][]string {
	t.Helper()

	records, err := csv.NewReader(strings.NewReader(string(content))).ReadAll()
	require.NoError(t, err)
	return records
}

func TestExportOneDay(t *testing.T) {
	dir := t.TempDir()
	uploader := &mockUploader{dir: dir}
	uploader.On("Upload", "/Airstuff/file_2024-01-01.csv").Return(nil)

	exporter := export.NewExporter(seedStore(t), uploader, export.Config{Dir: dir, RemoteFolder: "/Airstuff", PID: 42}, nil)

	err := exporter.Export(context.Background(), time.Date(2024, 1, 1, 23, 30, 0, 0, time.Local))

	require.NoError(t, err)
	uploader.AssertExpectations(t)

	records := readCSV(t, uploader.content)
	require.Len(t, records, 3)
	require.Equal(t, export.Header, records[0])
	require.Equal(t, "0", records[1][0])
	require.Equal(t, "first", records[1][11])
	require.Equal(t, "1", records[2][0])
	require.Equal(t, "second", records[2][11])
	require.Equal(t, "2024-01-01 17:45:30.000000", records[2][2])
	require.Equal(t, "12.3", records[1][3])

	require.Equal(t, 1, uploader.filesDuringUpload)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestExportRemovesFileWhenUploadFails(t *testing.T) {
	dir := t.TempDir()
	uploader := &mockUploader{dir: dir}
	uploader.On("Upload", mock.Anything).Return(errors.New("network down"))

	exporter := export.NewExporter(seedStore(t), uploader, export.Config{Dir: dir, PID: 42}, nil)

	err := exporter.Export(context.Background(), time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local))

	require.ErrorContains(t, err, "network down")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestExportRange(t *testing.T) {
	dir := t.TempDir()
	uploader := &mockUploader{dir: dir}
	uploader.On("Upload", "/Airstuff/aggr_2024-01-01_2024-01-02_42.csv").Return(nil)

	exporter := export.NewExporter(seedStore(t), uploader, export.Config{Dir: dir, PID: 42}, nil)

	err := exporter.ExportRange(context.Background(),
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.Local))

	require.NoError(t, err)
	uploader.AssertExpectations(t)
	require.Len(t, readCSV(t, uploader.content), 4)
}

func TestExportRangeSingleDayName(t *testing.T) {
	exporter := export.NewExporter(nil, nil, export.Config{PID: 1234}, nil)
	day := time.Date(2024, 5, 6, 0, 0, 0, 0, time.Local)

	require.Equal(t, "/Airstuff/aggr_2024-05-06_1234.csv", exporter.RangeName(day, day))
	require.Equal(t, "/Airstuff/file_2024-05-06.csv", exporter.DailyName(day))
}

func TestExportRangeRejectsInvertedRange(t *testing.T) {
	uploader := &mockUploader{}
	exporter := export.NewExporter(seedStore(t), uploader, export.Config{Dir: t.TempDir()}, nil)

	err := exporter.ExportRange(context.Background(),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.Local),
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local))

	require.Error(t, err)
	uploader.AssertNotCalled(t, "Upload", mock.Anything)
}

func TestExportEmptyDayStillUploadsHeader(t *testing.T) {
	dir := t.TempDir()
	uploader := &mockUploader{dir: dir}
	uploader.On("Upload", "/Airstuff/file_2023-12-31.csv").Return(nil)

	exporter := export.NewExporter(seedStore(t), uploader, export.Config{Dir: dir}, nil)

	require.NoError(t, exporter.Export(context.Background(), time.Date(2023, 12, 31, 0, 0, 0, 0, time.Local)))
	require.Equal(t, [][]string{export.Header}, readCSV(t, uploader.content))
}
