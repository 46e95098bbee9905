package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monorkin/particle-monitor/internal/app"
	"github.com/monorkin/particle-monitor/internal/config"
	"github.com/monorkin/particle-monitor/internal/database"
	"github.com/monorkin/particle-monitor/internal/models"
	"github.com/monorkin/particle-monitor/internal/wallclock/wallclocktest"
	"github.com/monorkin/particle-monitor/sds011"
)

type testEnv struct {
	dir      string
	settings string
	db       string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()

	dir := t.TempDir()
	env := testEnv{
		dir:      dir,
		settings: filepath.Join(dir, "settings.json"),
		db:       filepath.Join(dir, "particledata.db"),
	}

	settings := config.DefaultSettings()
	settings.SerialPort = filepath.Join(dir, "no-such-port")
	settings.CredentialsPath = filepath.Join(dir, "creds.json")
	settings.ExportDir = dir
	require.NoError(t, settings.SaveTo(env.settings))

	return env
}

func (env testEnv) configure(t *testing.T, fn func(settings *config.Settings)) {
	t.Helper()

	settings, err := config.LoadSettings(env.settings)
	require.NoError(t, err)
	fn(settings)
	require.NoError(t, settings.SaveTo(env.settings))
}

func (env testEnv) seed(t *testing.T, aggregates ...*models.Aggregate) {
	t.Helper()

	db, err := database.Open(env.db)
	require.NoError(t, err)
	defer database.Close(db)

	store := database.NewStore(db)
	for _, aggregate := range aggregates {
		require.NoError(t, store.SaveReading(context.Background(), &models.Reading{
			Time:   aggregate.Time,
			PM25:   aggregate.PM25.Mean,
			PM10:   aggregate.PM10.Mean,
			PollID: aggregate.PollID,
		}))
		require.NoError(t, store.SaveAggregate(context.Background(), aggregate))
	}
}

func (env testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	verbose = false
	settingsPath = ""
	dbPath = ""
	measurementDate = ""
	exportFrom = ""
	exportTo = ""
	readSeconds = 10
	fixedExport = true

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", env.settings, "--db", env.db}, args...))
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := Execute()
	return out.String(), err
}

func aggregate(at time.Time, pollID string, mean float64) *models.Aggregate {
	return &models.Aggregate{
		Time:   models.NewTimestamp(at),
		PM25:   models.Stats{Min: mean, Max: mean, Mean: mean},
		PM10:   models.Stats{Min: mean * 2, Max: mean * 2, Mean: mean * 2},
		PollID: pollID,
	}
}

func TestMeasurementListForDate(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t,
		aggregate(time.Date(2024, 1, 1, 9, 0, 0, 0, time.Local), "morning", 4.5),
		aggregate(time.Date(2024, 1, 2, 9, 0, 0, 0, time.Local), "next-day", 7),
	)

	out, err := env.run(t, "measurement", "list", "--date", "2024-01-01")

	require.NoError(t, err)
	assert.Contains(t, out, "morning")
	assert.Contains(t, out, "2024-01-01 09:00:00")
	assert.Contains(t, out, "4.50")
	assert.NotContains(t, out, "next-day")
}

func TestMeasurementListEmptyDay(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "measurement", "list", "--date", "2024-01-01")

	require.NoError(t, err)
	assert.Contains(t, out, "No measurements found.")
}

func TestMeasurementListRejectsBadDate(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "measurement", "list", "--date", "01/01/2024")

	require.ErrorContains(t, err, "invalid --date")
}

func TestMeasurementLatest(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t,
		aggregate(time.Date(2024, 1, 1, 9, 0, 0, 0, time.Local), "first", 1),
		aggregate(time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local), "second", 2),
	)

	out, err := env.run(t, "measurement", "latest")
	require.NoError(t, err)

	var info AggregateInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "second", info.PollID)
	assert.Equal(t, 2.0, info.PM25.Mean)
	assert.Equal(t, 4.0, info.PM10.Mean)
	assert.Equal(t, int64(1), info.Readings)
}

func TestPollDailyFailsOnMissingCredentialsBeforePolling(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "poll", "daily")

	require.ErrorIs(t, err, os.ErrNotExist)
	require.ErrorContains(t, err, "credentials")
	_, statErr := os.Stat(env.db)
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestExportRejectsBadRange(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "export", "--from", "yesterday")

	require.ErrorContains(t, err, "invalid --from")
}

func TestFirstRunWritesDefaultSettings(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.Remove(env.settings))

	_, err := env.run(t, "measurement", "list")
	require.NoError(t, err)

	settings, err := config.LoadSettings(env.settings)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultSettings().Polls, settings.Polls)
}

func TestExportUploadsRangeToDropbox(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t,
		aggregate(time.Date(2024, 1, 1, 9, 0, 0, 0, time.Local), "first-day", 3),
		aggregate(time.Date(2024, 1, 2, 9, 0, 0, 0, time.Local), "second-day", 5),
		aggregate(time.Date(2024, 1, 3, 9, 0, 0, 0, time.Local), "outside", 9),
	)

	var uploadedPath, authorization string
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var arg struct {
			Path string `json:"path"`
		}
		assert.NoError(t, json.Unmarshal([]byte(r.Header.Get("Dropbox-API-Arg")), &arg))
		uploadedPath = arg.Path
		authorization = r.Header.Get("Authorization")
		body, _ = io.ReadAll(r.Body)

		io.WriteString(w, `{"name":"x.csv","path_display":"`+arg.Path+`","size":1}`)
	}))
	t.Cleanup(server.Close)

	require.NoError(t, os.WriteFile(filepath.Join(env.dir, "creds.json"), []byte(`{"token":"sl.test"}`), 0o600))
	env.configure(t, func(settings *config.Settings) {
		settings.DropboxURL = server.URL
	})

	out, err := env.run(t, "export", "--from", "2024-01-01", "--to", "2024-01-02")

	require.NoError(t, err)
	assert.Equal(t, "Bearer sl.test", authorization)
	assert.Equal(t, fmt.Sprintf("/Airstuff/aggr_2024-01-01_2024-01-02_%d.csv", os.Getpid()), uploadedPath)
	assert.Contains(t, out, uploadedPath)
	assert.Contains(t, string(body), "first-day")
	assert.Contains(t, string(body), "second-day")
	assert.NotContains(t, string(body), "outside")

	leftovers, err := filepath.Glob(filepath.Join(env.dir, "*.csv"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestExportReportsUploadFailure(t *testing.T) {
	env := newTestEnv(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error_summary":"expired_access_token/"}`)
	}))
	t.Cleanup(server.Close)

	require.NoError(t, os.WriteFile(filepath.Join(env.dir, "creds.json"), []byte(`{"token":"sl.old"}`), 0o600))
	env.configure(t, func(settings *config.Settings) {
		settings.DropboxURL = server.URL
	})

	_, err := env.run(t, "export", "--from", "2024-01-01")

	require.ErrorContains(t, err, "expired_access_token")
}

// fakeSensorPort acknowledges every command and answers data queries with a
// fixed reading, moving the clock a second per query.
type fakeSensorPort struct {
	clock   *wallclocktest.Fake
	pending []byte
	awake   bool
}

func (p *fakeSensorPort) Write(frame []byte) (int, error) {
	switch frame[2] {
	case sds011.CMD_QUERY_DATA:
		p.clock.Advance(time.Second)
		p.pending = append(p.pending, reply(sds011.REPLY_DATA, 123, 0, 81, 0, 0x01, 0x02)...)
	case sds011.CMD_WORK_MODE:
		p.awake = frame[4] == 0x01
		p.pending = append(p.pending, reply(sds011.REPLY_COMMAND, frame[2], frame[3], frame[4], 0, 0x01, 0x02)...)
	default:
		p.pending = append(p.pending, reply(sds011.REPLY_COMMAND, frame[2], frame[3], frame[4], 0, 0x01, 0x02)...)
	}
	return len(frame), nil
}

func (p *fakeSensorPort) Read(buf []byte) (int, error) {
	if len(p.pending) == 0 {
		return 0, nil
	}
	n := copy(buf, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func reply(command byte, data ...byte) []byte {
	frame := []byte{sds011.HEAD, command}
	frame = append(frame, data...)

	var sum byte
	for _, b := range data {
		sum += b
	}
	return append(frame, sum, sds011.TAIL)
}

func TestSensorReadPrintsReadingsAndSleeps(t *testing.T) {
	clock := wallclocktest.New(time.Date(2024, 1, 1, 9, 0, 0, 0, time.Local))
	port := &fakeSensorPort{clock: clock}

	if logger == nil {
		logger = slog.Default()
	}
	readSeconds = 3

	application := app.New(config.DefaultSettings(), logger)
	application.Clock = clock

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	err := readFor(context.Background(), cmd, application, sds011.New(port, logger))

	require.NoError(t, err)
	assert.False(t, port.awake)
	assert.Equal(t, 3, strings.Count(out.String(), "12.3"))
	assert.Contains(t, out.String(), "8.1")
	assert.Contains(t, out.String(), "09:00:16")
}
