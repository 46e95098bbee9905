package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/monorkin/particle-monitor/sds011"
)

type Settings struct {
	SerialPort           string `json:"serial_port"`
	WindowSeconds        int    `json:"window_seconds"`
	StabilizationSeconds int    `json:"stabilization_seconds"`
	HoursFromNow         int    `json:"hours_from_now"`
	Polls                int    `json:"polls"`
	HourlyFrom           int    `json:"hourly_from"`
	HourlyTo             int    `json:"hourly_to"`
	RemoteFolder         string `json:"remote_folder"`
	CredentialsPath      string `json:"credentials_path"`
	ExportDir            string `json:"export_dir"`
	DropboxURL           string `json:"dropbox_url,omitempty"`
	LogFile              string `json:"log_file,omitempty"`
}

func DefaultSettingsPath() string {
	return filepath.Join(ConfigDir(), "settings.json")
}

func DefaultSettings() *Settings {
	return &Settings{
		SerialPort:           sds011.DEFAULT_PORT,
		WindowSeconds:        60,
		StabilizationSeconds: 15,
		HoursFromNow:         12,
		Polls:                5,
		HourlyFrom:           7,
		HourlyTo:             22,
		RemoteFolder:         "/Airstuff",
		CredentialsPath:      DefaultCredentialsPath(),
		ExportDir:            DataDir(),
	}
}

// LoadOrInitializeSettings loads path, or returns the defaults and true
// when there is no file yet. A file that exists but cannot be parsed is an
// error rather than being replaced.
func LoadOrInitializeSettings(path string) (bool, *Settings, error) {
	settings, err := LoadSettings(path)
	if errors.Is(err, os.ErrNotExist) {
		return true, DefaultSettings(), nil
	}
	if err != nil {
		return false, nil, err
	}

	return false, settings, nil
}

// LoadSettings reads path over the defaults, so missing keys keep their
// default value.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings %s: %w", path, err)
	}

	return settings, nil
}

func (s *Settings) Validate() error {
	var errs []error

	if s.SerialPort == "" {
		errs = append(errs, errors.New("serial_port must be set"))
	}
	if s.WindowSeconds <= 0 {
		errs = append(errs, errors.New("window_seconds must be positive"))
	}
	if s.StabilizationSeconds <= 0 {
		errs = append(errs, errors.New("stabilization_seconds must be positive"))
	}
	if s.HoursFromNow <= 0 {
		errs = append(errs, errors.New("hours_from_now must be positive"))
	}
	if s.Polls <= 0 {
		errs = append(errs, errors.New("polls must be positive"))
	}
	if s.HourlyFrom < 0 || s.HourlyTo > 23 || s.HourlyFrom > s.HourlyTo {
		errs = append(errs, fmt.Errorf("hourly range %d-%d must lie within 0-23", s.HourlyFrom, s.HourlyTo))
	}

	return errors.Join(errs...)
}

func (s *Settings) WindowDuration() time.Duration {
	return time.Duration(s.WindowSeconds) * time.Second
}

func (s *Settings) Stabilization() time.Duration {
	return time.Duration(s.StabilizationSeconds) * time.Second
}

func (s *Settings) Horizon() time.Duration {
	return time.Duration(s.HoursFromNow) * time.Hour
}

func (s *Settings) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
