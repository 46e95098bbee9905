package config

import (
	"os"
	"path/filepath"
)

const (
	APP_DIR_NAME = "particle-monitor"
	DB_NAME      = "particledata.db"
	DB_PATH_ENV  = "PARTICLE_MONITOR_DB_PATH"
)

// DataDir holds the database and the export scratch files:
// $XDG_DATA_HOME/particle-monitor, else ~/.local/share/particle-monitor.
func DataDir() string {
	return appDir("XDG_DATA_HOME", ".local", "share")
}

// ConfigDir holds settings.json and creds.json:
// $XDG_CONFIG_HOME/particle-monitor, else ~/.config/particle-monitor.
func ConfigDir() string {
	return appDir("XDG_CONFIG_HOME", ".config")
}

// DBPath resolves the database file: the explicit override, then the
// environment, then the data directory.
func DBPath(override string) string {
	if override != "" {
		return override
	}

	if dbPath := os.Getenv(DB_PATH_ENV); dbPath != "" {
		return dbPath
	}

	return filepath.Join(DataDir(), DB_NAME)
}

// appDir falls back to the working directory when cron starts us without a
// usable HOME.
func appDir(env string, homeRelative ...string) string {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, APP_DIR_NAME)
	}

	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(append(append([]string{home}, homeRelative...), APP_DIR_NAME)...)
	}

	if dir, err := os.Getwd(); err == nil {
		return filepath.Join(dir, APP_DIR_NAME)
	}

	return APP_DIR_NAME
}
