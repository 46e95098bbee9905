package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrMissingToken = errors.New("credentials file has no token")

// Credentials hold the Dropbox access token.
type Credentials struct {
	Token string `json:"token"`
}

func DefaultCredentialsPath() string {
	return filepath.Join(ConfigDir(), "creds.json")
}

func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	var credentials Credentials
	if err := json.Unmarshal(data, &credentials); err != nil {
		return nil, fmt.Errorf("failed to parse credentials %s: %w", path, err)
	}

	if credentials.Token == "" {
		return nil, fmt.Errorf("%s: %w", path, ErrMissingToken)
	}

	return &credentials, nil
}
