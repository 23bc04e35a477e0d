package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"expensetracker/internal/apiclient"
	"expensetracker/internal/prefs"
)

// ClientConfig is the CLI profile.
type ClientConfig struct {
	APIURL      string        `yaml:"api_url"`
	SessionFile string        `yaml:"session_file"`
	LogLevel    string        `yaml:"log_level"`
	Timeout     time.Duration `yaml:"timeout"`
}

// LoadClient reads the YAML profile at path, if any, then applies
// EXPENSE_API_URL and EXPENSE_SESSION_FILE. A missing file is not an error.
func LoadClient(path string) (*ClientConfig, error) {
	cfg := &ClientConfig{}

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read client config: %w", err)
		default:
			if err := yaml.Unmarshal(b, cfg); err != nil {
				return nil, fmt.Errorf("parse client config %s: %w", path, err)
			}
		}
	}

	cfg.APIURL = getEnv("EXPENSE_API_URL", cfg.APIURL)
	cfg.SessionFile = getEnv("EXPENSE_SESSION_FILE", cfg.SessionFile)

	if cfg.APIURL == "" {
		cfg.APIURL = apiclient.DefaultBaseURL
	}
	if cfg.SessionFile == "" {
		p, err := prefs.DefaultPath()
		if err != nil {
			return nil, err
		}
		cfg.SessionFile = p
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "warn"
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("client config: timeout must not be negative")
	}
	return cfg, nil
}
