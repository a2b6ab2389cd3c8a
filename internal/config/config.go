// Package config holds the settings shared by the extract, filter and server
// binaries and loads them from defaults, an optional YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr is the HTTP listen address of the query service.
	Addr string `koanf:"addr"`

	// DataDir holds both snapshots.
	DataDir      string `koanf:"data_dir"`
	RawFile      string `koanf:"raw_file"`
	FilteredFile string `koanf:"filtered_file"`

	// LedgerPath is the SQLite run ledger.
	LedgerPath string `koanf:"ledger_path"`

	GitHubAPIURL string `koanf:"github_api_url"`
	GitHubToken  string `koanf:"github_token"`

	// APIUsername and APIAccessToken are the Basic credentials of the
	// protected routes. APIAccessToken may be a bcrypt hash.
	APIUsername    string `koanf:"api_username"`
	APIAccessToken string `koanf:"api_access_token"`

	// JWTSecret enables POST /auth/token and bearer authentication.
	JWTSecret string `koanf:"jwt_secret"`

	// ListErrorsAsOK answers list failures with 200 and an {"error": ...} body.
	ListErrorsAsOK bool `koanf:"list_errors_as_ok"`

	// MetricsTextfile, when set, receives the extractor's metrics after a run.
	MetricsTextfile string `koanf:"metrics_textfile"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:     "info",
		Addr:         ":8000",
		DataDir:      "data",
		RawFile:      "users.json",
		FilteredFile: "filtered_users.json",
		LedgerPath:   "data/ledger.db",
		GitHubAPIURL: "https://api.github.com",
		APIUsername:  "admin",
	}
}

// Validate checks the settings every binary depends on.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir must not be empty", ErrInvalidConfig)
	}
	if c.RawFile == "" || c.FilteredFile == "" {
		return fmt.Errorf("%w: snapshot file names must not be empty", ErrInvalidConfig)
	}
	if c.APIUsername == "" {
		return fmt.Errorf("%w: api_username must not be empty", ErrInvalidConfig)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// RequireGitHubToken fails when the extractor has no upstream credentials.
func (c *Config) RequireGitHubToken() error {
	if strings.TrimSpace(c.GitHubToken) == "" {
		return fmt.Errorf("%w: GITHUB_TOKEN is not set", ErrInvalidConfig)
	}
	return nil
}

// RequireAccessToken fails when the query service has no API secret.
func (c *Config) RequireAccessToken() error {
	if strings.TrimSpace(c.APIAccessToken) == "" {
		return fmt.Errorf("%w: API_ACCESS_TOKEN is not set", ErrInvalidConfig)
	}
	return nil
}

// Level returns LogLevel as a slog.Level. Call Validate first.
func (c *Config) Level() slog.Level {
	l, _ := parseLevel(c.LogLevel)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: log_level %q", ErrInvalidConfig, s)
	}
	return l, nil
}
