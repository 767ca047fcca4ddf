package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for the sync client.
//
// StatePath is the SQLite file holding sync bookkeeping and the key.
// ProfilePath is the plaintext profile JSON the CLI syncs.
type Config struct {
	ServerURL      string
	ShareBaseURL   string
	StatePath      string
	ProfilePath    string
	DeviceName     string
	RequestTimeout time.Duration
	PushDebounce   time.Duration
	PullInterval   time.Duration
	LogLevel       string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	dir := defaultDataDir()

	c.ServerURL = "http://127.0.0.1:8080"
	c.ShareBaseURL = "https://manylla.com/qual"
	c.StatePath = filepath.Join(dir, "state.db")
	c.ProfilePath = filepath.Join(dir, "profile.json")
	c.DeviceName = defaultDeviceName()
	c.RequestTimeout = 15 * time.Second
	c.PushDebounce = 2 * time.Second
	c.PullInterval = 60 * time.Second
	c.LogLevel = "warn"
}

func defaultDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ".manylla"
	}
	return filepath.Join(base, "manylla")
}

func defaultDeviceName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "CLI"
	}
	return host
}

func (c *Config) Validate() error {
	var errs []error
	if c.ServerURL == "" {
		errs = append(errs, errors.New("server url must be set"))
	}
	if c.StatePath == "" {
		errs = append(errs, errors.New("state path must be set"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.PushDebounce <= 0 || c.PullInterval <= 0 {
		errs = append(errs, errors.New("push debounce and pull interval must be positive"))
	}
	return errors.Join(errs...)
}

// LoadConfig applies defaults, then the JSON file at path (if any), then
// MANYLLA_CLIENT_* environment variables. Command-line flags are applied on
// top by the CLI.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, path); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
