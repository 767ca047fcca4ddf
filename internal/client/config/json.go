package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/manylla-sync/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Keys missing from the file keep
// the value already in Config.
type JsonConfig struct {
	ServerURL      string         `json:"server_url"`
	ShareBaseURL   string         `json:"share_base_url"`
	StatePath      string         `json:"state_path"`
	ProfilePath    string         `json:"profile_path"`
	DeviceName     string         `json:"device_name"`
	RequestTimeout timex.Duration `json:"request_timeout"`
	PushDebounce   timex.Duration `json:"push_debounce"`
	PullInterval   timex.Duration `json:"pull_interval"`
	LogLevel       string         `json:"log_level"`
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		ServerURL:      c.ServerURL,
		ShareBaseURL:   c.ShareBaseURL,
		StatePath:      c.StatePath,
		ProfilePath:    c.ProfilePath,
		DeviceName:     c.DeviceName,
		RequestTimeout: timex.Duration{Duration: c.RequestTimeout},
		PushDebounce:   timex.Duration{Duration: c.PushDebounce},
		PullInterval:   timex.Duration{Duration: c.PullInterval},
		LogLevel:       c.LogLevel,
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.ServerURL = j.ServerURL
	c.ShareBaseURL = j.ShareBaseURL
	c.StatePath = j.StatePath
	c.ProfilePath = j.ProfilePath
	c.DeviceName = j.DeviceName
	c.RequestTimeout = j.RequestTimeout.Duration
	c.PushDebounce = j.PushDebounce.Duration
	c.PullInterval = j.PullInterval.Duration
	c.LogLevel = j.LogLevel
}

func parseJson(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	j := toJson(cfg)
	if err := json.Unmarshal(data, j); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	j.apply(cfg)
	return nil
}
