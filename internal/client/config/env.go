package config

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/manylla-sync/internal/flagx"
)

func parseEnv(c *Config) error {
	if err := flagx.LoadDotEnv(); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}

	str := map[string]*string{
		"MANYLLA_CLIENT_SERVER_URL":     &c.ServerURL,
		"MANYLLA_CLIENT_SHARE_BASE_URL": &c.ShareBaseURL,
		"MANYLLA_CLIENT_STATE_PATH":     &c.StatePath,
		"MANYLLA_CLIENT_PROFILE_PATH":   &c.ProfilePath,
		"MANYLLA_CLIENT_DEVICE_NAME":    &c.DeviceName,
		"MANYLLA_CLIENT_LOG_LEVEL":      &c.LogLevel,
	}
	for key, dst := range str {
		if v, ok := flagx.EnvString(key); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"MANYLLA_CLIENT_REQUEST_TIMEOUT": &c.RequestTimeout,
		"MANYLLA_CLIENT_PUSH_DEBOUNCE":   &c.PushDebounce,
		"MANYLLA_CLIENT_PULL_INTERVAL":   &c.PullInterval,
	}
	for key, dst := range durations {
		v, ok, err := flagx.EnvDuration(key)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if ok {
			*dst = v
		}
	}
	return nil
}
