// Package config loads runtime configuration for the sync client.
//
// Sources, in order of increasing precedence:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file named by the CLI's -c/--config flag.
//  3. MANYLLA_CLIENT_* environment variables, after loading .env if present.
//  4. CLI flags, applied by the cli package.
//
// The JSON loader uses timex.Duration, so durations may be written as "15s"
// or as integer nanoseconds:
//
//	{
//	  "server_url": "https://sync.example.org",
//	  "state_path": "/home/me/.config/manylla/state.db",
//	  "request_timeout": "15s"
//	}
package config
