package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/manylla-sync/internal/flagx"
	"github.com/dmitrijs2005/manylla-sync/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Durations accept either "90s"
// style strings or integer nanoseconds. Keys missing from the file keep the
// value already in Config.
type JsonConfig struct {
	EndpointAddrHTTP  string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC  string         `json:"endpoint_addr_grpc"`
	LogLevel          string         `json:"log_level"`
	Store             string         `json:"store"`
	DatabaseDSN       string         `json:"database_dsn"`
	MaxBlobSize       int64          `json:"max_blob_size"`
	BackupKeep        int            `json:"backup_keep"`
	SyncRateLimit     int            `json:"sync_rate_limit"`
	ShareRateLimit    int            `json:"share_rate_limit"`
	HealthRateLimit   int            `json:"health_rate_limit"`
	RateWindow        timex.Duration `json:"rate_window"`
	HealthExemptCIDRs []string       `json:"health_exempt_cidrs"`
	TrustProxyHeaders bool           `json:"trust_proxy_headers"`
	AllowedOrigins    []string       `json:"allowed_origins"`
	Retention         timex.Duration `json:"retention"`
	CleanupInterval   timex.Duration `json:"cleanup_interval"`
	CleanupBatchSize  int            `json:"cleanup_batch_size"`
	AdminSecret       string         `json:"admin_secret"`
	IPHashSalt        string         `json:"ip_hash_salt"`
	ArchiveBucket     string         `json:"archive_bucket"`
	ArchivePrefix     string         `json:"archive_prefix"`
	S3Region          string         `json:"s3_region"`
	S3BaseEndpoint    string         `json:"s3_base_endpoint"`
	S3AccessKey       string         `json:"s3_access_key"`
	S3SecretKey       string         `json:"s3_secret_key"`
	ShutdownTimeout   timex.Duration `json:"shutdown_timeout"`
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		EndpointAddrHTTP:  c.EndpointAddrHTTP,
		EndpointAddrGRPC:  c.EndpointAddrGRPC,
		LogLevel:          c.LogLevel,
		Store:             c.Store,
		DatabaseDSN:       c.DatabaseDSN,
		MaxBlobSize:       c.MaxBlobSize,
		BackupKeep:        c.BackupKeep,
		SyncRateLimit:     c.SyncRateLimit,
		ShareRateLimit:    c.ShareRateLimit,
		HealthRateLimit:   c.HealthRateLimit,
		RateWindow:        timex.Duration{Duration: c.RateWindow},
		HealthExemptCIDRs: c.HealthExemptCIDRs,
		TrustProxyHeaders: c.TrustProxyHeaders,
		AllowedOrigins:    c.AllowedOrigins,
		Retention:         timex.Duration{Duration: c.Retention},
		CleanupInterval:   timex.Duration{Duration: c.CleanupInterval},
		CleanupBatchSize:  c.CleanupBatchSize,
		AdminSecret:       c.AdminSecret,
		IPHashSalt:        c.IPHashSalt,
		ArchiveBucket:     c.ArchiveBucket,
		ArchivePrefix:     c.ArchivePrefix,
		S3Region:          c.S3Region,
		S3BaseEndpoint:    c.S3BaseEndpoint,
		S3AccessKey:       c.S3AccessKey,
		S3SecretKey:       c.S3SecretKey,
		ShutdownTimeout:   timex.Duration{Duration: c.ShutdownTimeout},
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.EndpointAddrHTTP = j.EndpointAddrHTTP
	c.EndpointAddrGRPC = j.EndpointAddrGRPC
	c.LogLevel = j.LogLevel
	c.Store = j.Store
	c.DatabaseDSN = j.DatabaseDSN
	c.MaxBlobSize = j.MaxBlobSize
	c.BackupKeep = j.BackupKeep
	c.SyncRateLimit = j.SyncRateLimit
	c.ShareRateLimit = j.ShareRateLimit
	c.HealthRateLimit = j.HealthRateLimit
	c.RateWindow = j.RateWindow.Duration
	c.HealthExemptCIDRs = j.HealthExemptCIDRs
	c.TrustProxyHeaders = j.TrustProxyHeaders
	c.AllowedOrigins = j.AllowedOrigins
	c.Retention = j.Retention.Duration
	c.CleanupInterval = j.CleanupInterval.Duration
	c.CleanupBatchSize = j.CleanupBatchSize
	c.AdminSecret = j.AdminSecret
	c.IPHashSalt = j.IPHashSalt
	c.ArchiveBucket = j.ArchiveBucket
	c.ArchivePrefix = j.ArchivePrefix
	c.S3Region = j.S3Region
	c.S3BaseEndpoint = j.S3BaseEndpoint
	c.S3AccessKey = j.S3AccessKey
	c.S3SecretKey = j.S3SecretKey
	c.ShutdownTimeout = j.ShutdownTimeout.Duration
}

// parseJson overlays the file named by -c/-config onto config. No flag, no
// change.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	j := toJson(config)
	if err := json.Unmarshal(file, j); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	j.apply(config)
	return nil
}
