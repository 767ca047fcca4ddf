package config

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/manylla-sync/internal/flagx"
)

// parseEnv overlays MANYLLA_* environment variables. A .env file in the
// working directory is loaded first; real environment variables win.
func parseEnv(c *Config) error {
	if err := flagx.LoadDotEnv(); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}

	str := map[string]*string{
		"MANYLLA_HTTP_ADDR":        &c.EndpointAddrHTTP,
		"MANYLLA_GRPC_ADDR":        &c.EndpointAddrGRPC,
		"MANYLLA_LOG_LEVEL":        &c.LogLevel,
		"MANYLLA_STORE":            &c.Store,
		"MANYLLA_DATABASE_DSN":     &c.DatabaseDSN,
		"MANYLLA_ADMIN_SECRET":     &c.AdminSecret,
		"MANYLLA_IP_HASH_SALT":     &c.IPHashSalt,
		"MANYLLA_ARCHIVE_BUCKET":   &c.ArchiveBucket,
		"MANYLLA_ARCHIVE_PREFIX":   &c.ArchivePrefix,
		"MANYLLA_S3_REGION":        &c.S3Region,
		"MANYLLA_S3_BASE_ENDPOINT": &c.S3BaseEndpoint,
		"MANYLLA_S3_ACCESS_KEY":    &c.S3AccessKey,
		"MANYLLA_S3_SECRET_KEY":    &c.S3SecretKey,
	}
	for key, dst := range str {
		if v, ok := flagx.EnvString(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"MANYLLA_SYNC_RATE_LIMIT":    &c.SyncRateLimit,
		"MANYLLA_SHARE_RATE_LIMIT":   &c.ShareRateLimit,
		"MANYLLA_HEALTH_RATE_LIMIT":  &c.HealthRateLimit,
		"MANYLLA_CLEANUP_BATCH_SIZE": &c.CleanupBatchSize,
		"MANYLLA_BACKUP_KEEP":        &c.BackupKeep,
	}
	for key, dst := range ints {
		v, ok, err := flagx.EnvInt(key)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if ok {
			*dst = v
		}
	}

	if v, ok, err := flagx.EnvInt64("MANYLLA_MAX_BLOB_SIZE"); err != nil {
		return fmt.Errorf("MANYLLA_MAX_BLOB_SIZE: %w", err)
	} else if ok {
		c.MaxBlobSize = v
	}

	durations := map[string]*time.Duration{
		"MANYLLA_RATE_WINDOW":      &c.RateWindow,
		"MANYLLA_RETENTION":        &c.Retention,
		"MANYLLA_CLEANUP_INTERVAL": &c.CleanupInterval,
		"MANYLLA_SHUTDOWN_TIMEOUT": &c.ShutdownTimeout,
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

	if v, ok := flagx.EnvList("MANYLLA_HEALTH_EXEMPT_CIDRS"); ok {
		c.HealthExemptCIDRs = v
	}
	if v, ok := flagx.EnvList("MANYLLA_ALLOWED_ORIGINS"); ok {
		c.AllowedOrigins = v
	}
	if v, ok := flagx.EnvString("MANYLLA_TRUST_PROXY_HEADERS"); ok {
		c.TrustProxyHeaders = v == "1" || v == "true"
	}

	return nil
}
