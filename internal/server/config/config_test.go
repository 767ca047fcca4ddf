package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func defaults() *Config {
	c := &Config{}
	c.LoadDefaults()
	return c
}

func TestLoadDefaults(t *testing.T) {
	c := defaults()

	assert.Equal(t, ":8080", c.EndpointAddrHTTP)
	assert.Equal(t, ":50051", c.EndpointAddrGRPC)
	assert.Equal(t, StorePostgres, c.Store)
	assert.Equal(t, int64(5<<20), c.MaxBlobSize)
	assert.Equal(t, 30, c.SyncRateLimit)
	assert.Equal(t, 60, c.ShareRateLimit)
	assert.Equal(t, 30, c.HealthRateLimit)
	assert.Equal(t, 60*time.Second, c.RateWindow)
	assert.Equal(t, 180*24*time.Hour, c.Retention)
	assert.Equal(t, 1000, c.CleanupBatchSize)
	assert.Equal(t, 10, c.BackupKeep)
	assert.Empty(t, c.ArchiveBucket)
	require.NoError(t, c.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown store", func(c *Config) { c.Store = "redis" }},
		{"postgres without dsn", func(c *Config) { c.DatabaseDSN = "" }},
		{"zero blob size", func(c *Config) { c.MaxBlobSize = 0 }},
		{"zero sync limit", func(c *Config) { c.SyncRateLimit = 0 }},
		{"zero window", func(c *Config) { c.RateWindow = 0 }},
		{"bad cidr", func(c *Config) { c.HealthExemptCIDRs = []string{"10.0.0.0/99"} }},
		{"zero batch", func(c *Config) { c.CleanupBatchSize = 0 }},
		{"negative backup keep", func(c *Config) { c.BackupKeep = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := defaults()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}

	c := defaults()
	c.Store = StoreMemory
	c.DatabaseDSN = ""
	assert.NoError(t, c.Validate(), "memory store needs no dsn")
}

func Test_parseJson(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"endpoint_addr_http":  "127.0.0.1:9000",
		"store":               "memory",
		"sync_rate_limit":     5,
		"rate_window":         "10s",
		"retention":           "720h",
		"health_exempt_cidrs": []string{"10.0.0.0/8"},
		"archive_bucket":      "purged-blobs",
	})

	t.Run("overlays keys present in file", func(t *testing.T) {
		c := defaults()
		require.NoError(t, parseJson(c, []string{"-config", path}))

		assert.Equal(t, "127.0.0.1:9000", c.EndpointAddrHTTP)
		assert.Equal(t, StoreMemory, c.Store)
		assert.Equal(t, 5, c.SyncRateLimit)
		assert.Equal(t, 10*time.Second, c.RateWindow)
		assert.Equal(t, 720*time.Hour, c.Retention)
		assert.Equal(t, []string{"10.0.0.0/8"}, c.HealthExemptCIDRs)
		assert.Equal(t, "purged-blobs", c.ArchiveBucket)

		assert.Equal(t, 60, c.ShareRateLimit, "missing keys keep defaults")
		assert.Equal(t, ":50051", c.EndpointAddrGRPC)
	})

	t.Run("no config flag → no changes", func(t *testing.T) {
		c := defaults()
		require.NoError(t, parseJson(c, []string{"-a", ":1"}))
		assert.Empty(t, cmp.Diff(defaults(), c))
	})

	t.Run("invalid JSON → error", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))
		assert.Error(t, parseJson(defaults(), []string{"-c", bad}))
	})

	t.Run("missing file → error", func(t *testing.T) {
		assert.Error(t, parseJson(defaults(), []string{"-c", filepath.Join(t.TempDir(), "nope.json")}))
	})
}

func Test_parseEnv(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("MANYLLA_HTTP_ADDR", ":7070")
	t.Setenv("MANYLLA_SHARE_RATE_LIMIT", "120")
	t.Setenv("MANYLLA_MAX_BLOB_SIZE", "1024")
	t.Setenv("MANYLLA_RATE_WINDOW", "30s")
	t.Setenv("MANYLLA_HEALTH_EXEMPT_CIDRS", "10.0.0.0/8, 192.168.0.0/16")
	t.Setenv("MANYLLA_TRUST_PROXY_HEADERS", "true")

	c := defaults()
	require.NoError(t, parseEnv(c))

	assert.Equal(t, ":7070", c.EndpointAddrHTTP)
	assert.Equal(t, 120, c.ShareRateLimit)
	assert.Equal(t, int64(1024), c.MaxBlobSize)
	assert.Equal(t, 30*time.Second, c.RateWindow)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.0.0/16"}, c.HealthExemptCIDRs)
	assert.True(t, c.TrustProxyHeaders)

	t.Setenv("MANYLLA_SYNC_RATE_LIMIT", "many")
	assert.Error(t, parseEnv(defaults()))
}

func TestParseFlags(t *testing.T) {
	c := defaults()
	err := parseFlags(c, []string{
		"-a", "127.0.0.1:9090", "-g", ":6000", "-d", "db", "-m", "memory",
		"-s", "secret", "-l", "debug", "-x", "127.0.0.1/32,10.0.0.0/8",
		"-b", "bucket", "-e", "http://minio:9000", "-unrelated", "1",
	})
	require.NoError(t, err)

	want := defaults()
	want.EndpointAddrHTTP = "127.0.0.1:9090"
	want.EndpointAddrGRPC = ":6000"
	want.DatabaseDSN = "db"
	want.Store = StoreMemory
	want.AdminSecret = "secret"
	want.LogLevel = "debug"
	want.HealthExemptCIDRs = []string{"127.0.0.1/32", "10.0.0.0/8"}
	want.ArchiveBucket = "bucket"
	want.S3BaseEndpoint = "http://minio:9000"

	assert.Empty(t, cmp.Diff(want, c))
}

func TestLoadConfig_Precedence(t *testing.T) {
	t.Chdir(t.TempDir())

	path := writeTempJSON(t, map[string]any{
		"endpoint_addr_http": ":1111",
		"store":              "memory",
		"sync_rate_limit":    7,
	})
	t.Setenv("MANYLLA_HTTP_ADDR", ":2222")

	c, err := LoadConfig([]string{"-c", path, "-a", ":3333"})
	require.NoError(t, err)

	assert.Equal(t, ":3333", c.EndpointAddrHTTP, "flags beat env and file")
	assert.Equal(t, 7, c.SyncRateLimit, "file beats defaults")
	assert.Equal(t, StoreMemory, c.Store)
}

func TestLoadConfig_InvalidResult(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := LoadConfig([]string{"-m", "cassandra"})
	assert.Error(t, err)
}
