package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, BackendHTTP, cfg.Drive.Backend)
	assert.Equal(t, 30, cfg.Drive.CacheTTLSeconds)
	assert.Equal(t, 3, cfg.Drive.MaxRetries)
	assert.Equal(t, "no-proxy", cfg.Proxy.Mode)
	assert.NoError(t, cfg.Validate())
}

func TestSaveAndLoadConfig(t *testing.T) {
	t.Setenv(EnvDriveToken, "")
	t.Setenv(EnvDatabaseURL, "")
	t.Setenv(EnvSessionToken, "")

	// given
	path := filepath.Join(t.TempDir(), "config")
	cfg := NewConfig()
	cfg.Drive.BaseURL = "https://dash.example.com/api"
	cfg.Drive.Token = "drive-token"
	cfg.Drive.CacheTTLSeconds = 5
	cfg.Drive.S3.Bucket = "docs"
	cfg.Drive.S3.RootPrefix = "empresas/"
	cfg.Records.SnapshotPath = "/tmp/branches.json"
	cfg.Session.SigningKey = "k"
	cfg.Proxy.Mode = "basic"
	cfg.Proxy.Host = "proxy.corp"
	cfg.Proxy.Port = 3128

	// when
	require.NoError(t, SaveConfig(cfg, path))
	loaded, err := LoadConfig(path)

	// then
	require.NoError(t, err)
	assert.Equal(t, cfg.Drive.BaseURL, loaded.Drive.BaseURL)
	assert.Equal(t, "drive-token", loaded.Drive.Token)
	assert.Equal(t, 5, loaded.Drive.CacheTTLSeconds)
	assert.Equal(t, "docs", loaded.Drive.S3.Bucket)
	assert.Equal(t, "empresas/", loaded.Drive.S3.RootPrefix)
	assert.Equal(t, "/tmp/branches.json", loaded.Records.SnapshotPath)
	assert.Equal(t, "k", loaded.Session.SigningKey)
	assert.Equal(t, "basic", loaded.Proxy.Mode)
	assert.Equal(t, 3128, loaded.Proxy.Port)

	info, err := os.Stat(path)
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Setenv(EnvDriveToken, "from-env")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope"))

	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Drive.Token)
	assert.Equal(t, BackendHTTP, cfg.Drive.Backend)
}

func TestLoadConfigInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte("[drive\nbase_url"), 0600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"missing base url", func(c *Config) { c.Drive.BaseURL = " " }, ErrMissingBaseURL},
		{"unknown backend", func(c *Config) { c.Drive.Backend = "ftp" }, ErrUnknownBackend},
		{"s3 without bucket", func(c *Config) { c.Drive.Backend = BackendS3 }, ErrMissingBucket},
		{"azure without account", func(c *Config) { c.Drive.Backend = BackendAzure }, ErrMissingAccountURL},
		{"azure without container", func(c *Config) {
			c.Drive.Backend = BackendAzure
			c.Drive.Azure.AccountURL = "https://acct.blob.core.windows.net"
		}, ErrMissingContainer},
		{"negative ttl", func(c *Config) { c.Drive.CacheTTLSeconds = -1 }, ErrInvalidCacheTTL},
		{"too many retries", func(c *Config) { c.Drive.MaxRetries = 11 }, ErrInvalidRetries},
		{"bad proxy mode", func(c *Config) { c.Proxy.Mode = "socks" }, ErrInvalidProxyMode},
		{"ntlm without host", func(c *Config) { c.Proxy.Mode = "ntlm" }, ErrMissingProxyHost},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, ErrInvalidLoggingLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestSet(t *testing.T) {
	cfg := NewConfig()

	require.NoError(t, cfg.Set("drive.s3.bucket", "docs"))
	require.NoError(t, cfg.Set("drive.cache_ttl_seconds", "0"))
	require.NoError(t, cfg.Set("proxy.warmup", "true"))

	assert.Equal(t, "docs", cfg.Drive.S3.Bucket)
	assert.Equal(t, 0, cfg.Drive.CacheTTLSeconds)
	assert.True(t, cfg.Proxy.Warmup)

	assert.ErrorIs(t, cfg.Set("drive.colour", "blue"), ErrUnknownKey)
	assert.Error(t, cfg.Set("drive.max_retries", "many"))
}

func TestRenderMasksSecrets(t *testing.T) {
	cfg := NewConfig()
	cfg.Drive.Token = "super-secret"
	cfg.Session.SigningKey = "signing-secret"

	out, err := cfg.Render()

	require.NoError(t, err)
	assert.False(t, strings.Contains(out, "super-secret"))
	assert.False(t, strings.Contains(out, "signing-secret"))
	assert.Contains(t, out, "****")
	assert.Contains(t, out, "[drive]")
}

func TestDriveHelpers(t *testing.T) {
	d := DriveConfig{BaseURL: "https://dash.example.com/api/", CacheTTLSeconds: 2}

	assert.Equal(t, "https://dash.example.com/api/auth/drive/login", d.LoginLink())
	assert.Equal(t, int64(2), int64(d.CacheTTL().Seconds()))
	assert.Equal(t, int64(60), int64(d.RequestTimeout().Seconds()))
}
