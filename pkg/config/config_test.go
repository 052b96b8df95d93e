package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, DefaultBaseURL, cfg.SteamGifts.BaseURL)
	assert.Equal(t, 13*time.Second, cfg.SteamGifts.Timeout)
	assert.Equal(t, 4, cfg.RateLimit.PerSecond)
	assert.Equal(t, 120, cfg.RateLimit.PerMinute)
	assert.Equal(t, 2400, cfg.RateLimit.PerHour)
	assert.Equal(t, 14400, cfg.RateLimit.PerDay)
	assert.Equal(t, Week, cfg.Cache.GiveawayTTL)
	assert.Equal(t, Week, cfg.Cache.UserTTL)
	assert.Equal(t, Week, cfg.Cache.SnapshotTTL)
	assert.Equal(t, "hinges", cfg.Filter.QuartileMethod)
	assert.True(t, strings.HasSuffix(cfg.Cache.Path, "cache.db"))
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SGSYNC_COOKIE", "abc123")
	t.Setenv("SGSYNC_USERNAME", "someone")
	t.Setenv("SGSYNC_REQUESTS_PER_MINUTE", "30")
	t.Setenv("SGSYNC_USER_TTL", "48h")
	t.Setenv("SGSYNC_LOG_LEVEL", "debug")
	t.Setenv("SGSYNC_RATE_LIMIT_PERSIST", "false")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "abc123", cfg.SteamGifts.Cookie)
	assert.Equal(t, "someone", cfg.SteamGifts.Username)
	assert.Equal(t, 30, cfg.RateLimit.PerMinute)
	assert.Equal(t, 4, cfg.RateLimit.PerSecond, "unset variables keep their value")
	assert.Equal(t, 48*time.Hour, cfg.Cache.UserTTL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.RateLimit.Persist)
}

func TestLoadFromEnvInvalidValue(t *testing.T) {
	t.Setenv("SGSYNC_REQUESTS_PER_HOUR", "lots")

	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromEnv())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
steamgifts:
  username: ngoclong19
  timeout: 20s
rate_limit:
  per_second: 2
cache:
  path: /tmp/sgsync/cache.db
  user_ttl: 72h
filter:
  quartile_method: linear
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "ngoclong19", cfg.SteamGifts.Username)
	assert.Equal(t, 20*time.Second, cfg.SteamGifts.Timeout)
	assert.Equal(t, 2, cfg.RateLimit.PerSecond)
	assert.Equal(t, 120, cfg.RateLimit.PerMinute)
	assert.Equal(t, "/tmp/sgsync/cache.db", cfg.Cache.Path)
	assert.Equal(t, 72*time.Hour, cfg.Cache.UserTTL)
	assert.Equal(t, "linear", cfg.Filter.QuartileMethod)
}

func TestLoadFromFileErrors(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("steamgifts: [unterminated"), 0644))
	assert.Error(t, cfg.LoadFromFile(bad))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"relative base url", func(c *Config) { c.SteamGifts.BaseURL = "steamgifts.com" }, "steamgifts base URL"},
		{"zero quota", func(c *Config) { c.RateLimit.PerDay = 0 }, "quota"},
		{"no attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, "max attempts"},
		{"backoff order", func(c *Config) { c.Retry.MaxBackoff = time.Second }, "backoff"},
		{"ttl", func(c *Config) { c.Cache.UserTTL = 0 }, "TTL"},
		{"quartile method", func(c *Config) { c.Filter.QuartileMethod = "nearest" }, "quartile"},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }, "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Path = ""
	cfg.Logging.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache path")
	assert.Contains(t, err.Error(), "log level")
}

func TestRequireSession(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.RequireSession())
	cfg.SteamGifts.Cookie = "abc"
	assert.NoError(t, cfg.RequireSession())
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.SteamGifts.Username = "saved-user"
	cfg.Cache.GiveawayTTL = 36 * time.Hour

	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, "saved-user", loaded.SteamGifts.Username)
	assert.Equal(t, 36*time.Hour, loaded.Cache.GiveawayTTL)
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"cookie":          "flag-cookie",
		"username":        "",
		"log-level":       "warn",
		"cache":           "/tmp/other.db",
		"quartile-method": "linear",
	})

	assert.Equal(t, "flag-cookie", cfg.SteamGifts.Cookie)
	assert.Empty(t, cfg.SteamGifts.Username)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "/tmp/other.db", cfg.Cache.Path)
	assert.Equal(t, "linear", cfg.Filter.QuartileMethod)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("steamgifts:\n  username: from-file\n  cookie: file-cookie\nlogging:\n  level: error\n"), 0644))

	t.Setenv("SGSYNC_COOKIE", "env-cookie")
	t.Setenv("SGSYNC_LOG_LEVEL", "warn")

	cfg, err := Load(path, map[string]interface{}{"log-level": "debug"})
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.SteamGifts.Username)
	assert.Equal(t, "env-cookie", cfg.SteamGifts.Cookie)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retry:\n  max_attempts: 0\n"), 0644))

	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestDataDirectoryHonoursXDG(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG only applies to linux")
	}
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg")
	assert.Equal(t, filepath.Join("/tmp/xdg", "sgsync"), DataDirectory())
}
