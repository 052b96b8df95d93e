package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for sgsync
type Config struct {
	SteamGifts SteamGiftsConfig `yaml:"steamgifts" json:"steamgifts"`
	Reputation ReputationConfig `yaml:"reputation" json:"reputation"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit" json:"rate_limit"`
	Retry      RetryConfig      `yaml:"retry" json:"retry"`
	Cache      CacheConfig      `yaml:"cache" json:"cache"`
	Filter     FilterConfig     `yaml:"filter" json:"filter"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// SteamGiftsConfig holds the account and endpoint settings
type SteamGiftsConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url" env:"SGSYNC_BASE_URL"`
	// Username is the account whose giveaways are synchronised. Empty means
	// "discover it from the logged-in session".
	Username string `yaml:"username" json:"username" env:"SGSYNC_USERNAME"`
	// Cookie is the PHPSESSID session cookie value
	Cookie    string        `yaml:"cookie" json:"cookie" env:"SGSYNC_COOKIE"`
	UserAgent string        `yaml:"user_agent" json:"user_agent" env:"SGSYNC_USER_AGENT"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout" env:"SGSYNC_TIMEOUT"`
}

// ReputationConfig points at the third-party reputation lookups
type ReputationConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url" env:"SGSYNC_REPUTATION_URL"`
}

// RateLimitConfig holds the per-window request quotas
type RateLimitConfig struct {
	PerSecond int `yaml:"per_second" json:"per_second" env:"SGSYNC_REQUESTS_PER_SECOND"`
	PerMinute int `yaml:"per_minute" json:"per_minute" env:"SGSYNC_REQUESTS_PER_MINUTE"`
	PerHour   int `yaml:"per_hour" json:"per_hour" env:"SGSYNC_REQUESTS_PER_HOUR"`
	PerDay    int `yaml:"per_day" json:"per_day" env:"SGSYNC_REQUESTS_PER_DAY"`
	// Persist stores admissions in the cache database so quotas survive restarts
	Persist bool `yaml:"persist" json:"persist" env:"SGSYNC_RATE_LIMIT_PERSIST"`
}

// RetryConfig holds the transient failure policy
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" json:"max_attempts" env:"SGSYNC_RETRY_MAX_ATTEMPTS"`
	InitialBackoff time.Duration `yaml:"initial_backoff" json:"initial_backoff" env:"SGSYNC_RETRY_INITIAL_BACKOFF"`
	MaxBackoff     time.Duration `yaml:"max_backoff" json:"max_backoff" env:"SGSYNC_RETRY_MAX_BACKOFF"`
	Multiplier     float64       `yaml:"multiplier" json:"multiplier" env:"SGSYNC_RETRY_MULTIPLIER"`
}

// CacheConfig holds local persistence settings
type CacheConfig struct {
	Path         string        `yaml:"path" json:"path" env:"SGSYNC_CACHE_PATH"`
	SnapshotPath string        `yaml:"snapshot_path" json:"snapshot_path" env:"SGSYNC_SNAPSHOT_PATH"`
	GiveawayTTL  time.Duration `yaml:"giveaway_ttl" json:"giveaway_ttl" env:"SGSYNC_GIVEAWAY_TTL"`
	UserTTL      time.Duration `yaml:"user_ttl" json:"user_ttl" env:"SGSYNC_USER_TTL"`
	SnapshotTTL  time.Duration `yaml:"snapshot_ttl" json:"snapshot_ttl" env:"SGSYNC_SNAPSHOT_TTL"`
}

// FilterConfig tunes the outlier filter
type FilterConfig struct {
	// QuartileMethod is "hinges" or "linear"
	QuartileMethod string `yaml:"quartile_method" json:"quartile_method" env:"SGSYNC_QUARTILE_METHOD"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" env:"SGSYNC_LOG_LEVEL"`
	File   string `yaml:"file" json:"file" env:"SGSYNC_LOG_FILE"`
	Format string `yaml:"format" json:"format" env:"SGSYNC_LOG_FORMAT"`
}

const (
	DefaultBaseURL       = "https://www.steamgifts.com"
	DefaultReputationURL = "https://www.sgtools.info"
	DefaultUserAgent     = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

	// Week is the default freshness window for every cached collection
	Week = 7 * 24 * time.Hour
)

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	dataDir := DataDirectory()
	return &Config{
		SteamGifts: SteamGiftsConfig{
			BaseURL:   DefaultBaseURL,
			UserAgent: DefaultUserAgent,
			Timeout:   13 * time.Second,
		},
		Reputation: ReputationConfig{
			BaseURL: DefaultReputationURL,
		},
		RateLimit: RateLimitConfig{
			PerSecond: 4,
			PerMinute: 120,
			PerHour:   2400,
			PerDay:    14400,
			Persist:   true,
		},
		Retry: RetryConfig{
			MaxAttempts:    8,
			InitialBackoff: 5 * time.Second,
			MaxBackoff:     120 * time.Second,
			Multiplier:     2.0,
		},
		Cache: CacheConfig{
			Path:         filepath.Join(dataDir, "cache.db"),
			SnapshotPath: filepath.Join(dataDir, "whitelist.json"),
			GiveawayTTL:  Week,
			UserTTL:      Week,
			SnapshotTTL:  Week,
		},
		Filter: FilterConfig{
			QuartileMethod: "hinges",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadFromEnv overrides fields from SGSYNC_* environment variables
func (c *Config) LoadFromEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	locations := []string{
		".sgsync.yaml",
		".sgsync.yml",
		filepath.Join(home, ".config", "sgsync", "config.yaml"),
		filepath.Join(home, ".config", "sgsync", "config.yml"),
		filepath.Join(home, ".sgsync.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// DefaultConfigPath is where `config init` writes
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "sgsync", "config.yaml")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if err := validateURL("steamgifts base URL", c.SteamGifts.BaseURL); err != nil {
		errs = append(errs, err)
	}
	if err := validateURL("reputation base URL", c.Reputation.BaseURL); err != nil {
		errs = append(errs, err)
	}
	if c.SteamGifts.Timeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}

	if c.RateLimit.PerSecond <= 0 || c.RateLimit.PerMinute <= 0 || c.RateLimit.PerHour <= 0 || c.RateLimit.PerDay <= 0 {
		errs = append(errs, errors.New("every rate limit quota must be positive"))
	}

	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("retry max attempts must be positive"))
	}
	if c.Retry.InitialBackoff < 0 || c.Retry.MaxBackoff < c.Retry.InitialBackoff {
		errs = append(errs, errors.New("retry backoff must satisfy 0 <= initial <= max"))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry multiplier must be at least 1"))
	}

	if c.Cache.Path == "" {
		errs = append(errs, errors.New("cache path is required"))
	}
	if c.Cache.SnapshotPath == "" {
		errs = append(errs, errors.New("snapshot path is required"))
	}
	if c.Cache.GiveawayTTL <= 0 || c.Cache.UserTTL <= 0 || c.Cache.SnapshotTTL <= 0 {
		errs = append(errs, errors.New("cache TTLs must be positive"))
	}

	switch strings.ToLower(c.Filter.QuartileMethod) {
	case "hinges", "linear":
	default:
		errs = append(errs, fmt.Errorf("invalid quartile method %q", c.Filter.QuartileMethod))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// RequireSession reports whether a session cookie is configured
func (c *Config) RequireSession() error {
	if c.SteamGifts.Cookie == "" {
		return errors.New("session cookie is required (run 'sgsync auth login' or set SGSYNC_COOKIE)")
	}
	return nil
}

func validateURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL", name)
	}
	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if cookie, ok := flags["cookie"].(string); ok && cookie != "" {
		c.SteamGifts.Cookie = cookie
	}
	if username, ok := flags["username"].(string); ok && username != "" {
		c.SteamGifts.Username = username
	}
	if cachePath, ok := flags["cache"].(string); ok && cachePath != "" {
		c.Cache.Path = cachePath
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if method, ok := flags["quartile-method"].(string); ok && method != "" {
		c.Filter.QuartileMethod = method
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".sgsync.env"))
	}

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
