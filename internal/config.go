package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

const (
	defaultAPIBaseURL      = "http://localhost:8080"
	defaultScrollThreshold = 5
	defaultTimeout         = 15 * time.Second
	defaultCacheTTL        = 10 * time.Minute
	configDirName          = ".convo-console"
)

// Config holds the console settings.
//
// Values are resolved in this order, later wins:
//  1. built-in defaults
//  2. the YAML config file
//  3. CONVO_* environment variables
//  4. command line flags (applied by the cmd package)
type Config struct {
	APIBaseURL      string        `yaml:"api_base_url" env:"CONVO_API_URL"`
	APIKey          string        `yaml:"api_key,omitempty" env:"CONVO_API_KEY"`
	PageSize        int           `yaml:"page_size" env:"CONVO_PAGE_SIZE"`
	ScrollThreshold int           `yaml:"scroll_threshold" env:"CONVO_SCROLL_THRESHOLD"`
	Timeout         time.Duration `yaml:"timeout" env:"CONVO_TIMEOUT"`
	CacheDir        string        `yaml:"cache_dir,omitempty" env:"CONVO_CACHE_DIR"`
	CacheTTL        time.Duration `yaml:"cache_ttl" env:"CONVO_CACHE_TTL"`
	ArchivePath     string        `yaml:"archive_path,omitempty" env:"CONVO_ARCHIVE_PATH"`
	LogLevel        string        `yaml:"log_level,omitempty" env:"CONVO_LOG_LEVEL"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		APIBaseURL:      defaultAPIBaseURL,
		PageSize:        DefaultPageSize,
		ScrollThreshold: defaultScrollThreshold,
		Timeout:         defaultTimeout,
		CacheTTL:        defaultCacheTTL,
		LogLevel:        "info",
	}
}

// DefaultConfigDir returns ~/.convo-console
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, configDirName), nil
}

// DefaultConfigPath returns ~/.convo-console/config.yaml
func DefaultConfigPath() (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// ReadConfigFile returns the defaults overlaid with the YAML file at path.
// A missing file yields the defaults. Environment overrides are not applied,
// so the result is safe to edit and save back.
func ReadConfigFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &ConfigError{Path: path, Err: fmt.Errorf("failed to parse config: %w", err)}
		}
		LogDebug("Loaded config from %s", path)
	case errors.Is(err, os.ErrNotExist):
		LogDebug("No config file at %s, using defaults", path)
	default:
		return nil, &ConfigError{Path: path, Err: err}
	}
	return cfg, nil
}

// LoadConfig reads the config file at path (a missing file is fine), then
// applies environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg, err := ReadConfigFile(path)
	if err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, &ConfigError{Path: "environment", Err: err}
	}

	if err := cfg.fillDirs(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) fillDirs() error {
	if c.CacheDir != "" && c.ArchivePath != "" {
		return nil
	}
	dir, err := DefaultConfigDir()
	if err != nil {
		return &ConfigError{Field: "cache_dir", Err: err}
	}
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(dir, "cache")
	}
	if c.ArchivePath == "" {
		c.ArchivePath = filepath.Join(dir, "archive.db")
	}
	return nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return &ConfigError{Field: "api_base_url", Err: errors.New("must not be empty")}
	}
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ConfigError{Field: "api_base_url", Err: fmt.Errorf("invalid url %q", c.APIBaseURL)}
	}
	if c.PageSize <= 0 {
		return &ConfigError{Field: "page_size", Err: fmt.Errorf("must be positive, got %d", c.PageSize)}
	}
	if c.ScrollThreshold < 0 {
		return &ConfigError{Field: "scroll_threshold", Err: fmt.Errorf("must not be negative, got %d", c.ScrollThreshold)}
	}
	if c.Timeout <= 0 {
		return &ConfigError{Field: "timeout", Err: fmt.Errorf("must be positive, got %s", c.Timeout)}
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return &ConfigError{Field: "log_level", Err: err}
	}
	return nil
}

// SaveConfig writes cfg to path. The file holds the API key so it is only
// readable by the owner.
func SaveConfig(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return &ConfigError{Path: path, Err: err}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return &ConfigError{Path: path, Err: fmt.Errorf("failed to marshal config: %w", err)}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return &ConfigError{Path: path, Err: err}
	}
	return nil
}

// Set assigns a config field by its YAML name
func (c *Config) Set(field, value string) error {
	switch field {
	case "api_base_url":
		c.APIBaseURL = strings.TrimRight(value, "/")
	case "api_key":
		c.APIKey = strings.TrimSpace(value)
	case "page_size", "scroll_threshold":
		n, err := strconv.Atoi(value)
		if err != nil {
			return &ConfigError{Field: field, Err: err}
		}
		if field == "page_size" {
			c.PageSize = n
		} else {
			c.ScrollThreshold = n
		}
	case "timeout", "cache_ttl":
		d, err := time.ParseDuration(value)
		if err != nil {
			return &ConfigError{Field: field, Err: err}
		}
		if field == "timeout" {
			c.Timeout = d
		} else {
			c.CacheTTL = d
		}
	case "cache_dir":
		c.CacheDir = value
	case "archive_path":
		c.ArchivePath = value
	case "log_level":
		c.LogLevel = value
	default:
		return &ConfigError{Field: field, Err: errors.New("unknown field")}
	}
	return c.Validate()
}

const keyMask = "********"

// MaskedAPIKey returns a fixed-width mask followed by the last four characters
// of the API key. Keys of four characters or fewer are masked entirely.
func (c *Config) MaskedAPIKey() string {
	key := c.APIKey
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 4 {
		return keyMask
	}
	return keyMask + key[len(key)-4:]
}
