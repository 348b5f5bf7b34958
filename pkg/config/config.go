// Package config provides the configuration system for tap-nomad.
//
// A single Config structure covers everything the tap needs at runtime:
// how to reach the cluster API, how aggressively to page and retry, and
// where incremental extraction starts on a first run.
//
// Example usage:
//
//	cfg := config.New()
//	if err := config.Load("config.yml", cfg); err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"strings"
	"time"

	"github.com/ajitpratap0/tap-nomad/pkg/taperrors"
)

// Config is the resolved tap configuration supplied by the launcher.
type Config struct {
	// APIURL is the base URL of the cluster scheduler HTTP API
	APIURL string `yaml:"api_url" json:"api_url"`
	// Token is the API auth token, sent as the X-Nomad-Token header
	Token string `yaml:"token" json:"token"`
	// Namespace scopes list requests when set ("*" for all namespaces)
	Namespace string `yaml:"namespace" json:"namespace"`

	// PageSize controls the per_page pagination parameter
	PageSize int `yaml:"page_size" json:"page_size"`
	// StartIndex is the replication floor used when a stream has no
	// bookmark yet; records below it are never emitted
	StartIndex uint64 `yaml:"start_index" json:"start_index"`

	// Timeouts define request timeout durations
	Timeouts TimeoutConfig `yaml:"timeouts" json:"timeouts"`

	// Reliability settings for retry and rate limiting
	Reliability ReliabilityConfig `yaml:"reliability" json:"reliability"`

	// LogLevel sets the stderr log verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// TimeoutConfig contains timeout-related settings.
type TimeoutConfig struct {
	// Request timeout for a single API call
	Request time.Duration `yaml:"request" json:"request"`
	// Connection timeout for establishing connections
	Connection time.Duration `yaml:"connection" json:"connection"`
}

// ReliabilityConfig contains retry and rate limiting settings. Transient
// source failures are retried with exponential backoff inside these bounds.
type ReliabilityConfig struct {
	// RetryAttempts sets the maximum attempts per request
	RetryAttempts int `yaml:"retry_attempts" json:"retry_attempts"`
	// RetryDelay is the initial delay between retries
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
	// RetryMultiplier increases the delay exponentially
	RetryMultiplier float64 `yaml:"retry_multiplier" json:"retry_multiplier"`
	// MaxRetryDelay caps the backoff delay
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" json:"max_retry_delay"`
	// RateLimitPerSec limits API requests per second (0 = unlimited)
	RateLimitPerSec int `yaml:"rate_limit_per_sec" json:"rate_limit_per_sec"`
}

// New returns a Config populated with defaults. Loading a file on top of it
// overrides only the keys the file names.
func New() *Config {
	return &Config{
		APIURL:    "http://127.0.0.1:4646",
		Namespace: "*",
		PageSize:  500,
		Timeouts: TimeoutConfig{
			Request:    30 * time.Second,
			Connection: 10 * time.Second,
		},
		Reliability: ReliabilityConfig{
			RetryAttempts:   5,
			RetryDelay:      time.Second,
			RetryMultiplier: 2.0,
			MaxRetryDelay:   30 * time.Second,
			RateLimitPerSec: 0,
		},
		LogLevel: "info",
	}
}

// Validate checks the configuration for invalid combinations and fills in
// defaults for zero values.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return taperrors.New(taperrors.ErrorTypeConfig, "api_url is required")
	}
	if !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		return taperrors.Newf(taperrors.ErrorTypeConfig, "api_url must be an http(s) URL, got %q", c.APIURL)
	}
	if c.PageSize < 0 {
		return taperrors.New(taperrors.ErrorTypeConfig, "page_size cannot be negative")
	}
	if c.PageSize == 0 {
		c.PageSize = 500
	}
	if c.Reliability.RetryAttempts <= 0 {
		c.Reliability.RetryAttempts = 5
	}
	if c.Reliability.RetryDelay <= 0 {
		c.Reliability.RetryDelay = time.Second
	}
	if c.Reliability.RetryMultiplier <= 1 {
		c.Reliability.RetryMultiplier = 2.0
	}
	if c.Reliability.MaxRetryDelay <= 0 {
		c.Reliability.MaxRetryDelay = 30 * time.Second
	}
	if c.Timeouts.Request <= 0 {
		c.Timeouts.Request = 30 * time.Second
	}
	if c.Timeouts.Connection <= 0 {
		c.Timeouts.Connection = 10 * time.Second
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return nil
}
