// Package config provides configuration management for the subreddit tools.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrNoSites                  = errors.New("at least one site is required")
	ErrUnknownSite              = errors.New("site is not defined")
	ErrInvalidURL               = errors.New("site url must be absolute")
	ErrMissingCredentials       = errors.New("client_id, client_secret, username and password are required")
	ErrMissingUserAgent         = errors.New("user_agent is required")
	ErrInvalidRequestsPerMinute = errors.New("requests_per_minute must be at least 1")
	ErrInvalidMaxAttempts       = errors.New("retry.max_attempts must be at least 1")
	ErrInvalidInitialDelay      = errors.New("retry.initial_delay_ms must be non-negative")
	ErrInvalidBackoffMultiplier = errors.New("retry.backoff_multiplier must be >= 1.0")
	ErrInvalidTimeout           = errors.New("retry.timeout_sec must be at least 1")
	ErrInvalidLogLevel          = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidStatsCount        = errors.New("stats.submitters and stats.commenters must be non-negative")
	ErrInvalidMoreLimit         = errors.New("stats.more_limit must be -1 (expand all) or non-negative")
)

// Default endpoints of the public reddit API.
const (
	DefaultSiteName  = "reddit"
	DefaultAuthURL   = "https://www.reddit.com"
	DefaultAPIURL    = "https://oauth.reddit.com"
	DefaultUserAgent = "srtools/1.0"
	// DefaultMoreLimit is the number of "load more" placeholders expanded per submission.
	DefaultMoreLimit = 32
)

// Config represents the complete tool configuration.
type Config struct {
	Sites       map[string]SiteConfig `yaml:"sites"`
	DefaultSite string                `yaml:"default_site"`
	Retry       RetryPolicy           `yaml:"retry"`
	Logging     LoggingConfig         `yaml:"logging"`
	Stats       StatsConfig           `yaml:"stats"`
}

// SiteConfig holds the endpoint and credentials of one reddit deployment.
type SiteConfig struct {
	ClientID          string `yaml:"client_id"`
	ClientSecret      string `yaml:"client_secret"`
	Username          string `yaml:"username"`
	Password          string `yaml:"password"`
	UserAgent         string `yaml:"user_agent"`
	AuthURL           string `yaml:"auth_url"`
	APIURL            string `yaml:"api_url"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
}

// RetryPolicy defines retry behavior of the HTTP transport.
type RetryPolicy struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelayMs    int     `yaml:"initial_delay_ms"`
	MaxDelayMs        int     `yaml:"max_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	TimeoutSec        int     `yaml:"timeout_sec"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// StatsConfig holds defaults of the statistics report.
type StatsConfig struct {
	Submitters int    `yaml:"submitters"`
	Commenters int    `yaml:"commenters"`
	MoreLimit  int    `yaml:"more_limit"`
	ReportDir  string `yaml:"report_dir"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		DefaultSite: DefaultSiteName,
		Sites: map[string]SiteConfig{
			DefaultSiteName: {
				UserAgent:         DefaultUserAgent,
				AuthURL:           DefaultAuthURL,
				APIURL:            DefaultAPIURL,
				RequestsPerMinute: 60,
			},
		},
		Retry: RetryPolicy{
			MaxAttempts:       3,
			InitialDelayMs:    1000,
			MaxDelayMs:        10000,
			BackoffMultiplier: 2.0,
			TimeoutSec:        30,
		},
		Logging: LoggingConfig{Level: "warn"},
		Stats: StatsConfig{
			Submitters: 10,
			Commenters: 10,
			MoreLimit:  DefaultMoreLimit,
			ReportDir:  ".",
		},
	}
}

// LoadConfig loads configuration from a YAML file on top of the defaults.
func LoadConfig(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()

	// Sites in the file replace the built-in site rather than merging with it
	defaultSites := cfg.Sites
	cfg.Sites = nil

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Sites == nil {
		cfg.Sites = defaultSites
	}

	cfg.fillSiteDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads filepath when set, otherwise returns the defaults.
func LoadOrDefault(filepath string) (*Config, error) {
	if filepath == "" {
		return Default(), nil
	}

	return LoadConfig(filepath)
}

// SaveConfig saves configuration to YAML file.
func (c *Config) SaveConfig(filepath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// fillSiteDefaults completes partially specified sites with the public endpoints.
func (c *Config) fillSiteDefaults() {
	for name, site := range c.Sites {
		if site.AuthURL == "" {
			site.AuthURL = DefaultAuthURL
		}

		if site.APIURL == "" {
			site.APIURL = DefaultAPIURL
		}

		if site.UserAgent == "" {
			site.UserAgent = DefaultUserAgent
		}

		if site.RequestsPerMinute == 0 {
			site.RequestsPerMinute = 60
		}

		c.Sites[name] = site
	}

	if c.DefaultSite == "" {
		c.DefaultSite = DefaultSiteName
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.Sites) == 0 {
		return ErrNoSites
	}

	if _, ok := c.Sites[c.DefaultSite]; !ok {
		return fmt.Errorf("%w: default_site %q", ErrUnknownSite, c.DefaultSite)
	}

	for name, site := range c.Sites {
		if err := site.validateEndpoints(); err != nil {
			return fmt.Errorf("sites.%s: %w", name, err)
		}
	}

	// Validate retry policy
	if c.Retry.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}

	if c.Retry.InitialDelayMs < 0 {
		return ErrInvalidInitialDelay
	}

	if c.Retry.BackoffMultiplier < 1.0 {
		return ErrInvalidBackoffMultiplier
	}

	if c.Retry.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	if c.Stats.Submitters < 0 || c.Stats.Commenters < 0 {
		return ErrInvalidStatsCount
	}

	if c.Stats.MoreLimit < -1 {
		return ErrInvalidMoreLimit
	}

	return nil
}

func (s *SiteConfig) validateEndpoints() error {
	for _, raw := range []string{s.AuthURL, s.APIURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: %q", ErrInvalidURL, raw)
		}
	}

	if s.UserAgent == "" {
		return ErrMissingUserAgent
	}

	if s.RequestsPerMinute < 1 {
		return ErrInvalidRequestsPerMinute
	}

	return nil
}

// ValidateCredentials checks that the site can perform a password grant.
func (s *SiteConfig) ValidateCredentials() error {
	if s.ClientID == "" || s.ClientSecret == "" || s.Username == "" || s.Password == "" {
		return ErrMissingCredentials
	}

	return nil
}

// Site returns the named site, or the default site when name is empty.
func (c *Config) Site(name string) (SiteConfig, error) {
	if name == "" {
		name = c.DefaultSite
	}

	site, ok := c.Sites[name]
	if !ok {
		return SiteConfig{}, fmt.Errorf("%w: %q", ErrUnknownSite, name)
	}

	return site, nil
}

// GetRetryDelay calculates exponential backoff delay for attempt number.
func (rp *RetryPolicy) GetRetryDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delayMs := float64(rp.InitialDelayMs)
	for i := 1; i < attempt; i++ {
		delayMs *= rp.BackoffMultiplier
	}

	// Cap at max delay
	if rp.MaxDelayMs > 0 && int(delayMs) > rp.MaxDelayMs {
		delayMs = float64(rp.MaxDelayMs)
	}

	return time.Duration(int(delayMs)) * time.Millisecond
}

// GetTimeout returns the timeout duration.
func (rp *RetryPolicy) GetTimeout() time.Duration {
	return time.Duration(rp.TimeoutSec) * time.Second
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Sites: %d, Default: %s, MaxAttempts: %d}",
		len(c.Sites),
		c.DefaultSite,
		c.Retry.MaxAttempts,
	)
}
