// Package config loads the YAML configuration shared by the terminal and web front-ends.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/nomis52/signup/logging"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	defaultAPITimeout   = 10 * time.Second
	defaultMessageTTL   = 5 * time.Second
	defaultListenAddr   = ":8080"
	defaultRateLimit    = 5
	defaultRateBurst    = 10
	defaultPushInterval = 15 * time.Second

	defaultMetricsPrefix = "signup"
	defaultJobName       = "signup"

	csrfKeyLen = 32
)

// Config represents the complete application configuration
type Config struct {
	API        APIConfig        `yaml:"api"`
	UI         UIConfig         `yaml:"ui"`
	Refresh    RefreshConfig    `yaml:"refresh"`
	Listener   ListenerConfig   `yaml:"listener"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    logging.Config   `yaml:"logging"`
}

// APIConfig describes the activities service.
type APIConfig struct {
	// BaseURL is the root of the activities API, e.g. http://localhost:8000
	BaseURL string `yaml:"base_url"`
	// Timeout bounds every request to the API
	Timeout time.Duration `yaml:"timeout"`
}

// UIConfig holds presentation settings common to both front-ends.
type UIConfig struct {
	// MessageTTL is how long a form message stays visible
	MessageTTL time.Duration `yaml:"message_ttl"`
}

// RefreshConfig schedules periodic catalog reloads.
type RefreshConfig struct {
	// Schedule is a standard 5 field cron spec or descriptor such as "@every 1m". Empty disables refreshing.
	Schedule string `yaml:"schedule"`
}

// ListenerConfig holds web server settings.
type ListenerConfig struct {
	// The listen address, defaults to :8080
	Addr string `yaml:"addr"`
	// AuthFile is a file of "user:argon2-hash" lines. Empty disables authentication.
	AuthFile string `yaml:"auth_file"`
	// RateLimit is the sustained number of form submissions per second allowed per client
	RateLimit float64 `yaml:"rate_limit"`
	// RateBurst is the number of submissions a client may make at once
	RateBurst int `yaml:"rate_burst"`
	// CSRFKey is a hex encoded 32 byte key. A random key is generated when empty.
	CSRFKey string `yaml:"csrf_key"`
	// InsecureCookies allows the CSRF cookie over plain HTTP
	InsecureCookies bool `yaml:"insecure_cookies"`
	// TrustedOrigins are extra host[:port] origins allowed to post forms
	TrustedOrigins []string `yaml:"trusted_origins"`
	// TLSCert and TLSKey enable HTTPS. Both or neither must be set.
	TLSCert string `yaml:"tls_cert"`
	TLSKey  string `yaml:"tls_key"`
}

// MonitoringConfig holds metrics and monitoring settings
type MonitoringConfig struct {
	// VictoriaMetricsURL enables pushing metrics from the terminal client
	VictoriaMetricsURL string        `yaml:"victoriametrics_url"`
	MetricsPrefix      string        `yaml:"metrics_prefix"`
	JobName            string        `yaml:"jobname"`
	PushInterval       time.Duration `yaml:"push_interval"`
}

// Validate reports every problem with the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api.base_url is required"))
	} else if u, err := url.Parse(c.API.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("api.base_url %q must be an absolute http(s) URL", c.API.BaseURL))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("api.timeout must be positive"))
	}
	if c.UI.MessageTTL <= 0 {
		errs = append(errs, errors.New("ui.message_ttl must be positive"))
	}
	if c.Refresh.Schedule != "" {
		if _, err := cron.ParseStandard(c.Refresh.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("refresh.schedule %q: %w", c.Refresh.Schedule, err))
		}
	}
	if c.Listener.RateLimit < 0 {
		errs = append(errs, errors.New("listener.rate_limit must not be negative"))
	}
	if c.Listener.RateBurst < 0 {
		errs = append(errs, errors.New("listener.rate_burst must not be negative"))
	}
	if c.Listener.CSRFKey != "" {
		if _, err := c.Listener.CSRFKeyBytes(); err != nil {
			errs = append(errs, err)
		}
	}
	if (c.Listener.TLSCert == "") != (c.Listener.TLSKey == "") {
		errs = append(errs, errors.New("listener.tls_cert and listener.tls_key must be set together"))
	}
	if c.Monitoring.PushInterval < 0 {
		errs = append(errs, errors.New("monitoring.push_interval must not be negative"))
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}

	return errors.Join(errs...)
}

// SetDefaults sets reasonable default values for optional fields
func (c *Config) SetDefaults() {
	if c.API.Timeout == 0 {
		c.API.Timeout = defaultAPITimeout
	}
	if c.UI.MessageTTL == 0 {
		c.UI.MessageTTL = defaultMessageTTL
	}
	if c.Listener.Addr == "" {
		c.Listener.Addr = defaultListenAddr
	}
	if c.Listener.RateLimit == 0 {
		c.Listener.RateLimit = defaultRateLimit
	}
	if c.Listener.RateBurst == 0 {
		c.Listener.RateBurst = defaultRateBurst
	}
	if c.Monitoring.MetricsPrefix == "" {
		c.Monitoring.MetricsPrefix = defaultMetricsPrefix
	}
	if c.Monitoring.JobName == "" {
		c.Monitoring.JobName = defaultJobName
	}
	if c.Monitoring.PushInterval == 0 {
		c.Monitoring.PushInterval = defaultPushInterval
	}
	c.Logging.SetDefaults()
}

// CSRFKeyBytes decodes the configured CSRF key.
func (l ListenerConfig) CSRFKeyBytes() ([]byte, error) {
	key, err := hex.DecodeString(l.CSRFKey)
	if err != nil {
		return nil, fmt.Errorf("listener.csrf_key must be hex encoded: %w", err)
	}
	if len(key) != csrfKeyLen {
		return nil, fmt.Errorf("listener.csrf_key must be %d bytes, got %d", csrfKeyLen, len(key))
	}
	return key, nil
}

// LoadConfig reads the YAML config file at the given path, applies defaults and validates it.
// Unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode YAML config: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}
