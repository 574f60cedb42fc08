package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultProbeTimeout = 3 * time.Second
	DefaultPollTimeout  = 5 * time.Second
	DefaultPollInterval = 30 * time.Second
)

// CollectorConfig holds configuration for the collector process. It is read
// from a YAML file and then overridden by COLLECTOR_* environment variables.
type CollectorConfig struct {
	Endpoints    []string      `yaml:"endpoints"`
	Calculation  string        `yaml:"calculation"`
	PollInterval time.Duration `yaml:"poll_interval"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	PollTimeout  time.Duration `yaml:"poll_timeout"`
	Concurrency  int           `yaml:"concurrency"`
	HTTPAddr     string        `yaml:"http_addr"`
	LogLevel     string        `yaml:"log_level"`
	DisableFeed  bool          `yaml:"disable_feed"`
	Publish      PublishConfig `yaml:"publish"`
}

// PublishConfig configures the optional summary webhook.
type PublishConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// LoadCollectorConfig reads path (when non-empty), applies env overrides and
// defaults, then validates the result.
func LoadCollectorConfig(path string) (*CollectorConfig, error) {
	var cfg CollectorConfig
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *CollectorConfig) applyEnv() {
	if endpoints := GetList("COLLECTOR_ENDPOINTS"); len(endpoints) > 0 {
		c.Endpoints = endpoints
	}
	c.Calculation = GetString("COLLECTOR_CALCULATION_ADDR", c.Calculation)
	c.HTTPAddr = GetString("COLLECTOR_HTTP_ADDR", c.HTTPAddr)
	c.PollInterval = GetDuration("COLLECTOR_POLL_INTERVAL", c.PollInterval)
	c.Concurrency = GetInt("COLLECTOR_CONCURRENCY", c.Concurrency)
	c.LogLevel = GetString("LOG_LEVEL", c.LogLevel)
	c.DisableFeed = GetBool("COLLECTOR_DISABLE_FEED", c.DisableFeed)
	c.Publish.URL = GetString("COLLECTOR_PUBLISH_URL", c.Publish.URL)
	c.Publish.Token = GetString("COLLECTOR_PUBLISH_TOKEN", c.Publish.Token)
	c.Publish.Timeout = GetDuration("COLLECTOR_PUBLISH_TIMEOUT", c.Publish.Timeout)
}

func (c *CollectorConfig) applyDefaults() {
	for i, ep := range c.Endpoints {
		c.Endpoints[i] = NormalizeAddress(ep, DefaultBenchPort)
	}
	c.Calculation = NormalizeAddress(c.Calculation, DefaultCalculationPort)
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
	if c.PollTimeout == 0 {
		c.PollTimeout = DefaultPollTimeout
	}
	if c.Concurrency == 0 {
		c.Concurrency = 1
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8070"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Publish.Timeout == 0 {
		c.Publish.Timeout = 5 * time.Second
	}
}

func (c *CollectorConfig) validate() error {
	for i, ep := range c.Endpoints {
		if ep == "" {
			return fmt.Errorf("endpoints[%d]: address is required", i)
		}
	}
	if c.PollInterval < 0 || c.ProbeTimeout < 0 || c.PollTimeout < 0 || c.Publish.Timeout < 0 {
		return errors.New("durations must be positive")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if url := strings.TrimSpace(c.Publish.URL); url != "" &&
		!strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("publish.url must be http(s), got %q", url)
	}
	return nil
}
