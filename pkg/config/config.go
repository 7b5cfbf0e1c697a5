package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Server struct {
	ListenAddress  string   `yaml:"listenAddress"`
	TLSCertFile    string   `yaml:"tlsCertFile"`
	TLSKeyFile     string   `yaml:"tlsKeyFile"`
	TrustedProxies []string `yaml:"trustedProxies"` // IPs/CIDRs to trust for X-Forwarded-For headers
}

type Upstream struct {
	// URL is the fixed location of the published ip-ranges JSON document
	URL string `yaml:"url"`
	// FetchTimeout bounds a single upstream fetch (e.g. "30s")
	FetchTimeout string `yaml:"fetchTimeout"`
}

type Cache struct {
	// RedisAddr enables the durable Redis tier when non-empty (host:port)
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`
	KeyPrefix     string `yaml:"keyPrefix"`
	// MaxAge is the read-side staleness bound D (e.g. "24h")
	MaxAge string `yaml:"maxAge"`
}

type Sync struct {
	// Interval between periodic syncs in continuous mode (e.g. "1h")
	Interval string `yaml:"interval"`
	// ForceRefreshAge is the threshold F for refreshing an unchanged cache (e.g. "24h")
	ForceRefreshAge string `yaml:"forceRefreshAge"`
	// Mode is "continuous" (long-lived process) or "oneshot" (external scheduler)
	Mode string `yaml:"mode"`
}

type RateLimit struct {
	// Window is the fixed window duration (e.g. "60s")
	Window string `yaml:"window"`
	// MaxRequests per client per window
	MaxRequests int `yaml:"maxRequests"`
	// SweepInterval between expired-window sweeps (e.g. "5m")
	SweepInterval string `yaml:"sweepInterval"`
	// ExcludeSuccessful uncounts requests that produced a < 400 response
	ExcludeSuccessful bool `yaml:"excludeSuccessful"`
	// InternalHosts are Origin/Referer hosts treated as exempt
	InternalHosts []string `yaml:"internalHosts"`
	// InternalAgents are User-Agent substrings treated as exempt
	InternalAgents []string `yaml:"internalAgents"`
}

type Events struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type Telemetry struct {
	Enabled bool `yaml:"enabled"`
	// Exporter selects the trace exporter: "otlp" (default) or "stdout"
	Exporter string `yaml:"exporter"`
	// Endpoint is the OTLP collector endpoint (e.g. "otel-collector:4317")
	Endpoint string `yaml:"endpoint"`
	// Insecure disables TLS for the OTLP connection
	Insecure bool `yaml:"insecure"`
	// SamplingRate is the probability of sampling a trace (0.0-1.0)
	SamplingRate float64 `yaml:"samplingRate"`
}

type Config struct {
	Server    Server    `yaml:"server"`
	Upstream  Upstream  `yaml:"upstream"`
	Cache     Cache     `yaml:"cache"`
	Sync      Sync      `yaml:"sync"`
	RateLimit RateLimit `yaml:"rateLimit"`
	Events    Events    `yaml:"events"`
	Telemetry Telemetry `yaml:"telemetry"`
}

// Load loads the service configuration from a file path.
// If configPath is empty, defaults to "./config.yaml".
// The config file path can also be overridden via the IPRANGES_CONFIG_PATH
// environment variable.
func Load(configPath ...string) (Config, error) {
	var path string

	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	} else if env := os.Getenv("IPRANGES_CONFIG_PATH"); env != "" {
		path = env
	} else {
		path = "./config.yaml"
	}

	var config Config

	content, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("trying to open ipranges config file %s: %v", path, err)
	}

	err = yaml.Unmarshal(content, &config)
	if err != nil {
		return config, fmt.Errorf("error unmarshaling YAML %s: %v", path, err)
	}
	return config, nil
}

// Defaults fills in zero values with working defaults.
func (c *Config) Defaults() {
	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = ":8080"
	}
	if c.Upstream.FetchTimeout == "" {
		c.Upstream.FetchTimeout = "30s"
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "ipranges"
	}
	if c.Cache.MaxAge == "" {
		c.Cache.MaxAge = "24h"
	}
	if c.Sync.Interval == "" {
		c.Sync.Interval = "1h"
	}
	if c.Sync.ForceRefreshAge == "" {
		c.Sync.ForceRefreshAge = "24h"
	}
	if c.Sync.Mode == "" {
		c.Sync.Mode = "continuous"
	}
	if c.RateLimit.Window == "" {
		c.RateLimit.Window = "60s"
	}
	if c.RateLimit.MaxRequests == 0 {
		c.RateLimit.MaxRequests = 10
	}
	if c.RateLimit.SweepInterval == "" {
		c.RateLimit.SweepInterval = "5m"
	}
	if c.Telemetry.Exporter == "" {
		c.Telemetry.Exporter = "otlp"
	}
	if c.Telemetry.SamplingRate == 0 {
		c.Telemetry.SamplingRate = 1.0
	}
}

// Validate checks the configuration for contract violations. These are fatal
// at startup, never recovered at request time.
func (c Config) Validate() error {
	if c.Upstream.URL == "" {
		return fmt.Errorf("upstream.url is required")
	}
	if c.RateLimit.MaxRequests < 0 {
		return fmt.Errorf("rateLimit.maxRequests must not be negative")
	}
	if c.Sync.Mode != "continuous" && c.Sync.Mode != "oneshot" {
		return fmt.Errorf("sync.mode must be %q or %q, got %q", "continuous", "oneshot", c.Sync.Mode)
	}
	if c.Events.Enabled && (len(c.Events.Brokers) == 0 || c.Events.Topic == "") {
		return fmt.Errorf("events.brokers and events.topic are required when events are enabled")
	}
	for name, value := range map[string]string{
		"upstream.fetchTimeout":   c.Upstream.FetchTimeout,
		"cache.maxAge":            c.Cache.MaxAge,
		"sync.interval":           c.Sync.Interval,
		"sync.forceRefreshAge":    c.Sync.ForceRefreshAge,
		"rateLimit.window":        c.RateLimit.Window,
		"rateLimit.sweepInterval": c.RateLimit.SweepInterval,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s: invalid duration %q", name, value)
		}
	}
	return nil
}

// Duration parses one of the duration fields, falling back to def when the
// field is unparseable. Validate is expected to have run first.
func Duration(value string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
