package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"FeedAggregator/internal/domain"
	"FeedAggregator/internal/scanner"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "FEED_AGGREGATOR_CONFIG"
	databaseDSNEnv  = "DATABASE_DSN"
	logLevelEnv     = "LOG_LEVEL"
	registryURLEnv  = "REGISTRY_URL"
	webhookURLEnv   = "WEBHOOK_URL"
	metricsAddrEnv  = "METRICS_ADDR"

	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Database   DatabaseConfig   `yaml:"database"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Matching   MatchingConfig   `yaml:"matching"`
	Aggregator AggregatorConfig `yaml:"aggregator"`
	Registry   RegistryConfig   `yaml:"registry"`
	Webhook    WebhookConfig    `yaml:"webhook"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Feeds      []FeedConfig     `yaml:"feeds"`
}

// LoggingConfig selects slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig picks the store backend; dsn is only read for postgres.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// SchedulerConfig defines when sync runs happen.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// FetchConfig bounds every outbound feed request.
type FetchConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	UserAgent    string        `yaml:"userAgent"`
	HostInterval time.Duration `yaml:"hostInterval"`
	MaxBodyBytes int64         `yaml:"maxBodyBytes"`
}

// MatchingConfig tunes entity association.
type MatchingConfig struct {
	// Threshold is nil when unset so that 0 stays a valid floor.
	Threshold  *float64 `yaml:"threshold"`
	MaxRelated int      `yaml:"maxRelated"`
}

// AggregatorConfig tunes one sync run.
type AggregatorConfig struct {
	Workers            int  `yaml:"workers"`
	SeenCapacity       int  `yaml:"seenCapacity"`
	ErrorWarnThreshold uint `yaml:"errorWarnThreshold"`
}

// RegistryConfig points at the entity registry: a YAML file or an HTTP endpoint.
type RegistryConfig struct {
	Path string `yaml:"path"`
	URL  string `yaml:"url"`
}

// WebhookConfig enables the downstream run notification.
type WebhookConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// MetricsConfig exposes Prometheus metrics when addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// FeedConfig seeds one feed source; sources are upserted by url on startup.
type FeedConfig struct {
	URL              string                   `yaml:"url"`
	SourceLabel      string                   `yaml:"sourceLabel"`
	TransportType    string                   `yaml:"transportType"`
	EntityHint       domain.EntityHint        `yaml:"entityHint"`
	TransportOptions *domain.TransportOptions `yaml:"transportOptions"`
	Enabled          *bool                    `yaml:"enabled"`
}

// Source converts the seed into a FeedSource. Missing transport means syndication
// and missing enabled means true.
func (f FeedConfig) Source() domain.FeedSource {
	transport := domain.TransportType(f.TransportType)
	if transport == "" {
		transport = domain.TransportSyndication
	}
	enabled := true
	if f.Enabled != nil {
		enabled = *f.Enabled
	}
	return domain.FeedSource{
		URL:              f.URL,
		SourceLabel:      f.SourceLabel,
		TransportType:    transport,
		EntityHint:       f.EntityHint,
		TransportOptions: f.TransportOptions,
		Enabled:          enabled,
	}
}

// Load reads .env, then the YAML file named by FEED_AGGREGATOR_CONFIG (if any),
// then applies environment overrides.
func Load() Config {
	return LoadFile(os.Getenv(configPathEnv))
}

// LoadFile is Load with an explicit config path; an empty path means defaults only.
func LoadFile(path string) Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: cannot read .env: %v", err)
	}

	cfg := defaultConfig()

	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

// Validate rejects settings the application cannot run with.
func (c Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}

	if t := c.Matching.Threshold; t != nil && (*t < 0 || *t > 1) {
		errs = append(errs, fmt.Errorf("matching.threshold %.2f must be within [0,1]", *t))
	}
	if c.Matching.MaxRelated < 0 {
		errs = append(errs, errors.New("matching.maxRelated must not be negative"))
	}
	if c.Aggregator.Workers < 1 {
		errs = append(errs, errors.New("aggregator.workers must be at least 1"))
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, errors.New("fetch.timeout must be positive"))
	}
	if c.Registry.Path != "" && c.Registry.URL != "" {
		errs = append(errs, errors.New("registry.path and registry.url are mutually exclusive"))
	}

	seen := map[string]struct{}{}
	for i, feed := range c.Feeds {
		src := feed.Source()
		if src.URL == "" {
			errs = append(errs, fmt.Errorf("feeds[%d]: url is required", i))
			continue
		}
		if _, dup := seen[src.URL]; dup {
			errs = append(errs, fmt.Errorf("feeds[%d]: duplicate url %s", i, src.URL))
		}
		seen[src.URL] = struct{}{}
		if !scanner.ValidTransport(src.TransportType) {
			errs = append(errs, fmt.Errorf("feeds[%d]: %w: %q", i, domain.ErrUnknownTransport, src.TransportType))
		}
		if src.TransportType == domain.TransportAPI && (src.TransportOptions == nil || src.TransportOptions.Endpoint == "") {
			errs = append(errs, fmt.Errorf("feeds[%d]: api transport requires transportOptions.endpoint", i))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
		if c.Database.Driver == DriverMemory {
			c.Database.Driver = DriverPostgres
		}
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(registryURLEnv); v != "" {
		c.Registry.URL = v
		c.Registry.Path = ""
	}

	if v := os.Getenv(webhookURLEnv); v != "" {
		c.Webhook.URL = v
	}

	if v := os.Getenv(metricsAddrEnv); v != "" {
		c.Metrics.Addr = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Fetch.Timeout != 0 {
		base.Fetch.Timeout = override.Fetch.Timeout
	}
	if override.Fetch.UserAgent != "" {
		base.Fetch.UserAgent = override.Fetch.UserAgent
	}
	if override.Fetch.HostInterval != 0 {
		base.Fetch.HostInterval = override.Fetch.HostInterval
	}
	if override.Fetch.MaxBodyBytes != 0 {
		base.Fetch.MaxBodyBytes = override.Fetch.MaxBodyBytes
	}

	if override.Matching.Threshold != nil {
		base.Matching.Threshold = override.Matching.Threshold
	}
	if override.Matching.MaxRelated != 0 {
		base.Matching.MaxRelated = override.Matching.MaxRelated
	}

	if override.Aggregator.Workers != 0 {
		base.Aggregator.Workers = override.Aggregator.Workers
	}
	if override.Aggregator.SeenCapacity != 0 {
		base.Aggregator.SeenCapacity = override.Aggregator.SeenCapacity
	}
	if override.Aggregator.ErrorWarnThreshold != 0 {
		base.Aggregator.ErrorWarnThreshold = override.Aggregator.ErrorWarnThreshold
	}

	if override.Registry.Path != "" || override.Registry.URL != "" {
		base.Registry = override.Registry
	}

	if override.Webhook.URL != "" {
		base.Webhook.URL = override.Webhook.URL
	}
	if override.Webhook.Timeout != 0 {
		base.Webhook.Timeout = override.Webhook.Timeout
	}

	if override.Metrics.Addr != "" {
		base.Metrics.Addr = override.Metrics.Addr
	}

	if len(override.Feeds) > 0 {
		base.Feeds = override.Feeds
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Database:  DatabaseConfig{Driver: DriverMemory},
		Scheduler: SchedulerConfig{CronExpression: "*/30 * * * *", Timezone: defaultTimezone, location: tz},
		Fetch: FetchConfig{
			Timeout:      20 * time.Second,
			UserAgent:    "FeedAggregator/1.0",
			HostInterval: time.Second,
			MaxBodyBytes: 8 << 20,
		},
		Matching:   MatchingConfig{MaxRelated: 5},
		Aggregator: AggregatorConfig{Workers: 1, SeenCapacity: 10000},
		Webhook:    WebhookConfig{Timeout: 10 * time.Second},
	}
}
