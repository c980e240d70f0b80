// Package config provides configuration management for the paperstream feed engine.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/paperstream/paperstream/internal/observability"
)

// Config holds all configuration for the feed engine.
type Config struct {
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Storage contains persisted-state settings.
	Storage StorageConfig `mapstructure:"storage"`
	// ArXiv contains upstream arXiv API settings.
	ArXiv ArXivConfig `mapstructure:"arxiv"`
	// Feed contains feed retrieval settings.
	Feed FeedConfig `mapstructure:"feed"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Watch contains watch-mode settings.
	Watch WatchConfig `mapstructure:"watch"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// StorageConfig holds persisted-state configuration.
type StorageConfig struct {
	// Path is the SQLite state database path. Empty resolves to a file
	// under the user config directory.
	Path string `mapstructure:"path"`
	// MaxCacheBytes is the size budget for the serialized paper cache.
	MaxCacheBytes int `mapstructure:"max_cache_bytes"`
	// FlushDelay is the debounce interval between a cache mutation and the
	// persistence write.
	FlushDelay time.Duration `mapstructure:"flush_delay"`
	// PruneKeep is how many papers of the active entry survive the first
	// quota-recovery prune pass.
	PruneKeep int `mapstructure:"prune_keep"`
}

// ArXivConfig holds upstream arXiv API configuration.
type ArXivConfig struct {
	// BaseURL is the primary arXiv API endpoint.
	BaseURL string `mapstructure:"base_url"`
	// Mirrors is the list of proxy mirror prefixes tried, in order, after
	// the primary endpoint fails. Each prefix receives the URL-escaped
	// target request appended to it.
	Mirrors []string `mapstructure:"mirrors"`
	// Timeout is the per-request timeout.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// BurstSize is the rate limiter burst size.
	BurstSize int `mapstructure:"burst_size"`
	// RetryBaseDelay is the base delay for the linear inter-attempt backoff.
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	// UserAgent is the User-Agent header sent with upstream requests.
	UserAgent string `mapstructure:"user_agent"`
}

// FeedConfig holds feed retrieval configuration.
type FeedConfig struct {
	// TopicPageSize is the page size for single-topic fetches.
	TopicPageSize int `mapstructure:"topic_page_size"`
	// AggregatePageSize is the page size for aggregated fetches.
	AggregatePageSize int `mapstructure:"aggregate_page_size"`
	// MaxAggregateTopics is the maximum number of topics combined into one
	// aggregated query.
	MaxAggregateTopics int `mapstructure:"max_aggregate_topics"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables the metrics listener in watch mode.
	Enabled bool `mapstructure:"enabled"`
	// Address is the metrics listener address.
	Address string `mapstructure:"address"`
	// Path is the HTTP path for the metrics endpoint.
	Path string `mapstructure:"path"`
}

// WatchConfig holds watch-mode configuration.
type WatchConfig struct {
	// Interval is the delay between periodic feed refreshes.
	Interval time.Duration `mapstructure:"interval"`
}

// LoggerConfig converts the logging section to the observability package's
// logger settings.
func (c *LoggingConfig) LoggerConfig() observability.LoggingConfig {
	return observability.LoggingConfig{
		Level:      c.Level,
		Format:     c.Format,
		Output:     c.Output,
		AddSource:  c.AddSource,
		TimeFormat: c.TimeFormat,
	}
}

// StatePath returns the resolved state database path. An empty configured
// path falls back to the user config directory, then the working directory.
func (c *StorageConfig) StatePath() string {
	if c.Path != "" {
		return c.Path
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "paperstream.db"
	}
	return filepath.Join(dir, "paperstream", "state.db")
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("PAPERSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/paperstream")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Storage defaults
	v.SetDefault("storage.path", "")
	v.SetDefault("storage.max_cache_bytes", 2<<20)
	v.SetDefault("storage.flush_delay", "1s")
	v.SetDefault("storage.prune_keep", 30)

	// arXiv defaults
	v.SetDefault("arxiv.base_url", "https://export.arxiv.org/api/query")
	v.SetDefault("arxiv.mirrors", []string{"https://api.allorigins.win/raw?url="})
	v.SetDefault("arxiv.timeout", "30s")
	v.SetDefault("arxiv.rate_limit", 3.0) // arXiv recommends max 3 req/sec
	v.SetDefault("arxiv.burst_size", 1)
	v.SetDefault("arxiv.retry_base_delay", "1s")
	v.SetDefault("arxiv.user_agent", "paperstream/1.0")

	// Feed defaults
	v.SetDefault("feed.topic_page_size", 10)
	v.SetDefault("feed.aggregate_page_size", 20)
	v.SetDefault("feed.max_aggregate_topics", 4)

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.address", "127.0.0.1:9091")
	v.SetDefault("metrics.path", "/metrics")

	// Watch defaults
	v.SetDefault("watch.interval", "30m")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Storage.MaxCacheBytes <= 0 {
		return fmt.Errorf("storage max_cache_bytes must be positive")
	}
	if c.Storage.FlushDelay <= 0 {
		return fmt.Errorf("storage flush_delay must be positive")
	}
	if c.Storage.PruneKeep <= 0 {
		return fmt.Errorf("storage prune_keep must be positive")
	}

	if _, err := url.ParseRequestURI(c.ArXiv.BaseURL); err != nil {
		return fmt.Errorf("invalid arxiv base_url: %w", err)
	}
	for _, mirror := range c.ArXiv.Mirrors {
		if _, err := url.ParseRequestURI(mirror); err != nil {
			return fmt.Errorf("invalid arxiv mirror %q: %w", mirror, err)
		}
	}
	if c.ArXiv.RateLimit <= 0 {
		return fmt.Errorf("arxiv rate_limit must be positive")
	}
	if c.ArXiv.Timeout <= 0 {
		return fmt.Errorf("arxiv timeout must be positive")
	}

	if c.Feed.TopicPageSize <= 0 {
		return fmt.Errorf("feed topic_page_size must be positive")
	}
	if c.Feed.AggregatePageSize <= 0 {
		return fmt.Errorf("feed aggregate_page_size must be positive")
	}
	if c.Feed.MaxAggregateTopics <= 0 {
		return fmt.Errorf("feed max_aggregate_topics must be positive")
	}

	if c.Watch.Interval <= 0 {
		return fmt.Errorf("watch interval must be positive")
	}

	return nil
}
