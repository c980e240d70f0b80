package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Logging defaults
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)

	// Storage defaults
	assert.Equal(t, 2<<20, cfg.Storage.MaxCacheBytes)
	assert.Equal(t, time.Second, cfg.Storage.FlushDelay)
	assert.Equal(t, 30, cfg.Storage.PruneKeep)

	// arXiv defaults
	assert.Equal(t, "https://export.arxiv.org/api/query", cfg.ArXiv.BaseURL)
	require.Len(t, cfg.ArXiv.Mirrors, 1)
	assert.Equal(t, 3.0, cfg.ArXiv.RateLimit)
	assert.Equal(t, time.Second, cfg.ArXiv.RetryBaseDelay)

	// Feed defaults
	assert.Equal(t, 10, cfg.Feed.TopicPageSize)
	assert.Equal(t, 20, cfg.Feed.AggregatePageSize)
	assert.Equal(t, 4, cfg.Feed.MaxAggregateTopics)

	// Metrics defaults
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)

	// Watch defaults
	assert.Equal(t, 30*time.Minute, cfg.Watch.Interval)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PAPERSTREAM_LOGGING_LEVEL", "debug")
	t.Setenv("PAPERSTREAM_STORAGE_MAX_CACHE_BYTES", "1024")
	t.Setenv("PAPERSTREAM_FEED_TOPIC_PAGE_SIZE", "25")
	t.Setenv("PAPERSTREAM_ARXIV_RATE_LIMIT", "1.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 1024, cfg.Storage.MaxCacheBytes)
	assert.Equal(t, 25, cfg.Feed.TopicPageSize)
	assert.Equal(t, 1.5, cfg.ArXiv.RateLimit)
}

func TestValidate(t *testing.T) {
	valid := func(t *testing.T) *Config {
		t.Helper()
		cfg, err := Load()
		require.NoError(t, err)
		return cfg
	}

	t.Run("rejects unknown log level", func(t *testing.T) {
		cfg := valid(t)
		cfg.Logging.Level = "shout"
		assert.ErrorContains(t, cfg.Validate(), "invalid log level")
	})

	t.Run("rejects non-positive cache budget", func(t *testing.T) {
		cfg := valid(t)
		cfg.Storage.MaxCacheBytes = 0
		assert.ErrorContains(t, cfg.Validate(), "max_cache_bytes")
	})

	t.Run("rejects malformed base url", func(t *testing.T) {
		cfg := valid(t)
		cfg.ArXiv.BaseURL = "not a url"
		assert.ErrorContains(t, cfg.Validate(), "base_url")
	})

	t.Run("rejects malformed mirror", func(t *testing.T) {
		cfg := valid(t)
		cfg.ArXiv.Mirrors = []string{"::broken::"}
		assert.ErrorContains(t, cfg.Validate(), "mirror")
	})

	t.Run("rejects non-positive page sizes", func(t *testing.T) {
		cfg := valid(t)
		cfg.Feed.AggregatePageSize = -1
		assert.ErrorContains(t, cfg.Validate(), "aggregate_page_size")
	})
}

func TestStatePath(t *testing.T) {
	t.Run("explicit path wins", func(t *testing.T) {
		c := StorageConfig{Path: "/tmp/custom.db"}
		assert.Equal(t, "/tmp/custom.db", c.StatePath())
	})

	t.Run("empty path resolves to a non-empty default", func(t *testing.T) {
		c := StorageConfig{}
		assert.NotEmpty(t, c.StatePath())
	})
}

func TestLoggerConfig(t *testing.T) {
	lc := LoggingConfig{Level: "warn", Format: "json", Output: "stdout"}
	oc := lc.LoggerConfig()
	assert.Equal(t, "warn", oc.Level)
	assert.Equal(t, "json", oc.Format)
	assert.Equal(t, "stdout", oc.Output)
}
