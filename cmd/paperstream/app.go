package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/paperstream/paperstream/internal/arxiv"
	"github.com/paperstream/paperstream/internal/cache"
	"github.com/paperstream/paperstream/internal/config"
	"github.com/paperstream/paperstream/internal/domain"
	"github.com/paperstream/paperstream/internal/feed"
	"github.com/paperstream/paperstream/internal/observability"
	"github.com/paperstream/paperstream/internal/session"
	"github.com/paperstream/paperstream/internal/store"
)

// app wires the full engine for one CLI invocation.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	registry *prometheus.Registry
	session  *session.Session
}

// openApp loads configuration and builds the session from persisted state.
func openApp() (*app, error) {
	// A missing .env is fine; explicit env vars still apply.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg.Logging.LoggerConfig())

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics("paperstream", registry)

	statePath := cfg.Storage.StatePath()
	if err := os.MkdirAll(filepath.Dir(statePath), 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	st, err := store.Open(statePath, logger, store.Options{
		MaxCacheBytes: cfg.Storage.MaxCacheBytes,
		Metrics:       metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}

	engine := cache.NewEngine(st, cache.Config{
		FlushDelay: cfg.Storage.FlushDelay,
		PruneKeep:  cfg.Storage.PruneKeep,
	}, logger, metrics)

	client := arxiv.New(arxiv.Config{
		BaseURL:        cfg.ArXiv.BaseURL,
		Mirrors:        cfg.ArXiv.Mirrors,
		Timeout:        cfg.ArXiv.Timeout,
		RateLimit:      cfg.ArXiv.RateLimit,
		BurstSize:      cfg.ArXiv.BurstSize,
		RetryBaseDelay: cfg.ArXiv.RetryBaseDelay,
		UserAgent:      cfg.ArXiv.UserAgent,
	}, logger, metrics)

	svc := feed.NewService(client, feed.Config{
		TopicPageSize:      cfg.Feed.TopicPageSize,
		AggregatePageSize:  cfg.Feed.AggregatePageSize,
		MaxAggregateTopics: cfg.Feed.MaxAggregateTopics,
	}, nil, logger)

	sess, err := session.New(st, engine, svc, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open session: %w", err)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		session:  sess,
	}, nil
}

// Close flushes and releases the session.
func (a *app) Close() error {
	return a.session.Close()
}

// printPapers writes a human-readable paper listing, marking bookmarks.
func (a *app) printPapers(w io.Writer, papers []domain.Paper) {
	if len(papers) == 0 {
		fmt.Fprintln(w, "No papers.")
		return
	}
	for _, p := range papers {
		marker := " "
		if a.session.IsBookmarked(p.ID) {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-18s %s  %s\n", marker, p.ID, p.Published.Format("2006-01-02"), p.Title)
		fmt.Fprintf(w, "    %s | %s\n", joinAuthors(p.Authors), p.Journal)
	}
}

// joinAuthors formats an author list, eliding long ones.
func joinAuthors(authors []string) string {
	const maxShown = 3
	if len(authors) <= maxShown {
		out := ""
		for i, a := range authors {
			if i > 0 {
				out += ", "
			}
			out += a
		}
		return out
	}
	return fmt.Sprintf("%s et al.", authors[0])
}
