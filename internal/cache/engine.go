// Package cache owns the mapping from cache key (topic id, or the aggregate
// key) to an ordered list of papers, merges newly fetched pages into
// existing entries without duplicating records, and persists the mapping
// across sessions with a debounced write.
package cache

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/paperstream/paperstream/internal/domain"
	"github.com/paperstream/paperstream/internal/observability"
)

const (
	// DefaultFlushDelay is the debounce interval between the last cache
	// mutation and the persistence write.
	DefaultFlushDelay = time.Second

	// DefaultPruneKeep is how many papers of the active entry survive the
	// first quota-recovery prune pass.
	DefaultPruneKeep = 30
)

// Flusher persists the full key-to-papers mapping. Implemented by the
// store layer. A write that would exceed the size budget returns
// domain.ErrStorageFull without writing.
type Flusher interface {
	SaveCache(entries map[string][]domain.Paper) error
}

// Config holds cache engine settings.
type Config struct {
	// FlushDelay is the debounce interval for persistence writes.
	FlushDelay time.Duration

	// PruneKeep is the per-entry truncation length for the first
	// quota-recovery pass.
	PruneKeep int

	// Clock overrides timer scheduling in tests. Nil uses real timers.
	Clock Clock
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.FlushDelay == 0 {
		c.FlushDelay = DefaultFlushDelay
	}
	if c.PruneKeep == 0 {
		c.PruneKeep = DefaultPruneKeep
	}
	if c.Clock == nil {
		c.Clock = realClock{}
	}
}

// Engine is the stateful cache core. One instance per session; consumers
// receive it by handle rather than through a package-level singleton.
type Engine struct {
	mu        sync.Mutex
	entries   map[string][]domain.Paper
	activeKey string
	dirty     bool
	timer     Timer

	store   Flusher
	config  Config
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewEngine creates a cache engine backed by the given store. metrics may
// be nil.
func NewEngine(store Flusher, cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Engine {
	cfg.applyDefaults()
	return &Engine{
		entries: make(map[string][]domain.Paper),
		store:   store,
		config:  cfg,
		logger:  logger.With().Str("component", "cache-engine").Logger(),
		metrics: metrics,
	}
}

// Restore replaces the in-memory mapping with previously persisted state.
// It does not mark the cache dirty.
func (e *Engine) Restore(entries map[string][]domain.Paper) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = make(map[string][]domain.Paper, len(entries))
	for key, papers := range entries {
		e.entries[key] = append([]domain.Paper(nil), papers...)
	}
}

// Merge merges an incoming page into the entry for cacheKey and returns the
// resulting entry. With forceReplace the prior entry is discarded first
// (manual refresh). Otherwise incoming papers whose id is already present
// are dropped and the remainder appended.
//
// Identity here is the paper id, deliberately different from the
// normalized-title criterion used at fetch time: the fetch-time filter
// suppresses near-duplicate resubmissions, while this filter prevents the
// same exact paper being appended twice across pagination calls.
//
// The entry is not re-sorted after merge. Pages arrive internally sorted by
// publish date and are concatenated in fetch order, so cross-page ordering
// is not globally date-sorted. That matches the display contract: recency
// ordering is a per-page property.
func (e *Engine) Merge(cacheKey string, incoming []domain.Paper, forceReplace bool) []domain.Paper {
	e.mu.Lock()
	defer e.mu.Unlock()

	existing := e.entries[cacheKey]
	if forceReplace {
		existing = nil
	}

	seen := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		seen[p.ID] = struct{}{}
	}

	appended := 0
	merged := append([]domain.Paper(nil), existing...)
	for _, p := range incoming {
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		merged = append(merged, p)
		appended++
	}

	e.entries[cacheKey] = merged
	e.markDirtyLocked()

	if e.metrics != nil {
		mode := "append"
		if forceReplace {
			mode = "replace"
		}
		e.metrics.CacheMerges.WithLabelValues(mode).Inc()
		e.metrics.CachePapersAppended.Add(float64(appended))
	}

	e.logger.Debug().
		Str("cache_key", cacheKey).
		Int("incoming", len(incoming)).
		Int("appended", appended).
		Int("entry_size", len(merged)).
		Msg("cache merged")

	return append([]domain.Paper(nil), merged...)
}

// Get returns a copy of the entry for key. The boolean distinguishes a
// present-but-empty entry (already fetched, no results) from an absent one
// (never fetched); absence is what triggers a fetch.
func (e *Engine) Get(key string) ([]domain.Paper, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	papers, ok := e.entries[key]
	if !ok {
		return nil, false
	}
	return append([]domain.Paper(nil), papers...), true
}

// Has reports whether key has been fetched at least once.
func (e *Engine) Has(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.entries[key]
	return ok
}

// Delete discards the entry for key, typically on topic deletion.
func (e *Engine) Delete(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.entries[key]; !ok {
		return
	}
	delete(e.entries, key)
	e.markDirtyLocked()
}

// Snapshot returns a copy of the full mapping.
func (e *Engine) Snapshot() map[string][]domain.Paper {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// SetActiveKey records which entry the user is currently viewing. The first
// quota-recovery prune pass retains only this entry.
func (e *Engine) SetActiveKey(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.activeKey = key
}

// markDirtyLocked marks the cache dirty and (re)arms the debounce timer.
// Callers must hold e.mu.
func (e *Engine) markDirtyLocked() {
	e.dirty = true
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = e.config.Clock.AfterFunc(e.config.FlushDelay, e.flushExpired)
}

// flushExpired runs when the debounce timer fires.
func (e *Engine) flushExpired() {
	if err := e.Flush(); err != nil {
		e.logger.Error().Err(err).Msg("debounced cache flush failed")
	}
}

// Flush writes the mapping to the store immediately, clearing the dirty
// flag. On a storage-full error it recovers by progressively aggressive
// pruning of the persisted payload: first only the active entry truncated
// to PruneKeep, then nothing at all. The in-memory mapping is left intact;
// the cache is the most disposable persisted state and will be refetched.
func (e *Engine) Flush() error {
	e.mu.Lock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.dirty = false
	snapshot := e.snapshotLocked()
	activeKey := e.activeKey
	pruneKeep := e.config.PruneKeep
	e.mu.Unlock()

	err := e.store.SaveCache(snapshot)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrStorageFull) {
		return err
	}

	pruned := make(map[string][]domain.Paper, 1)
	if papers, ok := snapshot[activeKey]; ok {
		if len(papers) > pruneKeep {
			papers = papers[:pruneKeep]
		}
		pruned[activeKey] = papers
	}
	if e.metrics != nil {
		e.metrics.CachePrunes.WithLabelValues("truncate").Inc()
	}
	e.logger.Warn().
		Str("active_key", activeKey).
		Msg("cache write over budget, persisting truncated active entry only")

	if err := e.store.SaveCache(pruned); err == nil || !errors.Is(err, domain.ErrStorageFull) {
		return err
	}

	// Last resort: drop the persisted cache body entirely. Topics,
	// bookmarks, and settings live under their own keys and are untouched.
	if e.metrics != nil {
		e.metrics.CachePrunes.WithLabelValues("drop").Inc()
	}
	e.logger.Warn().Msg("truncated cache still over budget, dropping persisted cache")
	return e.store.SaveCache(map[string][]domain.Paper{})
}

// Close flushes pending changes.
func (e *Engine) Close() error {
	e.mu.Lock()
	dirty := e.dirty
	e.mu.Unlock()
	if !dirty {
		return nil
	}
	return e.Flush()
}

func (e *Engine) snapshotLocked() map[string][]domain.Paper {
	out := make(map[string][]domain.Paper, len(e.entries))
	for key, papers := range e.entries {
		out[key] = append([]domain.Paper(nil), papers...)
	}
	return out
}
