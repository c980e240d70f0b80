package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/paperstream/paperstream/internal/domain"
	"github.com/paperstream/paperstream/internal/observability"
)

// State keys. One row per key in the state table, mirroring the independent
// per-key read/write contract.
const (
	keyTopics    = "topics"
	keyBookmarks = "bookmarks"
	keySettings  = "settings"
	keyCache     = "paper_cache"
)

// DefaultMaxCacheBytes is the serialized-cache size budget (2MB).
const DefaultMaxCacheBytes = 2 << 20

// SQLiteStore persists session state as JSON values in a single-file
// SQLite key/value table.
type SQLiteStore struct {
	db            *sql.DB
	maxCacheBytes int
	logger        zerolog.Logger
	metrics       *observability.Metrics
}

var _ Store = (*SQLiteStore)(nil)

// Options configures the store.
type Options struct {
	// MaxCacheBytes is the size budget for the serialized paper cache.
	// Zero uses DefaultMaxCacheBytes; negative disables the budget.
	MaxCacheBytes int

	// Metrics may be nil.
	Metrics *observability.Metrics
}

// Open opens or creates the state database at path.
func Open(path string, logger zerolog.Logger, opts Options) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite doesn't support concurrent writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS state (
			key   TEXT PRIMARY KEY,
			value BLOB NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	maxCacheBytes := opts.MaxCacheBytes
	if maxCacheBytes == 0 {
		maxCacheBytes = DefaultMaxCacheBytes
	}

	return &SQLiteStore{
		db:            db,
		maxCacheBytes: maxCacheBytes,
		logger:        logger.With().Str("component", "store").Logger(),
		metrics:       opts.Metrics,
	}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// LoadTopics returns the persisted topic list, or an empty list when the
// key is absent or undecodable.
func (s *SQLiteStore) LoadTopics() ([]domain.Topic, error) {
	var topics []domain.Topic
	if !s.load(keyTopics, &topics) {
		return []domain.Topic{}, nil
	}
	return topics, nil
}

// SaveTopics persists the topic list.
func (s *SQLiteStore) SaveTopics(topics []domain.Topic) error {
	return s.save(keyTopics, topics, -1)
}

// LoadBookmarks returns the persisted bookmark id set, or an empty set.
func (s *SQLiteStore) LoadBookmarks() (map[string]struct{}, error) {
	var ids []string
	if !s.load(keyBookmarks, &ids) {
		return map[string]struct{}{}, nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// SaveBookmarks persists the bookmark id set.
func (s *SQLiteStore) SaveBookmarks(ids map[string]struct{}) error {
	list := make([]string, 0, len(ids))
	for id := range ids {
		list = append(list, id)
	}
	return s.save(keyBookmarks, list, -1)
}

// LoadSettings returns the persisted settings, or defaults.
func (s *SQLiteStore) LoadSettings() (domain.Settings, error) {
	settings := domain.DefaultSettings()
	if !s.load(keySettings, &settings) {
		return domain.DefaultSettings(), nil
	}
	if settings.Theme == "" {
		settings.Theme = domain.ThemeLight
	}
	if settings.View == "" {
		settings.View = domain.ViewFeed
	}
	return settings, nil
}

// SaveSettings persists the settings.
func (s *SQLiteStore) SaveSettings(settings domain.Settings) error {
	return s.save(keySettings, settings, -1)
}

// LoadCache returns the persisted cache mapping, or an empty mapping.
func (s *SQLiteStore) LoadCache() (map[string][]domain.Paper, error) {
	var entries map[string][]domain.Paper
	if !s.load(keyCache, &entries) || entries == nil {
		return map[string][]domain.Paper{}, nil
	}
	return entries, nil
}

// SaveCache persists the cache mapping, enforcing the size budget.
func (s *SQLiteStore) SaveCache(entries map[string][]domain.Paper) error {
	return s.save(keyCache, entries, s.maxCacheBytes)
}

// load reads and decodes the value under key into dst. Returns false when
// the key is absent or the value cannot be decoded; decode failures are
// logged and treated as absent so a corrupt value degrades to defaults
// instead of failing startup.
func (s *SQLiteStore) load(key string, dst any) bool {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("state read failed, using defaults")
		return false
	}
	if err := json.Unmarshal(value, dst); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("state value undecodable, using defaults")
		return false
	}
	return true
}

// save encodes and upserts the value under key. maxBytes > 0 enforces a
// size budget on the encoded payload.
func (s *SQLiteStore) save(key string, value any, maxBytes int) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if maxBytes > 0 && len(encoded) > maxBytes {
		if s.metrics != nil {
			s.metrics.StoreWriteFailures.WithLabelValues(key).Inc()
		}
		return fmt.Errorf("%s payload is %d bytes (budget %d): %w",
			key, len(encoded), maxBytes, domain.ErrStorageFull)
	}

	if _, err := s.db.Exec(`
		INSERT INTO state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, encoded); err != nil {
		if s.metrics != nil {
			s.metrics.StoreWriteFailures.WithLabelValues(key).Inc()
		}
		return fmt.Errorf("writing %s: %w", key, err)
	}
	if s.metrics != nil {
		s.metrics.StoreWrites.WithLabelValues(key).Inc()
	}
	return nil
}
