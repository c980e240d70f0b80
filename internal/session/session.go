// Package session orchestrates one user session: topic subscriptions,
// bookmarks, view state, the active cache key, fetch admission control, and
// cancellation of in-flight retrievals.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/paperstream/paperstream/internal/cache"
	"github.com/paperstream/paperstream/internal/domain"
	"github.com/paperstream/paperstream/internal/feed"
	"github.com/paperstream/paperstream/internal/store"
)

// ConnectivityMessage is the generic banner text shown when a fetch fails on
// every endpoint.
const ConnectivityMessage = "Could not load papers. Check your connection and retry."

// Fetcher is the retrieval dependency. *feed.Service satisfies it.
type Fetcher interface {
	FetchForTopic(ctx context.Context, topic *domain.Topic, excludeTitles []string) ([]domain.Paper, error)
	FetchAggregated(ctx context.Context, topics []domain.Topic, excludeTitles []string) ([]domain.Paper, error)
}

var _ Fetcher = (*feed.Service)(nil)

// Session owns the mutable per-session state. One instance per application
// run; all methods are safe for concurrent use.
type Session struct {
	mu        sync.Mutex
	topics    []domain.Topic
	bookmarks map[string]struct{}
	settings  domain.Settings
	banner    bool

	// inFlight maps a cache key to the cancel func of its outstanding
	// fetch. At most one fetch per key.
	inFlight map[string]context.CancelFunc

	store   store.Store
	engine  *cache.Engine
	fetcher Fetcher
	logger  zerolog.Logger
}

// New builds a session from persisted state. A stale persisted active topic
// id is silently reset to the aggregated view.
func New(st store.Store, engine *cache.Engine, fetcher Fetcher, logger zerolog.Logger) (*Session, error) {
	topics, err := st.LoadTopics()
	if err != nil {
		return nil, fmt.Errorf("loading topics: %w", err)
	}
	bookmarks, err := st.LoadBookmarks()
	if err != nil {
		return nil, fmt.Errorf("loading bookmarks: %w", err)
	}
	settings, err := st.LoadSettings()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	cached, err := st.LoadCache()
	if err != nil {
		return nil, fmt.Errorf("loading cache: %w", err)
	}
	engine.Restore(cached)

	s := &Session{
		topics:    topics,
		bookmarks: bookmarks,
		settings:  settings,
		inFlight:  make(map[string]context.CancelFunc),
		store:     st,
		engine:    engine,
		fetcher:   fetcher,
		logger:    logger.With().Str("component", "session").Logger(),
	}

	if settings.ActiveTopicID != "" && s.findTopic(settings.ActiveTopicID) == nil {
		s.logger.Warn().
			Str("topic_id", settings.ActiveTopicID).
			Msg("persisted active topic no longer exists, resetting to aggregated view")
		s.settings.ActiveTopicID = ""
		if err := st.SaveSettings(s.settings); err != nil {
			s.logger.Error().Err(err).Msg("failed to persist settings")
		}
	}
	engine.SetActiveKey(s.activeKeyLocked())

	return s, nil
}

// Topics returns a copy of the subscribed topics.
func (s *Session) Topics() []domain.Topic {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Topic(nil), s.topics...)
}

// Topic returns the subscribed topic with the given id.
func (s *Session) Topic(id string) (domain.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.findTopic(id); t != nil {
		return *t, nil
	}
	return domain.Topic{}, fmt.Errorf("topic %s: %w", id, domain.ErrNotFound)
}

// AddTopic validates and subscribes a new topic, persisting the topic list
// immediately.
func (s *Session) AddTopic(category, subCategory string, keywords []string) (domain.Topic, error) {
	topic, err := domain.NewTopic(category, subCategory, keywords)
	if err != nil {
		return domain.Topic{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics = append(s.topics, topic)
	if err := s.store.SaveTopics(s.topics); err != nil {
		s.topics = s.topics[:len(s.topics)-1]
		return domain.Topic{}, fmt.Errorf("persisting topics: %w", err)
	}

	s.logger.Info().
		Str("topic_id", topic.ID).
		Str("topic", topic.DisplayName()).
		Msg("topic added")
	return topic, nil
}

// RemoveTopic unsubscribes a topic. Its cache entry is discarded, any
// outstanding fetch for it is cancelled, and if it was the active topic the
// session falls back to the aggregated view.
func (s *Session) RemoveTopic(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.topics {
		if s.topics[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("topic %s: %w", id, domain.ErrNotFound)
	}

	s.cancelFetchLocked(id)
	s.topics = append(s.topics[:idx], s.topics[idx+1:]...)
	if err := s.store.SaveTopics(s.topics); err != nil {
		return fmt.Errorf("persisting topics: %w", err)
	}
	s.engine.Delete(id)

	if s.settings.ActiveTopicID == id {
		s.settings.ActiveTopicID = ""
		s.engine.SetActiveKey(domain.AggregateKey)
		if err := s.store.SaveSettings(s.settings); err != nil {
			s.logger.Error().Err(err).Msg("failed to persist settings")
		}
	}

	s.logger.Info().Str("topic_id", id).Msg("topic removed")
	return nil
}

// ActiveKey returns the cache key of the current selection: the active topic
// id, or the aggregate key.
func (s *Session) ActiveKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeKeyLocked()
}

// SelectTopic makes a subscribed topic the active selection. Any in-flight
// fetch for the previous selection is cancelled so a stale response can
// never land after the switch.
func (s *Session) SelectTopic(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findTopic(id) == nil {
		return fmt.Errorf("topic %s: %w", id, domain.ErrNotFound)
	}
	s.switchSelectionLocked(id)
	return nil
}

// SelectAggregate makes the cross-topic feed the active selection.
func (s *Session) SelectAggregate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.switchSelectionLocked("")
}

// switchSelectionLocked cancels the previous selection's fetch, clears the
// error banner, and persists the new selection. Callers must hold s.mu.
func (s *Session) switchSelectionLocked(topicID string) {
	s.cancelFetchLocked(s.activeKeyLocked())
	s.banner = false
	s.settings.ActiveTopicID = topicID
	s.settings.View = domain.ViewFeed
	s.engine.SetActiveKey(s.activeKeyLocked())
	if err := s.store.SaveSettings(s.settings); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist settings")
	}
}

// Settings returns the current session settings.
func (s *Session) Settings() domain.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// SetTheme switches the color scheme and persists it immediately.
func (s *Session) SetTheme(theme domain.Theme) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.Theme = theme
	return s.store.SaveSettings(s.settings)
}

// SetView switches the active view. Leaving the feed view cancels the
// active selection's in-flight fetch.
func (s *Session) SetView(view domain.View) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if view != domain.ViewFeed {
		s.cancelFetchLocked(s.activeKeyLocked())
	}
	s.settings.View = view
	return s.store.SaveSettings(s.settings)
}

// Feed returns the cached entry for the active selection and whether it has
// been fetched at all.
func (s *Session) Feed() ([]domain.Paper, bool) {
	s.mu.Lock()
	key := s.activeKeyLocked()
	s.mu.Unlock()
	return s.engine.Get(key)
}

// HasError reports whether the error banner is set.
func (s *Session) HasError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.banner
}

// Refresh fetches a page for the active selection. With force the existing
// cache entry is replaced instead of appended to. A stale active topic id is
// a silent no-op that resets the selection to the aggregated view.
func (s *Session) Refresh(ctx context.Context, force bool) error {
	return s.fetch(ctx, force)
}

// LoadMore fetches the next page for the active selection. The request is
// admitted only when no fetch for the key is outstanding, the error banner
// is clear, and the feed view is active; otherwise it is a silent no-op.
func (s *Session) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	key := s.activeKeyLocked()
	_, busy := s.inFlight[key]
	suppressed := busy || s.banner || s.settings.View != domain.ViewFeed
	s.mu.Unlock()

	if suppressed {
		s.logger.Debug().Str("cache_key", key).Msg("load-more suppressed")
		return nil
	}
	return s.fetch(ctx, false)
}

// Retry clears the error banner and re-runs the failed fetch without
// replacing what is already cached.
func (s *Session) Retry(ctx context.Context) error {
	s.mu.Lock()
	s.banner = false
	s.mu.Unlock()
	return s.fetch(ctx, false)
}

// fetch runs one retrieval for the active selection and merges the page
// under the key the fetch was started for.
func (s *Session) fetch(ctx context.Context, force bool) error {
	s.mu.Lock()
	key := s.activeKeyLocked()
	if _, busy := s.inFlight[key]; busy {
		s.mu.Unlock()
		return nil
	}

	var topic *domain.Topic
	if key != domain.AggregateKey {
		topic = s.findTopic(key)
		if topic == nil {
			// Stale selection. Reset and move on.
			s.settings.ActiveTopicID = ""
			s.engine.SetActiveKey(domain.AggregateKey)
			if err := s.store.SaveSettings(s.settings); err != nil {
				s.logger.Error().Err(err).Msg("failed to persist settings")
			}
			s.mu.Unlock()
			return nil
		}
		t := *topic
		topic = &t
	}
	topics := append([]domain.Topic(nil), s.topics...)
	if key == domain.AggregateKey && len(topics) == 0 {
		s.mu.Unlock()
		return nil
	}

	fctx, cancel := context.WithCancel(ctx)
	s.inFlight[key] = cancel
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		delete(s.inFlight, key)
		s.mu.Unlock()
	}()

	var excludeTitles []string
	if !force {
		if cached, ok := s.engine.Get(key); ok {
			excludeTitles = make([]string, 0, len(cached))
			for _, p := range cached {
				excludeTitles = append(excludeTitles, p.Title)
			}
		}
	}
	initial := len(excludeTitles) == 0

	var papers []domain.Paper
	var err error
	if topic != nil {
		papers, err = s.fetcher.FetchForTopic(fctx, topic, excludeTitles)
	} else {
		papers, err = s.fetcher.FetchAggregated(fctx, topics, excludeTitles)
	}
	if err != nil {
		if errors.Is(err, domain.ErrCancelled) || errors.Is(err, context.Canceled) {
			s.logger.Debug().Str("cache_key", key).Msg("fetch cancelled")
			return nil
		}
		return err
	}

	// The client degrades full endpoint exhaustion to an empty page, so an
	// empty initial or forced page is what failure looks like here. An empty
	// load-more page just means there is nothing further.
	if len(papers) == 0 && (initial || force) {
		s.mu.Lock()
		s.banner = true
		s.mu.Unlock()
		s.logger.Warn().Str("cache_key", key).Msg("fetch returned nothing, raising error banner")
		return nil
	}

	s.engine.Merge(key, papers, force)
	s.mu.Lock()
	s.banner = false
	s.mu.Unlock()
	return nil
}

// ToggleBookmark flips the bookmark state of a paper id and persists the
// set. It reports the new state.
func (s *Session) ToggleBookmark(paperID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, marked := s.bookmarks[paperID]
	if marked {
		delete(s.bookmarks, paperID)
	} else {
		s.bookmarks[paperID] = struct{}{}
	}
	if err := s.store.SaveBookmarks(s.bookmarks); err != nil {
		// Roll back so memory and disk agree.
		if marked {
			s.bookmarks[paperID] = struct{}{}
		} else {
			delete(s.bookmarks, paperID)
		}
		return marked, fmt.Errorf("persisting bookmarks: %w", err)
	}
	return !marked, nil
}

// IsBookmarked reports whether a paper id is bookmarked.
func (s *Session) IsBookmarked(paperID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.bookmarks[paperID]
	return ok
}

// Bookmarked resolves the bookmark id set against every cache entry. A
// bookmarked paper stays retrievable as long as it remains in any entry,
// which is what lets bookmarks survive the deletion of their source topic.
func (s *Session) Bookmarked() []domain.Paper {
	s.mu.Lock()
	ids := make(map[string]struct{}, len(s.bookmarks))
	for id := range s.bookmarks {
		ids[id] = struct{}{}
	}
	s.mu.Unlock()

	var out []domain.Paper
	seen := make(map[string]struct{}, len(ids))
	for _, papers := range s.engine.Snapshot() {
		for _, p := range papers {
			if _, marked := ids[p.ID]; !marked {
				continue
			}
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

// Close cancels outstanding fetches, flushes the cache, and closes the
// store.
func (s *Session) Close() error {
	s.mu.Lock()
	for key, cancel := range s.inFlight {
		cancel()
		delete(s.inFlight, key)
	}
	s.mu.Unlock()

	if err := s.engine.Close(); err != nil {
		s.logger.Error().Err(err).Msg("final cache flush failed")
	}
	return s.store.Close()
}

// activeKeyLocked returns the cache key of the current selection. Callers
// must hold s.mu.
func (s *Session) activeKeyLocked() string {
	if s.settings.ActiveTopicID != "" {
		return s.settings.ActiveTopicID
	}
	return domain.AggregateKey
}

// findTopic returns the topic with the given id, or nil. Callers must hold
// s.mu.
func (s *Session) findTopic(id string) *domain.Topic {
	for i := range s.topics {
		if s.topics[i].ID == id {
			return &s.topics[i]
		}
	}
	return nil
}

// cancelFetchLocked cancels the outstanding fetch for key, if any. Callers
// must hold s.mu.
func (s *Session) cancelFetchLocked(key string) {
	if cancel, ok := s.inFlight[key]; ok {
		cancel()
		delete(s.inFlight, key)
	}
}
