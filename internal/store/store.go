// Package store implements the persisted-state collaborator: each piece of
// session state lives under its own key and is read independently at
// startup with a safe-default fallback, so a corrupt value never takes the
// rest of the state down with it.
package store

import "github.com/paperstream/paperstream/internal/domain"

// Store is the persistence contract consumed by the engine. The paper cache
// is the only write subject to the size budget; topics, bookmarks, and
// settings are small and always written immediately.
type Store interface {
	LoadTopics() ([]domain.Topic, error)
	SaveTopics(topics []domain.Topic) error

	LoadBookmarks() (map[string]struct{}, error)
	SaveBookmarks(ids map[string]struct{}) error

	LoadSettings() (domain.Settings, error)
	SaveSettings(s domain.Settings) error

	LoadCache() (map[string][]domain.Paper, error)
	// SaveCache persists the full cache mapping. A payload over the size
	// budget returns domain.ErrStorageFull without writing.
	SaveCache(entries map[string][]domain.Paper) error

	Close() error
}
