package domain

// Theme is the color-scheme flag persisted across sessions.
type Theme string

// Supported themes.
const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// View identifies the active screen. Load-more requests are only admitted
// while the feed view is active.
type View string

// Supported views.
const (
	ViewFeed      View = "feed"
	ViewBookmarks View = "bookmarks"
)

// Settings holds the lightweight persisted session state. Unlike the paper
// cache it is written immediately on every change.
type Settings struct {
	Theme Theme `json:"theme"`
	View  View  `json:"view"`

	// ActiveTopicID is the id of the selected topic, or empty when the
	// aggregated feed is active.
	ActiveTopicID string `json:"active_topic_id,omitempty"`
}

// DefaultSettings returns the state used on first run or when the persisted
// settings cannot be decoded.
func DefaultSettings() Settings {
	return Settings{Theme: ThemeLight, View: ViewFeed}
}
