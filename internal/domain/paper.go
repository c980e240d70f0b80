// Package domain defines the core types shared across the feed engine:
// papers, topics, persisted settings, and the error taxonomy.
package domain

import (
	"regexp"
	"strings"
	"time"
)

// AggregateKey is the cache key for the cross-topic aggregated feed.
// Per-topic cache entries use the topic id as their key.
const AggregateKey = "all"

// UnknownAuthor is the placeholder used when a source entry carries no
// author names.
const UnknownAuthor = "Unknown"

// Paper is an immutable record of one retrieved publication.
type Paper struct {
	// ID is the canonical identifier derived from the source URL with any
	// version suffix stripped. It is stable across repeated fetches of the
	// same publication.
	ID string `json:"id"`

	// Title is the whitespace-normalized publication title.
	Title string `json:"title"`

	// Abstract is the whitespace-normalized summary text.
	Abstract string `json:"abstract"`

	// Authors is the ordered author name list. Never empty: sources that
	// return no authors yield a single UnknownAuthor entry.
	Authors []string `json:"authors"`

	// Published is the submission date. The time component is zeroed.
	Published time.Time `json:"published"`

	// Journal is the human-readable label for the primary classification
	// code, or the raw code when the registry cannot resolve it.
	Journal string `json:"journal"`

	// Tags holds every classification code attached to the publication,
	// in source order.
	Tags []string `json:"tags,omitempty"`

	// TopicID identifies the topic whose query produced this record, or
	// AggregateKey for cross-topic fetches.
	TopicID string `json:"topic_id"`

	// URL is the canonical landing-page link. May be empty.
	URL string `json:"url,omitempty"`
}

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]`)

// NormalizeTitle reduces a title to its near-duplicate identity key:
// lower-cased with all non-alphanumeric characters removed. Two papers
// whose normalized titles match are treated as duplicates during fetch-time
// filtering, regardless of their ids. This deliberately suppresses
// re-submissions that change only the id or version.
func NormalizeTitle(title string) string {
	return nonAlphanumeric.ReplaceAllString(strings.ToLower(title), "")
}

// NormalizeWhitespace trims and collapses runs of whitespace, including
// newlines, into single spaces.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
