// Package feed orchestrates per-topic and aggregated paper retrieval:
// exclusion-based pagination, normalized-title deduplication, and recency
// ordering on top of the fetch client.
package feed

import (
	"context"
	"math/rand"
	"sort"

	"github.com/rs/zerolog"

	"github.com/paperstream/paperstream/internal/arxiv"
	"github.com/paperstream/paperstream/internal/domain"
)

const (
	// DefaultTopicPageSize is the page size for single-topic fetches.
	DefaultTopicPageSize = 10

	// DefaultAggregatePageSize is the page size for aggregated fetches.
	DefaultAggregatePageSize = 20

	// DefaultMaxAggregateTopics bounds how many topics contribute to one
	// aggregated query. Combining every subscription risks exceeding
	// practical query-length limits upstream.
	DefaultMaxAggregateTopics = 4
)

// Searcher is the fetch client dependency. *arxiv.Client satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, start, pageSize int) ([]domain.Paper, error)
}

var _ Searcher = (*arxiv.Client)(nil)

// Config holds retrieval parameters.
type Config struct {
	// TopicPageSize is the page size for single-topic fetches.
	TopicPageSize int

	// AggregatePageSize is the page size for aggregated fetches.
	AggregatePageSize int

	// MaxAggregateTopics is the size of the random topic subset used for
	// aggregated queries.
	MaxAggregateTopics int
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.TopicPageSize == 0 {
		c.TopicPageSize = DefaultTopicPageSize
	}
	if c.AggregatePageSize == 0 {
		c.AggregatePageSize = DefaultAggregatePageSize
	}
	if c.MaxAggregateTopics == 0 {
		c.MaxAggregateTopics = DefaultMaxAggregateTopics
	}
}

// Service retrieves deduplicated, recency-ordered result pages.
type Service struct {
	client Searcher
	config Config
	rng    *rand.Rand
	logger zerolog.Logger
}

// NewService creates a retrieval service. rng drives the aggregated-query
// topic subset selection; it is injected so tests can seed it. A nil rng
// gets a time-seeded source.
func NewService(client Searcher, cfg Config, rng *rand.Rand, logger zerolog.Logger) *Service {
	cfg.applyDefaults()
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Service{
		client: client,
		config: cfg,
		rng:    rng,
		logger: logger.With().Str("component", "feed-service").Logger(),
	}
}

// FetchForTopic fetches the next page for one topic. excludeTitles holds the
// titles already shown for the topic's cache entry; its length doubles as
// the pagination offset, and any returned paper whose normalized title is
// already present is dropped. The page is sorted by publish date descending.
func (s *Service) FetchForTopic(ctx context.Context, topic *domain.Topic, excludeTitles []string) ([]domain.Paper, error) {
	query := arxiv.BuildTopicQuery(topic)

	papers, err := s.client.Search(ctx, query, len(excludeTitles), s.config.TopicPageSize)
	if err != nil {
		return nil, err
	}

	papers = dedupeByTitle(papers, excludeTitles)
	for i := range papers {
		papers[i].TopicID = topic.ID
	}
	sortByPublished(papers)

	s.logger.Debug().
		Str("topic_id", topic.ID).
		Int("papers", len(papers)).
		Msg("topic page fetched")
	return papers, nil
}

// FetchAggregated fetches one page for the cross-topic feed. A bounded
// uniform-random subset of topics is combined into a single OR query; this
// is deliberate sampling, not ranking. Zero topics returns empty
// immediately without a request.
func (s *Service) FetchAggregated(ctx context.Context, topics []domain.Topic, excludeTitles []string) ([]domain.Paper, error) {
	if len(topics) == 0 {
		return []domain.Paper{}, nil
	}

	subset := s.sampleTopics(topics)
	query := arxiv.BuildAggregateQuery(subset)

	papers, err := s.client.Search(ctx, query, len(excludeTitles), s.config.AggregatePageSize)
	if err != nil {
		return nil, err
	}

	papers = dedupeByTitle(papers, excludeTitles)
	for i := range papers {
		papers[i].TopicID = domain.AggregateKey
	}
	sortByPublished(papers)

	s.logger.Debug().
		Int("topics", len(subset)).
		Int("papers", len(papers)).
		Msg("aggregated page fetched")
	return papers, nil
}

// sampleTopics returns a uniform-random subset of at most MaxAggregateTopics.
func (s *Service) sampleTopics(topics []domain.Topic) []domain.Topic {
	shuffled := make([]domain.Topic, len(topics))
	copy(shuffled, topics)
	s.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if len(shuffled) > s.config.MaxAggregateTopics {
		shuffled = shuffled[:s.config.MaxAggregateTopics]
	}
	return shuffled
}

// dedupeByTitle drops papers whose normalized title already appears in
// excludeTitles or earlier in the page.
func dedupeByTitle(papers []domain.Paper, excludeTitles []string) []domain.Paper {
	seen := make(map[string]struct{}, len(excludeTitles)+len(papers))
	for _, t := range excludeTitles {
		seen[domain.NormalizeTitle(t)] = struct{}{}
	}

	out := papers[:0]
	for _, p := range papers {
		key := domain.NormalizeTitle(p.Title)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

// sortByPublished orders one page by publish date, newest first. The sort is
// stable so same-day papers keep their upstream order.
func sortByPublished(papers []domain.Paper) {
	sort.SliceStable(papers, func(i, j int) bool {
		return papers[i].Published.After(papers[j].Published)
	})
}
