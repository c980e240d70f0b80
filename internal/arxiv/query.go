package arxiv

import (
	"strings"

	"github.com/paperstream/paperstream/internal/categories"
	"github.com/paperstream/paperstream/internal/domain"
)

// BuildTopicQuery turns a topic into a single arXiv search_query expression.
//
// The base clause is cat:CODE when the category registry resolves the topic,
// otherwise a quoted free-text clause over the subcategory or category name.
// Never both. Keywords, when present, are appended as an AND of OR-joined
// quoted clauses.
func BuildTopicQuery(topic *domain.Topic) string {
	base := baseClause(topic)

	clauses := make([]string, 0, len(topic.Keywords))
	for _, k := range topic.Keywords {
		if k = sanitize(k); k != "" {
			clauses = append(clauses, `all:"`+k+`"`)
		}
	}
	if len(clauses) == 0 {
		return base
	}
	return base + " AND (" + strings.Join(clauses, " OR ") + ")"
}

// BuildAggregateQuery OR-combines the per-topic clauses of the given topics,
// each parenthesized, and wraps the whole expression in parentheses. Returns
// the empty string for an empty topic slice. Callers are expected to pass a
// bounded subset of topics; combining every subscription risks exceeding
// practical query-length limits upstream.
func BuildAggregateQuery(topics []domain.Topic) string {
	if len(topics) == 0 {
		return ""
	}
	parts := make([]string, 0, len(topics))
	for i := range topics {
		parts = append(parts, "("+BuildTopicQuery(&topics[i])+")")
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func baseClause(topic *domain.Topic) string {
	if code, ok := categories.CodeOf(topic); ok {
		return "cat:" + code
	}
	return `all:"` + sanitize(topic.DisplayName()) + `"`
}

// sanitize strips characters that would break out of a quoted query clause.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, `"`, "")
	s = strings.ReplaceAll(s, `\`, "")
	return strings.TrimSpace(s)
}
