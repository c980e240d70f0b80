package arxiv

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/paperstream/paperstream/internal/domain"
)

func TestBuildTopicQuery(t *testing.T) {
	tests := []struct {
		name  string
		topic domain.Topic
		want  string
	}{
		{
			name:  "mapped subcategory uses category clause",
			topic: domain.Topic{Category: "Quantitative Biology", SubCategory: "Genomics"},
			want:  "cat:q-bio.GN",
		},
		{
			name:  "unmapped subcategory falls back to quoted fulltext",
			topic: domain.Topic{Category: "Computer Science", SubCategory: "Quantum Basket Weaving"},
			want:  `all:"Quantum Basket Weaving"`,
		},
		{
			name:  "no subcategory falls back to category name",
			topic: domain.Topic{Category: "Computer Science"},
			want:  `all:"Computer Science"`,
		},
		{
			name: "keywords joined with OR inside one AND group",
			topic: domain.Topic{
				Category:    "Computer Science",
				SubCategory: "Machine Learning",
				Keywords:    []string{"transformers", "attention"},
			},
			want: `cat:cs.LG AND (all:"transformers" OR all:"attention")`,
		},
		{
			name: "single keyword still grouped",
			topic: domain.Topic{
				Category:    "Statistics",
				SubCategory: "Machine Learning",
				Keywords:    []string{"causal inference"},
			},
			want: `cat:stat.ML AND (all:"causal inference")`,
		},
		{
			name: "quotes and backslashes stripped from keywords",
			topic: domain.Topic{
				Category: "Physics",
				Keywords: []string{`"quantum" \entanglement`},
			},
			want: `all:"Physics" AND (all:"quantum entanglement")`,
		},
		{
			name: "keywords reduced to nothing are dropped",
			topic: domain.Topic{
				Category:    "Computer Science",
				SubCategory: "Robotics",
				Keywords:    []string{`"`, `\`},
			},
			want: "cat:cs.RO",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildTopicQuery(&tt.topic))
		})
	}
}

func TestBuildTopicQuery_NeverBothClauses(t *testing.T) {
	// A query uses a category clause or a fulltext clause, never both.
	mapped := BuildTopicQuery(&domain.Topic{Category: "Computer Science", SubCategory: "Databases"})
	assert.Contains(t, mapped, "cat:")
	assert.NotContains(t, mapped, "all:")

	unmapped := BuildTopicQuery(&domain.Topic{Category: "Computer Science", SubCategory: "Esoterica"})
	assert.Contains(t, unmapped, "all:")
	assert.NotContains(t, unmapped, "cat:")
}

func TestBuildAggregateQuery(t *testing.T) {
	t.Run("empty topics yields empty query", func(t *testing.T) {
		assert.Empty(t, BuildAggregateQuery(nil))
	})

	t.Run("single topic wrapped twice", func(t *testing.T) {
		topics := []domain.Topic{{Category: "Quantitative Biology", SubCategory: "Genomics"}}
		assert.Equal(t, "((cat:q-bio.GN))", BuildAggregateQuery(topics))
	})

	t.Run("multiple topics OR-joined", func(t *testing.T) {
		topics := []domain.Topic{
			{Category: "Quantitative Biology", SubCategory: "Genomics"},
			{Category: "Computer Science", SubCategory: "Robotics", Keywords: []string{"grasping"}},
		}
		want := `((cat:q-bio.GN) OR (cat:cs.RO AND (all:"grasping")))`
		assert.Equal(t, want, BuildAggregateQuery(topics))
	})
}
