package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{
			name:  "lowercases and strips punctuation",
			title: "Deep Learning: A Survey",
			want:  "deeplearningasurvey",
		},
		{
			name:  "already normalized form matches",
			title: "deep learning a survey",
			want:  "deeplearningasurvey",
		},
		{
			name:  "symbols removed",
			title: "Attention Is *All* You Need!?",
			want:  "attentionisallyouneed",
		},
		{
			name:  "digits preserved",
			title: "GPT-4 Technical Report",
			want:  "gpt4technicalreport",
		},
		{
			name:  "empty title",
			title: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTitle(tt.title))
		})
	}
}

func TestNormalizeTitle_NearDuplicatesCollide(t *testing.T) {
	// Two re-submissions of the same paper that differ only in casing and
	// punctuation must produce the same identity key.
	a := NormalizeTitle("Deep Learning: A Survey")
	b := NormalizeTitle("deep learning a survey")
	assert.Equal(t, a, b)
}

func TestNormalizeWhitespace(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapses newlines", "a title\n  split over\nlines", "a title split over lines"},
		{"trims edges", "  padded  ", "padded"},
		{"empty", "", ""},
		{"only whitespace", " \n\t ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeWhitespace(tt.in))
		})
	}
}

func TestNewTopic(t *testing.T) {
	t.Run("generates unique ids", func(t *testing.T) {
		a, err := NewTopic("Computer Science", "Machine Learning", nil)
		require.NoError(t, err)
		b, err := NewTopic("Computer Science", "Machine Learning", nil)
		require.NoError(t, err)

		assert.NotEmpty(t, a.ID)
		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("trims and drops empty keywords", func(t *testing.T) {
		topic, err := NewTopic("Physics", "", []string{" quantum ", "", "  ", "entanglement"})
		require.NoError(t, err)
		assert.Equal(t, []string{"quantum", "entanglement"}, topic.Keywords)
	})

	t.Run("rejects empty category", func(t *testing.T) {
		_, err := NewTopic("  ", "Machine Learning", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestTopicDisplayName(t *testing.T) {
	withSub, err := NewTopic("Computer Science", "Computer Vision", nil)
	require.NoError(t, err)
	assert.Equal(t, "Computer Vision", withSub.DisplayName())

	noSub, err := NewTopic("Mathematics", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "Mathematics", noSub.DisplayName())
}
