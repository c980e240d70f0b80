package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Topic is a subscription unit: a top-level discipline, an optional specific
// subfield, and optional free-text keyword filters. Topics are immutable
// after creation except for deletion; deleting a topic also discards its
// cache entry.
type Topic struct {
	ID          string    `json:"id" validate:"required"`
	Category    string    `json:"category" validate:"required"`
	SubCategory string    `json:"sub_category,omitempty"`
	Keywords    []string  `json:"keywords,omitempty" validate:"dive,min=1"`
	CreatedAt   time.Time `json:"created_at"`
}

var validate = validator.New()

// NewTopic creates a validated Topic with a generated id. Keywords are
// trimmed and empty entries dropped; order is preserved.
func NewTopic(category, subCategory string, keywords []string) (Topic, error) {
	t := Topic{
		ID:          uuid.NewString(),
		Category:    strings.TrimSpace(category),
		SubCategory: strings.TrimSpace(subCategory),
		CreatedAt:   time.Now().UTC(),
	}
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			t.Keywords = append(t.Keywords, k)
		}
	}
	if err := validate.Struct(t); err != nil {
		return Topic{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return t, nil
}

// DisplayName returns the most specific human-readable name for the topic.
func (t *Topic) DisplayName() string {
	if t.SubCategory != "" {
		return t.SubCategory
	}
	return t.Category
}
