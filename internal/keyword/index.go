// Package keyword provides full-text search over the known questions of a corpus.
package keyword

import (
	"context"

	"github.com/hyperjump/henkan/internal/models"
)

// DefaultFuzziness is the edit distance used by fuzzy search when none is configured.
const DefaultFuzziness = 2

// Searcher looks up known questions by text.
type Searcher interface {
	Index(ctx context.Context, questions []string) error
	Search(ctx context.Context, query string, limit int, fuzzy bool) ([]models.QuestionHit, error)
	DocCount() (uint64, error)
	Close() error
}

// TermDictionary provides access to the indexed terms for spelling suggestions.
type TermDictionary interface {
	// AllTerms returns all unique terms in the index.
	AllTerms() ([]string, error)
	// TermFrequency returns the number of questions containing the term.
	TermFrequency(term string) (int, error)
}
