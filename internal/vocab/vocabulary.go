// Package vocab holds the immutable token to vector table used to encode frames
// and decode predicted vectors back into tokens.
package vocab

import (
	"fmt"
	"sort"

	"github.com/hyperjump/henkan/internal/models"
	"github.com/hyperjump/henkan/pkg/utils"
)

// Vocabulary maps tokens to vectors of a fixed dimension. It is never modified after
// construction, so lookups need no locking.
type Vocabulary struct {
	dimensions int
	tokens     []string
	vectors    [][]float32
	unit       [][]float32
	index      map[string]int
}

// New builds a vocabulary from parallel token and vector slices. Vectors are copied.
func New(tokens []string, vectors [][]float32) (*Vocabulary, error) {
	if len(tokens) != len(vectors) {
		return nil, fmt.Errorf("%w: %d tokens, %d vectors", ErrInvalidVocabulary, len(tokens), len(vectors))
	}
	v := &Vocabulary{
		tokens:  make([]string, len(tokens)),
		vectors: make([][]float32, len(tokens)),
		unit:    make([][]float32, len(tokens)),
		index:   make(map[string]int, len(tokens)),
	}
	if len(vectors) > 0 {
		v.dimensions = len(vectors[0])
		if v.dimensions == 0 {
			return nil, fmt.Errorf("%w: zero dimensions", ErrInvalidVocabulary)
		}
	}
	for i, tok := range tokens {
		if _, dup := v.index[tok]; dup {
			return nil, fmt.Errorf("%w: duplicate token %q", ErrInvalidVocabulary, tok)
		}
		if len(vectors[i]) != v.dimensions {
			return nil, fmt.Errorf("%w: token %q has %d dimensions, expected %d",
				ErrInvalidVocabulary, tok, len(vectors[i]), v.dimensions)
		}
		vec := make([]float32, v.dimensions)
		copy(vec, vectors[i])
		v.tokens[i] = tok
		v.vectors[i] = vec
		v.unit[i] = utils.Normalized(vec)
		v.index[tok] = i
	}
	return v, nil
}

// Size returns the number of tokens.
func (v *Vocabulary) Size() int { return len(v.tokens) }

// Dimensions returns the vector dimension D.
func (v *Vocabulary) Dimensions() int { return v.dimensions }

// Tokens returns a copy of the tokens in table order.
func (v *Vocabulary) Tokens() []string {
	out := make([]string, len(v.tokens))
	copy(out, v.tokens)
	return out
}

// Has reports whether token is in the vocabulary.
func (v *Vocabulary) Has(token string) bool {
	_, ok := v.index[token]
	return ok
}

// Vector returns a copy of the vector stored for token.
func (v *Vocabulary) Vector(token string) ([]float32, bool) {
	i, ok := v.index[token]
	if !ok {
		return nil, false
	}
	out := make([]float32, v.dimensions)
	copy(out, v.vectors[i])
	return out, true
}

// Nearest returns the token whose vector has the highest cosine similarity to vec.
// It returns <PAD> for an empty vocabulary or a vector of the wrong dimension.
// Ties go to the token that comes first in table order.
func (v *Vocabulary) Nearest(vec []float32) string {
	if len(v.tokens) == 0 || len(vec) != v.dimensions {
		return models.TokenPad
	}
	q := utils.Normalized(vec)
	best, bestScore := 0, utils.Dot(q, v.unit[0])
	for i := 1; i < len(v.unit); i++ {
		if s := utils.Dot(q, v.unit[i]); s > bestScore {
			best, bestScore = i, s
		}
	}
	return v.tokens[best]
}

// MostSimilar returns up to k tokens closest to token, excluding token itself.
// The bool is false when token is not in the vocabulary.
func (v *Vocabulary) MostSimilar(token string, k int) ([]models.Neighbor, bool) {
	i, ok := v.index[token]
	if !ok {
		return nil, false
	}
	if k <= 0 {
		return nil, true
	}
	scores := make([]models.Neighbor, 0, len(v.tokens)-1)
	for j, other := range v.tokens {
		if j == i {
			continue
		}
		scores = append(scores, models.Neighbor{Token: other, Similarity: utils.Dot(v.unit[i], v.unit[j])})
	}
	sort.SliceStable(scores, func(a, b int) bool { return scores[a].Similarity > scores[b].Similarity })
	if k > len(scores) {
		k = len(scores)
	}
	return scores[:k], true
}
