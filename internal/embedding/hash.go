package embedding

import (
	"context"

	"github.com/hyperjump/henkan/internal/vocab"
)

// HashTrainer assigns every token a deterministic vector derived from its hash and
// ignores context. Useful for tests and as a fallback when no training is wanted.
type HashTrainer struct{}

// NewHashTrainer returns a HashTrainer.
func NewHashTrainer() *HashTrainer {
	return &HashTrainer{}
}

// Train returns hashed unit vectors for every token seen at least MinCount times.
func (t *HashTrainer) Train(ctx context.Context, sentences [][]string, params Params) (*vocab.Vocabulary, error) {
	params = params.withDefaults()
	tokens := countTokens(sentences, params.MinCount)
	vectors := make([][]float32, len(tokens))
	for i, tok := range tokens {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		vectors[i] = baseVector(tok, params.Seed, params.VectorSize)
	}
	return vocab.New(tokens, vectors)
}
