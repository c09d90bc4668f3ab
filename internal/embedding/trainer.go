// Package embedding trains token vectors for a vocabulary from tokenized sentences.
package embedding

import (
	"context"
	"encoding/binary"
	"math/rand"
	"sort"

	"github.com/go-crypt/x/blake2b"

	"github.com/hyperjump/henkan/internal/vocab"
	"github.com/hyperjump/henkan/pkg/utils"
)

// Trainer produces a vocabulary from tokenized sentences. Identical tokens always
// get identical vectors.
type Trainer interface {
	Train(ctx context.Context, sentences [][]string, params Params) (*vocab.Vocabulary, error)
}

// Params are the trainer hyperparameters.
type Params struct {
	VectorSize int   `yaml:"vector_size"`
	Window     int   `yaml:"window"`
	Epochs     int   `yaml:"epochs"`
	MinCount   int   `yaml:"min_count"`
	Seed       int64 `yaml:"seed"`
}

// DefaultParams returns the hyperparameters used when none are configured.
func DefaultParams() Params {
	return Params{
		VectorSize: 500,
		Window:     5,
		Epochs:     5,
		MinCount:   1,
		Seed:       1,
	}
}

// withDefaults fills zero fields from DefaultParams.
func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.VectorSize <= 0 {
		p.VectorSize = d.VectorSize
	}
	if p.Window <= 0 {
		p.Window = d.Window
	}
	if p.Epochs <= 0 {
		p.Epochs = d.Epochs
	}
	if p.MinCount <= 0 {
		p.MinCount = d.MinCount
	}
	return p
}

// TokenSeed derives a stable 64-bit seed for token from its BLAKE2b hash.
func TokenSeed(token string, seed int64) int64 {
	h, _ := blake2b.New(8, nil)
	var s [8]byte
	binary.LittleEndian.PutUint64(s[:], uint64(seed))
	h.Write(s[:])
	h.Write([]byte(token))
	return int64(binary.LittleEndian.Uint64(h.Sum(nil)))
}

// baseVector returns a deterministic unit vector for token.
func baseVector(token string, seed int64, dims int) []float32 {
	rng := rand.New(rand.NewSource(TokenSeed(token, seed)))
	vec := make([]float32, dims)
	for i := range vec {
		vec[i] = float32(rng.NormFloat64())
	}
	utils.NormalizeL2(vec)
	return vec
}

// countTokens returns tokens seen at least minCount times, most frequent first.
// Ties keep first-appearance order.
func countTokens(sentences [][]string, minCount int) []string {
	counts := make(map[string]int)
	var order []string
	for _, s := range sentences {
		for _, tok := range s {
			if counts[tok] == 0 {
				order = append(order, tok)
			}
			counts[tok]++
		}
	}
	kept := order[:0]
	for _, tok := range order {
		if counts[tok] >= minCount {
			kept = append(kept, tok)
		}
	}
	sortByCount(kept, counts)
	return kept
}

func sortByCount(tokens []string, counts map[string]int) {
	sort.SliceStable(tokens, func(i, j int) bool { return counts[tokens[i]] > counts[tokens[j]] })
}
