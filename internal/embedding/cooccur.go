package embedding

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/hyperjump/henkan/internal/vocab"
	"github.com/hyperjump/henkan/pkg/utils"
)

// contextWeight is how much of the context mean is blended into a token's base vector each epoch.
const contextWeight = 0.5

// CooccurrenceTrainer builds vectors from windowed co-occurrence counts. Every token
// starts from a hashed unit vector; each epoch adds the weighted mean of its context
// vectors from the previous epoch, then rows are L2-normalized.
type CooccurrenceTrainer struct {
	logger *zap.Logger
}

// Option configures a CooccurrenceTrainer.
type Option func(*CooccurrenceTrainer)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(t *CooccurrenceTrainer) {
		t.logger = logger
	}
}

// NewCooccurrenceTrainer returns a trainer with the given options.
func NewCooccurrenceTrainer(opts ...Option) *CooccurrenceTrainer {
	t := &CooccurrenceTrainer{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Train runs Epochs passes over the co-occurrence graph. It stops between epochs
// when ctx is cancelled.
func (t *CooccurrenceTrainer) Train(ctx context.Context, sentences [][]string, params Params) (*vocab.Vocabulary, error) {
	params = params.withDefaults()
	tokens := countTokens(sentences, params.MinCount)
	ids := make(map[string]int, len(tokens))
	for i, tok := range tokens {
		ids[tok] = i
	}
	cooc := cooccurrence(sentences, ids, params.Window)

	base := make([][]float32, len(tokens))
	for i, tok := range tokens {
		base[i] = baseVector(tok, params.Seed, params.VectorSize)
	}
	current := base
	for epoch := 0; epoch < params.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next := make([][]float32, len(tokens))
		for i := range tokens {
			next[i] = blend(base[i], current, cooc[i], params.VectorSize)
		}
		current = next
		t.logger.Debug("embedding epoch done",
			zap.Int("epoch", epoch+1),
			zap.Int("tokens", len(tokens)))
	}
	t.logger.Info("embeddings trained",
		zap.Int("tokens", len(tokens)),
		zap.Int("dimensions", params.VectorSize),
		zap.Int("epochs", params.Epochs))
	return vocab.New(tokens, current)
}

type edge struct {
	id     int
	weight float64
}

// cooccurrence counts, for every token id, the neighbours within ±window positions.
// Edges are sorted by neighbour id so training is reproducible.
func cooccurrence(sentences [][]string, ids map[string]int, window int) [][]edge {
	counts := make([]map[int]float64, len(ids))
	for _, s := range sentences {
		for i, tok := range s {
			center, ok := ids[tok]
			if !ok {
				continue
			}
			start := max(0, i-window)
			end := min(len(s), i+window+1)
			for j := start; j < end; j++ {
				if i == j {
					continue
				}
				neighbor, ok := ids[s[j]]
				if !ok {
					continue
				}
				if counts[center] == nil {
					counts[center] = make(map[int]float64)
				}
				counts[center][neighbor]++
			}
		}
	}
	edges := make([][]edge, len(ids))
	for center, m := range counts {
		for id, w := range m {
			edges[center] = append(edges[center], edge{id: id, weight: w})
		}
		sort.Slice(edges[center], func(i, j int) bool { return edges[center][i].id < edges[center][j].id })
	}
	return edges
}

func blend(base []float32, prev [][]float32, neighbors []edge, dims int) []float32 {
	out := make([]float32, dims)
	copy(out, base)
	var total float64
	for _, e := range neighbors {
		total += e.weight
	}
	if total > 0 {
		for _, e := range neighbors {
			scale := float32(contextWeight * e.weight / total)
			for d, x := range prev[e.id] {
				out[d] += scale * x
			}
		}
	}
	utils.NormalizeL2(out)
	return out
}
