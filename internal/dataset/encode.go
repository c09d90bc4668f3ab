package dataset

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/hyperjump/henkan/internal/models"
	"github.com/hyperjump/henkan/internal/storage"
	"github.com/hyperjump/henkan/internal/vocab"
)

// EncodeResult summarizes a corpus encode.
type EncodeResult struct {
	Meta     storage.EncodedMeta `json:"meta"`
	Lost     int                 `json:"lost"`
	Unknown  []string            `json:"unknown,omitempty"`
	Duration time.Duration       `json:"duration"`
}

// EncodeCorpus encodes the first limit pairs of corpus (all when limit <= 0 or larger
// than the corpus) on a worker pool and writes them through store. Output index i always
// holds input pair i.
func (c *Codec) EncodeCorpus(ctx context.Context, corpus *models.PreparedCorpus, v *vocab.Vocabulary,
	store storage.EncodedStore, limit int) (EncodeResult, error) {
	n := corpus.Size()
	if limit > 0 && limit < n {
		n = limit
	}
	if n == 0 {
		return EncodeResult{}, ErrNoPairs
	}
	start := time.Now()

	pairs, lost, err := c.encodePairs(ctx, corpus.Pairs[:n], v)
	if err != nil {
		return EncodeResult{}, err
	}

	result := EncodeResult{
		Meta: storage.EncodedMeta{
			CorpusID:   corpus.ID,
			Pairs:      n,
			Length:     corpus.Length,
			Dimensions: v.Dimensions(),
		},
	}
	seen := make(map[string]struct{})
	for _, tokens := range lost {
		result.Lost += len(tokens)
		for _, tok := range tokens {
			if _, ok := seen[tok]; !ok {
				seen[tok] = struct{}{}
				result.Unknown = append(result.Unknown, tok)
			}
		}
	}
	if !(vocab.UnknownTokenWarning{Tokens: result.Unknown}).Empty() {
		c.logger.Warn("tokens missing from vocabulary",
			zap.Int("lost", result.Lost),
			zap.Strings("unknown", result.Unknown))
	}

	if err := store.WriteEncoded(ctx, result.Meta, pairs); err != nil {
		return EncodeResult{}, fmt.Errorf("write encoded corpus: %w", err)
	}
	result.Duration = time.Since(start)
	c.logger.Info("corpus encoded",
		zap.String("corpus_id", corpus.ID),
		zap.Int("pairs", n),
		zap.Int("lost", result.Lost),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// encodePairs encodes every pair on an ants pool. Each task writes its own slot.
func (c *Codec) encodePairs(ctx context.Context, framed []models.FramedPair, v *vocab.Vocabulary) ([]models.EncodedPair, [][]string, error) {
	pool, err := ants.NewPool(c.workers)
	if err != nil {
		return nil, nil, fmt.Errorf("create encode pool: %w", err)
	}
	defer pool.Release()

	total := len(framed)
	out := make([]models.EncodedPair, total)
	lost := make([][]string, total)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		done int
	)
	report := func() {
		mu.Lock()
		defer mu.Unlock()
		done++
		if c.progress != nil {
			c.progress(done, total)
		}
	}

	for i := range framed {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, nil, err
		}
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			q, lq := v.Encode(framed[i].Question, c.filler)
			a, la := v.Encode(framed[i].Answer, c.filler)
			out[i] = models.EncodedPair{Question: q, Answer: a}
			lost[i] = append(lq, la...)
			report()
		}); err != nil {
			wg.Done()
			wg.Wait()
			return nil, nil, fmt.Errorf("submit encode task: %w", err)
		}
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return out, lost, nil
}
