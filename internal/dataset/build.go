package dataset

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/henkan/internal/embedding"
	"github.com/hyperjump/henkan/internal/models"
	"github.com/hyperjump/henkan/internal/vocab"
)

// Artifacts are the files written next to a trained vocabulary. Empty paths are skipped.
type Artifacts struct {
	Table     string
	Listing   string
	Neighbors string
	// NeighborCount is the report width; zero means vocab.DefaultReportNeighbors.
	NeighborCount int
}

// BuildVocabulary trains a vocabulary on every question and answer frame of corpus and
// writes the binary table, the listing and the neighbours report.
func (c *Codec) BuildVocabulary(ctx context.Context, corpus *models.PreparedCorpus, trainer embedding.Trainer,
	params embedding.Params, artifacts Artifacts) (*vocab.Vocabulary, error) {
	if corpus.Size() == 0 {
		return nil, ErrNoPairs
	}
	sentences := make([][]string, 0, 2*corpus.Size())
	for _, p := range corpus.Pairs {
		sentences = append(sentences, p.Question, p.Answer)
	}
	v, err := trainer.Train(ctx, sentences, params)
	if err != nil {
		return nil, fmt.Errorf("train vocabulary: %w", err)
	}

	missing := make(map[string]struct{})
	for _, s := range sentences {
		for _, tok := range s {
			if !v.Has(tok) {
				missing[tok] = struct{}{}
			}
		}
	}
	c.logger.Info("vocabulary built",
		zap.String("corpus_id", corpus.ID),
		zap.Int("tokens", v.Size()),
		zap.Int("dimensions", v.Dimensions()),
		zap.Int("missing", len(missing)))

	if artifacts.Table != "" {
		if err := v.Save(artifacts.Table); err != nil {
			return nil, fmt.Errorf("save vocabulary: %w", err)
		}
	}
	if artifacts.Listing != "" {
		if err := v.SaveListing(artifacts.Listing); err != nil {
			return nil, fmt.Errorf("save vocabulary listing: %w", err)
		}
	}
	if artifacts.Neighbors != "" {
		k := artifacts.NeighborCount
		if k <= 0 {
			k = vocab.DefaultReportNeighbors
		}
		if err := v.SaveNeighborsReport(artifacts.Neighbors, k); err != nil {
			return nil, fmt.Errorf("save neighbours report: %w", err)
		}
	}
	return v, nil
}
