package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/hyperjump/henkan/internal/config"
	"github.com/hyperjump/henkan/internal/dataset"
	"github.com/hyperjump/henkan/internal/embedding"
	"github.com/hyperjump/henkan/internal/keyword"
	"github.com/hyperjump/henkan/internal/models"
	"github.com/hyperjump/henkan/internal/predict"
	"github.com/hyperjump/henkan/internal/seqmodel"
	"github.com/hyperjump/henkan/internal/server"
	"github.com/hyperjump/henkan/internal/storage"
	"github.com/hyperjump/henkan/internal/vocab"
)

// Components holds initialized services.
type Components struct {
	Config    *config.Config
	Codec     *dataset.Codec
	Corpora   *storage.SQLiteStore
	Encoded   storage.EncodedStore
	Questions *keyword.QuestionIndex

	// onnx is opened once and shared by every rebuilt predictor.
	onnx   seqmodel.Model
	logger *zap.Logger
}

func (c *Components) Close() {
	if c.Corpora != nil {
		_ = c.Corpora.Close()
	}
	if c.Encoded != nil {
		_ = c.Encoded.Close()
	}
	if c.Questions != nil {
		_ = c.Questions.Close()
	}
	if c.onnx != nil {
		_ = c.onnx.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, progress dataset.ProgressFunc) (*Components, error) {
	codecOpts := []dataset.Option{
		dataset.WithLogger(logger),
		dataset.WithWorkers(cfg.Encoding.Workers),
		dataset.WithMaxTokens(cfg.Corpus.MaxTokens),
		dataset.WithFillerMode(vocab.ParseFillerMode(cfg.Encoding.Filler)),
	}
	if progress != nil {
		codecOpts = append(codecOpts, dataset.WithProgress(progress))
	}
	codec, err := dataset.NewCodec(codecOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize codec: %w", err)
	}

	corpora, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	backend, err := storage.ParseEncodedBackend(cfg.Storage.EncodedBackend)
	if err != nil {
		_ = corpora.Close()
		return nil, err
	}
	encoded, err := storage.OpenEncodedStore(backend, cfg.Storage.EncodedPath, logger)
	if err != nil {
		_ = corpora.Close()
		return nil, fmt.Errorf("failed to initialize encoded store: %w", err)
	}

	questions, err := keyword.NewQuestionIndex(cfg.Storage.QuestionIndexPath, keyword.WithLogger(logger))
	if err != nil {
		_ = corpora.Close()
		_ = encoded.Close()
		return nil, fmt.Errorf("failed to initialize question index: %w", err)
	}

	logger.Debug("components initialized",
		zap.String("database", cfg.Storage.DatabasePath),
		zap.String("encoded_backend", backend.String()),
		zap.String("encoded_path", cfg.Storage.EncodedPath),
		zap.String("question_index", cfg.Storage.QuestionIndexPath))

	return &Components{
		Config:    cfg,
		Codec:     codec,
		Corpora:   corpora,
		Encoded:   encoded,
		Questions: questions,
		logger:    logger,
	}, nil
}

func (c *Components) trainer() (embedding.Trainer, error) {
	switch c.Config.Vocabulary.Trainer {
	case "", "cooccurrence":
		return embedding.NewCooccurrenceTrainer(embedding.WithLogger(c.logger)), nil
	case "hash":
		return embedding.NewHashTrainer(), nil
	default:
		return nil, fmt.Errorf("unknown vocabulary trainer %q; use cooccurrence or hash", c.Config.Vocabulary.Trainer)
	}
}

func (c *Components) trainerParams() embedding.Params {
	vc := c.Config.Vocabulary
	return embedding.Params{
		VectorSize: vc.VectorSize,
		Window:     vc.Window,
		Epochs:     vc.Epochs,
		MinCount:   vc.MinCount,
		Seed:       vc.Seed,
	}
}

// prepareCorpus prepares the configured corpus file and stores the result.
func (c *Components) prepareCorpus(ctx context.Context) (*models.PreparedCorpus, error) {
	corpus, err := c.Codec.PrepareFile(ctx, c.Config.Corpus.Path)
	if err != nil {
		return nil, err
	}
	if err := c.Corpora.SaveCorpus(ctx, corpus); err != nil {
		return nil, fmt.Errorf("save corpus: %w", err)
	}
	return corpus, nil
}

// latestCorpus returns the stored corpus, preparing one when the database is empty.
func (c *Components) latestCorpus(ctx context.Context) (*models.PreparedCorpus, error) {
	corpus, err := c.Corpora.LatestCorpus(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		c.logger.Info("no prepared corpus stored, preparing", zap.String("path", c.Config.Corpus.Path))
		return c.prepareCorpus(ctx)
	}
	return corpus, err
}

// buildVocabulary trains on corpus and writes the table, listing and neighbours report.
func (c *Components) buildVocabulary(ctx context.Context, corpus *models.PreparedCorpus) (*vocab.Vocabulary, error) {
	trainer, err := c.trainer()
	if err != nil {
		return nil, err
	}
	vc := c.Config.Vocabulary
	return c.Codec.BuildVocabulary(ctx, corpus, trainer, c.trainerParams(), dataset.Artifacts{
		Table:         vc.Path,
		Listing:       vc.ListingPath,
		Neighbors:     vc.NeighborsPath,
		NeighborCount: vc.Neighbors,
	})
}

// loadVocabulary reads the vocabulary table, training one from corpus when the file does not exist yet.
func (c *Components) loadVocabulary(ctx context.Context, corpus *models.PreparedCorpus) (*vocab.Vocabulary, error) {
	v, err := vocab.Load(c.Config.Vocabulary.Path)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, os.ErrNotExist) || corpus == nil {
		return nil, err
	}
	c.logger.Info("vocabulary missing, training", zap.String("path", c.Config.Vocabulary.Path))
	return c.buildVocabulary(ctx, corpus)
}

func (c *Components) encodeCorpus(ctx context.Context, corpus *models.PreparedCorpus, v *vocab.Vocabulary) (dataset.EncodeResult, error) {
	return c.Codec.EncodeCorpus(ctx, corpus, v, c.Encoded, c.Config.Encoding.Limit)
}

// indexQuestions lists the known questions of the corpus file and replaces the question index with them.
func (c *Components) indexQuestions(ctx context.Context) ([]string, error) {
	questions, err := c.Codec.KnownQuestionsFile(c.Config.Corpus.Path, c.Config.Corpus.QuestionLimit)
	if err != nil {
		return nil, fmt.Errorf("list known questions: %w", err)
	}
	if err := c.Questions.Index(ctx, questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// encodedPairs returns the stored encoded pairs of corpus, encoding them when the store
// is empty or holds another corpus.
func (c *Components) encodedPairs(ctx context.Context, corpus *models.PreparedCorpus, v *vocab.Vocabulary) ([]models.EncodedPair, error) {
	meta, pairs, err := c.Encoded.ReadEncoded(ctx)
	switch {
	case err == nil && meta.CorpusID == corpus.ID && meta.Dimensions == v.Dimensions():
		return pairs, nil
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return nil, err
	}
	if _, err := c.encodeCorpus(ctx, corpus, v); err != nil {
		return nil, err
	}
	_, pairs, err = c.Encoded.ReadEncoded(ctx)
	return pairs, err
}

// newModel builds the configured sequence model. A nil model with a nil error means none is configured.
func (c *Components) newModel(ctx context.Context, corpus *models.PreparedCorpus, v *vocab.Vocabulary) (seqmodel.Model, error) {
	kind, err := seqmodel.ParseKind(c.Config.Model.Kind)
	if err != nil {
		return nil, err
	}
	switch kind {
	case seqmodel.KindRetrieval:
		pairs, err := c.encodedPairs(ctx, corpus, v)
		if err != nil {
			return nil, err
		}
		return seqmodel.NewRetrieval(pairs)
	case seqmodel.KindONNX:
		if c.onnx != nil {
			return c.onnx, nil
		}
		mc := c.Config.Model
		m, err := seqmodel.NewONNXModel(seqmodel.ONNXConfig{
			Path:       mc.Path,
			Library:    mc.Library,
			InputName:  mc.InputName,
			OutputName: mc.OutputName,
			Length:     corpus.Length,
			Dimensions: v.Dimensions(),
		})
		if err != nil {
			return nil, err
		}
		c.onnx = m
		return m, nil
	default:
		return nil, nil
	}
}

func (c *Components) newRuntime(ctx context.Context, corpus *models.PreparedCorpus, v *vocab.Vocabulary, questions []string) (*server.Runtime, error) {
	opts := []predict.Option{
		predict.WithLogger(c.logger),
		predict.WithFillerMode(c.Codec.FillerMode()),
		predict.WithCacheSize(c.Config.Model.CacheSize),
	}
	model, err := c.newModel(ctx, corpus, v)
	if err != nil {
		// Framing and codec endpoints still work without a model.
		c.logger.Warn("sequence model unavailable", zap.String("kind", c.Config.Model.Kind), zap.Error(err))
	} else if model != nil {
		opts = append(opts, predict.WithModel(model))
	}
	p, err := predict.NewPredictor(v, corpus.Length, opts...)
	if err != nil {
		return nil, err
	}
	return &server.Runtime{Corpus: corpus, Predictor: p, Questions: questions}, nil
}

// loadRuntime builds the runtime from stored artifacts, producing whichever ones are missing.
// A corpus file that no longer matches the stored corpus triggers a full rebuild.
func (c *Components) loadRuntime(ctx context.Context) (*server.Runtime, error) {
	corpus, err := c.latestCorpus(ctx)
	if err != nil {
		return nil, err
	}
	if fp, err := c.Codec.Fingerprint(c.Config.Corpus.Path); err == nil && fp != corpus.Fingerprint {
		c.logger.Info("corpus file changed since last preparation, rebuilding",
			zap.String("path", c.Config.Corpus.Path))
		return c.rebuild(ctx)
	}
	v, err := c.loadVocabulary(ctx, corpus)
	if err != nil {
		return nil, err
	}
	questions, err := c.indexQuestions(ctx)
	if err != nil {
		return nil, err
	}
	return c.newRuntime(ctx, corpus, v, questions)
}

// rebuild re-runs the whole pipeline on the corpus file: prepare, train, encode and index.
func (c *Components) rebuild(ctx context.Context) (*server.Runtime, error) {
	corpus, err := c.prepareCorpus(ctx)
	if err != nil {
		return nil, err
	}
	v, err := c.buildVocabulary(ctx, corpus)
	if err != nil {
		return nil, err
	}
	if _, err := c.encodeCorpus(ctx, corpus, v); err != nil {
		return nil, err
	}
	questions, err := c.indexQuestions(ctx)
	if err != nil {
		return nil, err
	}
	return c.newRuntime(ctx, corpus, v, questions)
}
