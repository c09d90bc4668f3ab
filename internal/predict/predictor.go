// Package predict runs a question through the encode, model and decode pipeline.
package predict

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/henkan/internal/dataset"
	"github.com/hyperjump/henkan/internal/models"
	"github.com/hyperjump/henkan/internal/reconstruct"
	"github.com/hyperjump/henkan/internal/seqmodel"
	"github.com/hyperjump/henkan/internal/vocab"
)

// DefaultCacheSize is the number of answers kept by the default cache.
const DefaultCacheSize = 256

// Predictor holds a loaded vocabulary, the corpus frame length and an optional sequence model.
type Predictor struct {
	vocab  *vocab.Vocabulary
	length int
	filler vocab.FillerMode
	model  seqmodel.Model
	cache  *AnswerCache
	logger *zap.Logger
}

// Option configures a Predictor.
type Option func(*Predictor)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Predictor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithModel sets the sequence model used by Answer.
func WithModel(m seqmodel.Model) Option {
	return func(p *Predictor) {
		p.model = m
	}
}

// WithFillerMode sets the placement of filler vectors for unknown tokens.
func WithFillerMode(m vocab.FillerMode) Option {
	return func(p *Predictor) {
		p.filler = m
	}
}

// WithCacheSize sets the answer cache capacity. Zero disables caching.
func WithCacheSize(n int) Option {
	return func(p *Predictor) {
		p.cache = NewAnswerCache(n)
	}
}

// NewPredictor creates a predictor for frames of the given length.
func NewPredictor(v *vocab.Vocabulary, length int, opts ...Option) (*Predictor, error) {
	if v == nil {
		return nil, errors.New("predictor needs a vocabulary")
	}
	if length < 2 {
		return nil, fmt.Errorf("frame length %d is too short", length)
	}
	p := &Predictor{
		vocab:  v,
		length: length,
		cache:  NewAnswerCache(DefaultCacheSize),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Length returns the frame length L.
func (p *Predictor) Length() int { return p.length }

// Vocabulary returns the loaded vocabulary.
func (p *Predictor) Vocabulary() *vocab.Vocabulary { return p.vocab }

// HasModel reports whether Answer can run.
func (p *Predictor) HasModel() bool { return p.model != nil }

// Prepare cleans and frames a question.
func (p *Predictor) Prepare(text string) (models.FramedResponse, error) {
	tokens, err := dataset.PrepareQuestion(text, p.length)
	if err != nil {
		return models.FramedResponse{}, err
	}
	return models.FramedResponse{Tokens: tokens, Length: p.length}, nil
}

// Encode prepares a question and maps its frame to vectors. Unknown tokens are reported in Lost.
func (p *Predictor) Encode(text string) (models.EncodeResponse, error) {
	framed, err := p.Prepare(text)
	if err != nil {
		return models.EncodeResponse{}, err
	}
	vectors, lost := p.vocab.Encode(framed.Tokens, p.filler)
	if lost == nil {
		lost = []string{}
	}
	return models.EncodeResponse{Tokens: framed.Tokens, Vectors: vectors, Lost: lost}, nil
}

// TextFromVectors decodes vectors to their nearest tokens and reconstructs the answer text.
// Decoding never fails. Rows whose width differs from the vocabulary decode as padding and
// are reported in lost as "#<row>".
func (p *Predictor) TextFromVectors(vectors [][]float32) (string, []string) {
	lost := []string{}
	for i, row := range vectors {
		if len(row) != p.vocab.Dimensions() {
			lost = append(lost, "#"+strconv.Itoa(i))
		}
	}
	return reconstruct.Reconstruct(p.vocab.Decode(vectors)), lost
}

// Answer runs the whole pipeline: prepare, encode, scale, model, unscale, decode and reconstruct.
// Lost holds the question words missing from the vocabulary.
func (p *Predictor) Answer(ctx context.Context, text string) (models.TextResponse, error) {
	if p.model == nil {
		return models.TextResponse{}, seqmodel.ErrNoModel
	}
	if cached, ok := p.cache.Get(text); ok {
		return cached, nil
	}

	start := time.Now()
	enc, err := p.Encode(text)
	if err != nil {
		return models.TextResponse{}, err
	}
	out, err := p.model.Predict(ctx, seqmodel.Scale(enc.Vectors))
	if err != nil {
		return models.TextResponse{}, fmt.Errorf("model prediction failed: %w", err)
	}
	answer, _ := p.TextFromVectors(seqmodel.Unscale(out))

	resp := models.TextResponse{Text: answer, Lost: enc.Lost}
	p.cache.Set(text, resp)
	p.logger.Debug("Answered question",
		zap.Int("lost", len(enc.Lost)),
		zap.Duration("duration", time.Since(start)))
	return resp, nil
}

// Reset drops cached answers. Call it after the vocabulary or model changes.
func (p *Predictor) Reset() {
	p.cache.Purge()
}

// Close closes the model.
func (p *Predictor) Close() error {
	if p.model == nil {
		return nil
	}
	return p.model.Close()
}
