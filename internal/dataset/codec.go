// Package dataset prepares question/answer corpora into framed pairs, builds the
// vocabulary and encodes framed pairs into vector arrays.
package dataset

import (
	"errors"
	"runtime"

	"go.uber.org/zap"

	"github.com/hyperjump/henkan/internal/extract"
	"github.com/hyperjump/henkan/internal/vocab"
)

// DefaultMaxTokens is the longest sentence, in tokens, kept at corpus time.
const DefaultMaxTokens = 28

// DefaultQuestionLimit caps ListKnownQuestions when the caller passes no limit.
const DefaultQuestionLimit = 2000

// ProgressFunc receives the number of completed items and the total.
// It may be called from several goroutines, but never concurrently.
type ProgressFunc func(done, total int)

// Codec runs corpus preparation and encoding.
type Codec struct {
	logger    *zap.Logger
	workers   int
	progress  ProgressFunc
	maxTokens int
	filler    vocab.FillerMode
	extractor *extract.Extractor
}

// Option configures a Codec.
type Option func(*Codec) error

// WithLogger sets the logger. Default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Codec) error {
		if logger == nil {
			logger = zap.NewNop()
		}
		c.logger = logger
		return nil
	}
}

// WithWorkers sets the encode pool size. Default is runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(c *Codec) error {
		if n < 1 {
			return errors.New("workers must be at least 1")
		}
		c.workers = n
		return nil
	}
}

// WithProgress sets a progress callback for corpus encoding.
func WithProgress(fn ProgressFunc) Option {
	return func(c *Codec) error {
		c.progress = fn
		return nil
	}
}

// WithMaxTokens sets the per-side token cap at corpus time. Default is DefaultMaxTokens.
func WithMaxTokens(n int) Option {
	return func(c *Codec) error {
		if n < 1 {
			return errors.New("max tokens must be at least 1")
		}
		c.maxTokens = n
		return nil
	}
}

// WithFillerMode sets where filler vectors go for unknown tokens. Default is vocab.FillerInPlace.
func WithFillerMode(m vocab.FillerMode) Option {
	return func(c *Codec) error {
		c.filler = m
		return nil
	}
}

// NewCodec returns a Codec with the given options applied over the defaults.
func NewCodec(opts ...Option) (*Codec, error) {
	c := &Codec{
		logger:    zap.NewNop(),
		workers:   max(1, runtime.NumCPU()),
		maxTokens: DefaultMaxTokens,
		filler:    vocab.FillerInPlace,
		extractor: extract.NewExtractor(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MaxTokens returns the per-side token cap.
func (c *Codec) MaxTokens() int { return c.maxTokens }

// FillerMode returns the configured filler mode.
func (c *Codec) FillerMode() vocab.FillerMode { return c.filler }
