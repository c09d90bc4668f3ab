// Package storage persists prepared corpora and their encoded vector arrays.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/henkan/internal/models"
)

var (
	// ErrNotFound is returned when a corpus or encoded set does not exist.
	ErrNotFound = errors.New("not found")
	// ErrShapeMismatch is returned when encoded arrays do not match their declared shape.
	ErrShapeMismatch = errors.New("encoded array shape mismatch")
	// ErrCorruptContainer is returned for unreadable encoded containers.
	ErrCorruptContainer = errors.New("corrupt encoded container")
)

// CorpusStore persists prepared corpora and their framed pairs.
type CorpusStore interface {
	SaveCorpus(ctx context.Context, corpus *models.PreparedCorpus) error
	GetCorpus(ctx context.Context, id string) (*models.PreparedCorpus, error)
	LatestCorpus(ctx context.Context) (*models.PreparedCorpus, error)
	ListCorpora(ctx context.Context, offset, limit int) ([]*models.PreparedCorpus, error)
	DeleteCorpus(ctx context.Context, id string) error
	CountCorpora(ctx context.Context) (int64, error)
	Close() error
}

// EncodedMeta describes an encoded corpus: Pairs arrays of shape [Length][Dimensions] per side.
type EncodedMeta struct {
	CorpusID   string `json:"corpus_id"`
	Pairs      int    `json:"pairs"`
	Length     int    `json:"length"`
	Dimensions int    `json:"dimensions"`
}

// EncodedStore writes and reads the parallel question and answer arrays of a corpus.
// A write replaces whatever was stored before.
type EncodedStore interface {
	WriteEncoded(ctx context.Context, meta EncodedMeta, pairs []models.EncodedPair) error
	ReadEncoded(ctx context.Context) (EncodedMeta, []models.EncodedPair, error)
	Close() error
}
