// Package seqmodel defines the sequence model that maps an encoded question to an encoded answer.
//
// Models work on scaled arrays: every value v of an encoded frame enters as (v+1)/2 and
// leaves the model in the same [0,1] range. Scaling is the caller's job.
package seqmodel

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/hyperjump/henkan/internal/models"
)

var (
	// ErrNoModel is returned when prediction is requested but no model is configured.
	ErrNoModel = errors.New("no sequence model configured")
	// ErrShape is returned when an input array does not match the model shape.
	ErrShape = errors.New("input shape does not match model")
)

// Model predicts an [L][D] answer array from an [L][D] question array.
type Model interface {
	Predict(ctx context.Context, question [][]float32) ([][]float32, error)
	Close() error
}

// Kind selects the model implementation.
type Kind int

const (
	KindNone Kind = iota
	KindRetrieval
	KindONNX
)

// String returns the config name of the kind.
func (k Kind) String() string {
	switch k {
	case KindRetrieval:
		return "retrieval"
	case KindONNX:
		return "onnx"
	default:
		return "none"
	}
}

// ParseKind parses a config name. The empty string means KindNone.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return KindNone, nil
	case "retrieval":
		return KindRetrieval, nil
	case "onnx":
		return KindONNX, nil
	}
	return KindNone, fmt.Errorf("unknown model kind %q", s)
}

// Scale maps encoded values from [-1,1] to the model range [0,1]. The input is not modified.
func Scale(a [][]float32) [][]float32 {
	return mapValues(a, func(v float32) float32 { return (v + 1) / 2 })
}

// Unscale is the inverse of Scale.
func Unscale(a [][]float32) [][]float32 {
	return mapValues(a, func(v float32) float32 { return v*2 - 1 })
}

func mapValues(a [][]float32, f func(float32) float32) [][]float32 {
	out := make([][]float32, len(a))
	for i, row := range a {
		out[i] = make([]float32, len(row))
		for j, v := range row {
			out[i][j] = f(v)
		}
	}
	return out
}

// Identity returns its input. It is useful to check an encode/decode round trip.
type Identity struct{}

// Predict returns a copy of question.
func (Identity) Predict(ctx context.Context, question [][]float32) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return mapValues(question, func(v float32) float32 { return v }), nil
}

// Close is a no-op.
func (Identity) Close() error { return nil }

// Retrieval answers with the stored answer of the closest stored question.
// It serves as a model when no trained network is available.
type Retrieval struct {
	questions [][]float32
	answers   [][][]float32
	length    int
	dims      int
}

// NewRetrieval builds a retrieval model from an encoded corpus.
func NewRetrieval(pairs []models.EncodedPair) (*Retrieval, error) {
	if len(pairs) == 0 {
		return nil, errors.New("retrieval model needs at least one encoded pair")
	}
	r := &Retrieval{length: len(pairs[0].Question)}
	if r.length > 0 {
		r.dims = len(pairs[0].Question[0])
	}
	for i, p := range pairs {
		q, err := r.flatten(p.Question)
		if err != nil {
			return nil, fmt.Errorf("pair %d question: %w", i, err)
		}
		if _, err := r.flatten(p.Answer); err != nil {
			return nil, fmt.Errorf("pair %d answer: %w", i, err)
		}
		r.questions = append(r.questions, q)
		r.answers = append(r.answers, Scale(p.Answer))
	}
	return r, nil
}

// flatten checks shape and returns the scaled values of a as one row.
func (r *Retrieval) flatten(a [][]float32) ([]float32, error) {
	if len(a) != r.length {
		return nil, fmt.Errorf("%w: %d frames, want %d", ErrShape, len(a), r.length)
	}
	out := make([]float32, 0, r.length*r.dims)
	for _, row := range a {
		if len(row) != r.dims {
			return nil, fmt.Errorf("%w: %d dimensions, want %d", ErrShape, len(row), r.dims)
		}
		for _, v := range row {
			out = append(out, (v+1)/2)
		}
	}
	return out, nil
}

// Predict expects a scaled question and returns the scaled answer of the nearest stored question.
func (r *Retrieval) Predict(ctx context.Context, question [][]float32) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(question) != r.length {
		return nil, fmt.Errorf("%w: %d frames, want %d", ErrShape, len(question), r.length)
	}
	in := make([]float32, 0, r.length*r.dims)
	for _, row := range question {
		if len(row) != r.dims {
			return nil, fmt.Errorf("%w: %d dimensions, want %d", ErrShape, len(row), r.dims)
		}
		in = append(in, row...)
	}

	best, bestDist := 0, math.Inf(1)
	for i, q := range r.questions {
		var d float64
		for j, v := range q {
			diff := float64(v - in[j])
			d += diff * diff
		}
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return mapValues(r.answers[best], func(v float32) float32 { return v }), nil
}

// Size returns the number of stored pairs.
func (r *Retrieval) Size() int {
	return len(r.questions)
}

// Close is a no-op.
func (r *Retrieval) Close() error { return nil }
