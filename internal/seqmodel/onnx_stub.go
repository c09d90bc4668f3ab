//go:build !cgo
// +build !cgo

package seqmodel

import (
	"context"
	"errors"
)

// ONNXConfig describes an exported sequence model (see onnx.go).
type ONNXConfig struct {
	Path       string
	Library    string
	InputName  string
	OutputName string
	Length     int
	Dimensions int
}

// ONNXModel stub type when built without CGO (see onnx.go for real implementation).
type ONNXModel struct{}

// NewONNXModel returns an error when built without CGO (ONNX not available).
func NewONNXModel(_ ONNXConfig) (*ONNXModel, error) {
	return nil, errors.New("ONNX sequence model requires CGO; build with CGO_ENABLED=1 and onnxruntime")
}

// Predict always fails.
func (m *ONNXModel) Predict(_ context.Context, _ [][]float32) ([][]float32, error) {
	return nil, ErrNoModel
}

// Close is a no-op.
func (m *ONNXModel) Close() error { return nil }
