//go:build cgo
// +build cgo

package seqmodel

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXConfig describes an exported sequence model with one [1][L][D] input and one [1][L][D] output.
type ONNXConfig struct {
	Path       string
	Library    string
	InputName  string
	OutputName string
	Length     int
	Dimensions int
}

// ONNXModel runs a sequence model with ONNX Runtime. It requires CGO and the onnxruntime library.
type ONNXModel struct {
	session      *ort.AdvancedSession
	length       int
	dimensions   int
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	mu           sync.Mutex
}

// NewONNXModel creates an ONNX sequence model. InitializeEnvironment is called if not already done.
func NewONNXModel(cfg ONNXConfig) (*ONNXModel, error) {
	if cfg.Length < 1 || cfg.Dimensions < 1 {
		return nil, fmt.Errorf("%w: length %d, dimensions %d", ErrShape, cfg.Length, cfg.Dimensions)
	}
	if cfg.InputName == "" {
		cfg.InputName = "input"
	}
	if cfg.OutputName == "" {
		cfg.OutputName = "output"
	}
	if !ort.IsInitialized() {
		if cfg.Library != "" {
			ort.SetSharedLibraryPath(cfg.Library)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	shape := ort.NewShape(1, int64(cfg.Length), int64(cfg.Dimensions))
	inputTensor, err := ort.NewTensor(shape, make([]float32, cfg.Length*cfg.Dimensions))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	outputTensor, err := ort.NewTensor(shape, make([]float32, cfg.Length*cfg.Dimensions))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		cfg.Path,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXModel{
		session:      session,
		length:       cfg.Length,
		dimensions:   cfg.Dimensions,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Predict copies question into the input tensor, runs the session and returns the output frames.
func (m *ONNXModel) Predict(ctx context.Context, question [][]float32) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(question) != m.length {
		return nil, fmt.Errorf("%w: %d frames, want %d", ErrShape, len(question), m.length)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	in := m.inputTensor.GetData()
	for i, row := range question {
		if len(row) != m.dimensions {
			return nil, fmt.Errorf("%w: %d dimensions, want %d", ErrShape, len(row), m.dimensions)
		}
		copy(in[i*m.dimensions:], row)
	}

	if err := m.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	data := m.outputTensor.GetData()
	out := make([][]float32, m.length)
	for i := range out {
		out[i] = make([]float32, m.dimensions)
		copy(out[i], data[i*m.dimensions:(i+1)*m.dimensions])
	}
	return out, nil
}

// Close destroys the session and tensors.
func (m *ONNXModel) Close() error {
	var err error
	if m.session != nil {
		err = m.session.Destroy()
		m.session = nil
	}
	if m.inputTensor != nil {
		_ = m.inputTensor.Destroy()
		m.inputTensor = nil
	}
	if m.outputTensor != nil {
		_ = m.outputTensor.Destroy()
		m.outputTensor = nil
	}
	return err
}
