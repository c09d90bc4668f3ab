package storage

import (
	"encoding/binary"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/hyperjump/henkan/internal/models"
)

// EncodedBackend selects the EncodedStore implementation.
type EncodedBackend int

const (
	// BackendFile writes a single binary container file.
	BackendFile EncodedBackend = iota
	// BackendBadger writes one key per pair and side into a badger directory.
	BackendBadger
)

// String returns the config name of the backend.
func (b EncodedBackend) String() string {
	if b == BackendBadger {
		return "badger"
	}
	return "file"
}

// ParseEncodedBackend maps a config value to a backend.
func ParseEncodedBackend(s string) (EncodedBackend, error) {
	switch s {
	case "", "file":
		return BackendFile, nil
	case "badger":
		return BackendBadger, nil
	}
	return BackendFile, fmt.Errorf("unknown encoded backend %q", s)
}

// OpenEncodedStore opens the store for backend at path.
func OpenEncodedStore(backend EncodedBackend, path string, logger *zap.Logger) (EncodedStore, error) {
	switch backend {
	case BackendBadger:
		return OpenBadgerStore(path, false, logger)
	default:
		return NewFileStore(path), nil
	}
}

// ValidateEncoded checks that pairs match meta.
func ValidateEncoded(meta EncodedMeta, pairs []models.EncodedPair) error {
	if meta.Pairs != len(pairs) {
		return fmt.Errorf("%w: meta says %d pairs, got %d", ErrShapeMismatch, meta.Pairs, len(pairs))
	}
	for i, p := range pairs {
		if err := checkArray(p.Question, meta); err != nil {
			return fmt.Errorf("pair %d question: %w", i, err)
		}
		if err := checkArray(p.Answer, meta); err != nil {
			return fmt.Errorf("pair %d answer: %w", i, err)
		}
	}
	return nil
}

func checkArray(rows [][]float32, meta EncodedMeta) error {
	if len(rows) != meta.Length {
		return fmt.Errorf("%w: %d rows, want %d", ErrShapeMismatch, len(rows), meta.Length)
	}
	for _, row := range rows {
		if len(row) != meta.Dimensions {
			return fmt.Errorf("%w: row of %d, want %d", ErrShapeMismatch, len(row), meta.Dimensions)
		}
	}
	return nil
}

// arrayToBytes flattens an [L][D] array into little-endian float32 bytes.
func arrayToBytes(rows [][]float32, dims int) []byte {
	const size = 4
	out := make([]byte, len(rows)*dims*size)
	off := 0
	for _, row := range rows {
		for _, v := range row {
			binary.LittleEndian.PutUint32(out[off:], math.Float32bits(v))
			off += size
		}
	}
	return out
}

// bytesToArray reverses arrayToBytes.
func bytesToArray(b []byte, length, dims int) ([][]float32, error) {
	const size = 4
	if len(b) != length*dims*size {
		return nil, fmt.Errorf("%w: %d bytes for %dx%d array", ErrCorruptContainer, len(b), length, dims)
	}
	rows := make([][]float32, length)
	off := 0
	for i := range rows {
		row := make([]float32, dims)
		for j := range row {
			row[j] = math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
			off += size
		}
		rows[i] = row
	}
	return rows, nil
}
