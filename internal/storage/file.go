package storage

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hyperjump/henkan/internal/models"
)

const (
	containerMagic   = "HNKE"
	containerVersion = uint32(1)

	maxCorpusIDBytes = 1 << 10
	maxFrameLength   = 1 << 16
	maxDimensions    = 1 << 16
)

// FileStore keeps an encoded corpus in one binary container:
//
//	magic "HNKE" | version u32 | id len u32 | id | pairs u32 | L u32 | D u32
//	questions [pairs][L][D]f32 | answers [pairs][L][D]f32
//
// All integers and floats are little-endian.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the container path.
func (s *FileStore) Path() string { return s.path }

// WriteEncoded writes the container atomically through a temporary file.
func (s *FileStore) WriteEncoded(ctx context.Context, meta EncodedMeta, pairs []models.EncodedPair) error {
	if err := ValidateEncoded(meta, pairs); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create encoded dir: %w", err)
	}
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create encoded file: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := writeContainer(ctx, w, meta, pairs); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, s.path)
}

func writeContainer(ctx context.Context, w io.Writer, meta EncodedMeta, pairs []models.EncodedPair) error {
	if _, err := io.WriteString(w, containerMagic); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	header := []uint32{containerVersion, uint32(len(meta.CorpusID))}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := io.WriteString(w, meta.CorpusID); err != nil {
		return fmt.Errorf("write corpus id: %w", err)
	}
	shape := []uint32{uint32(meta.Pairs), uint32(meta.Length), uint32(meta.Dimensions)}
	if err := binary.Write(w, binary.LittleEndian, shape); err != nil {
		return fmt.Errorf("write shape: %w", err)
	}
	for _, side := range []models.Side{models.SideQuestion, models.SideAnswer} {
		for _, p := range pairs {
			if err := ctx.Err(); err != nil {
				return err
			}
			rows := p.Question
			if side == models.SideAnswer {
				rows = p.Answer
			}
			if _, err := w.Write(arrayToBytes(rows, meta.Dimensions)); err != nil {
				return fmt.Errorf("write %s block: %w", side, err)
			}
		}
	}
	return nil
}

// ReadEncoded reads the whole container. A missing file is ErrNotFound.
func (s *FileStore) ReadEncoded(ctx context.Context) (EncodedMeta, []models.EncodedPair, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return EncodedMeta{}, nil, fmt.Errorf("encoded corpus %s: %w", s.path, ErrNotFound)
		}
		return EncodedMeta{}, nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return EncodedMeta{}, nil, err
	}
	return readContainer(ctx, bufio.NewReader(f), info.Size())
}

// readContainer parses a container of size bytes. Header fields are checked against
// size before anything is allocated from them.
func readContainer(ctx context.Context, r io.Reader, size int64) (EncodedMeta, []models.EncodedPair, error) {
	var meta EncodedMeta
	magic := make([]byte, len(containerMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != containerMagic {
		return meta, nil, fmt.Errorf("%w: bad magic", ErrCorruptContainer)
	}
	var header [2]uint32
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return meta, nil, fmt.Errorf("%w: read header: %v", ErrCorruptContainer, err)
	}
	if header[0] != containerVersion {
		return meta, nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptContainer, header[0])
	}
	if header[1] > maxCorpusIDBytes {
		return meta, nil, fmt.Errorf("%w: corpus id of %d bytes", ErrCorruptContainer, header[1])
	}
	id := make([]byte, header[1])
	if _, err := io.ReadFull(r, id); err != nil {
		return meta, nil, fmt.Errorf("%w: read corpus id: %v", ErrCorruptContainer, err)
	}
	var shape [3]uint32
	if err := binary.Read(r, binary.LittleEndian, &shape); err != nil {
		return meta, nil, fmt.Errorf("%w: read shape: %v", ErrCorruptContainer, err)
	}
	if shape[1] > maxFrameLength || shape[2] > maxDimensions {
		return meta, nil, fmt.Errorf("%w: shape %dx%d out of range", ErrCorruptContainer, shape[1], shape[2])
	}
	block := 2 * int64(shape[1]) * int64(shape[2]) * 4
	remaining := size - int64(len(containerMagic)+8) - int64(header[1]) - 12
	if block == 0 || remaining < 0 || remaining%block != 0 || remaining/block != int64(shape[0]) {
		return meta, nil, fmt.Errorf("%w: shape %dx%dx%d does not match %d data bytes",
			ErrCorruptContainer, shape[0], shape[1], shape[2], remaining)
	}
	meta = EncodedMeta{
		CorpusID:   string(id),
		Pairs:      int(shape[0]),
		Length:     int(shape[1]),
		Dimensions: int(shape[2]),
	}
	pairs := make([]models.EncodedPair, meta.Pairs)
	buf := make([]byte, meta.Length*meta.Dimensions*4)
	for _, side := range []models.Side{models.SideQuestion, models.SideAnswer} {
		for i := range pairs {
			if err := ctx.Err(); err != nil {
				return meta, nil, err
			}
			if _, err := io.ReadFull(r, buf); err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					return meta, nil, fmt.Errorf("%w: truncated %s block", ErrCorruptContainer, side)
				}
				return meta, nil, err
			}
			rows, err := bytesToArray(buf, meta.Length, meta.Dimensions)
			if err != nil {
				return meta, nil, err
			}
			if side == models.SideQuestion {
				pairs[i].Question = rows
			} else {
				pairs[i].Answer = rows
			}
		}
	}
	return meta, pairs, nil
}

// Close is a no-op for FileStore.
func (s *FileStore) Close() error {
	return nil
}
