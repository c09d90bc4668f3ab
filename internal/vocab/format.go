package vocab

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultReportNeighbors is the number of neighbours per token in the diagnostics report.
const DefaultReportNeighbors = 4

// Save writes the table in word2vec binary format: a "<count> <dim>" header line, then
// for every token the token, a space, dim little-endian float32 values and a newline.
func (v *Vocabulary) Save(path string) error {
	return writeFile(path, func(w *bufio.Writer) error {
		if _, err := fmt.Fprintf(w, "%d %d\n", len(v.tokens), v.dimensions); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		for i, tok := range v.tokens {
			if strings.ContainsAny(tok, " \n") {
				return fmt.Errorf("token %q contains a separator", tok)
			}
			if _, err := w.WriteString(tok + " "); err != nil {
				return fmt.Errorf("write token: %w", err)
			}
			if _, err := w.Write(float32SliceToBytes(v.vectors[i])); err != nil {
				return fmt.Errorf("write vector: %w", err)
			}
			if err := w.WriteByte('\n'); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load reads a table written by Save. Every failure is a *VocabularyLoadError.
func Load(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &VocabularyLoadError{Path: path, Err: err}
	}
	defer f.Close()
	v, err := Read(f)
	if err != nil {
		return nil, &VocabularyLoadError{Path: path, Err: err}
	}
	return v, nil
}

// MaxDimensions is the widest vector a table may declare.
const MaxDimensions = 1 << 16

const preallocTokens = 1 << 16

// Read parses the word2vec binary format from r.
func Read(r io.Reader) (*Vocabulary, error) {
	br := bufio.NewReader(r)
	header, err := br.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	fields := strings.Fields(header)
	if len(fields) != 2 {
		return nil, fmt.Errorf("malformed header %q", strings.TrimSpace(header))
	}
	count, err := strconv.Atoi(fields[0])
	if err != nil || count < 0 {
		return nil, fmt.Errorf("malformed count %q", fields[0])
	}
	dim, err := strconv.Atoi(fields[1])
	if err != nil || dim <= 0 || dim > MaxDimensions {
		return nil, fmt.Errorf("malformed dimension %q", fields[1])
	}
	// The count is untrusted: grow from a bounded capacity instead of preallocating it.
	hint := min(count, preallocTokens)
	tokens := make([]string, 0, hint)
	vectors := make([][]float32, 0, hint)
	buf := make([]byte, dim*4)
	for i := 0; i < count; i++ {
		tok, err := br.ReadString(' ')
		if err != nil {
			return nil, fmt.Errorf("read token %d: %w", i, unexpected(err))
		}
		tok = strings.TrimLeft(strings.TrimSuffix(tok, " "), "\n")
		if tok == "" {
			return nil, fmt.Errorf("empty token at %d", i)
		}
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("read vector %q: %w", tok, unexpected(err))
		}
		tokens = append(tokens, tok)
		vectors = append(vectors, bytesToFloat32Slice(buf))
	}
	return New(tokens, vectors)
}

// WriteListing writes one token per line in table order.
func (v *Vocabulary) WriteListing(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, tok := range v.tokens {
		if _, err := bw.WriteString(tok + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteNeighborsReport writes "token\tn1 n2 ..." with the k nearest neighbours of every token.
func (v *Vocabulary) WriteNeighborsReport(w io.Writer, k int) error {
	bw := bufio.NewWriter(w)
	for _, tok := range v.tokens {
		neighbors, _ := v.MostSimilar(tok, k)
		names := make([]string, len(neighbors))
		for i, n := range neighbors {
			names[i] = n.Token
		}
		if _, err := fmt.Fprintf(bw, "%s\t%s\n", tok, strings.Join(names, " ")); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SaveListing writes the listing to path.
func (v *Vocabulary) SaveListing(path string) error {
	return writeFile(path, func(w *bufio.Writer) error { return v.WriteListing(w) })
}

// SaveNeighborsReport writes the diagnostics report to path.
func (v *Vocabulary) SaveNeighborsReport(path string, k int) error {
	return writeFile(path, func(w *bufio.Writer) error { return v.WriteNeighborsReport(w, k) })
}

func writeFile(path string, fn func(w *bufio.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create vocabulary dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	if err := fn(w); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
