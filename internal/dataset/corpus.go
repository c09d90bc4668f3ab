package dataset

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/henkan/internal/extract"
	"github.com/hyperjump/henkan/internal/framer"
	"github.com/hyperjump/henkan/internal/models"
	"github.com/hyperjump/henkan/internal/tokenizer"
)

// maxLineBytes caps a corpus line. Longer lines are skipped as malformed.
const maxLineBytes = 1 << 20

// lineReader yields the lines of a corpus without holding more than maxLineBytes of one.
type lineReader struct {
	r   *bufio.Reader
	buf []byte
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReaderSize(r, 64*1024)}
}

// next returns the next line without its terminator. overlong reports a line past
// maxLineBytes, whose text is dropped. io.EOF ends the input.
func (lr *lineReader) next() (line string, overlong bool, err error) {
	lr.buf = lr.buf[:0]
	started := false
	for {
		chunk, more, err := lr.r.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) && started {
				break
			}
			return "", false, err
		}
		started = true
		if !overlong && len(lr.buf)+len(chunk) <= maxLineBytes {
			lr.buf = append(lr.buf, chunk...)
		} else {
			overlong = true
			lr.buf = lr.buf[:0]
		}
		if !more {
			break
		}
	}
	return string(lr.buf), overlong, nil
}

// RawPair is one corpus line split into trimmed question and answer text.
type RawPair struct {
	Line     int
	Question string
	Answer   string
}

// ParseCorpus splits every line of r on "%%". Lines without exactly two fields, or
// longer than maxLineBytes, are counted as malformed; lines with an empty field are counted as empty. Neither stops parsing.
func (c *Codec) ParseCorpus(r io.Reader) ([]RawPair, models.CorpusStats, error) {
	var stats models.CorpusStats
	var pairs []RawPair
	lr := newLineReader(r)
	for {
		line, overlong, err := lr.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("read corpus: %w", err)
		}
		stats.Lines++
		if stats.Lines == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		var p RawPair
		if overlong {
			err = &MalformedPairError{Line: stats.Lines, Reason: fmt.Sprintf("longer than %d bytes", maxLineBytes)}
		} else {
			p, err = parseLine(stats.Lines, line)
		}
		if err != nil {
			stats.Malformed++
			c.logger.Debug("skipping malformed pair", zap.Error(err))
			continue
		}
		if p.Question == "" || p.Answer == "" {
			stats.Empty++
			continue
		}
		pairs = append(pairs, p)
	}
	return pairs, stats, nil
}

func parseLine(n int, line string) (RawPair, error) {
	if strings.TrimSpace(line) == "" {
		return RawPair{}, &MalformedPairError{Line: n, Reason: "blank line"}
	}
	fields := strings.Split(line, extract.PairSeparator)
	if len(fields) != 2 {
		reason := "missing separator"
		if len(fields) > 2 {
			reason = fmt.Sprintf("%d separators", len(fields)-1)
		}
		return RawPair{}, &MalformedPairError{Line: n, Reason: reason}
	}
	return RawPair{
		Line:     n,
		Question: strings.TrimSpace(fields[0]),
		Answer:   strings.TrimSpace(fields[1]),
	}, nil
}

// PrepareCorpus parses, cleans, filters and frames every pair of r. Pairs that clean to
// nothing count as empty; pairs with more than MaxTokens tokens on a side count as
// oversize. It returns ErrEmptyCorpus when no pair is left.
func (c *Codec) PrepareCorpus(ctx context.Context, r io.Reader) (*models.PreparedCorpus, error) {
	h, _ := blake2b.New(32, nil)
	raw, stats, err := c.ParseCorpus(io.TeeReader(r, h))
	if err != nil {
		return nil, err
	}

	pairs := make([]models.Pair, 0, len(raw))
	for _, rp := range raw {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q := tokenizer.Clean(models.SideQuestion, rp.Question)
		a := tokenizer.Clean(models.SideAnswer, rp.Answer)
		if len(q) == 0 || len(a) == 0 {
			stats.Empty++
			continue
		}
		if len(q) > c.maxTokens || len(a) > c.maxTokens {
			stats.Oversize++
			c.logger.Debug("skipping oversize pair",
				zap.Int("line", rp.Line),
				zap.Int("question_tokens", len(q)),
				zap.Int("answer_tokens", len(a)))
			continue
		}
		pairs = append(pairs, models.Pair{Line: rp.Line, Question: q, Answer: a})
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: %d lines, %d malformed, %d empty, %d oversize",
			ErrEmptyCorpus, stats.Lines, stats.Malformed, stats.Empty, stats.Oversize)
	}

	length := framer.DetermineLength(pairs)
	framed := make([]models.FramedPair, len(pairs))
	for i, p := range pairs {
		fp, err := framer.FramePair(p, length)
		if err != nil {
			return nil, fmt.Errorf("frame line %d: %w", p.Line, err)
		}
		framed[i] = fp
	}
	stats.Kept = len(framed)
	stats.Questions, stats.Answers = lengthStats(pairs)

	corpus := &models.PreparedCorpus{
		ID:          uuid.New().String(),
		Fingerprint: hex.EncodeToString(h.Sum(nil)),
		Length:      length,
		Pairs:       framed,
		Stats:       stats,
		CreatedAt:   time.Now().UTC(),
	}
	c.logger.Info("corpus prepared",
		zap.String("corpus_id", corpus.ID),
		zap.Int("lines", stats.Lines),
		zap.Int("kept", stats.Kept),
		zap.Int("malformed", stats.Malformed),
		zap.Int("empty", stats.Empty),
		zap.Int("oversize", stats.Oversize),
		zap.Int("length", length))
	return corpus, nil
}

// PrepareFile reads the corpus at path, extracting text from documents and
// spreadsheets first, and prepares it.
func (c *Codec) PrepareFile(ctx context.Context, path string) (*models.PreparedCorpus, error) {
	text, err := c.extractor.Extract(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}
	corpus, err := c.PrepareCorpus(ctx, strings.NewReader(text))
	if err != nil {
		return nil, err
	}
	corpus.Source = path
	return corpus, nil
}

// Fingerprint returns the hex BLAKE2b-256 of the corpus text at path, after extraction.
// It matches PreparedCorpus.Fingerprint for the same file.
func (c *Codec) Fingerprint(path string) (string, error) {
	text, err := c.extractor.Extract(path)
	if err != nil {
		return "", err
	}
	h, _ := blake2b.New(32, nil)
	io.WriteString(h, text)
	return hex.EncodeToString(h.Sum(nil)), nil
}

func lengthStats(pairs []models.Pair) (models.LengthStats, models.LengthStats) {
	q := make([]int, len(pairs))
	a := make([]int, len(pairs))
	for i, p := range pairs {
		q[i] = len(p.Question)
		a[i] = len(p.Answer)
	}
	return summarize(q), summarize(a)
}

func summarize(counts []int) models.LengthStats {
	if len(counts) == 0 {
		return models.LengthStats{}
	}
	sort.Ints(counts)
	n := len(counts)
	median := counts[n/2]
	if n%2 == 0 {
		median = (counts[n/2-1] + counts[n/2]) / 2
	}
	return models.LengthStats{Min: counts[0], Max: counts[n-1], Median: median}
}

// ListKnownQuestions returns the trimmed question field of every line of r, skipping
// empty ones, in file order. limit caps the result when positive.
func ListKnownQuestions(r io.Reader, limit int) ([]string, error) {
	var out []string
	lr := newLineReader(r)
	for {
		line, overlong, err := lr.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read corpus: %w", err)
		}
		if overlong {
			continue
		}
		q, _, _ := strings.Cut(line, extract.PairSeparator)
		q = strings.TrimSpace(strings.TrimPrefix(q, "\ufeff"))
		if q == "" {
			continue
		}
		out = append(out, q)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// KnownQuestionsFile lists known questions of the corpus at path.
func (c *Codec) KnownQuestionsFile(path string, limit int) ([]string, error) {
	text, err := c.extractor.Extract(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", filepath.Base(path), err)
	}
	return ListKnownQuestions(strings.NewReader(text), limit)
}
