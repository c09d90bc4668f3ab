// Package cli provides output formatting and progress reporting for the henkan command.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperjump/henkan/internal/dataset"
	"github.com/hyperjump/henkan/internal/models"
	"github.com/hyperjump/henkan/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" and "json".
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return OutputText, fmt.Errorf("unknown output format %q (use text or json)", s)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteFramed writes a framed question.
func WriteFramed(w io.Writer, r models.FramedResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, r)
	}
	_, err := fmt.Fprintln(w, strings.Join(r.Tokens, " "))
	return err
}

// WriteEncoded writes an encoded question. Text output shows each token with the head of its vector.
func WriteEncoded(w io.Writer, r models.EncodeResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, r)
	}
	for i, tok := range r.Tokens {
		var vec []float32
		if i < len(r.Vectors) {
			vec = r.Vectors[i]
		}
		fmt.Fprintf(w, "%-12s %s\n", tok, vectorHead(vec, 4))
	}
	writeLost(w, r.Lost)
	return nil
}

func vectorHead(v []float32, n int) string {
	parts := make([]string, 0, n+1)
	for i := 0; i < len(v) && i < n; i++ {
		parts = append(parts, fmt.Sprintf("%+.4f", v[i]))
	}
	if len(v) > n {
		parts = append(parts, fmt.Sprintf("… (%d)", len(v)))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func writeLost(w io.Writer, lost []string) {
	if len(lost) > 0 {
		fmt.Fprintf(w, "Unknown words: %s\n", strings.Join(lost, ", "))
	}
}

// WriteText writes a reconstructed answer and its lost words.
func WriteText(w io.Writer, r models.TextResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, r)
	}
	fmt.Fprintln(w, r.Text)
	writeLost(w, r.Lost)
	return nil
}

// WriteQuestions writes a known-question listing, one per line in text mode.
func WriteQuestions(w io.Writer, questions []string, format OutputFormat) error {
	if format == OutputJSON {
		if questions == nil {
			questions = []string{}
		}
		return writeJSON(w, map[string]any{"questions": questions, "count": len(questions)})
	}
	for i, q := range questions {
		fmt.Fprintf(w, "%4d  %s\n", i+1, utils.Truncate(q, 120))
	}
	return nil
}

// WriteQuestionHits writes full-text search hits.
func WriteQuestionHits(w io.Writer, hits []models.QuestionHit, format OutputFormat) error {
	if format == OutputJSON {
		if hits == nil {
			hits = []models.QuestionHit{}
		}
		return writeJSON(w, hits)
	}
	for _, h := range hits {
		fmt.Fprintf(w, "%.4f  %s\n", h.Score, h.Question)
	}
	return nil
}

// WriteNeighbors writes the nearest tokens of token.
func WriteNeighbors(w io.Writer, token string, neighbors []models.Neighbor, format OutputFormat) error {
	if format == OutputJSON {
		if neighbors == nil {
			neighbors = []models.Neighbor{}
		}
		return writeJSON(w, map[string]any{"token": token, "neighbors": neighbors})
	}
	fmt.Fprintf(w, "Nearest to %q:\n", token)
	for _, n := range neighbors {
		fmt.Fprintf(w, "  %-20s %.4f\n", n.Token, n.Similarity)
	}
	return nil
}

// WriteCorpus writes the summary of a prepared corpus.
func WriteCorpus(w io.Writer, c *models.PreparedCorpus, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, c)
	}
	s := c.Stats
	fmt.Fprintf(w, "Corpus %s (%s)\n", c.ID, c.Source)
	fmt.Fprintf(w, "  Frame length: %d\n", c.Length)
	fmt.Fprintf(w, "  Lines: %d, kept %d, dropped %d (malformed %d, empty %d, oversize %d)\n",
		s.Lines, s.Kept, s.Dropped(), s.Malformed, s.Empty, s.Oversize)
	fmt.Fprintf(w, "  Question tokens: min %d, max %d, median %d\n", s.Questions.Min, s.Questions.Max, s.Questions.Median)
	fmt.Fprintf(w, "  Answer tokens:   min %d, max %d, median %d\n", s.Answers.Min, s.Answers.Max, s.Answers.Median)
	return nil
}

// WriteEncodeResult writes the outcome of a corpus encode.
func WriteEncodeResult(w io.Writer, r dataset.EncodeResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, r)
	}
	fmt.Fprintf(w, "Encoded %d pairs of %dx%d in %s\n", r.Meta.Pairs, r.Meta.Length, r.Meta.Dimensions, r.Duration.Round(time.Millisecond))
	if r.Lost > 0 {
		fmt.Fprintf(w, "Unknown tokens: %d occurrences", r.Lost)
		if len(r.Unknown) > 0 {
			fmt.Fprintf(w, " (%s)", utils.Truncate(strings.Join(r.Unknown, ", "), 200))
		}
		fmt.Fprintln(w)
	}
	return nil
}
