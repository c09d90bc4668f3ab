package models

import "time"

// Pair is a tokenized question/answer pair before framing. Line is the 1-based source line.
type Pair struct {
	Line     int
	Question []string
	Answer   []string
}

// FramedPair holds a question and an answer frame, both of the corpus length L.
type FramedPair struct {
	Question []string `json:"question"`
	Answer   []string `json:"answer"`
}

// EncodedPair holds the [L][D] vector arrays of one framed pair.
type EncodedPair struct {
	Question [][]float32
	Answer   [][]float32
}

// LengthStats summarizes token counts for one side of a corpus.
type LengthStats struct {
	Min    int `json:"min"`
	Max    int `json:"max"`
	Median int `json:"median"`
}

// CorpusStats holds per-run counters from corpus preparation.
type CorpusStats struct {
	Lines     int         `json:"lines"`
	Malformed int         `json:"malformed"`
	Empty     int         `json:"empty"`
	Oversize  int         `json:"oversize"`
	Kept      int         `json:"kept"`
	Questions LengthStats `json:"questions"`
	Answers   LengthStats `json:"answers"`
}

// Dropped returns the number of lines that did not become pairs.
func (s CorpusStats) Dropped() int {
	return s.Malformed + s.Empty + s.Oversize
}

// PreparedCorpus is the framed form of a corpus. Length is L for every frame.
type PreparedCorpus struct {
	ID          string       `json:"id"`
	Source      string       `json:"source,omitempty"`
	Fingerprint string       `json:"fingerprint,omitempty"`
	Length      int          `json:"length"`
	Pairs       []FramedPair `json:"-"`
	Stats       CorpusStats  `json:"stats"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Size returns the number of framed pairs.
func (c *PreparedCorpus) Size() int {
	if c == nil {
		return 0
	}
	return len(c.Pairs)
}
