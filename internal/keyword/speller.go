package keyword

import (
	"sort"
	"strings"
	"sync"
)

// Suggestion is a known term close to a query term.
type Suggestion struct {
	Term      string
	Distance  int
	Frequency int
}

// Correction is the outcome of checking a query against the question dictionary.
type Correction struct {
	Query      string   `json:"query"`
	Suggested  string   `json:"suggested"`
	Misspelled []string `json:"misspelled,omitempty"`
}

// Changed reports whether any term was replaced.
func (c Correction) Changed() bool {
	return len(c.Misspelled) > 0
}

// Speller suggests corrections for question search queries from the indexed terms.
type Speller struct {
	dictionary  TermDictionary
	maxDistance int

	mu    sync.RWMutex
	terms []string
	set   map[string]struct{}
	valid bool
}

// SpellerOption configures a Speller.
type SpellerOption func(*Speller)

// WithMaxDistance sets the maximum edit distance for suggestions.
func WithMaxDistance(d int) SpellerOption {
	return func(s *Speller) {
		if d > 0 {
			s.maxDistance = d
		}
	}
}

// NewSpeller creates a Speller over dict.
func NewSpeller(dict TermDictionary, opts ...SpellerOption) *Speller {
	s := &Speller{dictionary: dict, maxDistance: DefaultFuzziness}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Invalidate drops the cached terms. Call it after the index is rebuilt.
func (s *Speller) Invalidate() {
	s.mu.Lock()
	s.valid = false
	s.mu.Unlock()
}

func (s *Speller) load() error {
	s.mu.RLock()
	valid := s.valid
	s.mu.RUnlock()
	if valid {
		return nil
	}

	terms, err := s.dictionary.AllTerms()
	if err != nil {
		return err
	}
	set := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		set[t] = struct{}{}
	}

	s.mu.Lock()
	s.terms, s.set, s.valid = terms, set, true
	s.mu.Unlock()
	return nil
}

// Suggest returns known terms within the maximum distance of term, closest and most frequent first.
func (s *Speller) Suggest(term string, limit int) ([]Suggestion, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	term = strings.ToLower(term)
	target := []rune(term)

	s.mu.RLock()
	terms := s.terms
	s.mu.RUnlock()

	var out []Suggestion
	for _, known := range terms {
		if known == term {
			continue
		}
		d := editDistance(target, []rune(known), s.maxDistance)
		if d > s.maxDistance {
			continue
		}
		freq, err := s.dictionary.TermFrequency(known)
		if err != nil {
			return nil, err
		}
		out = append(out, Suggestion{Term: known, Distance: d, Frequency: freq})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].Term < out[j].Term
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Check replaces every unknown query term by its best suggestion.
func (s *Speller) Check(query string) (Correction, error) {
	if err := s.load(); err != nil {
		return Correction{}, err
	}
	c := Correction{Query: query}
	terms := queryTerms(query)
	fixed := make([]string, 0, len(terms))
	for _, term := range terms {
		s.mu.RLock()
		_, known := s.set[term]
		s.mu.RUnlock()
		if known {
			fixed = append(fixed, term)
			continue
		}
		suggestions, err := s.Suggest(term, 1)
		if err != nil {
			return Correction{}, err
		}
		if len(suggestions) == 0 {
			fixed = append(fixed, term)
			continue
		}
		c.Misspelled = append(c.Misspelled, term)
		fixed = append(fixed, suggestions[0].Term)
	}
	c.Suggested = strings.Join(fixed, " ")
	return c, nil
}

// editDistance is the Levenshtein distance of a and b. It returns limit+1 as soon as
// the distance is known to exceed limit.
func editDistance(a, b []rune, limit int) int {
	if abs(len(a)-len(b)) > limit {
		return limit + 1
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		best := curr[0]
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
			best = min(best, curr[j])
		}
		if best > limit {
			return limit + 1
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
