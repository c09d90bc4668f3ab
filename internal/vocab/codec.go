package vocab

import "github.com/hyperjump/henkan/internal/models"

// FillerMode selects where the filler vector goes when a token is missing.
type FillerMode int

const (
	// FillerInPlace puts the filler at the missing token's own position.
	FillerInPlace FillerMode = iota
	// FillerAtFront prepends the filler and shifts known vectors right, as older
	// artifacts were produced. Row count still equals the sequence length.
	FillerAtFront
)

// String returns "in-place" or "front".
func (m FillerMode) String() string {
	if m == FillerAtFront {
		return "front"
	}
	return "in-place"
}

// ParseFillerMode maps a config value to a FillerMode. Unknown values select FillerInPlace.
func ParseFillerMode(s string) FillerMode {
	if s == "front" {
		return FillerAtFront
	}
	return FillerInPlace
}

// Filler returns the vector used for tokens outside the vocabulary: a copy of the
// <PAD> vector, or zeros when <PAD> is absent.
func (v *Vocabulary) Filler() []float32 {
	if vec, ok := v.Vector(models.TokenPad); ok {
		return vec
	}
	return make([]float32, v.dimensions)
}

// Encode maps every token of seq to a vector. It never fails: tokens outside the
// vocabulary are returned as lost and replaced by Filler according to mode.
func (v *Vocabulary) Encode(seq []string, mode FillerMode) ([][]float32, []string) {
	var lost []string
	out := make([][]float32, 0, len(seq))
	front := 0
	for _, tok := range seq {
		vec, ok := v.Vector(tok)
		if ok {
			out = append(out, vec)
			continue
		}
		lost = append(lost, tok)
		if mode == FillerAtFront {
			front++
			continue
		}
		out = append(out, v.Filler())
	}
	if front > 0 {
		fillers := make([][]float32, front, len(seq))
		for i := range fillers {
			fillers[i] = v.Filler()
		}
		out = append(fillers, out...)
	}
	return out, lost
}

// Decode maps each vector to its nearest token.
func (v *Vocabulary) Decode(vectors [][]float32) []string {
	out := make([]string, len(vectors))
	for i, vec := range vectors {
		out[i] = v.Nearest(vec)
	}
	return out
}
