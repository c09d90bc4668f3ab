// Package framer pads token sequences to the fixed corpus length with control tokens.
//
// A question frame is left-padded and reversed so the last words sit next to <GO>:
//
//	<PAD> ... <PAD> tN ... t1 <GO>
//
// An answer frame keeps word order and is right-padded after <EOS>:
//
//	t1 ... tN <EOS> <PAD> ... <PAD>
package framer

import (
	"github.com/hyperjump/henkan/internal/models"
	"github.com/hyperjump/henkan/internal/tokenizer"
)

// Reserved is the number of control slots every frame carries besides padding.
const Reserved = 2

// DetermineLength returns the longest side over all pairs plus Reserved, or 0 for no pairs.
func DetermineLength(pairs []models.Pair) int {
	if len(pairs) == 0 {
		return 0
	}
	longest := 0
	for _, p := range pairs {
		longest = max(longest, len(p.Question), len(p.Answer))
	}
	return longest + Reserved
}

// Fits reports whether n tokens fit a frame of length.
func Fits(n, length int) bool {
	return n <= length-Reserved
}

// FrameQuestion reverses tokens, left-pads them with <PAD> and appends <GO>.
func FrameQuestion(tokens []string, length int) ([]string, error) {
	if !Fits(len(tokens), length) {
		return nil, &OversizeSequenceError{Tokens: len(tokens), Length: length}
	}
	frame := make([]string, 0, length)
	for i := 0; i < length-1-len(tokens); i++ {
		frame = append(frame, models.TokenPad)
	}
	frame = append(frame, tokenizer.Reverse(tokens)...)
	return append(frame, models.TokenGo), nil
}

// FrameAnswer appends <EOS> to tokens and right-pads with <PAD>.
func FrameAnswer(tokens []string, length int) ([]string, error) {
	if !Fits(len(tokens), length) {
		return nil, &OversizeSequenceError{Tokens: len(tokens), Length: length}
	}
	frame := make([]string, 0, length)
	frame = append(frame, tokens...)
	frame = append(frame, models.TokenEOS)
	for len(frame) < length {
		frame = append(frame, models.TokenPad)
	}
	return frame, nil
}

// FramePair frames both sides of p.
func FramePair(p models.Pair, length int) (models.FramedPair, error) {
	q, err := FrameQuestion(p.Question, length)
	if err != nil {
		return models.FramedPair{}, err
	}
	a, err := FrameAnswer(p.Answer, length)
	if err != nil {
		return models.FramedPair{}, err
	}
	return models.FramedPair{Question: q, Answer: a}, nil
}

// Content returns the tokens of a frame that are not control tokens, in frame order.
func Content(frame []string) []string {
	out := make([]string, 0, len(frame))
	for _, t := range frame {
		if !models.IsControl(t) {
			out = append(out, t)
		}
	}
	return out
}
