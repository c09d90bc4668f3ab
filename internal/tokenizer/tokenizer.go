// Package tokenizer normalizes question and answer text and splits it into tokens.
package tokenizer

import (
	"strings"
	"unicode"

	"github.com/hyperjump/henkan/internal/models"
)

// Tokenize splits text at every non-word rune. Each non-word rune becomes its own token,
// whitespace is dropped, and a trailing "." is removed when more than one token remains.
// Word runes are letters, numbers, and '_'.
func Tokenize(text string) []string {
	var tokens []string
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}
	for _, r := range text {
		if isWordRune(r) {
			word.WriteRune(r)
			continue
		}
		flush()
		if !unicode.IsSpace(r) {
			tokens = append(tokens, string(r))
		}
	}
	flush()
	if len(tokens) > 1 && tokens[len(tokens)-1] == "." {
		tokens = tokens[:len(tokens)-1]
	}
	return tokens
}

// Clean normalizes text for side and tokenizes it. An empty result means the text
// had no usable content after cleaning.
func Clean(side models.Side, text string) []string {
	return Tokenize(Normalize(side, text))
}

// Reverse returns a reversed copy of tokens.
func Reverse(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[len(tokens)-1-i] = t
	}
	return out
}

// JoinTokens joins tokens with a single space.
func JoinTokens(tokens []string) string {
	return strings.Join(tokens, " ")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_'
}
