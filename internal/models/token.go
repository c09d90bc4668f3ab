// Package models defines core data structures for tokens, framed pairs, corpora, and API payloads.
package models

import (
	"unicode"
	"unicode/utf8"
)

// Control tokens used to frame sequences. They never appear as natural vocabulary content.
const (
	TokenPad = "<PAD>"
	TokenGo  = "<GO>"
	TokenEOS = "<EOS>"
)

// TokenClass classifies a token.
type TokenClass int

const (
	ClassWord TokenClass = iota
	ClassPunctuation
	ClassControl
)

// String returns the class name.
func (c TokenClass) String() string {
	switch c {
	case ClassPunctuation:
		return "punctuation"
	case ClassControl:
		return "control"
	default:
		return "word"
	}
}

// IsControl reports whether token is one of <PAD>, <GO>, <EOS>.
func IsControl(token string) bool {
	return token == TokenPad || token == TokenGo || token == TokenEOS
}

// Classify returns the class of token. A single non-letter, non-digit rune is punctuation.
func Classify(token string) TokenClass {
	if IsControl(token) {
		return ClassControl
	}
	if utf8.RuneCountInString(token) == 1 {
		r, _ := utf8.DecodeRuneInString(token)
		if !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '_' {
			return ClassPunctuation
		}
	}
	return ClassWord
}

// Side selects question or answer handling. It is chosen once by the caller.
type Side int

const (
	SideQuestion Side = iota
	SideAnswer
)

// String returns "question" or "answer".
func (s Side) String() string {
	if s == SideAnswer {
		return "answer"
	}
	return "question"
}
