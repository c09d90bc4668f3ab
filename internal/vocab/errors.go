package vocab

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrVocabularyLoad is matched by every VocabularyLoadError.
	ErrVocabularyLoad = errors.New("vocabulary load failed")
	// ErrInvalidVocabulary is returned by New for inconsistent tables.
	ErrInvalidVocabulary = errors.New("invalid vocabulary")
)

// VocabularyLoadError wraps a missing or corrupt embedding artifact.
type VocabularyLoadError struct {
	Path string
	Err  error
}

func (e *VocabularyLoadError) Error() string {
	return fmt.Sprintf("load vocabulary %s: %v", e.Path, e.Err)
}

func (e *VocabularyLoadError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrVocabularyLoad) true.
func (e *VocabularyLoadError) Is(target error) bool {
	return target == ErrVocabularyLoad
}

// UnknownTokenWarning carries tokens that were not in the vocabulary during encoding.
// It is a soft warning for the caller and never an error.
type UnknownTokenWarning struct {
	Tokens []string
}

// Empty reports whether no tokens were lost.
func (w UnknownTokenWarning) Empty() bool {
	return len(w.Tokens) == 0
}

func (w UnknownTokenWarning) String() string {
	if w.Empty() {
		return ""
	}
	return "unknown tokens: " + strings.Join(w.Tokens, ", ")
}
