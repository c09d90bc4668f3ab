package dataset

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedPair is matched by MalformedPairError.
	ErrMalformedPair = errors.New("malformed pair")
	// ErrEmptyCorpus is returned when no pair survives preparation.
	ErrEmptyCorpus = errors.New("no usable pairs in corpus")
	// ErrNoPairs is returned when encoding a corpus with no pairs.
	ErrNoPairs = errors.New("corpus has no pairs to encode")
)

// MalformedPairError describes a corpus line that is not "question %% answer".
type MalformedPairError struct {
	Line   int
	Reason string
}

func (e *MalformedPairError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// Is makes errors.Is(err, ErrMalformedPair) true.
func (e *MalformedPairError) Is(target error) bool {
	return target == ErrMalformedPair
}
