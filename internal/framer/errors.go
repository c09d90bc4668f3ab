package framer

import (
	"errors"
	"fmt"
)

// ErrOversizeSequence is matched by OversizeSequenceError.
var ErrOversizeSequence = errors.New("sequence longer than frame")

// OversizeSequenceError reports a token sequence that does not fit a frame of Length.
type OversizeSequenceError struct {
	Tokens int
	Length int
}

func (e *OversizeSequenceError) Error() string {
	return fmt.Sprintf("%d tokens do not fit frame length %d (max %d)", e.Tokens, e.Length, e.Length-2)
}

// Is makes errors.Is(err, ErrOversizeSequence) true.
func (e *OversizeSequenceError) Is(target error) bool {
	return target == ErrOversizeSequence
}
