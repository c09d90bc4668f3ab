package dataset

import (
	"fmt"

	"github.com/hyperjump/henkan/internal/framer"
	"github.com/hyperjump/henkan/internal/models"
	"github.com/hyperjump/henkan/internal/tokenizer"
)

// PrepareQuestion cleans text as a question and frames it to length. A question with
// no tokens left still frames to padding and <GO>. Too many tokens for length is an
// error matching framer.ErrOversizeSequence.
func PrepareQuestion(text string, length int) ([]string, error) {
	if length < framer.Reserved {
		return nil, fmt.Errorf("frame length %d is below %d", length, framer.Reserved)
	}
	tokens := tokenizer.Clean(models.SideQuestion, text)
	return framer.FrameQuestion(tokens, length)
}
