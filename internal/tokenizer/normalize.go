package tokenizer

import (
	"regexp"
	"strings"

	"github.com/hyperjump/henkan/internal/models"
	"golang.org/x/text/unicode/norm"
)

type rule struct {
	re   *regexp.Regexp
	repl string
}

func r(pattern, repl string) rule {
	return rule{re: regexp.MustCompile(pattern), repl: repl}
}

// Question text loses all punctuation so only words reach the model.
var questionRules = []rule{
	r(`\.`, ""),
	r(`,`, ""),
	r(`:`, ""),
	r(`-`, " "),
	r(`;`, " "),
	r(`!`, ""),
	r(`\?`, ""),
	r(`…`, ""),
	r(`"`, ""),
	r(`'`, ""),
	r(`«|»`, ""),
	r(`ё`, "е"),
	r(`\([^()]*\)`, " "),
	r(`\({1,5}|\){1,5}`, " "),
}

// Answer text keeps sentence punctuation; it is needed to rebuild answers.
var answerRules = []rule{
	r(`:`, ""),
	r(`;`, ","),
	r(`\.{2,5}`, "…"),
	r(`"`, ""),
	r(`'`, ""),
	r(`«|»`, ""),
	r(`ё`, "е"),
	r(`\([^()]*\)`, ""),
	r(`\({1,5}|\){1,5}`, ""),
}

// Normalize lowercases text and applies the cleaning rules for side. Input is NFC-normalized
// first so decomposed letters fold the same way as composed ones.
func Normalize(side models.Side, text string) string {
	text = strings.ToLower(norm.NFC.String(text))
	rules := questionRules
	if side == models.SideAnswer {
		rules = answerRules
	}
	for _, rl := range rules {
		text = rl.re.ReplaceAllLiteralString(text, rl.repl)
	}
	return text
}

// NormalizeQuestion is Normalize(models.SideQuestion, text).
func NormalizeQuestion(text string) string {
	return Normalize(models.SideQuestion, text)
}

// NormalizeAnswer is Normalize(models.SideAnswer, text).
func NormalizeAnswer(text string) string {
	return Normalize(models.SideAnswer, text)
}
