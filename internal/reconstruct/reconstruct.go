// Package reconstruct turns decoded answer tokens into a presentable sentence.
package reconstruct

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hyperjump/henkan/internal/models"
)

type rule struct {
	re   *regexp.Regexp
	repl string
}

func r(pattern, repl string) rule {
	return rule{re: regexp.MustCompile(pattern), repl: repl}
}

var (
	glueRule = r(`\s+([,.!?…])`, "$1")

	collapseRules = []rule{
		r(`,{2,5}`, ","),
		r(`!{2,5}`, "!"),
		r(`\?{2,5}`, "?"),
	}

	// Terminal marks win over '.', '.' wins over ','.
	compoundRules = []rule{
		r(`\.,{1,5}`, "."),
		r(`\.\?{1,5}`, "?"),
		r(`,\.{1,5}`, "."),
		r(`,\?{1,5}`, "?"),
		r(`\.!{1,5}`, "!"),
		r(`,!{1,5}`, "!"),
		r(`!,{1,5}`, "!"),
		r(`!\.{1,5}`, "!"),
		r(`\?,{1,5}`, "?"),
		r(`\?\.{1,5}`, "?"),
	}
)

// Empty is returned when nothing presentable is left.
const Empty = "…"

// Reconstruct truncates tokens at the first <EOS>, drops control tokens, joins the rest
// with spaces and cleans the result with ReconstructText.
func Reconstruct(tokens []string) string {
	words := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t == models.TokenEOS {
			break
		}
		if !models.IsControl(t) {
			words = append(words, t)
		}
	}
	return ReconstructText(strings.Join(words, " "))
}

// ReconstructText glues punctuation to words, removes repeated and compound marks,
// capitalizes sentence starts and trims stray punctuation. It never fails.
func ReconstructText(s string) string {
	s = glueRule.re.ReplaceAllString(s, glueRule.repl)
	for _, rl := range collapseRules {
		s = rl.re.ReplaceAllLiteralString(s, rl.repl)
	}
	for _, rl := range compoundRules {
		s = rl.re.ReplaceAllLiteralString(s, rl.repl)
	}
	s = capitalize(s)
	return trim(s)
}

func isTerminal(r rune) bool {
	return r == '!' || r == '?' || r == '.' || r == '…'
}

func isMark(r rune) bool {
	return isTerminal(r) || r == ','
}

// capitalize uppercases a lowercase letter that follows a terminal mark and one space.
// Uppercasing never creates or removes a "mark space" pair, so one pass reaches the fixed point.
func capitalize(s string) string {
	runes := []rune(s)
	changed := false
	for i := 0; i+2 < len(runes); i++ {
		if isTerminal(runes[i]) && runes[i+1] == ' ' && unicode.IsLower(runes[i+2]) {
			runes[i+2] = unicode.ToUpper(runes[i+2])
			changed = true
		}
	}
	if !changed {
		return s
	}
	return string(runes)
}

func trim(s string) string {
	if first, size := utf8.DecodeRuneInString(s); isMark(first) && strings.HasPrefix(s[size:], " ") {
		rest := s[size+1:]
		if r, n := utf8.DecodeRuneInString(rest); n > 0 {
			rest = string(unicode.ToLower(r)) + rest[n:]
		}
		s = rest
	}
	s = strings.TrimSuffix(s, ",")
	s = strings.TrimLeftFunc(s, isMark)
	s = strings.TrimSpace(s)
	if s == "" {
		return Empty
	}
	return s
}
