package bridge

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// The whole folded message must equal a phrase, apart from a polite word
// around it ("пожалуйста, стоп", "не пишите мне").
var optOutPhrases = []string{
	"стоп",
	"stop",
	"отписаться",
	"отписка",
	"unsubscribe",
	"хватит",
	"не пишите",
	"не писать",
	"больше не пишите",
	"не беспокоить",
	"не беспокойте",
	"удалите мой номер",
}

var (
	optOutLeading  = map[string]bool{"пожалуйста": true, "please": true}
	optOutTrailing = map[string]bool{"мне": true, "пожалуйста": true, "спасибо": true, "please": true}
)

var foldedOptOut = func() map[string]bool {
	out := make(map[string]bool, len(optOutPhrases))
	for _, p := range optOutPhrases {
		out[strings.Join(foldWords(p), " ")] = true
	}
	return out
}()

// IsOptOut reports whether text asks to stop the conversation.
func IsOptOut(text string) bool {
	words := foldWords(text)
	if len(words) > 0 && optOutLeading[words[0]] {
		words = words[1:]
	}
	for len(words) > 0 && optOutTrailing[words[len(words)-1]] {
		words = words[:len(words)-1]
	}
	if len(words) == 0 {
		return false
	}
	return foldedOptOut[strings.Join(words, " ")]
}

// foldWords lower-cases, strips diacritics and punctuation and splits on spaces.
func foldWords(s string) []string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// NormalizeText trims the message, unifies line breaks and collapses runs of
// horizontal whitespace.
func NormalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
