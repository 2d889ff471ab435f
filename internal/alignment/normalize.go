package alignment

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// Delivery annotations from the enhanced narration track, e.g.
	// "[whispering]" or "<break time=\"1s\"/>". These are spoken-text
	// directives and never appear in the transcript.
	annotationRe = regexp.MustCompile(`\[[^\]]*\]|<[^>]*>`)
	nonTokenRe   = regexp.MustCompile(`[^a-z0-9\s]`)

	deaccenter = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// normalizeTokens reduces text to a comparable token stream: delivery
// markup removed, diacritics folded, lowercased, punctuation stripped.
func normalizeTokens(text string) []string {
	text = annotationRe.ReplaceAllString(text, " ")
	if folded, _, err := transform.String(deaccenter, text); err == nil {
		text = folded
	}
	text = strings.ToLower(text)
	text = nonTokenRe.ReplaceAllString(text, "")
	return strings.Fields(text)
}

// normalizeWord reduces a single transcript word to its comparable
// form. Words that normalize to nothing (pure punctuation) yield "".
func normalizeWord(word string) string {
	tokens := normalizeTokens(word)
	if len(tokens) == 0 {
		return ""
	}
	return strings.Join(tokens, "")
}
