package feature

import (
	"strings"
	"unicode"
)

// Words tokenizes text into lowercase word tokens using locale-agnostic
// rules: a word is a run of letters/digits, with apostrophes kept when
// they sit inside a word (so "don't" survives as one token).
func Words(text string) []string {
	var words []string
	var current strings.Builder

	runes := []rune(strings.ToLower(text))
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			current.WriteRune(r)
		case (r == '\'' || r == '’') && current.Len() > 0 && i+1 < len(runes) && unicode.IsLetter(runes[i+1]):
			// normalize curly apostrophes so suffix checks work
			current.WriteRune('\'')
		default:
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}
	return words
}

// Sentences splits text on sentence-terminal punctuation (. ! ?),
// collapsing runs of terminators. Fragments without terminal punctuation
// at end-of-text still count as a sentence when non-empty.
func Sentences(text string) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		s := strings.TrimSpace(current.String())
		if s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	for _, r := range text {
		switch r {
		case '.', '!', '?':
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()

	return sentences
}

// isContraction reports whether a token ends with a register-signaling
// contraction suffix.
func isContraction(word string) bool {
	for _, suf := range contractionSuffixes {
		if strings.HasSuffix(word, suf) {
			return true
		}
	}
	return false
}
