package store

import (
	"fmt"
	"strings"
	"unicode"
)

// guardVerbatim rejects any outbound field containing a verbatim run of
// more than maxWords consecutive words from any source text. Comparison
// is case- and punctuation-insensitive, so a quoted sentence cannot
// sneak through with changed capitalization.
//
// A violation returns ErrRawTextPersist: the caller must fail the run,
// never redact and continue, so the defect is visible during testing.
func guardVerbatim(outbound, sourceTexts []string, maxWords int) error {
	if maxWords <= 0 || len(sourceTexts) == 0 {
		return nil
	}

	window := maxWords + 1
	shingles := make(map[string]struct{})
	for _, text := range sourceTexts {
		collectShingles(guardTokens(text), window, shingles)
	}
	if len(shingles) == 0 {
		return nil
	}

	for _, field := range outbound {
		words := guardTokens(field)
		for i := 0; i+window <= len(words); i++ {
			key := strings.Join(words[i:i+window], " ")
			if _, hit := shingles[key]; hit {
				return fmt.Errorf("%w: %d-word verbatim run %q", ErrRawTextPersist, window, key)
			}
		}
	}
	return nil
}

func collectShingles(words []string, window int, into map[string]struct{}) {
	for i := 0; i+window <= len(words); i++ {
		into[strings.Join(words[i:i+window], " ")] = struct{}{}
	}
}

// guardTokens lowercases and strips everything but letters and digits,
// splitting on the rest.
func guardTokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
