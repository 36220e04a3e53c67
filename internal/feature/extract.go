// Package feature computes the quantitative linguistic statistics behind
// a voice profile: function-word frequencies, sentence rhythm, lexical
// richness, signature phrases, and register scores.
//
// Extraction operates only on documents that already passed the content
// filter, and its output never references raw text beyond the counted
// marker phrases (at most 3 words each).
package feature

import (
	"sort"
	"strings"

	"github.com/oklo/voiceprint/internal/filter"
)

// Config holds the extraction tunables.
type Config struct {
	// SignatureMinCount is the minimum corpus-wide count for a marker
	// phrase to be reported. Default 3.
	SignatureMinCount int

	// ScoreCeilingPerThousand is the marker-hit rate (per 1000 words) at
	// which a register score saturates at 1.0. Default 25.
	ScoreCeilingPerThousand float64

	// TechnicalWords overrides the built-in technical vocabulary.
	TechnicalWords []string
}

// Normalize applies defaults for unset fields.
func (c *Config) Normalize() {
	if c.SignatureMinCount <= 0 {
		c.SignatureMinCount = 3
	}
	if c.ScoreCeilingPerThousand <= 0 {
		c.ScoreCeilingPerThousand = 25
	}
}

// PhraseCount is one signature phrase with its corpus-wide count.
type PhraseCount struct {
	Phrase string `json:"phrase"`
	Count  int    `json:"count"`
}

// Profile holds the extracted linguistic statistics for one corpus.
// All fields are aggregates; none can reproduce source text.
type Profile struct {
	FunctionWordFreq map[string]float64 `json:"function_word_freq"`

	AvgSentenceLength float64 `json:"avg_sentence_length"`
	AvgWordLength     float64 `json:"avg_word_length"`

	// LexicalRichness is the raw type-token ratio. It is scale-sensitive:
	// larger corpora trend lower. Callers needing cross-corpus
	// comparability must sample equal-sized subsets; no correction is
	// applied here.
	LexicalRichness float64 `json:"lexical_richness"`

	SignaturePhrases []PhraseCount `json:"signature_phrases"`

	FormalityScore  float64 `json:"formality_score"`
	EnthusiasmScore float64 `json:"enthusiasm_score"`
	TechnicalLevel  float64 `json:"technical_level"`

	QuestionExclamationRatio float64 `json:"question_exclamation_ratio"`

	WordCount     int `json:"word_count"`
	SentenceCount int `json:"sentence_count"`
	DocumentCount int `json:"document_count"`
}

// Extract computes the linguistic profile for a filtered corpus.
// An empty corpus is valid and yields a zero-valued profile; callers
// decide whether that is worth composing.
func Extract(corpus *filter.Corpus, cfg Config) Profile {
	cfg.Normalize()

	techWords := cfg.TechnicalWords
	if len(techWords) == 0 {
		techWords = defaultTechnicalWords
	}
	techSet := buildSet(techWords)
	formalSet := buildSet(formalMarkers)
	casualSet := buildSet(casualMarkers)
	enthusiasmSet := buildSet(enthusiasmMarkers)
	phraseSet := buildSet(markerPhrases)

	p := Profile{DocumentCount: corpus.Size()}

	funcCounts := make(map[string]int)
	phraseCounts := make(map[string]int)
	uniqueWords := make(map[string]struct{})

	totalWords := 0
	totalRunes := 0
	totalSentences := 0
	sentenceWordSum := 0
	formalHits := 0
	casualHits := 0
	enthusiasmHits := 0
	techHits := 0
	questions := 0
	exclamations := 0

	for _, doc := range corpus.Documents {
		words := Words(doc.RawText)
		totalWords += len(words)

		for _, w := range words {
			uniqueWords[w] = struct{}{}
			totalRunes += len([]rune(w))

			if _, ok := functionWordIndex[w]; ok {
				funcCounts[w]++
			}
			if _, ok := formalSet[w]; ok {
				formalHits++
			}
			if _, ok := casualSet[w]; ok {
				casualHits++
			}
			if isContraction(w) {
				casualHits++
			}
			if _, ok := enthusiasmSet[w]; ok {
				enthusiasmHits++
			}
			if _, ok := techSet[w]; ok {
				techHits++
			}
		}

		countMarkerNgrams(words, phraseSet, phraseCounts)

		for _, s := range Sentences(doc.RawText) {
			totalSentences++
			sentenceWordSum += len(Words(s))
		}

		questions += strings.Count(doc.RawText, "?")
		exclamations += strings.Count(doc.RawText, "!")
	}

	p.WordCount = totalWords
	p.SentenceCount = totalSentences

	if totalSentences > 0 {
		p.AvgSentenceLength = float64(sentenceWordSum) / float64(totalSentences)
	}
	if totalWords > 0 {
		p.AvgWordLength = float64(totalRunes) / float64(totalWords)
		p.LexicalRichness = float64(len(uniqueWords)) / float64(totalWords)
	}

	p.FunctionWordFreq = normalizeFuncCounts(funcCounts)
	p.SignaturePhrases = rankPhrases(phraseCounts, cfg.SignatureMinCount)

	ceiling := cfg.ScoreCeilingPerThousand
	if totalWords > 0 {
		per1k := func(hits int) float64 { return float64(hits) * 1000 / float64(totalWords) }

		// Formality contrasts formal connectors against contractions and
		// slang: 0.5 is neutral, saturating linearly in both directions.
		p.FormalityScore = clamp01(0.5 + (per1k(formalHits)-per1k(casualHits))/(2*ceiling))
		p.EnthusiasmScore = clamp01(per1k(enthusiasmHits+exclamations) / ceiling)
		p.TechnicalLevel = clamp01(per1k(techHits) / ceiling)
	}

	p.QuestionExclamationRatio = questionExclamationRatio(questions, exclamations)

	return p
}

// TopFunctionWords returns up to n function words ordered by frequency
// descending; equal frequencies keep the canonical list order.
func (p Profile) TopFunctionWords(n int) []string {
	words := make([]string, 0, len(p.FunctionWordFreq))
	for w := range p.FunctionWordFreq {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		fi, fj := p.FunctionWordFreq[words[i]], p.FunctionWordFreq[words[j]]
		if fi != fj {
			return fi > fj
		}
		return functionWordIndex[words[i]] < functionWordIndex[words[j]]
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}

// countMarkerNgrams counts 1..3-gram hits against the curated phrase set.
func countMarkerNgrams(words []string, phraseSet map[string]struct{}, counts map[string]int) {
	for i := range words {
		for n := 1; n <= 3 && i+n <= len(words); n++ {
			gram := strings.Join(words[i:i+n], " ")
			if _, ok := phraseSet[gram]; ok {
				counts[gram]++
			}
		}
	}
}

// normalizeFuncCounts converts counts to relative frequencies over the
// tracked set (not total words), so corpora of different sizes compare.
func normalizeFuncCounts(counts map[string]int) map[string]float64 {
	total := 0
	for _, c := range counts {
		total += c
	}
	freqs := make(map[string]float64, len(counts))
	if total == 0 {
		return freqs
	}
	for w, c := range counts {
		freqs[w] = float64(c) / float64(total)
	}
	return freqs
}

// rankPhrases filters by minimum count and sorts by count descending,
// ties broken alphabetically.
func rankPhrases(counts map[string]int, minCount int) []PhraseCount {
	var out []PhraseCount
	for phrase, c := range counts {
		if c >= minCount {
			out = append(out, PhraseCount{Phrase: phrase, Count: c})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Phrase < out[j].Phrase
	})
	return out
}

// questionExclamationRatio is questions per exclamation. With no
// exclamations the raw question count is returned (a document set that
// only asks reads as maximally question-leaning); both zero yields 0.
func questionExclamationRatio(questions, exclamations int) float64 {
	if exclamations == 0 {
		return float64(questions)
	}
	return float64(questions) / float64(exclamations)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
