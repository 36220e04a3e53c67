// Package compose renders the final voice profile: a bounded-length
// natural-language description of an author's style, ready for use as an
// LLM system prompt.
//
// Composition is a pure function of its inputs. When the filled template
// exceeds the character budget, whole sections are dropped in a fixed
// priority order; the text is never cut mid-sentence.
package compose

import (
	"fmt"
	"strings"

	"github.com/oklo/voiceprint/internal/cluster"
	"github.com/oklo/voiceprint/internal/feature"
)

// Config holds the composition tunables.
type Config struct {
	// Budget is the maximum rendered length in characters. The default,
	// 16000, approximates a 4000-token prompt budget.
	Budget int
}

// Normalize applies defaults for unset fields.
func (c *Config) Normalize() {
	if c.Budget <= 0 {
		c.Budget = 16000
	}
}

// Inputs collects everything the composer needs. Topics and Boundaries
// may be zero-valued when the clustering stage was skipped.
type Inputs struct {
	Linguistic feature.Profile
	Topics     []cluster.Topic
	Boundaries cluster.KnowledgeBoundaries
	Label      string // opaque corpus label, never a source path
	Degraded   bool   // clustering skipped; noted in the rendered text
}

// Artifact is the composed profile text plus truncation bookkeeping.
type Artifact struct {
	RenderedText    string   `json:"rendered_text"`
	Truncated       bool     `json:"truncated"`
	DroppedSections []string `json:"dropped_sections,omitempty"`
}

// section priorities: lower keeps longer. The core style signature is
// never dropped.
const (
	prioCore = iota
	prioRhythm
	prioRegister
	prioPhrases
	prioTopics
	prioAvoid
)

type section struct {
	name     string
	priority int
	text     string
}

// Compose fills the profile template and enforces the budget.
func Compose(in Inputs, cfg Config) Artifact {
	cfg.Normalize()

	if in.Linguistic.DocumentCount == 0 || in.Linguistic.WordCount == 0 {
		return Artifact{RenderedText: insufficientData(in.Label)}
	}

	sections := []section{
		{name: "style summary", priority: prioCore, text: styleSummary(in)},
		{name: "function words", priority: prioCore, text: functionWordSection(in.Linguistic)},
		{name: "sentence rhythm", priority: prioRhythm, text: rhythmSection(in.Linguistic)},
		{name: "register", priority: prioRegister, text: registerSection(in.Linguistic)},
		{name: "signature phrases", priority: prioPhrases, text: phraseSection(in.Linguistic)},
		{name: "topics", priority: prioTopics, text: topicSection(in)},
		{name: "avoid", priority: prioAvoid, text: avoidSection(in)},
	}

	kept := make([]section, 0, len(sections))
	for _, s := range sections {
		if strings.TrimSpace(s.text) != "" {
			kept = append(kept, s)
		}
	}

	art := Artifact{}

	// Drop whole sections, lowest priority first, until the render fits.
	for {
		text := render(kept)
		if len(text) <= cfg.Budget {
			art.RenderedText = text
			return art
		}

		dropIdx := -1
		for i, s := range kept {
			if s.priority == prioCore {
				continue
			}
			if dropIdx < 0 || s.priority > kept[dropIdx].priority {
				dropIdx = i
			}
		}
		if dropIdx < 0 {
			// Only core sections left: trim whole lines from the end.
			art.RenderedText = trimWholeLines(text, cfg.Budget)
			art.Truncated = true
			return art
		}

		art.Truncated = true
		art.DroppedSections = append(art.DroppedSections, kept[dropIdx].name)
		kept = append(kept[:dropIdx], kept[dropIdx+1:]...)
	}
}

func render(sections []section) string {
	var b strings.Builder
	b.WriteString("You are writing as a specific person. Match their voice exactly, following every rule below.\n")
	for _, s := range sections {
		b.WriteString("\n")
		b.WriteString(s.text)
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func insufficientData(label string) string {
	name := label
	if name == "" {
		name = "this corpus"
	}
	return fmt.Sprintf(
		"Insufficient data: no documents from %s survived content filtering, so no voice profile could be derived. "+
			"Write in a neutral, plain style and do not imitate any particular person.\n", name)
}

func styleSummary(in Inputs) string {
	l := in.Linguistic
	var b strings.Builder
	b.WriteString("## Communication style\n")
	fmt.Fprintf(&b, "- Derived from %d documents (%d words, %d sentences).\n",
		l.DocumentCount, l.WordCount, l.SentenceCount)
	fmt.Fprintf(&b, "- Sentences average %.1f words. %s\n", l.AvgSentenceLength, sentenceCharacter(l.AvgSentenceLength))
	fmt.Fprintf(&b, "- Vocabulary: %s (type-token ratio %.2f), average word length %.1f letters.\n",
		richnessWord(l.LexicalRichness), l.LexicalRichness, l.AvgWordLength)
	if in.Degraded {
		b.WriteString("- Note: topic analysis was unavailable for this profile; style guidance only.\n")
	}
	return b.String()
}

func functionWordSection(l feature.Profile) string {
	top := l.TopFunctionWords(10)
	if len(top) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Function-word signature\n")
	b.WriteString("- Lean on these small words at the listed rates (share of tracked function words):\n")
	for _, w := range top {
		fmt.Fprintf(&b, "  - %q: %.1f%%\n", w, l.FunctionWordFreq[w]*100)
	}
	return b.String()
}

func rhythmSection(l feature.Profile) string {
	var b strings.Builder
	b.WriteString("## Sentence rhythm\n")
	fmt.Fprintf(&b, "- %s\n", sentenceCharacter(l.AvgSentenceLength))
	switch {
	case l.QuestionExclamationRatio > 2:
		b.WriteString("- Asks far more questions than it exclaims; prefer questions over emphasis.\n")
	case l.QuestionExclamationRatio > 0.5:
		b.WriteString("- Balances questions and exclamations; use both sparingly.\n")
	default:
		b.WriteString("- Rarely asks questions; exclaims more readily than it inquires.\n")
	}
	return b.String()
}

func registerSection(l feature.Profile) string {
	var b strings.Builder
	b.WriteString("## Register\n")
	fmt.Fprintf(&b, "- Formality %.2f/1.00: %s\n", l.FormalityScore, formalityNarrative(l.FormalityScore))
	fmt.Fprintf(&b, "- Enthusiasm %.2f/1.00: %s\n", l.EnthusiasmScore, enthusiasmNarrative(l.EnthusiasmScore))
	fmt.Fprintf(&b, "- Technical level %.2f/1.00: %s\n", l.TechnicalLevel, technicalNarrative(l.TechnicalLevel))
	return b.String()
}

func phraseSection(l feature.Profile) string {
	if len(l.SignaturePhrases) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Signature phrases\n")
	b.WriteString("- Work these recurring phrases in naturally, at roughly their observed relative rates:\n")
	max := len(l.SignaturePhrases)
	if max > 12 {
		max = 12
	}
	for _, pc := range l.SignaturePhrases[:max] {
		fmt.Fprintf(&b, "  - %q (seen %d times)\n", pc.Phrase, pc.Count)
	}
	return b.String()
}

func topicSection(in Inputs) string {
	if len(in.Topics) == 0 && len(in.Boundaries.LikelyTopics) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Topics and knowledge\n")
	for _, t := range in.Topics {
		terms := t.Terms
		if len(terms) > 5 {
			terms = terms[:5]
		}
		fmt.Fprintf(&b, "- Writes about %s (%d documents): %s.\n", t.Label, t.MemberCount, strings.Join(terms, ", "))
	}
	if len(in.Boundaries.LikelyTopics) > 0 {
		fmt.Fprintf(&b, "- Comfortable territory: %s.\n", strings.Join(in.Boundaries.LikelyTopics, ", "))
	}
	return b.String()
}

func avoidSection(in Inputs) string {
	if len(in.Boundaries.AvoidedTopics) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Avoid\n")
	b.WriteString("- The corpus never touches these domains; do not volunteer opinions on them:\n")
	for _, t := range in.Boundaries.AvoidedTopics {
		fmt.Fprintf(&b, "  - %s\n", t)
	}
	return b.String()
}

// trimWholeLines cuts complete lines from the end until text fits
// budget. A budget smaller than the first line truncates that line;
// the budget holds even at pathological sizes.
func trimWholeLines(text string, budget int) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for len(lines) > 1 {
		candidate := strings.Join(lines, "\n") + "\n"
		if len(candidate) <= budget {
			return candidate
		}
		lines = lines[:len(lines)-1]
	}
	out := lines[0] + "\n"
	if len(out) > budget {
		if budget <= 0 {
			return ""
		}
		out = out[:budget]
	}
	return out
}

func sentenceCharacter(avg float64) string {
	switch {
	case avg == 0:
		return "No complete sentences observed."
	case avg < 10:
		return "Short, punchy sentences; one idea at a time."
	case avg < 18:
		return "Medium-length sentences with an occasional longer one."
	default:
		return "Long, flowing sentences with subordinate clauses."
	}
}

func richnessWord(ttr float64) string {
	switch {
	case ttr > 0.6:
		return "wide and varied"
	case ttr > 0.4:
		return "moderately varied"
	default:
		return "repetitive, favoring familiar words"
	}
}

func formalityNarrative(score float64) string {
	switch {
	case score > 0.65:
		return "formal connectors, few contractions; keep a composed, professional tone."
	case score > 0.35:
		return "mixed register; contractions are fine but slang is rare."
	default:
		return "casual and contraction-heavy; stiff connectors like 'furthermore' would ring false."
	}
}

func enthusiasmNarrative(score float64) string {
	switch {
	case score > 0.6:
		return "openly enthusiastic, frequent emphasis and exclamations."
	case score > 0.25:
		return "warm but measured; emphasis appears only when earned."
	default:
		return "reserved; avoid exclamation marks and superlatives."
	}
}

func technicalNarrative(score float64) string {
	switch {
	case score > 0.6:
		return "deeply technical vocabulary used without explanation."
	case score > 0.25:
		return "comfortable with technical terms but explains them for others."
	default:
		return "plain language; technical jargon would be out of character."
	}
}
