package compose

import (
	"strings"
	"testing"

	"github.com/oklo/voiceprint/internal/cluster"
	"github.com/oklo/voiceprint/internal/feature"
)

func sampleInputs() Inputs {
	return Inputs{
		Linguistic: feature.Profile{
			FunctionWordFreq:  map[string]float64{"the": 0.4, "i": 0.3, "and": 0.3},
			AvgSentenceLength: 12.5,
			AvgWordLength:     4.4,
			LexicalRichness:   0.52,
			SignaturePhrases: []feature.PhraseCount{
				{Phrase: "you know", Count: 9},
				{Phrase: "basically", Count: 4},
			},
			FormalityScore:           0.3,
			EnthusiasmScore:          0.5,
			TechnicalLevel:           0.4,
			QuestionExclamationRatio: 1.2,
			WordCount:                4200,
			SentenceCount:            340,
			DocumentCount:            25,
		},
		Topics: []cluster.Topic{
			{ID: 0, Label: "compiler / scheduler", MemberCount: 14, Terms: []string{"compiler", "scheduler", "goroutine"}},
		},
		Boundaries: cluster.KnowledgeBoundaries{
			LikelyTopics:  []string{"compiler", "goroutine", "scheduler"},
			AvoidedTopics: []string{"cooking", "fashion"},
		},
		Label: "test-corpus",
	}
}

func TestCompose_AllSections(t *testing.T) {
	art := Compose(sampleInputs(), Config{})

	for _, want := range []string{
		"## Communication style",
		"## Function-word signature",
		"## Sentence rhythm",
		"## Register",
		"## Signature phrases",
		"## Topics and knowledge",
		"## Avoid",
		`"you know" (seen 9 times)`,
		"cooking",
	} {
		if !strings.Contains(art.RenderedText, want) {
			t.Errorf("rendered text missing %q", want)
		}
	}
	if art.Truncated {
		t.Error("generous budget should not truncate")
	}
}

func TestCompose_BudgetDropsSectionsWhole(t *testing.T) {
	in := sampleInputs()
	full := Compose(in, Config{})

	// Budget just below the full render: the avoid list goes first.
	budget := len(full.RenderedText) - 1
	art := Compose(in, Config{Budget: budget})

	if !art.Truncated {
		t.Fatal("expected truncation")
	}
	if len(art.DroppedSections) == 0 || art.DroppedSections[0] != "avoid" {
		t.Errorf("avoid list should be dropped first, dropped: %v", art.DroppedSections)
	}
	if strings.Contains(art.RenderedText, "## Avoid") {
		t.Error("dropped section still present in render")
	}
	if len(art.RenderedText) > budget {
		t.Errorf("render exceeds budget: %d > %d", len(art.RenderedText), budget)
	}
	// everything still ends on a complete line
	if !strings.HasSuffix(art.RenderedText, "\n") {
		t.Error("render should end with a complete line")
	}
}

func TestCompose_PriorityOrder(t *testing.T) {
	in := sampleInputs()

	// Squeeze until only core sections survive.
	art := Compose(in, Config{Budget: 700})
	if !art.Truncated {
		t.Fatal("tight budget should truncate")
	}
	if strings.Contains(art.RenderedText, "## Topics") {
		t.Error("topic guidance should be dropped before core sections")
	}
	if !strings.Contains(art.RenderedText, "## Communication style") {
		t.Error("core style summary must survive as long as anything does")
	}

	// dropped order must be avoid -> topics -> phrases -> ...
	order := map[string]int{"avoid": 0, "topics": 1, "signature phrases": 2, "register": 3, "sentence rhythm": 4}
	last := -1
	for _, name := range art.DroppedSections {
		rank, ok := order[name]
		if !ok {
			t.Fatalf("unexpected dropped section %q", name)
		}
		if rank < last {
			t.Errorf("sections dropped out of priority order: %v", art.DroppedSections)
		}
		last = rank
	}
}

func TestCompose_BudgetInvariantAcrossSizes(t *testing.T) {
	in := sampleInputs()
	for _, budget := range []int{200, 500, 1000, 4000, 16000} {
		art := Compose(in, Config{Budget: budget})
		if len(art.RenderedText) > budget {
			t.Errorf("budget %d violated: rendered %d chars", budget, len(art.RenderedText))
		}
		if strings.TrimSpace(art.RenderedText) == "" {
			t.Errorf("budget %d produced empty text", budget)
		}
	}
}

func TestCompose_BudgetSmallerThanHeader(t *testing.T) {
	in := sampleInputs()
	for _, budget := range []int{10, 50} {
		art := Compose(in, Config{Budget: budget})
		if len(art.RenderedText) > budget {
			t.Errorf("budget %d violated: rendered %d chars", budget, len(art.RenderedText))
		}
		if !art.Truncated {
			t.Errorf("budget %d must mark the artifact truncated", budget)
		}
	}
}

func TestCompose_EmptyCorpus(t *testing.T) {
	art := Compose(Inputs{Label: "empty-run"}, Config{})
	if art.RenderedText == "" {
		t.Fatal("empty corpus must still render an explanation")
	}
	if !strings.Contains(art.RenderedText, "Insufficient data") {
		t.Errorf("expected insufficient-data text, got %q", art.RenderedText)
	}
}

func TestCompose_DegradedRunAnnotated(t *testing.T) {
	in := sampleInputs()
	in.Topics = nil
	in.Boundaries = cluster.KnowledgeBoundaries{}
	in.Degraded = true

	art := Compose(in, Config{})
	if !strings.Contains(art.RenderedText, "topic analysis was unavailable") {
		t.Error("degraded run must be annotated in the rendered text")
	}
	if strings.Contains(art.RenderedText, "## Topics") {
		t.Error("no topic section without topics")
	}
}

func TestCompose_Deterministic(t *testing.T) {
	a := Compose(sampleInputs(), Config{})
	b := Compose(sampleInputs(), Config{})
	if a.RenderedText != b.RenderedText {
		t.Error("composition must be deterministic for identical inputs")
	}
}
