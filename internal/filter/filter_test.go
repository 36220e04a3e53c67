package filter

import (
	"strings"
	"testing"

	"github.com/oklo/voiceprint/internal/ingest"
)

func doc(kind ingest.SourceKind, text string) ingest.Document {
	return ingest.Document{
		ID:         ingest.DocumentID("/test", text),
		RawText:    text,
		SourceKind: kind,
	}
}

// fifty-ish words of plain prose, enough to clear the default minimum
func prose(words int) string {
	return strings.TrimSpace(strings.Repeat("plain ordinary words written here ", (words+4)/5))
}

func TestJudge_QuoteRatioRejection(t *testing.T) {
	f := New(Config{MinWords: 5})

	// 8 of 10 lines quoted: rejected regardless of content
	var b strings.Builder
	for i := 0; i < 8; i++ {
		b.WriteString("> quoted line from someone else entirely\n")
	}
	b.WriteString("my short reply with a few words\n")
	b.WriteString("and one more line of mine here\n")

	v := f.Judge(doc(ingest.KindEmail, b.String()))
	if v.Accept {
		t.Fatal("80% quoted document must be rejected")
	}
	if !hasFlag(v, FlagQuoted) {
		t.Errorf("expected quoted flag, got %v", v.Flags)
	}
}

func TestJudge_QuoteRatioBoundary(t *testing.T) {
	f := New(Config{MinWords: 1})

	// exactly 50% quoted: threshold is strict-greater, so accepted
	text := "> quoted once over here now\nmy own words fill this line\n"
	v := f.Judge(doc(ingest.KindEmail, text))
	if !v.Accept {
		t.Errorf("ratio == threshold should pass, got flags %v", v.Flags)
	}
}

func TestJudge_LengthBounds(t *testing.T) {
	f := New(Config{}) // defaults: 50..1000

	tests := []struct {
		name   string
		kind   ingest.SourceKind
		words  int
		accept bool
		flag   Flag
	}{
		{"too short email", ingest.KindEmail, 10, false, FlagTooShort},
		{"in range email", ingest.KindEmail, 200, true, ""},
		{"too long email", ingest.KindEmail, 1500, false, FlagTooLong},
		{"long letter exempt from max", ingest.KindLetter, 1500, true, ""},
		{"short letter still too short", ingest.KindLetter, 10, false, FlagTooShort},
		{"long chat not exempt", ingest.KindChat, 1500, false, FlagTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := f.Judge(doc(tt.kind, prose(tt.words)))
			if v.Accept != tt.accept {
				t.Fatalf("accept = %v, want %v (flags %v)", v.Accept, tt.accept, v.Flags)
			}
			if tt.flag != "" && !hasFlag(v, tt.flag) {
				t.Errorf("expected flag %s, got %v", tt.flag, v.Flags)
			}
		})
	}
}

func TestJudge_SpamKeywords(t *testing.T) {
	f := New(Config{MinWords: 5, SpamKeywords: []string{"unsubscribe", "LIMITED TIME OFFER"}})

	v := f.Judge(doc(ingest.KindEmail, "Click here for a limited time offer on everything you never wanted to buy today"))
	if v.Accept {
		t.Fatal("spam keyword match must reject (case-insensitive)")
	}
	if !hasFlag(v, FlagSpam) {
		t.Errorf("expected spam flag, got %v", v.Flags)
	}

	v = f.Judge(doc(ingest.KindEmail, prose(60)))
	if !v.Accept {
		t.Errorf("clean document rejected: %v", v.Flags)
	}
}

func TestJudge_ForwardedMarker(t *testing.T) {
	f := New(Config{MinWords: 5})
	text := "see below\n\n-----Original Message-----\n" + prose(60)
	v := f.Judge(doc(ingest.KindEmail, text))
	if v.Accept {
		t.Fatal("forwarded chain must be rejected")
	}
	if !hasFlag(v, FlagForwarded) {
		t.Errorf("expected forwarded flag, got %v", v.Flags)
	}
}

func TestApply_PreservesOrderAndTallies(t *testing.T) {
	f := New(Config{MinWords: 3})

	docs := []ingest.Document{
		doc(ingest.KindEmail, "first accepted document with enough words inside"),
		doc(ingest.KindEmail, "no"),
		doc(ingest.KindEmail, "second accepted document also has enough words"),
	}

	corpus, result := f.Apply(docs)
	if corpus.Size() != 2 {
		t.Fatalf("expected 2 accepted, got %d", corpus.Size())
	}
	if result.Rejected != 1 || result.ByFlag[FlagTooShort] != 1 {
		t.Errorf("tally wrong: %+v", result)
	}
	if corpus.Documents[0].ID != docs[0].ID || corpus.Documents[1].ID != docs[2].ID {
		t.Error("accepted documents must keep input order")
	}
	for _, d := range corpus.Documents {
		if len(d.Flags) != 0 {
			t.Errorf("accepted document should have no flags: %v", d.Flags)
		}
	}
}

func TestQuoteRatio_EmptyText(t *testing.T) {
	if r := QuoteRatio(""); r != 0 {
		t.Errorf("empty text should have ratio 0, got %f", r)
	}
}

func hasFlag(v Verdict, f Flag) bool {
	for _, fl := range v.Flags {
		if fl == f {
			return true
		}
	}
	return false
}
