// Package filter removes low-value documents from a loaded corpus before
// feature extraction: quoted/forwarded chains, spam boilerplate, and
// documents outside the configured length bounds.
//
// Judging a single document is a pure function of that document and the
// filter config. There is no cross-document state.
package filter

import (
	"regexp"
	"strings"

	"github.com/oklo/voiceprint/internal/ingest"
)

// Flag marks why a document was disqualified.
type Flag string

const (
	FlagQuoted    Flag = "quoted"
	FlagForwarded Flag = "forwarded"
	FlagSpam      Flag = "spam"
	FlagTooShort  Flag = "too_short"
	FlagTooLong   Flag = "too_long"
)

// Config holds the filter thresholds. Zero values fall back to defaults
// via Normalize. The thresholds were tuned on one person's mail corpus
// and are deliberately exposed as configuration rather than constants.
type Config struct {
	MinWords            int      // default 50
	MaxWords            int      // default 1000
	QuoteRatioThreshold float64  // default 0.5
	SpamKeywords        []string // case-insensitive substring matches
}

// Normalize applies defaults for unset fields.
func (c *Config) Normalize() {
	if c.MinWords <= 0 {
		c.MinWords = 50
	}
	if c.MaxWords <= 0 {
		c.MaxWords = 1000
	}
	if c.QuoteRatioThreshold <= 0 {
		c.QuoteRatioThreshold = 0.5
	}
}

// lengthPolicy is the per-kind exception table for word-count bounds.
// Letters are exempt from the upper bound: long-form personal writing is
// exactly the signal this pipeline wants, unlike a 5000-word email which
// is almost always a quoted thread.
type lengthPolicy struct {
	ignoreMax bool
}

var lengthExceptions = map[ingest.SourceKind]lengthPolicy{
	ingest.KindLetter: {ignoreMax: true},
}

// Verdict is the outcome of judging one document.
type Verdict struct {
	Accept bool
	Flags  []Flag
}

// Corpus is the ordered set of accepted documents for one run. Every
// member passed the filter, so its Flags are empty.
type Corpus struct {
	Documents []ingest.Document
}

// Size returns the number of accepted documents.
func (c *Corpus) Size() int { return len(c.Documents) }

// RawTexts returns the transient raw text of every member, in order.
// Used by the store's privacy guard; the slice must not outlive the run.
func (c *Corpus) RawTexts() []string {
	texts := make([]string, len(c.Documents))
	for i, d := range c.Documents {
		texts[i] = d.RawText
	}
	return texts
}

// IDs returns document IDs in corpus order.
func (c *Corpus) IDs() []string {
	ids := make([]string, len(c.Documents))
	for i, d := range c.Documents {
		ids[i] = d.ID
	}
	return ids
}

// Result tallies filter outcomes for a run summary.
type Result struct {
	Accepted int
	Rejected int
	ByFlag   map[Flag]int
}

// Filter judges documents against a fixed config.
type Filter struct {
	cfg  Config
	spam []string // lowercased keywords
}

var (
	quoteLineRE     = regexp.MustCompile(`^\s*(>|\|)`)
	forwardMarkerRE = regexp.MustCompile(`(?mi)^(-{2,}\s*(original|forwarded) message\s*-{2,}|begin forwarded message:|on .{1,80} wrote:)\s*$`)
)

// New creates a filter, normalizing the config.
func New(cfg Config) *Filter {
	cfg.Normalize()
	spam := make([]string, 0, len(cfg.SpamKeywords))
	for _, kw := range cfg.SpamKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			spam = append(spam, kw)
		}
	}
	return &Filter{cfg: cfg, spam: spam}
}

// Judge evaluates a single document. All applicable flags are reported,
// not just the first.
func (f *Filter) Judge(doc ingest.Document) Verdict {
	var flags []Flag

	if QuoteRatio(doc.RawText) > f.cfg.QuoteRatioThreshold {
		flags = append(flags, FlagQuoted)
	}
	if forwardMarkerRE.MatchString(doc.RawText) {
		flags = append(flags, FlagForwarded)
	}

	words := len(strings.Fields(doc.RawText))
	policy := lengthExceptions[doc.SourceKind]
	if words < f.cfg.MinWords {
		flags = append(flags, FlagTooShort)
	} else if words > f.cfg.MaxWords && !policy.ignoreMax {
		flags = append(flags, FlagTooLong)
	}

	if f.matchesSpam(doc.RawText) {
		flags = append(flags, FlagSpam)
	}

	return Verdict{Accept: len(flags) == 0, Flags: flags}
}

// Apply judges every document in order and returns the accepted corpus
// plus a tally. Input order is preserved; rejected documents carry their
// flags but are dropped from the corpus.
func (f *Filter) Apply(docs []ingest.Document) (*Corpus, *Result) {
	corpus := &Corpus{}
	result := &Result{ByFlag: make(map[Flag]int)}

	for _, doc := range docs {
		v := f.Judge(doc)
		if v.Accept {
			result.Accepted++
			corpus.Documents = append(corpus.Documents, doc)
			continue
		}
		result.Rejected++
		for _, fl := range v.Flags {
			doc.Flags = append(doc.Flags, string(fl))
			result.ByFlag[fl]++
		}
	}

	return corpus, result
}

// QuoteRatio returns the fraction of non-blank lines that are quote or
// forward markers. Empty text has ratio 0.
func QuoteRatio(text string) float64 {
	lines := strings.Split(text, "\n")
	total := 0
	quoted := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		total++
		if quoteLineRE.MatchString(line) || forwardMarkerRE.MatchString(line) {
			quoted++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(quoted) / float64(total)
}

func (f *Filter) matchesSpam(text string) bool {
	if len(f.spam) == 0 {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range f.spam {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
