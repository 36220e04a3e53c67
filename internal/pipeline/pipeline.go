// Package pipeline orchestrates a full analysis run: load sources,
// filter documents, extract the linguistic profile, cluster topics
// (optional, degradable), compose the rendered profile, and persist it.
//
// The run is all-or-nothing: a fatal stage error or timeout leaves the
// store untouched. Only the clustering stage may fail without failing
// the run; it degrades to an empty topic set instead.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/oklo/voiceprint/internal/cluster"
	"github.com/oklo/voiceprint/internal/compose"
	"github.com/oklo/voiceprint/internal/config"
	"github.com/oklo/voiceprint/internal/embed"
	"github.com/oklo/voiceprint/internal/feature"
	"github.com/oklo/voiceprint/internal/filter"
	"github.com/oklo/voiceprint/internal/ingest"
	"github.com/oklo/voiceprint/internal/store"
)

// DefaultStageTimeout bounds each pipeline stage's wall-clock time.
const DefaultStageTimeout = 2 * time.Minute

// Options configures one run.
type Options struct {
	SourcePath string
	Label      string // opaque corpus label stored with the profile
	Kind       string // source kind override, "" = per-importer default
	Format     string // format hint, "" = detect
	Recursive  bool

	DryRun    bool // compute everything, persist nothing
	NoCluster bool // skip the embedding/clustering stage

	// StageTimeout bounds each stage. Zero means DefaultStageTimeout.
	StageTimeout time.Duration

	// ProgressFn, when set, receives per-file loading progress.
	ProgressFn func(current, total int, file string)
}

// StageTiming records one stage's wall-clock duration.
type StageTiming struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration"`
}

// Report summarizes a completed run.
type Report struct {
	RunID  string `json:"run_id"`
	DryRun bool   `json:"dry_run"`
	Saved  bool   `json:"saved"`

	FilesScanned int `json:"files_scanned"`
	FilesSkipped int `json:"files_skipped"`
	DocsLoaded   int `json:"docs_loaded"`
	Malformed    int `json:"malformed"`
	DocsAccepted int `json:"docs_accepted"`
	DocsRejected int `json:"docs_rejected"`

	RejectedByFlag map[filter.Flag]int `json:"rejected_by_flag,omitempty"`

	Topics   int  `json:"topics"`
	Noise    int  `json:"noise"`
	Degraded bool `json:"degraded"`
	// DegradedReason says why clustering was skipped, when it was.
	DegradedReason string `json:"degraded_reason,omitempty"`

	RenderedText    string        `json:"-"`
	RenderedChars   int           `json:"rendered_chars"`
	Truncated       bool          `json:"truncated"`
	DroppedSections []string      `json:"dropped_sections,omitempty"`
	Timings         []StageTiming `json:"timings"`
}

// Runner executes analysis runs against a fixed store and configuration.
type Runner struct {
	st       store.Store
	cfg      config.ResolvedConfig
	embedder embed.Embedder // nil means clustering always degrades
	loader   *ingest.Loader
}

// NewRunner wires a runner. embedder may be nil; runs then skip
// clustering and report themselves degraded.
func NewRunner(st store.Store, cfg config.ResolvedConfig, embedder embed.Embedder) *Runner {
	return &Runner{
		st:       st,
		cfg:      cfg,
		embedder: embedder,
		loader:   ingest.NewLoader(),
	}
}

// Run executes the pipeline. On store.ErrRunExists the report is still
// returned alongside the error so the caller can name the existing run.
func (r *Runner) Run(ctx context.Context, opts Options) (*Report, error) {
	timeout := opts.StageTimeout
	if timeout <= 0 {
		timeout = DefaultStageTimeout
	}

	report := &Report{DryRun: opts.DryRun}

	var kind ingest.SourceKind
	if opts.Kind != "" {
		var err error
		if kind, err = ingest.ParseSourceKind(opts.Kind); err != nil {
			return nil, err
		}
	}

	// load
	start := time.Now()
	loadCtx, cancel := context.WithTimeout(ctx, timeout)
	loadRes, err := r.loader.Load(loadCtx, opts.SourcePath, ingest.LoadOptions{
		Format:     opts.Format,
		Kind:       kind,
		Recursive:  opts.Recursive,
		ProgressFn: opts.ProgressFn,
	})
	cancel()
	report.addTiming("load", start)
	if err != nil {
		return nil, fmt.Errorf("loading sources: %w", err)
	}
	report.FilesScanned = loadRes.FilesScanned
	report.FilesSkipped = loadRes.FilesSkipped
	report.DocsLoaded = len(loadRes.Documents)
	report.Malformed = loadRes.Malformed

	// filter
	start = time.Now()
	f := filter.New(filter.Config{
		MinWords:            r.cfg.MinDocWords.Int(0),
		MaxWords:            r.cfg.MaxDocWords.Int(0),
		QuoteRatioThreshold: r.cfg.QuoteRatio.Float(0),
		SpamKeywords:        r.cfg.SpamKeywords.List(),
	})
	corpus, filterRes := f.Apply(loadRes.Documents)
	report.addTiming("filter", start)
	report.DocsAccepted = filterRes.Accepted
	report.DocsRejected = filterRes.Rejected
	report.RejectedByFlag = filterRes.ByFlag

	// extract
	start = time.Now()
	profile := feature.Extract(corpus, feature.Config{
		SignatureMinCount: r.cfg.SignatureMinCount.Int(0),
	})
	report.addTiming("extract", start)

	// cluster (degradable)
	start = time.Now()
	var topics []cluster.Topic
	var boundaries cluster.KnowledgeBoundaries
	switch {
	case opts.NoCluster:
		report.Degraded = true
		report.DegradedReason = "clustering disabled"
	case r.embedder == nil:
		report.Degraded = true
		report.DegradedReason = "no embedder configured"
	case corpus.Size() == 0:
		report.Degraded = true
		report.DegradedReason = "empty corpus"
	default:
		clusterCtx, cancel := context.WithTimeout(ctx, timeout)
		clusterRes, err := cluster.Cluster(clusterCtx, corpus, r.embedder, cluster.Config{
			Eps:     r.cfg.ClusterEps.Float(0),
			MinSize: r.cfg.ClusterMinSize.Int(0),
		})
		cancel()
		if err != nil {
			report.Degraded = true
			report.DegradedReason = fmt.Sprintf("clustering failed: %v", err)
		} else {
			topics = clusterRes.Topics
			boundaries = cluster.Boundaries(corpus, topics)
			report.Topics = len(topics)
			report.Noise = len(clusterRes.NoiseIDs)
		}
	}
	report.addTiming("cluster", start)

	// compose
	start = time.Now()
	artifact := compose.Compose(compose.Inputs{
		Linguistic: profile,
		Topics:     topics,
		Boundaries: boundaries,
		Label:      opts.Label,
		Degraded:   report.Degraded,
	}, compose.Config{Budget: r.cfg.CharBudget.Int(0)})
	report.addTiming("compose", start)
	report.RenderedText = artifact.RenderedText
	report.RenderedChars = len(artifact.RenderedText)
	report.Truncated = artifact.Truncated
	report.DroppedSections = artifact.DroppedSections

	// Identity covers the accepted documents in corpus order plus the
	// effective tunables: same sources, same config, same run id.
	report.RunID = store.RunID(corpus.IDs(), r.cfg.CanonicalJSON())

	if opts.DryRun {
		return report, nil
	}

	// save
	start = time.Now()
	_, err = r.st.SaveProfile(ctx, &store.ProfileRecord{
		RunID:        report.RunID,
		Label:        opts.Label,
		DocCount:     corpus.Size(),
		Linguistic:   profile,
		Topics:       topics,
		Boundaries:   boundaries,
		RenderedText: artifact.RenderedText,
		ConfigJSON:   r.cfg.CanonicalJSON(),
		Degraded:     report.Degraded,
	}, corpus.RawTexts())
	report.addTiming("save", start)
	if err != nil {
		return report, fmt.Errorf("saving profile: %w", err)
	}
	report.Saved = true

	return report, nil
}

func (r *Report) addTiming(stage string, start time.Time) {
	r.Timings = append(r.Timings, StageTiming{Stage: stage, Duration: time.Since(start)})
}
