// Package config resolves the layered run configuration: built-in
// defaults, then the YAML config file, then VOICEPRINT_* environment
// variables, then CLI flags. Every resolved value remembers where it
// came from so `voiceprint stats` and error messages can say so.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceDefault ValueSource = "default"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
)

// ResolvedValue is a configuration value plus its provenance.
type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// Int parses the value as an integer, falling back when unset or
// unparseable.
func (v ResolvedValue) Int(fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(v.Value))
	if err != nil {
		return fallback
	}
	return n
}

// Float parses the value as a float, falling back when unset or
// unparseable.
func (v ResolvedValue) Float(fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v.Value), 64)
	if err != nil {
		return fallback
	}
	return f
}

// List splits a comma-separated value, trimming blanks.
func (v ResolvedValue) List() []string {
	var out []string
	for _, item := range strings.Split(v.Value, ",") {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ResolveOptions carries CLI-level overrides into resolution.
type ResolveOptions struct {
	ConfigPath string

	CLIDBPath string
	CLIEmbed  string
	CLIBudget string
}

// ResolvedConfig is the effective configuration for one run.
type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath ResolvedValue `json:"db_path"`

	EmbedProvider ResolvedValue `json:"embed_provider"`
	EmbedEndpoint ResolvedValue `json:"embed_endpoint"`
	EmbedAPIKey   ResolvedValue `json:"embed_api_key"`

	MinDocWords       ResolvedValue `json:"min_doc_words"`
	MaxDocWords       ResolvedValue `json:"max_doc_words"`
	QuoteRatio        ResolvedValue `json:"quote_ratio"`
	SpamKeywords      ResolvedValue `json:"spam_keywords"`
	SignatureMinCount ResolvedValue `json:"signature_min_count"`
	CharBudget        ResolvedValue `json:"char_budget"`
	ClusterMinSize    ResolvedValue `json:"cluster_min_size"`
	ClusterEps        ResolvedValue `json:"cluster_eps"`
}

type fileConfig struct {
	DBPath string `yaml:"db_path"`
	Embed  struct {
		Provider string `yaml:"provider"`
		Endpoint string `yaml:"endpoint"`
		APIKey   string `yaml:"api_key"`
	} `yaml:"embed"`
	Filter struct {
		MinWords     int      `yaml:"min_words"`
		MaxWords     int      `yaml:"max_words"`
		QuoteRatio   float64  `yaml:"quote_ratio"`
		SpamKeywords []string `yaml:"spam_keywords"`
	} `yaml:"filter"`
	Features struct {
		SignatureMinCount int `yaml:"signature_min_count"`
	} `yaml:"features"`
	Profile struct {
		CharBudget int `yaml:"char_budget"`
	} `yaml:"profile"`
	Cluster struct {
		MinSize int     `yaml:"min_size"`
		Eps     float64 `yaml:"eps"`
	} `yaml:"cluster"`
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".voiceprint", "config.yaml")
}

// ResolveConfig layers defaults, config file, environment, and CLI
// flags (in that precedence order, later wins).
func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{ConfigPath: path}

	applyDefault(&out.DBPath, "~/.voiceprint/voiceprint.db")
	applyDefault(&out.MinDocWords, "50")
	applyDefault(&out.MaxDocWords, "1000")
	applyDefault(&out.QuoteRatio, "0.5")
	applyDefault(&out.SignatureMinCount, "3")
	applyDefault(&out.CharBudget, "16000")
	applyDefault(&out.ClusterMinSize, "2")
	applyDefault(&out.ClusterEps, "0.35")

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.EmbedProvider, cfg.Embed.Provider, SourceConfig, path)
		apply(&out.EmbedEndpoint, cfg.Embed.Endpoint, SourceConfig, path)
		apply(&out.EmbedAPIKey, cfg.Embed.APIKey, SourceConfig, path)

		applyInt(&out.MinDocWords, cfg.Filter.MinWords, path)
		applyInt(&out.MaxDocWords, cfg.Filter.MaxWords, path)
		applyFloat(&out.QuoteRatio, cfg.Filter.QuoteRatio, path)
		apply(&out.SpamKeywords, strings.Join(cfg.Filter.SpamKeywords, ","), SourceConfig, path)
		applyInt(&out.SignatureMinCount, cfg.Features.SignatureMinCount, path)
		applyInt(&out.CharBudget, cfg.Profile.CharBudget, path)
		applyInt(&out.ClusterMinSize, cfg.Cluster.MinSize, path)
		applyFloat(&out.ClusterEps, cfg.Cluster.Eps, path)
	}

	applyEnv(&out.DBPath, "VOICEPRINT_DB")
	applyEnv(&out.EmbedProvider, "VOICEPRINT_EMBED")
	applyEnv(&out.EmbedEndpoint, "VOICEPRINT_EMBED_ENDPOINT")
	applyEnv(&out.EmbedAPIKey, "VOICEPRINT_EMBED_API_KEY")
	applyEnv(&out.MinDocWords, "VOICEPRINT_MIN_WORDS")
	applyEnv(&out.MaxDocWords, "VOICEPRINT_MAX_WORDS")
	applyEnv(&out.QuoteRatio, "VOICEPRINT_QUOTE_RATIO")
	applyEnv(&out.SpamKeywords, "VOICEPRINT_SPAM_KEYWORDS")
	applyEnv(&out.SignatureMinCount, "VOICEPRINT_SIGNATURE_MIN_COUNT")
	applyEnv(&out.CharBudget, "VOICEPRINT_BUDGET")
	applyEnv(&out.ClusterMinSize, "VOICEPRINT_CLUSTER_MIN_SIZE")
	applyEnv(&out.ClusterEps, "VOICEPRINT_CLUSTER_EPS")

	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.EmbedProvider, opts.CLIEmbed, SourceCLI, "--embed")
	apply(&out.CharBudget, opts.CLIBudget, SourceCLI, "--budget")

	if out.DBPath.Value != "" {
		out.DBPath.Value = expandUserPath(out.DBPath.Value)
	}

	return out, nil
}

// canonicalConfig is the subset of the effective configuration that
// participates in run identity. Secrets and storage locations are
// excluded on purpose: moving the database or rotating a key does not
// change what a run computes.
type canonicalConfig struct {
	MinDocWords       int      `json:"min_doc_words"`
	MaxDocWords       int      `json:"max_doc_words"`
	QuoteRatio        float64  `json:"quote_ratio"`
	SpamKeywords      []string `json:"spam_keywords,omitempty"`
	SignatureMinCount int      `json:"signature_min_count"`
	CharBudget        int      `json:"char_budget"`
	ClusterMinSize    int      `json:"cluster_min_size"`
	ClusterEps        float64  `json:"cluster_eps"`
	EmbedProvider     string   `json:"embed_provider,omitempty"`
}

// CanonicalJSON renders the identity-relevant effective configuration as
// stable JSON. Identical tunables always produce identical bytes.
func (r ResolvedConfig) CanonicalJSON() string {
	b, err := json.Marshal(canonicalConfig{
		MinDocWords:       r.MinDocWords.Int(50),
		MaxDocWords:       r.MaxDocWords.Int(1000),
		QuoteRatio:        r.QuoteRatio.Float(0.5),
		SpamKeywords:      r.SpamKeywords.List(),
		SignatureMinCount: r.SignatureMinCount.Int(3),
		CharBudget:        r.CharBudget.Int(16000),
		ClusterMinSize:    r.ClusterMinSize.Int(2),
		ClusterEps:        r.ClusterEps.Float(0.35),
		EmbedProvider:     r.EmbedProvider.Value,
	})
	if err != nil {
		return "{}"
	}
	return string(b)
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyDefault(dst *ResolvedValue, value string) {
	*dst = ResolvedValue{Value: value, Source: SourceDefault, From: "built-in"}
}

func applyInt(dst *ResolvedValue, value int, from string) {
	if value == 0 {
		return
	}
	*dst = ResolvedValue{Value: strconv.Itoa(value), Source: SourceConfig, From: from}
}

func applyFloat(dst *ResolvedValue, value float64, from string) {
	if value == 0 {
		return
	}
	*dst = ResolvedValue{Value: strconv.FormatFloat(value, 'g', -1, 64), Source: SourceConfig, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
