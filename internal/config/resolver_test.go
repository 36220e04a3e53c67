package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveConfig_Precedence_ConfigEnvCLI(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.yaml")
	yaml := `db_path: ~/.voiceprint/from-config.db
embed:
  provider: ollama/nomic-embed-text
filter:
  min_words: 30
  quote_ratio: 0.6
profile:
  char_budget: 8000
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("VOICEPRINT_DB", "~/from-env.db")
	t.Setenv("VOICEPRINT_MIN_WORDS", "40")

	resolved, err := ResolveConfig(ResolveOptions{
		ConfigPath: cfgPath,
		CLIDBPath:  "~/from-cli.db",
		CLIEmbed:   "openai/text-embedding-3-small",
	})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}

	if resolved.DBPath.Source != SourceCLI {
		t.Fatalf("expected db path source cli, got %s", resolved.DBPath.Source)
	}
	if resolved.EmbedProvider.Source != SourceCLI {
		t.Fatalf("expected embed provider source cli, got %s", resolved.EmbedProvider.Source)
	}
	if resolved.MinDocWords.Source != SourceEnv || resolved.MinDocWords.Int(0) != 40 {
		t.Fatalf("expected min words 40 from env, got %+v", resolved.MinDocWords)
	}
	if resolved.QuoteRatio.Source != SourceConfig || resolved.QuoteRatio.Float(0) != 0.6 {
		t.Fatalf("expected quote ratio 0.6 from config, got %+v", resolved.QuoteRatio)
	}
	if resolved.CharBudget.Int(0) != 8000 {
		t.Fatalf("expected char budget 8000 from config, got %+v", resolved.CharBudget)
	}
}

func TestResolveConfig_Defaults(t *testing.T) {
	resolved, err := ResolveConfig(ResolveOptions{
		ConfigPath: filepath.Join(t.TempDir(), "missing.yaml"),
	})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}

	checks := []struct {
		name string
		v    ResolvedValue
		want string
	}{
		{"min words", resolved.MinDocWords, "50"},
		{"max words", resolved.MaxDocWords, "1000"},
		{"quote ratio", resolved.QuoteRatio, "0.5"},
		{"signature min count", resolved.SignatureMinCount, "3"},
		{"char budget", resolved.CharBudget, "16000"},
		{"cluster min size", resolved.ClusterMinSize, "2"},
		{"cluster eps", resolved.ClusterEps, "0.35"},
	}
	for _, c := range checks {
		if c.v.Source != SourceDefault {
			t.Errorf("%s: expected default source, got %s", c.name, c.v.Source)
		}
		if c.v.Value != c.want {
			t.Errorf("%s: expected %s, got %s", c.name, c.want, c.v.Value)
		}
	}
}

func TestResolveConfig_SpamKeywords(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.yaml")
	yaml := `filter:
  spam_keywords:
    - unsubscribe
    - limited time offer
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	resolved, err := ResolveConfig(ResolveOptions{ConfigPath: cfgPath})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	list := resolved.SpamKeywords.List()
	if len(list) != 2 || list[1] != "limited time offer" {
		t.Fatalf("unexpected spam keyword list: %v", list)
	}
}

func TestResolveConfig_MalformedYAML(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("filter: [not a map"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := ResolveConfig(ResolveOptions{ConfigPath: cfgPath}); err == nil {
		t.Fatal("expected parse error for malformed yaml")
	}
}

func TestCanonicalJSON_Deterministic(t *testing.T) {
	a, err := ResolveConfig(ResolveOptions{ConfigPath: filepath.Join(t.TempDir(), "none.yaml")})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	b, err := ResolveConfig(ResolveOptions{ConfigPath: filepath.Join(t.TempDir(), "none.yaml")})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	if a.CanonicalJSON() != b.CanonicalJSON() {
		t.Error("identical tunables must serialize identically")
	}

	t.Setenv("VOICEPRINT_BUDGET", "4000")
	c, err := ResolveConfig(ResolveOptions{ConfigPath: filepath.Join(t.TempDir(), "none.yaml")})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	if a.CanonicalJSON() == c.CanonicalJSON() {
		t.Error("changed budget must change the canonical form")
	}
}

func TestResolvedValue_Parsers(t *testing.T) {
	if (ResolvedValue{Value: "nope"}).Int(7) != 7 {
		t.Error("unparseable int should fall back")
	}
	if (ResolvedValue{Value: " 12 "}).Int(0) != 12 {
		t.Error("Int should trim whitespace")
	}
	if (ResolvedValue{}).Float(0.25) != 0.25 {
		t.Error("empty float should fall back")
	}
	got := (ResolvedValue{Value: "a, b ,,c"}).List()
	if len(got) != 3 || got[1] != "b" {
		t.Errorf("unexpected list: %v", got)
	}
}
