package main

import "testing"

func TestFlagValue(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		flag     string
		want     string
		wantRest int
	}{
		{"separate value", []string{"--label", "letters", "corpus/"}, "--label", "letters", 1},
		{"equals form", []string{"--label=letters", "corpus/"}, "--label", "letters", 1},
		{"absent", []string{"corpus/"}, "--label", "", 1},
		{"value only consumed once", []string{"--db", "a.db", "--db", "b.db"}, "--db", "b.db", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rest := flagValue(tt.args, tt.flag)
			if got != tt.want {
				t.Errorf("value: got %q, want %q", got, tt.want)
			}
			if len(rest) != tt.wantRest {
				t.Errorf("rest: got %v, want %d entries", rest, tt.wantRest)
			}
		})
	}
}

func TestBoolFlag(t *testing.T) {
	found, rest := boolFlag([]string{"--dry-run", "corpus/"}, "--dry-run")
	if !found || len(rest) != 1 {
		t.Errorf("expected flag found with 1 remaining arg, got %v %v", found, rest)
	}
	found, rest = boolFlag([]string{"corpus/"}, "--dry-run")
	if found || len(rest) != 1 {
		t.Errorf("expected flag absent, got %v %v", found, rest)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 20); got != "short" {
		t.Errorf("short strings pass through, got %q", got)
	}
	if got := truncate("a very long label indeed", 10); len([]rune(got)) != 10 {
		t.Errorf("expected 10 runes, got %q (%d)", got, len([]rune(got)))
	}
}
