package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	mcpserverlib "github.com/mark3labs/mcp-go/server"
	"github.com/schollz/progressbar/v3"

	"github.com/oklo/voiceprint/internal/config"
	"github.com/oklo/voiceprint/internal/embed"
	"github.com/oklo/voiceprint/internal/mcpserver"
	"github.com/oklo/voiceprint/internal/pipeline"
	"github.com/oklo/voiceprint/internal/store"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	var err error
	switch os.Args[1] {
	case "analyze":
		err = runAnalyze(os.Args[2:])
	case "list":
		err = runList(os.Args[2:])
	case "show":
		err = runShow(os.Args[2:])
	case "export":
		err = runExport(os.Args[2:])
	case "delete":
		err = runDelete(os.Args[2:])
	case "stats":
		err = runStats(os.Args[2:])
	case "mcp":
		err = runMCP(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("voiceprint %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// flagValue pulls "--name value" or "--name=value" out of args, returning
// the remaining args.
func flagValue(args []string, name string) (string, []string) {
	var rest []string
	var value string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == name && i+1 < len(args) {
			value = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, name+"=") {
			value = strings.TrimPrefix(arg, name+"=")
			continue
		}
		rest = append(rest, arg)
	}
	return value, rest
}

func boolFlag(args []string, name string) (bool, []string) {
	var rest []string
	found := false
	for _, arg := range args {
		if arg == name {
			found = true
			continue
		}
		rest = append(rest, arg)
	}
	return found, rest
}

type commonFlags struct {
	resolved config.ResolvedConfig
	rest     []string
}

func parseCommon(args []string) (commonFlags, error) {
	cfgPath, args := flagValue(args, "--config")
	dbPath, args := flagValue(args, "--db")
	embedFlag, args := flagValue(args, "--embed")
	budget, args := flagValue(args, "--budget")

	resolved, err := config.ResolveConfig(config.ResolveOptions{
		ConfigPath: cfgPath,
		CLIDBPath:  dbPath,
		CLIEmbed:   embedFlag,
		CLIBudget:  budget,
	})
	if err != nil {
		return commonFlags{}, err
	}
	return commonFlags{resolved: resolved, rest: args}, nil
}

func openStore(resolved config.ResolvedConfig) (*store.SQLiteStore, error) {
	return store.NewStore(store.Config{DBPath: resolved.DBPath.Value})
}

// buildEmbedder constructs the embedding client from the resolved
// config. No provider configured is not an error: the pipeline then
// runs degraded, without topic clustering.
func buildEmbedder(resolved config.ResolvedConfig) (embed.Embedder, error) {
	provider := strings.TrimSpace(resolved.EmbedProvider.Value)
	if provider == "" {
		return nil, nil
	}
	cfg, err := embed.ParseFlag(provider)
	if err != nil {
		return nil, err
	}
	if v := resolved.EmbedEndpoint.Value; v != "" {
		cfg.Endpoint = v
	}
	if v := resolved.EmbedAPIKey.Value; v != "" {
		cfg.APIKey = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return embed.NewClient(cfg)
}

func runAnalyze(args []string) error {
	common, err := parseCommon(args)
	if err != nil {
		return err
	}
	args = common.rest

	kind, args := flagValue(args, "--kind")
	format, args := flagValue(args, "--format")
	label, args := flagValue(args, "--label")
	timeoutStr, args := flagValue(args, "--timeout")
	noCluster, args := boolFlag(args, "--no-cluster")
	dryRun, args := boolFlag(args, "--dry-run")
	recursive, args := boolFlag(args, "--recursive")
	recursiveShort, args := boolFlag(args, "-r")

	var path string
	for _, arg := range args {
		if strings.HasPrefix(arg, "-") {
			return fmt.Errorf("unknown flag: %s", arg)
		}
		if path != "" {
			return fmt.Errorf("expected a single source path, got %q and %q", path, arg)
		}
		path = arg
	}
	if path == "" {
		return fmt.Errorf("usage: voiceprint analyze <path> [--kind email|chat|letter|code_comment|other] [--label name] [--no-cluster] [--dry-run]")
	}

	var stageTimeout time.Duration
	if timeoutStr != "" {
		secs, err := strconv.Atoi(timeoutStr)
		if err != nil || secs <= 0 {
			return fmt.Errorf("invalid --timeout %q: expected seconds", timeoutStr)
		}
		stageTimeout = time.Duration(secs) * time.Second
	}

	st, err := openStore(common.resolved)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	embedder, err := buildEmbedder(common.resolved)
	if err != nil {
		return fmt.Errorf("configuring embedder: %w", err)
	}
	if embedder == nil && !noCluster {
		fmt.Println(color.YellowString("No embedding provider configured; topic clustering will be skipped."))
	}

	if dryRun {
		fmt.Println("Dry run mode — nothing will be written")
	}
	fmt.Printf("Analyzing %s...\n", path)

	var bar *progressbar.ProgressBar
	progress := func(current, total int, file string) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription(color.BlueString("loading sources")),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetRenderBlankState(true),
			)
		}
		bar.Set(current)
	}

	runner := pipeline.NewRunner(st, common.resolved, embedder)
	report, err := runner.Run(context.Background(), pipeline.Options{
		SourcePath:   path,
		Label:        label,
		Kind:         kind,
		Format:       format,
		Recursive:    recursive || recursiveShort,
		DryRun:       dryRun,
		NoCluster:    noCluster,
		StageTimeout: stageTimeout,
		ProgressFn:   progress,
	})
	if bar != nil {
		bar.Finish()
		fmt.Println()
	}
	if err != nil {
		if errors.Is(err, store.ErrRunExists) && report != nil {
			fmt.Printf("Sources unchanged; profile already stored as run %s\n", color.CyanString(report.RunID))
			return nil
		}
		return err
	}

	printReport(report)
	return nil
}

func printReport(r *pipeline.Report) {
	fmt.Println()
	fmt.Printf("Run %s\n", color.CyanString(r.RunID))
	fmt.Printf("  Files scanned:  %d (skipped %d)\n", r.FilesScanned, r.FilesSkipped)
	fmt.Printf("  Documents:      %d loaded, %d malformed\n", r.DocsLoaded, r.Malformed)
	fmt.Printf("  Accepted:       %d (rejected %d)\n", r.DocsAccepted, r.DocsRejected)
	for flag, n := range r.RejectedByFlag {
		fmt.Printf("    %-13s %d\n", string(flag)+":", n)
	}
	if r.Degraded {
		fmt.Printf("  Topics:         %s (%s)\n", color.YellowString("skipped"), r.DegradedReason)
	} else {
		fmt.Printf("  Topics:         %d (%d noise docs)\n", r.Topics, r.Noise)
	}
	fmt.Printf("  Profile:        %d chars", r.RenderedChars)
	if r.Truncated {
		fmt.Printf(", truncated (dropped: %s)", strings.Join(r.DroppedSections, ", "))
	}
	fmt.Println()
	switch {
	case r.DryRun:
		fmt.Println(color.YellowString("  Not saved (dry run)"))
	case r.Saved:
		fmt.Println(color.GreenString("  Saved"))
	}
}

func runList(args []string) error {
	common, err := parseCommon(args)
	if err != nil {
		return err
	}
	limitStr, _ := flagValue(common.rest, "--limit")
	limit := 50
	if limitStr != "" {
		if limit, err = strconv.Atoi(limitStr); err != nil {
			return fmt.Errorf("invalid --limit %q", limitStr)
		}
	}

	st, err := openStore(common.resolved)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	recs, err := st.ListProfiles(context.Background(), limit)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("No profiles stored. Run `voiceprint analyze <path>` first.")
		return nil
	}

	fmt.Printf("%-18s %-20s %-22s %6s %7s\n", "RUN ID", "LABEL", "CREATED", "DOCS", "TOPICS")
	for _, r := range recs {
		topics := strconv.Itoa(len(r.Topics))
		if r.Degraded {
			topics = "-"
		}
		fmt.Printf("%-18s %-20s %-22s %6d %7s\n",
			color.CyanString(r.RunID), truncate(r.Label, 20),
			r.CreatedAt.Local().Format("2006-01-02 15:04"), r.DocCount, topics)
	}
	return nil
}

func runShow(args []string) error {
	common, err := parseCommon(args)
	if err != nil {
		return err
	}
	if len(common.rest) != 1 {
		return fmt.Errorf("usage: voiceprint show <run-id>")
	}
	runID := common.rest[0]

	st, err := openStore(common.resolved)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	rec, err := st.GetProfile(context.Background(), runID)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s", color.CyanString(rec.RunID))
	if rec.Label != "" {
		fmt.Printf("  (%s)", rec.Label)
	}
	fmt.Printf("\nCreated %s, %d documents", rec.CreatedAt.Local().Format(time.RFC1123), rec.DocCount)
	if rec.Degraded {
		fmt.Printf(", %s", color.YellowString("degraded"))
	}
	fmt.Println()
	fmt.Printf("Avg sentence %.1f words, lexical richness %.2f, formality %.2f, enthusiasm %.2f\n",
		rec.Linguistic.AvgSentenceLength, rec.Linguistic.LexicalRichness,
		rec.Linguistic.FormalityScore, rec.Linguistic.EnthusiasmScore)
	if len(rec.Topics) > 0 {
		fmt.Println("Topics:")
		for _, topic := range rec.Topics {
			fmt.Printf("  %-24s %d docs  (%s)\n", topic.Label, topic.MemberCount, strings.Join(topic.Terms, ", "))
		}
	}
	fmt.Println()
	fmt.Println(rec.RenderedText)
	return nil
}

func runExport(args []string) error {
	common, err := parseCommon(args)
	if err != nil {
		return err
	}
	outPath, rest := flagValue(common.rest, "--out")
	textOnly, rest := boolFlag(rest, "--text")
	if len(rest) != 1 {
		return fmt.Errorf("usage: voiceprint export <run-id> [--out file] [--text]")
	}
	runID := rest[0]

	st, err := openStore(common.resolved)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	rec, err := st.GetProfile(context.Background(), runID)
	if err != nil {
		return err
	}

	var payload []byte
	if textOnly {
		payload = []byte(rec.RenderedText)
	} else {
		payload, err = json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding profile: %w", err)
		}
		payload = append(payload, '\n')
	}

	if outPath == "" {
		fmt.Print(string(payload))
		return nil
	}
	if err := os.WriteFile(outPath, payload, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	fmt.Printf("Exported run %s to %s\n", runID, outPath)
	return nil
}

func runDelete(args []string) error {
	common, err := parseCommon(args)
	if err != nil {
		return err
	}
	if len(common.rest) != 1 {
		return fmt.Errorf("usage: voiceprint delete <run-id>")
	}
	runID := common.rest[0]

	st, err := openStore(common.resolved)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	deleted, err := st.DeleteProfile(context.Background(), runID)
	if err != nil {
		return err
	}
	if deleted {
		fmt.Printf("Deleted run %s\n", runID)
	} else {
		fmt.Printf("No profile with run id %s (nothing to do)\n", runID)
	}
	return nil
}

func runStats(args []string) error {
	common, err := parseCommon(args)
	if err != nil {
		return err
	}

	st, err := openStore(common.resolved)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	stats, err := st.Stats(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Database:  %s (%s)\n", common.resolved.DBPath.Value, common.resolved.DBPath.Source)
	fmt.Printf("Profiles:  %d\n", stats.ProfileCount)
	if stats.ProfileCount > 0 {
		fmt.Printf("Oldest:    %s\n", stats.OldestRun.Local().Format("2006-01-02 15:04"))
		fmt.Printf("Newest:    %s\n", stats.NewestRun.Local().Format("2006-01-02 15:04"))
	}
	if stats.DBSizeBytes > 0 {
		fmt.Printf("Size:      %.1f KB\n", float64(stats.DBSizeBytes)/1024)
	}
	return nil
}

func runMCP(args []string) error {
	common, err := parseCommon(args)
	if err != nil {
		return err
	}

	st, err := openStore(common.resolved)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	embedder, err := buildEmbedder(common.resolved)
	if err != nil {
		return fmt.Errorf("configuring embedder: %w", err)
	}

	srv := mcpserver.NewServer(mcpserver.ServerConfig{
		Store:   st,
		Runner:  pipeline.NewRunner(st, common.resolved, embedder),
		Version: version,
	})

	fmt.Fprintln(os.Stderr, "voiceprint MCP server listening on stdio")
	return mcpserverlib.ServeStdio(srv)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func printUsage() {
	fmt.Printf(`voiceprint %s — Build a voice profile from a corpus of writing samples

Usage:
  voiceprint <command> [arguments]

Commands:
  analyze <path>      Analyze writing samples and store a voice profile
  list                List stored profiles
  show <run-id>       Show one profile in full
  export <run-id>     Export a profile as JSON (or --text for the prompt only)
  delete <run-id>     Delete a profile
  stats               Show store statistics
  mcp                 Serve profiles over the Model Context Protocol (stdio)
  version             Print version

Analyze Flags:
  --kind <kind>       Source kind: email, chat, letter, code_comment, other
  --format <fmt>      Force input format: text, csv, mbox, jsonl
  --label <name>      Label stored with the profile
  --embed <p/m>       Embedding provider/model (e.g. ollama/nomic-embed-text)
  --no-cluster        Skip topic clustering
  --dry-run           Compute everything, write nothing
  -r, --recursive     Recurse into subdirectories
  --timeout <secs>    Per-stage timeout (default 120)
  --budget <chars>    Profile size budget (default 16000)

Common Flags:
  --config <path>     Config file (default ~/.voiceprint/config.yaml)
  --db <path>         Database path (default ~/.voiceprint/voiceprint.db)

Raw source text never reaches the database; only aggregate statistics
and the rendered profile are stored.
`, version)
}
