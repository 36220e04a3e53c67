// Package mcpserver provides a Model Context Protocol surface over the
// profile store, so an LLM host can list stored voice profiles, pull one
// as a system prompt, or trigger a new analysis run. Supports stdio
// transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/oklo/voiceprint/internal/pipeline"
	"github.com/oklo/voiceprint/internal/store"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Store   store.Store
	Runner  *pipeline.Runner // optional; nil disables voiceprint_analyze
	Version string
}

// dbMu serializes MCP handlers that touch the database. The mcp-go
// library dispatches handlers concurrently via goroutines; SQLite
// supports only one writer at a time, and an analyze run must finish
// before a list or show sees its profile.
var dbMu sync.Mutex

// profileSummary is the list-level view of a stored profile.
type profileSummary struct {
	RunID     string    `json:"run_id"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	DocCount  int       `json:"doc_count"`
	Topics    int       `json:"topics"`
	Degraded  bool      `json:"degraded"`
}

// NewServer creates a configured MCP server with all voiceprint tools
// and resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"Voiceprint",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	registerListTool(s, cfg.Store)
	registerShowTool(s, cfg.Store)
	registerPromptTool(s, cfg.Store)
	if cfg.Runner != nil {
		registerAnalyzeTool(s, cfg.Runner)
	}

	registerRecentResource(s, cfg.Store)

	return s
}

func registerListTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("voiceprint_list",
		mcp.WithDescription("List stored voice profiles, newest first. Returns run ids, labels, document counts, and topic counts."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of profiles (default: 20, max: 100)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		limit := 20
		if limitVal, err := req.RequireFloat("limit"); err == nil && int(limitVal) > 0 {
			limit = int(limitVal)
			if limit > 100 {
				limit = 100
			}
		}

		recs, err := st.ListProfiles(ctx, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list error: %v", err)), nil
		}

		summaries := make([]profileSummary, 0, len(recs))
		for _, r := range recs {
			summaries = append(summaries, summarize(r))
		}
		data, _ := json.MarshalIndent(summaries, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerShowTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("voiceprint_show",
		mcp.WithDescription("Show one stored voice profile in full: linguistic statistics, topics, knowledge boundaries, and the rendered profile text."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("run_id",
			mcp.Required(),
			mcp.Description("Run id of the profile to show"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		runID, err := req.RequireString("run_id")
		if err != nil {
			return mcp.NewToolResultError("run_id is required"), nil
		}

		rec, err := st.GetProfile(ctx, runID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return mcp.NewToolResultError(fmt.Sprintf("no profile with run id %q", runID)), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("show error: %v", err)), nil
		}

		data, _ := json.MarshalIndent(rec, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerPromptTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("voiceprint_prompt",
		mcp.WithDescription("Return a stored profile's rendered text, ready to use verbatim as a system prompt. Without run_id, returns the most recent profile."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("run_id",
			mcp.Description("Run id of the profile; empty = most recent"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		var rec *store.ProfileRecord
		if runID, err := req.RequireString("run_id"); err == nil && strings.TrimSpace(runID) != "" {
			rec, err = st.GetProfile(ctx, runID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return mcp.NewToolResultError(fmt.Sprintf("no profile with run id %q", runID)), nil
				}
				return mcp.NewToolResultError(fmt.Sprintf("prompt error: %v", err)), nil
			}
		} else {
			recs, err := st.ListProfiles(ctx, 1)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("prompt error: %v", err)), nil
			}
			if len(recs) == 0 {
				return mcp.NewToolResultError("no profiles stored yet; run voiceprint_analyze first"), nil
			}
			rec = recs[0]
		}

		return mcp.NewToolResultText(rec.RenderedText), nil
	})
}

func registerAnalyzeTool(s *server.MCPServer, runner *pipeline.Runner) {
	tool := mcp.NewTool("voiceprint_analyze",
		mcp.WithDescription("Analyze a corpus of writing samples at a local path and store the resulting voice profile. Raw text is never persisted."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("File or directory of writing samples (.txt, .md, .csv, .mbox, .jsonl)"),
		),
		mcp.WithString("label",
			mcp.Description("Opaque label stored with the profile"),
		),
		mcp.WithString("kind",
			mcp.Description("Source kind override: email, chat, letter, code_comment, other"),
		),
		mcp.WithBoolean("recursive",
			mcp.Description("Recurse into subdirectories (default: false)"),
		),
		mcp.WithBoolean("no_cluster",
			mcp.Description("Skip topic clustering (default: false)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		path, err := req.RequireString("path")
		if err != nil || strings.TrimSpace(path) == "" {
			return mcp.NewToolResultError("path is required"), nil
		}

		opts := pipeline.Options{SourcePath: path}
		if label, err := req.RequireString("label"); err == nil {
			opts.Label = label
		}
		if kind, err := req.RequireString("kind"); err == nil {
			opts.Kind = kind
		}
		opts.Recursive = boolArg(req, "recursive")
		opts.NoCluster = boolArg(req, "no_cluster")

		report, err := runner.Run(ctx, opts)
		if err != nil {
			if errors.Is(err, store.ErrRunExists) && report != nil {
				return mcp.NewToolResultText(fmt.Sprintf(
					"sources unchanged; profile already stored as run %s", report.RunID)), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("analyze error: %v", err)), nil
		}

		data, _ := json.MarshalIndent(report, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerRecentResource(s *server.MCPServer, st store.Store) {
	resource := mcp.NewResource(
		"voiceprint://profiles/recent",
		"Recent Voice Profiles",
		mcp.WithResourceDescription("The most recently stored voice profiles with summary statistics."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		recs, err := st.ListProfiles(ctx, 10)
		if err != nil {
			return nil, fmt.Errorf("querying recent profiles: %w", err)
		}

		summaries := make([]profileSummary, 0, len(recs))
		for _, r := range recs {
			summaries = append(summaries, summarize(r))
		}
		payload := map[string]interface{}{
			"profiles": summaries,
			"count":    len(summaries),
		}
		data, _ := json.MarshalIndent(payload, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: req.Params.URI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}

// boolArg reads an optional boolean argument, accepting both JSON
// booleans and the string form "true".
func boolArg(req mcp.CallToolRequest, name string) bool {
	if v, err := req.RequireBool(name); err == nil {
		return v
	}
	if s, err := req.RequireString(name); err == nil {
		return s == "true"
	}
	return false
}

func summarize(r *store.ProfileRecord) profileSummary {
	return profileSummary{
		RunID:     r.RunID,
		Label:     r.Label,
		CreatedAt: r.CreatedAt,
		DocCount:  r.DocCount,
		Topics:    len(r.Topics),
		Degraded:  r.Degraded,
	}
}
