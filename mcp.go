package tilewalk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/tilewalk/internal/store"
)

// RegisterMCP registers the scraper tools on an MCP server.
func (r *Runner) RegisterMCP(srv *mcp.Server) {
	r.registerScrapeTool(srv)
	r.registerCancelTool(srv)
	r.registerExportTool(srv)
	r.registerStatusTool(srv)
	r.registerSettingsTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func textResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		var res mcp.CallToolResult
		res.SetError(fmt.Errorf("marshal: %w", err))
		return &res, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil
}

func errResult(err error) (*mcp.CallToolResult, error) {
	var res mcp.CallToolResult
	res.SetError(err)
	return &res, nil
}

// --- scrape ---

type scrapeArgs struct {
	Variant string `json:"variant"`
	URL     string `json:"url"`
}

func (r *Runner) registerScrapeTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tilewalk_scrape",
		Description: "Walk a profile listing tile by tile and export the extracted records as CSV. Blocks until the run finishes.",
		InputSchema: inputSchema(map[string]any{
			"variant": map[string]any{"type": "string", "description": "Listing variant: nearby or travel"},
			"url":     map[string]any{"type": "string", "description": "Listing URL (default: configured target)"},
		}, []string{"variant"}),
	}

	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args scrapeArgs
		if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
			return errResult(fmt.Errorf("invalid arguments: %w", err))
		}
		path, err := r.Run(ctx, args.Variant, args.URL)
		if err != nil {
			return errResult(err)
		}
		return textResult(map[string]string{"status": "done", "path": path})
	})
}

// --- cancel ---

func (r *Runner) registerCancelTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tilewalk_cancel",
		Description: "Request a graceful stop of the running scrape. The current profile completes, collected records are exported.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	srv.AddTool(tool, func(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		r.Cancel()
		return textResult(map[string]string{"status": "cancel requested"})
	})
}

// --- export ---

type exportArgs struct {
	Variant string `json:"variant"`
}

func (r *Runner) registerExportTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tilewalk_export",
		Description: "Re-export the most recently scraped batch as a fresh CSV file without a new run.",
		InputSchema: inputSchema(map[string]any{
			"variant": map[string]any{"type": "string", "description": "Restrict to one variant; empty = newest batch of any variant"},
		}, nil),
	}

	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args exportArgs
		if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
			return errResult(fmt.Errorf("invalid arguments: %w", err))
		}
		path, err := r.ExportLast(ctx, args.Variant)
		if errors.Is(err, store.ErrNoBatch) {
			return errResult(fmt.Errorf("no batch to export"))
		}
		if err != nil {
			return errResult(err)
		}
		return textResult(map[string]string{"status": "exported", "path": path})
	})
}

// --- settings ---

type settingsArgs struct {
	FaceKey     string `json:"face_key"`
	FaceSecret  string `json:"face_secret"`
	FaceEnabled bool   `json:"face_enabled"`
}

func (r *Runner) registerSettingsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tilewalk_settings",
		Description: "Persist face-detection credentials for subsequent runs.",
		InputSchema: inputSchema(map[string]any{
			"face_key":     map[string]any{"type": "string", "description": "Face API key"},
			"face_secret":  map[string]any{"type": "string", "description": "Face API secret"},
			"face_enabled": map[string]any{"type": "boolean", "description": "Enable enrichment on runs"},
		}, nil),
	}

	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args settingsArgs
		if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
			return errResult(fmt.Errorf("invalid arguments: %w", err))
		}
		if err := r.SaveFaceSettings(ctx, args.FaceKey, args.FaceSecret, args.FaceEnabled); err != nil {
			return errResult(err)
		}
		return textResult(map[string]string{"status": "saved"})
	})
}

// --- status ---

func (r *Runner) registerStatusTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tilewalk_status",
		Description: "Report whether a scrape run is currently in progress.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	srv.AddTool(tool, func(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return textResult(map[string]any{"running": r.Running()})
	})
}
