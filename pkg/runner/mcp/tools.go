package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func registerTools(srv *server.MCPServer, svc *Service) {
	registerGetStatusTool(srv, svc)
	registerListMissedTool(srv, svc)
	registerLogEntryTool(srv, svc)
	registerCatchUpTool(srv, svc)
	registerListEntriesTool(srv, svc)
	registerGetEntryTool(srv, svc)
}

func registerGetStatusTool(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool(
		"get_status",
		mcp.WithDescription("Report the current logging state, the window an entry would be logged to, time remaining, and missed windows."),
		mcp.WithString("since",
			mcp.Description("Optional lookback for missed windows such as 1d or 8h. Defaults to the first entry."),
		),
	)

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dto, err := svc.Status(ctx, request.GetString("since", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return toJSONResult(dto)
	})
}

func registerListMissedTool(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool(
		"list_missed",
		mcp.WithDescription("List windows that have ended without an entry, oldest first."),
		mcp.WithString("since",
			mcp.Description("Optional lookback such as 1d or 8h. Defaults to the first entry."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Optional maximum number of the most recent windows to return."),
		),
	)

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := request.GetInt("limit", 0)
		windows, err := svc.Missed(ctx, request.GetString("since", ""), limit)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return toJSONResult(map[string]any{
			"missed": windows,
			"count":  len(windows),
		})
	})
}

func registerLogEntryTool(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool(
		"log_entry",
		mcp.WithDescription("Record what happened in the current target window."),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("What was done during the window."),
		),
		mcp.WithArray("tags",
			mcp.Description("Optional quick tags."),
			mcp.WithStringItems(),
		),
		mcp.WithBoolean("force",
			mcp.Description("Add another entry even if the window is already logged."),
		),
	)

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			Text  string   `json:"text"`
			Tags  []string `json:"tags"`
			Force bool     `json:"force"`
		}
		if err := request.BindArguments(&args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		dto, err := svc.Log(ctx, args.Text, args.Tags, args.Force)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return toJSONResult(dto)
	})
}

func registerCatchUpTool(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool(
		"catch_up",
		mcp.WithDescription("Fill several missed windows with the same text."),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Text recorded in every selected window."),
		),
		mcp.WithArray("windows",
			mcp.Description("RFC3339 start times of the missed windows to fill."),
			mcp.WithStringItems(),
		),
		mcp.WithBoolean("all",
			mcp.Description("Fill every missed window."),
		),
	)

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			Text    string   `json:"text"`
			Windows []string `json:"windows"`
			All     bool     `json:"all"`
		}
		if err := request.BindArguments(&args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		dto, err := svc.CatchUp(ctx, args.Windows, args.All, args.Text)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return catchUpResult(dto)
	})
}

func registerListEntriesTool(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool(
		"list_entries",
		mcp.WithDescription("List journal entries ordered by window start."),
		mcp.WithString("since",
			mcp.Description("Optional lookback such as 1d or 1w. Defaults to all entries."),
		),
	)

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		entries, err := svc.ListEntries(ctx, request.GetString("since", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return toJSONResult(map[string]any{
			"entries": entries,
			"count":   len(entries),
		})
	})
}

func registerGetEntryTool(srv *server.MCPServer, svc *Service) {
	tool := mcp.NewTool(
		"get_entry",
		mcp.WithDescription("Fetch a single entry by identifier."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Entry identifier to fetch."),
		),
	)

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		dto, err := svc.EntryByID(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return toJSONResult(dto)
	})
}

// catchUpResult flags the result as an error when any window was left
// unwritten. The body still lists what was written.
func catchUpResult(dto CatchUpDTO) (*mcp.CallToolResult, error) {
	result, err := toJSONResult(dto)
	if err != nil {
		return nil, err
	}
	if !dto.OK {
		result.IsError = true
	}
	return result, nil
}

func toJSONResult(data any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(data)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal error: %v", err)), nil
	}
	return result, nil
}
