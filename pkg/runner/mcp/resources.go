package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func registerResources(srv *server.MCPServer, svc *Service) {
	registerStatusResource(srv, svc)
	registerEntryTemplate(srv, svc)
}

func registerStatusResource(srv *server.MCPServer, svc *Service) {
	resource := mcp.NewResource(
		"tock://status",
		"Status",
		mcp.WithResourceDescription("Current logging state, target window and missed windows."),
		mcp.WithMIMEType("application/json"),
	)

	srv.AddResource(resource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		dto, err := svc.Status(ctx, "")
		if err != nil {
			return nil, err
		}
		return encodeResourceJSON(request.Params.URI, dto)
	})
}

func registerEntryTemplate(srv *server.MCPServer, svc *Service) {
	template := mcp.NewResourceTemplate(
		"tock://entries/{id}",
		"Entry Details",
		mcp.WithTemplateDescription("A single journal entry."),
		mcp.WithTemplateMIMEType("application/json"),
	)

	srv.AddResourceTemplate(template, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		id := templateArg(request.Params.Arguments["id"])
		if id == "" {
			return nil, fmt.Errorf("entry id is required")
		}

		dto, err := svc.EntryByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return encodeResourceJSON(request.Params.URI, map[string]any{"entry": dto})
	})
}

// templateArg accepts both the string and []string forms URI template
// arguments arrive in.
func templateArg(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []string:
		if len(t) > 0 {
			return t[0]
		}
	}
	return ""
}

func encodeResourceJSON(uri string, payload any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
