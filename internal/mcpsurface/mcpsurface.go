// Package mcpsurface registers the one agent-facing MCP tool, find_code,
// against the orchestrator, grounded on the teacher's internal/mcp/tool.go
// AddCortexSearchTool/createCortexSearchHandler pattern (composable
// registration function + captured-dependency handler factory) and
// server.go's server.NewMCPServer/server.ServeStdio lifecycle. Unlike the
// teacher's five tools (cortex_search/_exact/_graph/_files/_pattern), the
// spec names exactly one tool, so this package has one registration
// function rather than one file per tool.
package mcpsurface

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/knitli/codeweaver/internal/orchestrator"
)

// Finder is the subset of *orchestrator.Orchestrator this package depends
// on, named as an interface so tests can substitute a fake.
type Finder interface {
	FindCode(ctx context.Context, req orchestrator.Request) orchestrator.Result
}

// New builds an MCP server with find_code registered, ready for
// server.ServeStdio or server.NewStdioServer-style hosting by the
// composition root.
func New(name, version string, finder Finder) *server.MCPServer {
	s := server.NewMCPServer(name, version, server.WithToolCapabilities(false))
	AddFindCodeTool(s, finder)
	return s
}

// AddFindCodeTool registers find_code with s. Composable, matching the
// teacher's AddCortex*Tool shape, should a second tool ever be added.
func AddFindCodeTool(s *server.MCPServer, finder Finder) {
	tool := mcp.NewTool(
		"find_code",
		mcp.WithDescription("Search the indexed codebase for relevant code spans using hybrid dense+sparse retrieval, optional reranking, and task-aware importance scoring. Returns ranked code snippets with file/line location."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language or keyword search query, e.g. 'retry logic for the embedding client'.")),
		mcp.WithString("intent",
			mcp.Description("Task the results will be used for: discovery, comprehension, modification, debugging, or documentation. Biases ranking toward chunks scored important for that task.")),
		mcp.WithNumber("token_limit",
			mcp.Description("Approximate maximum total tokens across returned snippets (default 30000).")),
		mcp.WithArray("focus_languages",
			mcp.Description("Restrict results to these languages (e.g. ['go', 'python']). Leave empty to search all indexed languages.")),
	)
	s.AddTool(tool, findCodeHandler(finder))
}

func findCodeHandler(finder Finder) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		argsMap, ok := request.Params.Arguments.(map[string]interface{})
		if !ok {
			return mcp.NewToolResultError("invalid arguments format"), nil
		}

		query, ok := argsMap["query"].(string)
		if !ok || query == "" {
			return mcp.NewToolResultError("query parameter is required"), nil
		}

		req := orchestrator.Request{Query: query}

		if intent, ok := argsMap["intent"].(string); ok {
			req.Intent = orchestrator.Intent(intent)
		}
		if limit, ok := argsMap["token_limit"].(float64); ok {
			req.TokenLimit = int(limit)
		}
		if langs, ok := argsMap["focus_languages"].([]interface{}); ok {
			req.FocusLanguages = make([]string, 0, len(langs))
			for _, l := range langs {
				if s, ok := l.(string); ok {
					req.FocusLanguages = append(req.FocusLanguages, s)
				}
			}
		}

		result := finder.FindCode(ctx, req)

		jsonData, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal find_code result: %w", err)
		}
		return mcp.NewToolResultText(string(jsonData)), nil
	}
}
