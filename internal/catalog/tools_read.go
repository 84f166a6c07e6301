package catalog

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/mcp-promptdex-server/internal/domain"
)

const notReadyMessage = "The prompt catalog is not available yet. It is still loading or its last load failed. Please try again later."

// GetPromptArgument defines get_prompt parameters.
type GetPromptArgument struct {
	ID string `json:"id" jsonschema:"Prompt ID as shown in search results"`
}

// GetPromptHandler handles the get_prompt MCP tool.
type GetPromptHandler struct {
	service *Service
}

// NewGetPromptHandler creates a new get_prompt handler.
func NewGetPromptHandler(service *Service) *GetPromptHandler {
	return &GetPromptHandler{
		service: service,
	}
}

// Handle looks up a prompt and returns it as Markdown.
func (h *GetPromptHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args GetPromptArgument) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(args.ID) == "" {
		return errorResult("ID cannot be empty"), nil, nil
	}

	prompt, err := h.service.Get(args.ID)
	switch {
	case errors.Is(err, ErrNotReady):
		return errorResult(notReadyMessage), nil, nil
	case errors.Is(err, ErrPromptNotFound):
		return errorResult(fmt.Sprintf("Prompt not found: %s", args.ID)), nil, nil
	case err != nil:
		return errorResult(fmt.Sprintf("Failed to get prompt: %s", err)), nil, nil
	}

	return textResult(formatPrompt(prompt)), nil, nil
}

// formatPrompt renders the full prompt record.
func formatPrompt(p domain.Prompt) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", p.Title))
	sb.WriteString(fmt.Sprintf("**ID**: %s\n", p.ID))
	if p.ProductName != "" || p.ProductID != "" {
		sb.WriteString(fmt.Sprintf("**Product**: %s\n", cmp.Or(p.ProductName, p.ProductID)))
	}
	if p.EpicName != "" || p.EpicID != "" {
		sb.WriteString(fmt.Sprintf("**Epic**: %s\n", cmp.Or(p.EpicName, p.EpicID)))
	}
	if p.Status != "" {
		sb.WriteString(fmt.Sprintf("**Status**: %s\n", p.Status))
	}
	if label := domain.PriorityLabel(p.Priority); label != "" {
		sb.WriteString(fmt.Sprintf("**Priority**: %s\n", label))
	}
	if len(p.Tags) > 0 {
		sb.WriteString(fmt.Sprintf("**Tags**: %s\n", strings.Join(p.Tags, ", ")))
	}
	if !p.UpdatedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("**Updated**: %s\n", p.UpdatedAt.Format(time.RFC3339)))
	}

	if p.Description != "" {
		sb.WriteString("\n## Description\n\n")
		sb.WriteString(p.Description)
		sb.WriteString("\n")
	}
	if p.GeneratedPrompt != "" {
		sb.WriteString("\n## Prompt\n\n```\n")
		sb.WriteString(p.GeneratedPrompt)
		sb.WriteString("\n```\n")
	}
	return sb.String()
}

// GetToolDefinition returns the MCP tool definition.
func (h *GetPromptHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_prompt",
		Description: "Get the full content of a prompt from the catalog by its ID",
	}
}

// StatsArgument defines catalog_stats parameters. The tool takes none.
type StatsArgument struct{}

// StatsHandler handles the catalog_stats MCP tool.
type StatsHandler struct {
	service *Service
}

// NewStatsHandler creates a new catalog_stats handler.
func NewStatsHandler(service *Service) *StatsHandler {
	return &StatsHandler{
		service: service,
	}
}

// Handle reports catalog counts and load state.
func (h *StatsHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args StatsArgument) (*mcp.CallToolResult, any, error) {
	stats := h.service.Stats()

	var sb strings.Builder
	sb.WriteString("# Catalog\n\n")
	sb.WriteString(fmt.Sprintf("**Ready**: %t\n", stats.Ready))
	sb.WriteString(fmt.Sprintf("**Prompts**: %d\n", stats.Prompts))
	sb.WriteString(fmt.Sprintf("**Files**: %d\n", stats.Files))
	if !stats.LastLoad.IsZero() {
		sb.WriteString(fmt.Sprintf("**Last load**: %s\n", stats.LastLoad.Format(time.RFC3339)))
	}
	if stats.LastError != "" {
		sb.WriteString(fmt.Sprintf("**Last error**: %s\n", stats.LastError))
	}

	writeCounts(&sb, "By product", stats.ByProduct)
	writeCounts(&sb, "By status", stats.ByStatus)

	return textResult(sb.String()), nil, nil
}

// writeCounts writes a sorted count table section.
func writeCounts(sb *strings.Builder, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	sb.WriteString(fmt.Sprintf("\n## %s\n\n", title))
	for _, name := range slices.Sorted(maps.Keys(counts)) {
		sb.WriteString(fmt.Sprintf("- %s: %d\n", name, counts[name]))
	}
}

// GetToolDefinition returns the MCP tool definition.
func (h *StatsHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "catalog_stats",
		Description: "Show prompt catalog statistics: prompt and file counts, breakdown by product and status, and last load time",
	}
}

// RegisterReadTools registers the get_prompt and catalog_stats tools with an MCP server.
func RegisterReadTools(server *mcp.Server, service *Service) {
	getHandler := NewGetPromptHandler(service)
	mcp.AddTool(server, getHandler.GetToolDefinition(), getHandler.Handle)

	statsHandler := NewStatsHandler(service)
	mcp.AddTool(server, statsHandler.GetToolDefinition(), statsHandler.Handle)
}

// RegisterTools registers all catalog tools with an MCP server.
func RegisterTools(server *mcp.Server, service *Service) {
	RegisterSearchTool(server, service)
	RegisterReadTools(server, service)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	result := textResult(text)
	result.IsError = true
	return result
}
