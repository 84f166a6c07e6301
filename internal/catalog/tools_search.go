package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/mcp-promptdex-server/internal/domain"
	"github.com/sha1n/mcp-promptdex-server/internal/search"
)

const (
	// highlightOpen and highlightClose wrap matched terms in Markdown bold
	highlightOpen  = "**"
	highlightClose = "**"

	// excerptLength is the maximum number of runes of description shown per result
	excerptLength = 200
)

// SearchArgument defines search parameters.
type SearchArgument struct {
	Query      string  `json:"query,omitempty" jsonschema:"Free-text query; every word is matched separately. Leave empty to list all prompts"`
	Mode       string  `json:"mode,omitempty" jsonschema:"Ranking mode: relevance (default), fulltext or combined"`
	MinScore   float64 `json:"min_score,omitempty" jsonschema:"Minimum relevance score. 0 or omitted uses the server default; pass a negative value to disable the threshold"`
	MaxResults int     `json:"max_results,omitempty" jsonschema:"Maximum number of results. 0 or omitted uses the server default; pass a negative value for no limit"`
	Product    string  `json:"product,omitempty" jsonschema:"Only prompts of this product (name or ID, case-insensitive)"`
	Epic       string  `json:"epic,omitempty" jsonschema:"Only prompts of this epic (name or ID, case-insensitive)"`
	Status     string  `json:"status,omitempty" jsonschema:"Only prompts with this status (case-insensitive)"`
}

// SearchHandler handles the search MCP tool.
type SearchHandler struct {
	service *Service
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(service *Service) *SearchHandler {
	return &SearchHandler{
		service: service,
	}
}

// Handle executes the search and returns formatted results.
func (h *SearchHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args SearchArgument) (*mcp.CallToolResult, any, error) {
	if !h.service.IsReady() {
		return errorResult(notReadyMessage), nil, nil
	}

	mode, err := ParseMode(args.Mode)
	if err != nil {
		return errorResult(fmt.Sprintf("Invalid mode: %s", err)), nil, nil
	}

	results, err := h.service.Search(ctx, args.Query, SearchOptions{
		Mode:       mode,
		MinScore:   args.MinScore,
		MaxResults: args.MaxResults,
		Product:    args.Product,
		Epic:       args.Epic,
		Status:     args.Status,
	})
	if err != nil {
		if errors.Is(err, ErrNotReady) {
			return errorResult(notReadyMessage), nil, nil
		}
		return errorResult(fmt.Sprintf("Search failed: %s", err)), nil, nil
	}

	return h.formatResults(results, args.Query), nil, nil
}

// formatResults formats ranked prompts for MCP response.
func (h *SearchHandler) formatResults(results []search.Result, queryStr string) *mcp.CallToolResult {
	queryStr = strings.TrimSpace(queryStr)
	if len(results) == 0 {
		if queryStr == "" {
			return textResult("The catalog contains no matching prompts.")
		}
		return textResult(fmt.Sprintf("No prompts found for query: %s", queryStr))
	}

	terms := search.ExtractTerms(queryStr)

	var sb strings.Builder
	if queryStr == "" {
		sb.WriteString(fmt.Sprintf("Listing %d prompts:\n\n", len(results)))
	} else {
		sb.WriteString(fmt.Sprintf("Found %d prompts for '%s':\n\n", len(results), queryStr))
	}

	for i, r := range results {
		p := r.Prompt
		sb.WriteString(fmt.Sprintf("### %d. %s\n", i+1, search.HighlightWith(p.Title, terms, highlightOpen, highlightClose)))
		sb.WriteString(fmt.Sprintf("**ID**: %s\n", p.ID))
		sb.WriteString(fmt.Sprintf("**Score**: %.4f\n", r.Score))
		if len(r.MatchedFields) > 0 {
			sb.WriteString(fmt.Sprintf("**Matched fields**: %s\n", strings.Join(r.MatchedFields, ", ")))
		}
		if location := formatLocation(p); location != "" {
			sb.WriteString(fmt.Sprintf("**Location**: %s\n", location))
		}
		if p.Status != "" {
			sb.WriteString(fmt.Sprintf("**Status**: %s\n", p.Status))
		}
		if excerpt := truncate(p.Description, excerptLength); excerpt != "" {
			sb.WriteString("\n")
			sb.WriteString(search.HighlightWith(excerpt, terms, highlightOpen, highlightClose))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	return textResult(sb.String())
}

// formatLocation renders "product / epic" with whichever parts are known.
func formatLocation(p domain.Prompt) string {
	var parts []string
	if p.ProductName != "" {
		parts = append(parts, p.ProductName)
	}
	if p.EpicName != "" {
		parts = append(parts, p.EpicName)
	}
	return strings.Join(parts, " / ")
}

// truncate shortens text to at most n runes, marking the cut with an ellipsis.
func truncate(text string, n int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return strings.TrimSpace(string(runes[:n])) + "…"
}

// GetToolDefinition returns the MCP tool definition.
func (h *SearchHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "search_prompts",
		Description: "Search the prompt catalog. Results are ranked by weighted relevance across title, generated prompt, description, product and epic",
	}
}

// RegisterSearchTool registers the search tool with an MCP server.
func RegisterSearchTool(server *mcp.Server, service *Service) {
	handler := NewSearchHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
