package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/mcp-promptdex-server/internal/catalog"
)

// ServerConfig contains configuration for creating an MCP server
type ServerConfig struct {
	Name    string
	Version string

	// Catalog is optional; without it the server exposes no tools
	Catalog *catalog.Service
}

// CreateServer creates and configures the MCP server
func CreateServer(cfg ServerConfig) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &mcp.ServerOptions{
		Instructions: "Search and read prompts from the prompt catalog. Use search_prompts to find prompts by keywords, then get_prompt to read one in full.",
	})

	if cfg.Catalog != nil {
		catalog.RegisterTools(s, cfg.Catalog)
	}

	return s
}
