package integration

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/mcp-promptdex-server/internal/catalog"
	"github.com/sha1n/mcp-promptdex-server/internal/domain"
	mcputil "github.com/sha1n/mcp-promptdex-server/internal/mcp"
	"github.com/sha1n/mcp-promptdex-server/tests/integration/testkit"
)

// ========================================
// Service Lifecycle Tests
// ========================================

func TestServiceLifecycle_MultipleFiles(t *testing.T) {
	dir := t.TempDir()
	svc := setupTestService(t, dir)
	defer closeService(t, svc)

	stats := svc.Stats()
	if !stats.Ready {
		t.Fatal("Expected service to be ready")
	}
	if stats.Files != 2 {
		t.Errorf("Expected 2 files, got %d", stats.Files)
	}
	if stats.Prompts != 5 {
		t.Errorf("Expected 5 prompts, got %d", stats.Prompts)
	}

	// The YAML file is loaded after the JSON one and overrides the duplicate ID
	p, err := svc.Get("login-form")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if p.Title != "Login page redesign" {
		t.Errorf("Expected overriding title, got %q", p.Title)
	}
	if ids := promptIDs(svc.Prompts()); ids[0] != "login-form" {
		t.Errorf("Expected overridden prompt to keep its position, got %v", ids)
	}
}

func TestServiceLifecycle_SearchModes(t *testing.T) {
	svc := setupTestService(t, t.TempDir())
	defer closeService(t, svc)
	ctx := context.Background()

	tests := []struct {
		name      string
		query     string
		opts      catalog.SearchOptions
		wantFirst string
	}{
		{"relevance", "onboarding", catalog.SearchOptions{}, "onboarding"},
		{"fulltext", "onboarding", catalog.SearchOptions{Mode: catalog.ModeFullText}, "onboarding"},
		{"combined", "invoice", catalog.SearchOptions{Mode: catalog.ModeCombined}, "invoice-export"},
		{"filtered by product", "", catalog.SearchOptions{Product: "billing"}, "invoice-export"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := svc.Search(ctx, tt.query, tt.opts)
			if err != nil {
				t.Fatalf("Search failed: %v", err)
			}
			if len(results) == 0 || results[0].Prompt.ID != tt.wantFirst {
				t.Errorf("Expected %s first, got %v", tt.wantFirst, results)
			}
		})
	}
}

func TestServiceLifecycle_ReloadKeepsSnapshotOnError(t *testing.T) {
	dir := t.TempDir()
	svc := setupTestService(t, dir)
	defer closeService(t, svc)

	if err := os.WriteFile(filepath.Join(dir, "c.json"), []byte("{broken"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if err := svc.Reload(context.Background()); err == nil {
		t.Fatal("Expected reload error for broken file")
	}

	stats := svc.Stats()
	if !stats.Ready {
		t.Error("Expected service to stay ready")
	}
	if stats.Prompts != 5 {
		t.Errorf("Expected previous 5 prompts, got %d", stats.Prompts)
	}
	if stats.LastError == "" {
		t.Error("Expected last error to be recorded")
	}

	// Fixing the file recovers on the next reload
	if err := os.Remove(filepath.Join(dir, "c.json")); err != nil {
		t.Fatalf("Failed to remove file: %v", err)
	}
	if err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if svc.Stats().LastError != "" {
		t.Errorf("Expected last error cleared, got %q", svc.Stats().LastError)
	}
}

func TestServiceLifecycle_ConcurrentSearchAndReload(t *testing.T) {
	svc := setupTestService(t, t.TempDir())
	defer closeService(t, svc)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for range 10 {
		wg.Go(func() {
			for range 20 {
				if _, err := svc.Search(ctx, "login", catalog.SearchOptions{Mode: catalog.ModeCombined}); err != nil {
					errs <- err
					return
				}
			}
		})
	}
	for range 3 {
		wg.Go(func() {
			if err := svc.Reload(ctx); err != nil {
				errs <- err
			}
		})
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestWatcher_ReloadsServiceOnChange(t *testing.T) {
	dir := t.TempDir()
	svc := setupTestService(t, dir)
	defer closeService(t, svc)

	watcher, err := catalog.NewServiceWatcher(svc, slog.Default())
	if err != nil {
		t.Fatalf("NewServiceWatcher failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := watcher.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = watcher.Stop() }()

	catalog.WriteCatalogFile(t, dir, "c.json", catalog.Snapshot{
		Version: catalog.SnapshotVersion,
		Prompts: []domain.Prompt{
			{ID: "release-notes", Title: "Release notes summary", Description: "Summarize merged changes"},
		},
	})

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := svc.Get("release-notes"); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Timed out waiting for the catalog to pick up the new file")
		}
		time.Sleep(20 * time.Millisecond)
	}

	results, err := svc.Search(context.Background(), "release", catalog.SearchOptions{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].Prompt.ID != "release-notes" {
		t.Errorf("Expected release-notes, got %v", results)
	}
}

// ========================================
// MCP Server Integration Tests
// ========================================

func TestMCPServer_CatalogTools(t *testing.T) {
	svc := setupTestService(t, t.TempDir())
	defer closeService(t, svc)

	server := mcputil.CreateServer(mcputil.ServerConfig{
		Name:    "test-server",
		Version: "1.0.0",
		Catalog: svc,
	})
	session := connectInMemory(t, server)

	tests := []struct {
		name    string
		tool    string
		args    map[string]any
		want    []string
		wantErr bool
	}{
		{
			name: "search",
			tool: "search_prompts",
			args: map[string]any{"query": "onboarding"},
			want: []string{"Found 1 prompts for 'onboarding'", "onboarding"},
		},
		{
			name: "search with filters",
			tool: "search_prompts",
			args: map[string]any{"query": "", "status": "archived"},
			want: []string{"Listing 1 prompts", "cafe-menu"},
		},
		{
			name:    "search invalid mode",
			tool:    "search_prompts",
			args:    map[string]any{"query": "login", "mode": "fuzzy"},
			want:    []string{"Invalid mode"},
			wantErr: true,
		},
		{
			name: "get prompt",
			tool: "get_prompt",
			args: map[string]any{"id": "invoice-export"},
			want: []string{"# Invoice export", "## Prompt", "Generate a CSV export of monthly invoices"},
		},
		{
			name:    "get missing prompt",
			tool:    "get_prompt",
			args:    map[string]any{"id": "nope"},
			want:    []string{"Prompt not found: nope"},
			wantErr: true,
		},
		{
			name: "stats",
			tool: "catalog_stats",
			args: map[string]any{},
			want: []string{"**Prompts**: 5", "**Files**: 2", "## By status"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
				Name:      tt.tool,
				Arguments: tt.args,
			})
			if err != nil {
				t.Fatalf("CallTool failed: %v", err)
			}
			if result.IsError != tt.wantErr {
				t.Errorf("Expected IsError=%v, got %v", tt.wantErr, result.IsError)
			}
			content := extractTextContent(result)
			for _, want := range tt.want {
				if !strings.Contains(content, want) {
					t.Errorf("Expected %q in output, got: %s", want, content)
				}
			}
		})
	}
}

func TestMCPServer_NoToolsWithoutCatalog(t *testing.T) {
	server := mcputil.CreateServer(mcputil.ServerConfig{
		Name:    "test-server",
		Version: "1.0.0",
	})
	session := connectInMemory(t, server)

	tools, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}
	if len(tools.Tools) != 0 {
		t.Errorf("Expected no tools, got %d", len(tools.Tools))
	}
}

// ========================================
// SSE Server End-to-End Tests
// ========================================

func TestSSEServer_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	writeCatalogFiles(t, dir)

	flags := testkit.NewTestFlags(t, &testkit.FlagOptions{
		Host:         "127.0.0.1",
		CatalogPaths: []string{dir},
		Metrics:      true,
	})
	env := testkit.NewTestEnv(testkit.NewServerService(flags))
	props, err := env.Start()
	if err != nil {
		t.Fatalf("Failed to start environment: %v", err)
	}
	defer func() {
		if err := env.Stop(); err != nil {
			t.Errorf("Failed to stop environment: %v", err)
		}
	}()
	baseURL := props[testkit.PropBaseURL].(string)

	t.Run("ready", func(t *testing.T) {
		status, _ := httpGet(t, baseURL+"/ready")
		if status != http.StatusOK {
			t.Errorf("Expected 200, got %d", status)
		}
	})

	t.Run("mcp over sse", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
		session, err := client.Connect(ctx, &mcp.SSEClientTransport{Endpoint: baseURL + "/sse"}, nil)
		if err != nil {
			t.Fatalf("Connect failed: %v", err)
		}
		defer func() { _ = session.Close() }()

		result, err := session.CallTool(ctx, &mcp.CallToolParams{
			Name:      "search_prompts",
			Arguments: map[string]any{"query": "login"},
		})
		if err != nil {
			t.Fatalf("CallTool failed: %v", err)
		}
		if content := extractTextContent(result); !strings.Contains(content, "login-form") {
			t.Errorf("Expected login-form in results, got: %s", content)
		}
	})

	t.Run("metrics", func(t *testing.T) {
		status, body := httpGet(t, baseURL+"/metrics")
		if status != http.StatusOK {
			t.Fatalf("Expected 200, got %d", status)
		}
		for _, want := range []string{"promptdex_catalog_prompts 5", "promptdex_searches_total"} {
			if !strings.Contains(body, want) {
				t.Errorf("Expected %q in metrics", want)
			}
		}
	})
}

func TestSSEServer_NotReadyWhenCatalogFails(t *testing.T) {
	flags := testkit.NewTestFlags(t, &testkit.FlagOptions{
		CatalogPaths: []string{filepath.Join(t.TempDir(), "missing.json")},
	})
	env := testkit.NewTestEnv(testkit.NewServerService(flags))
	props, err := env.Start()
	if err != nil {
		t.Fatalf("Failed to start environment: %v", err)
	}
	defer func() { _ = env.Stop() }()

	// The server starts but reports the catalog as not ready
	status, body := httpGet(t, props[testkit.PropBaseURL].(string)+"/ready")
	if status != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", status)
	}
	if !strings.Contains(body, "catalog not ready") {
		t.Errorf("Expected not ready message, got %q", body)
	}
}

// ========================================
// Helper Functions
// ========================================

// writeCatalogFiles writes the sample catalog and a YAML file that overrides
// one of its prompts and adds another.
func writeCatalogFiles(t *testing.T, dir string) {
	t.Helper()

	catalog.WriteCatalogFile(t, dir, "a.json", catalog.SampleSnapshot())
	catalog.WriteCatalogFile(t, dir, "b.yaml", catalog.Snapshot{
		Version: catalog.SnapshotVersion,
		Products: []domain.Product{
			{ID: "p-growth", Name: "Growth"},
		},
		Prompts: []domain.Prompt{
			{
				ID:          "login-form",
				Title:       "Login page redesign",
				Description: "Refresh the login page layout",
				ProductID:   "p-growth",
				Status:      "active",
			},
			{
				ID:              "onboarding",
				Title:           "Onboarding checklist",
				Description:     "Guide new users through setup",
				GeneratedPrompt: "Write an onboarding checklist for new workspaces",
				ProductID:       "p-growth",
				Status:          "draft",
			},
		},
	})
}

// setupTestService writes the catalog files into dir and returns an
// initialized service over the directory.
func setupTestService(t *testing.T, dir string) *catalog.Service {
	t.Helper()

	writeCatalogFiles(t, dir)
	svc, err := catalog.NewService(catalog.TestSettings(dir), nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return svc
}

// closeService closes the service and reports any errors
func closeService(t *testing.T, svc *catalog.Service) {
	t.Helper()
	if err := svc.Close(); err != nil {
		t.Errorf("Failed to close service: %v", err)
	}
}

func connectInMemory(t *testing.T, server *mcp.Server) *mcp.ClientSession {
	t.Helper()

	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("Server connect failed: %v", err)
	}
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("Client connect failed: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func httpGet(t *testing.T, url string) (int, string) {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("Failed to read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func promptIDs(prompts []domain.Prompt) []string {
	ids := make([]string, len(prompts))
	for i, p := range prompts {
		ids[i] = p.ID
	}
	return ids
}

// extractTextContent extracts text from MCP result
func extractTextContent(result *mcp.CallToolResult) string {
	var sb strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}
