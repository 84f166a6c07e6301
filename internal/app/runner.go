package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sha1n/mcp-promptdex-server/internal/catalog"
	"github.com/sha1n/mcp-promptdex-server/internal/config"
	mcputil "github.com/sha1n/mcp-promptdex-server/internal/mcp"
	"github.com/spf13/pflag"
)

// Runtime holds the running server and the components its HTTP endpoints report on
type Runtime struct {
	Server *mcp.Server

	// Catalog is nil when the catalog is disabled
	Catalog *catalog.Service

	// Registry is nil when metrics are disabled
	Registry *prometheus.Registry
}

// RunParams contains dependencies for the run function
type RunParams struct {
	LoadSettings      func(*pflag.FlagSet) (*config.Settings, error)
	ValidSettings     func(*config.Settings) error
	StartSSEServer    func(*Runtime, *config.Settings) error
	CreateServer      func(*config.Settings) (*Runtime, func(), error)
	CustomIOTransport mcp.Transport // Optional: for testing with custom IO
}

// DefaultRunParams returns production dependencies
func DefaultRunParams() RunParams {
	return RunParams{
		LoadSettings:   config.LoadSettingsWithFlags,
		ValidSettings:  config.ValidateSettings,
		StartSSEServer: StartSSEServer,
		CreateServer:   CreateMCPServer,
	}
}

// RunWithDeps executes the server with the provided dependencies
func RunWithDeps(ctx context.Context, params RunParams, flags *pflag.FlagSet, version string) error {
	// Load settings
	settings, err := params.LoadSettings(flags)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	// Validate settings for conflicting configurations
	if err := params.ValidSettings(settings); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Configure logging - always use stderr to avoid buffering issues
	handler := slog.NewTextHandler(os.Stderr, nil)
	slog.SetDefault(slog.New(handler))

	slog.Info("Starting MCP PromptDex server", "version", version)
	config.Log(settings)

	rt, cleanup, err := params.CreateServer(settings)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	// Start server
	if settings.Transport == "stdio" {
		// Use custom transport if provided (for testing), otherwise use stdio
		transport := params.CustomIOTransport
		if transport == nil {
			transport = &mcp.StdioTransport{}
		}
		return rt.Server.Run(ctx, transport)
	} else {
		slog.Info("Starting SSE server", "host", settings.Host, "port", settings.Port)
		return params.StartSSEServer(rt, settings)
	}
}

// CreateMCPServer creates the MCP server with registered tools
func CreateMCPServer(settings *config.Settings) (*Runtime, func(), error) {
	rt := &Runtime{}
	var closers []func()

	var metrics *catalog.Metrics
	if settings.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		rt.Registry = reg
		metrics = catalog.NewMetrics(reg)
	}

	// Initialize the catalog if enabled
	if settings.Catalog.Enabled {
		svc, err := catalog.NewService(&settings.Catalog, metrics)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create catalog service: %w", err)
		}
		rt.Catalog = svc
		closers = append(closers, func() {
			if err := svc.Close(); err != nil {
				slog.Error("Failed to close catalog service", "error", err)
			}
		})

		// A failed first load leaves the service not ready; the watcher may
		// still bring it up once the files are fixed
		if err := svc.Initialize(context.Background()); err != nil {
			slog.Error("Catalog initialization failed", "error", err)
		}

		if settings.Catalog.Watch {
			watcher, err := catalog.NewServiceWatcher(svc, slog.Default())
			if err != nil {
				slog.Error("Failed to create catalog watcher", "error", err)
			} else if err := watcher.Start(context.Background()); err != nil {
				slog.Error("Failed to start catalog watcher", "error", err)
			} else {
				closers = append(closers, func() {
					if err := watcher.Stop(); err != nil {
						slog.Error("Failed to stop catalog watcher", "error", err)
					}
				})
			}
		}
	}

	rt.Server = mcputil.CreateServer(mcputil.ServerConfig{
		Name:    "promptdex-mcp",
		Version: "1.0.0",
		Catalog: rt.Catalog,
	})

	cleanup := func() {
		// Stop the watcher before closing the service it reloads
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	return rt, cleanup, nil
}
