package app

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sha1n/mcp-promptdex-server/internal/auth"
	"github.com/sha1n/mcp-promptdex-server/internal/config"
)

// StartSSEServer starts the SSE server with authentication
func StartSSEServer(rt *Runtime, settings *config.Settings) error {
	srv, err := NewSSEServer(rt, settings)
	if err != nil {
		return err
	}

	slog.Info("Server listening (HTTP)", "addr", srv.Addr, "auth_type", settings.Auth.Type)
	return srv.ListenAndServe()
}

// NewSSEServer creates a new SSE server with authentication middleware
func NewSSEServer(rt *Runtime, settings *config.Settings) (*http.Server, error) {
	if rt == nil || rt.Server == nil {
		return nil, fmt.Errorf("mcp server cannot be nil")
	}

	// Factory function returns the server instance for each request
	sseHandler := mcp.NewSSEHandler(func(r *http.Request) *mcp.Server {
		return rt.Server
	}, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeText(w, http.StatusOK, "ok")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		// Without a catalog there is nothing to wait for
		if rt.Catalog != nil && !rt.Catalog.IsReady() {
			writeText(w, http.StatusServiceUnavailable, "catalog not ready")
			return
		}
		writeText(w, http.StatusOK, "ok")
	})
	if settings.Metrics.Enabled && rt.Registry != nil {
		mux.Handle(settings.Metrics.Path, promhttp.HandlerFor(rt.Registry, promhttp.HandlerOpts{}))
	}
	mux.Handle("/sse", sseHandler)

	authMiddleware, err := auth.NewMiddleware(settings.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth middleware: %w", err)
	}

	handler := authMiddleware(mux)
	addr := fmt.Sprintf("%s:%d", settings.Host, settings.Port)

	return &http.Server{
		Addr:    addr,
		Handler: handler,
	}, nil
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
