package testkit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sha1n/mcp-promptdex-server/internal/app"
	"github.com/sha1n/mcp-promptdex-server/internal/config"
	"github.com/spf13/pflag"
)

// StartTimeout bounds how long ServerService waits for the server to answer /health
const StartTimeout = 10 * time.Second

// PropBaseURL is the property ServerService publishes its base URL under
const PropBaseURL = "base_url"

// ServerService runs the full application over SSE as a test service
type ServerService struct {
	flags  *pflag.FlagSet
	server *http.Server
	errc   chan error
}

// NewServerService creates a service that runs the application with the given flags
func NewServerService(flags *pflag.FlagSet) *ServerService {
	return &ServerService{flags: flags}
}

// GetName returns the service name
func (s *ServerService) GetName() string {
	return "promptdex-server"
}

// Start runs the application in the background and waits until it is healthy
func (s *ServerService) Start() (map[string]any, error) {
	started := make(chan *http.Server, 1)
	params := app.DefaultRunParams()
	params.StartSSEServer = func(rt *app.Runtime, settings *config.Settings) error {
		srv, err := app.NewSSEServer(rt, settings)
		if err != nil {
			return err
		}
		started <- srv
		return srv.ListenAndServe()
	}

	s.errc = make(chan error, 1)
	go func() {
		s.errc <- app.RunWithDeps(context.Background(), params, s.flags, "test")
	}()

	select {
	case srv := <-started:
		s.server = srv
	case err := <-s.errc:
		return nil, fmt.Errorf("server exited before starting: %w", err)
	case <-time.After(StartTimeout):
		return nil, errors.New("timed out waiting for server to start")
	}

	baseURL := "http://" + s.server.Addr
	if err := waitHealthy(baseURL, StartTimeout); err != nil {
		_ = s.Stop()
		return nil, err
	}
	return map[string]any{PropBaseURL: baseURL}, nil
}

// Stop shuts the server down and waits for the application to exit
func (s *ServerService) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), StartTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.server = nil

	select {
	case err := <-s.errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func waitHealthy(baseURL string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(baseURL + "/health")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	return fmt.Errorf("server at %s did not become healthy within %s", baseURL, timeout)
}
