package testkit

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"net"
	"strconv"
	"strings"
	"testing"

	"github.com/sha1n/mcp-promptdex-server/internal/app"
	"github.com/spf13/pflag"
)

// Service is a component an integration test starts before exercising the server
type Service interface {
	// Start brings the service up and returns properties for the test, such as its URL
	Start() (map[string]any, error)
	Stop() error
	GetName() string
}

// TestEnv starts services in order and stops them in reverse order
type TestEnv struct {
	services []Service
	started  []Service
}

// NewTestEnv creates an environment over the given services
func NewTestEnv(services ...Service) *TestEnv {
	return &TestEnv{services: services}
}

// Start starts every service and merges their properties. When a service
// fails, the ones already started are stopped again.
func (e *TestEnv) Start() (map[string]any, error) {
	props := make(map[string]any)
	for _, s := range e.services {
		p, err := s.Start()
		if err != nil {
			stopErr := e.Stop()
			return nil, errors.Join(fmt.Errorf("failed to start %s: %w", s.GetName(), err), stopErr)
		}
		e.started = append(e.started, s)
		maps.Copy(props, p)
	}
	return props, nil
}

// Stop stops the started services in reverse order and reports every failure
func (e *TestEnv) Stop() error {
	var errs []error
	for i := len(e.started) - 1; i >= 0; i-- {
		if err := e.started[i].Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop %s: %w", e.started[i].GetName(), err))
		}
	}
	e.started = nil
	return errors.Join(errs...)
}

// FlagOptions configures NewTestFlags
type FlagOptions struct {
	Port     int    // Uses a free port if 0
	AuthType string // Defaults to "none"
	Host     string // Defaults to "localhost"

	// CatalogPaths enables the catalog over these paths. The catalog is
	// disabled when empty.
	CatalogPaths []string
	CatalogWatch bool
	Metrics      bool
}

// NewTestFlags returns application flags for an SSE server on a free port
func NewTestFlags(t testing.TB, opts *FlagOptions) *pflag.FlagSet {
	t.Helper()

	if opts == nil {
		opts = &FlagOptions{}
	}

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	app.RegisterFlags(flags)

	port := opts.Port
	if port == 0 {
		port = freePort(t)
	}

	values := map[string]string{
		"transport":       "sse",
		"port":            strconv.Itoa(port),
		"host":            cmp.Or(opts.Host, "localhost"),
		"auth-type":       cmp.Or(opts.AuthType, "none"),
		"catalog-enabled": strconv.FormatBool(len(opts.CatalogPaths) > 0),
		"catalog-watch":   strconv.FormatBool(opts.CatalogWatch),
		"metrics-enabled": strconv.FormatBool(opts.Metrics),
	}
	if len(opts.CatalogPaths) > 0 {
		values["catalog-paths"] = strings.Join(opts.CatalogPaths, ",")
	}

	for name, value := range values {
		if err := flags.Set(name, value); err != nil {
			t.Fatalf("Failed to set flag %s: %v", name, err)
		}
	}
	return flags
}

// freePort asks the kernel for an unused TCP port
func freePort(t testing.TB) int {
	t.Helper()

	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("Failed to get free port: %v", err)
	}
	defer func() { _ = l.Close() }()
	return l.Addr().(*net.TCPAddr).Port
}
