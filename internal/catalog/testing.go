package catalog

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sha1n/mcp-promptdex-server/internal/config"
	"github.com/sha1n/mcp-promptdex-server/internal/domain"
	"gopkg.in/yaml.v3"
)

// SampleSnapshot returns a small catalog used by tests.
// This is exported for use in integration tests.
func SampleSnapshot() Snapshot {
	return Snapshot{
		Version:     SnapshotVersion,
		WorkspaceID: "ws-test",
		Products: []domain.Product{
			{ID: "p-auth", Name: "Auth Service"},
			{ID: "p-billing", Name: "Billing"},
		},
		Epics: []domain.Epic{
			{ID: "e-signin", ProductID: "p-auth", Name: "Sign-in flow"},
			{ID: "e-invoices", ProductID: "p-billing", Name: "Invoices"},
		},
		Prompts: []domain.Prompt{
			{
				ID:              "login-form",
				Title:           "Login form validation",
				Description:     "Validate email and password fields on the sign-in page",
				GeneratedPrompt: "Write a React component that validates the login form",
				EpicID:          "e-signin",
				Status:          "active",
				Priority:        1,
				Tags:            []string{"frontend", "forms"},
			},
			{
				ID:              "password-reset",
				Title:           "Password reset email",
				Description:     "Send a reset link when a user forgets the login password",
				GeneratedPrompt: "Draft the password reset email template",
				EpicID:          "e-signin",
				Status:          "draft",
				Priority:        2,
			},
			{
				ID:              "invoice-export",
				Title:           "Invoice export",
				Description:     "Export invoices as CSV for accounting",
				GeneratedPrompt: "Generate a CSV export of monthly invoices",
				ProductID:       "p-billing",
				EpicID:          "e-invoices",
				Status:          "active",
				Priority:        3,
				UpdatedAt:       time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
			},
			{
				ID:          "cafe-menu",
				Title:       "Café menu translation",
				Description: "Translate the café menu into English",
				Status:      "archived",
			},
		},
	}
}

// WriteCatalogFile writes snapshot to dir/name, encoded by the file extension.
func WriteCatalogFile(t testing.TB, dir, name string, snapshot Snapshot) string {
	t.Helper()

	path := filepath.Join(dir, name)
	format, err := FormatForPath(path)
	if err != nil {
		t.Fatalf("Unsupported catalog file name %s: %v", name, err)
	}

	var data []byte
	switch format {
	case FormatYAML:
		data, err = yaml.Marshal(snapshot)
	default:
		data, err = json.MarshalIndent(snapshot, "", "  ")
	}
	if err != nil {
		t.Fatalf("Failed to encode catalog: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create catalog directory: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write catalog file: %v", err)
	}
	return path
}

// TestSettings returns catalog settings over the given paths with default
// search tuning.
func TestSettings(paths ...string) *config.CatalogSettings {
	return &config.CatalogSettings{
		Enabled:             true,
		Paths:               paths,
		Debounce:            50 * time.Millisecond,
		FullText:            true,
		MinScore:            0.1,
		MaxResults:          100,
		NormalizationWeight: 3,
	}
}

// NewTestService writes the sample catalog to a temporary directory and
// returns an initialized service over it. The service is closed when the
// test ends.
func NewTestService(t testing.TB) *Service {
	t.Helper()

	path := WriteCatalogFile(t, t.TempDir(), "prompts.json", SampleSnapshot())
	svc, err := NewService(TestSettings(path), nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	t.Cleanup(func() {
		if err := svc.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})

	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return svc
}
