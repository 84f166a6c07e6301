package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sha1n/mcp-promptdex-server/internal/domain"
	"gopkg.in/yaml.v3"
)

const (
	// SnapshotVersion is the current snapshot schema version
	SnapshotVersion = 1
)

// Format is the encoding of a snapshot file.
type Format string

// Supported snapshot formats
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ErrUnsupportedFormat indicates a file extension that is not a known snapshot format
var ErrUnsupportedFormat = errors.New("unsupported catalog file format")

// promptNamespace seeds the name-based UUIDs given to prompts without an ID.
var promptNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/sha1n/mcp-promptdex-server/prompts"))

// Snapshot is the content of a single catalog file.
type Snapshot struct {
	Version     int              `json:"version" yaml:"version"`
	WorkspaceID string           `json:"workspace_id,omitempty" yaml:"workspace_id,omitempty"`
	Products    []domain.Product `json:"products,omitempty" yaml:"products,omitempty"`
	Epics       []domain.Epic    `json:"epics,omitempty" yaml:"epics,omitempty"`
	Prompts     []domain.Prompt  `json:"prompts" yaml:"prompts"`

	// Source is the path the snapshot was loaded from.
	Source string `json:"-" yaml:"-"`
}

// FormatForPath returns the snapshot format implied by a file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// IsCatalogFile reports whether path has a supported snapshot extension.
func IsCatalogFile(path string) bool {
	_, err := FormatForPath(path)
	return err == nil
}

// LoadFile reads and decodes a snapshot file.
func LoadFile(path string) (*Snapshot, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	return Decode(data, format, path)
}

// Decode parses snapshot data and resolves parent names and missing IDs.
// source identifies the data in derived IDs and log messages.
func Decode(data []byte, format Format, source string) (*Snapshot, error) {
	var snapshot Snapshot

	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &snapshot); err != nil {
			return nil, fmt.Errorf("failed to parse catalog file %s: %w", source, err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&snapshot); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse catalog file %s: %w", source, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	// Files written before versioning carry no version
	if snapshot.Version == 0 {
		snapshot.Version = SnapshotVersion
	}
	if snapshot.Version != SnapshotVersion {
		return nil, fmt.Errorf("catalog file %s has unsupported version %d", source, snapshot.Version)
	}

	snapshot.Source = source
	snapshot.resolve()
	return &snapshot, nil
}

// resolve fills in parent names and IDs, and drops prompts without a title.
func (s *Snapshot) resolve() {
	products := make(map[string]domain.Product, len(s.Products))
	for _, p := range s.Products {
		products[p.ID] = p
	}
	epics := make(map[string]domain.Epic, len(s.Epics))
	for _, e := range s.Epics {
		epics[e.ID] = e
	}

	prompts := make([]domain.Prompt, 0, len(s.Prompts))
	for i, p := range s.Prompts {
		p.Title = strings.TrimSpace(p.Title)
		if p.Title == "" {
			slog.Warn("Skipping prompt without title", "source", s.Source, "index", i, "id", p.ID)
			continue
		}

		if p.ID == "" {
			p.ID = derivePromptID(s.Source, i, p.Title)
		}
		if p.WorkspaceID == "" {
			p.WorkspaceID = s.WorkspaceID
		}

		if epic, ok := epics[p.EpicID]; ok && p.EpicID != "" {
			if p.EpicName == "" {
				p.EpicName = epic.Name
			}
			// Prompts filed under an epic inherit its product
			if p.ProductID == "" {
				p.ProductID = epic.ProductID
			}
		}
		if product, ok := products[p.ProductID]; ok && p.ProductID != "" && p.ProductName == "" {
			p.ProductName = product.Name
		}

		prompts = append(prompts, p)
	}
	s.Prompts = prompts
}

// derivePromptID returns a stable ID for a prompt that has none.
func derivePromptID(source string, index int, title string) string {
	name := source + "\x00" + strconv.Itoa(index) + "\x00" + title
	return uuid.NewSHA1(promptNamespace, []byte(name)).String()
}
