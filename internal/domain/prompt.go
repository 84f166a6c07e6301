package domain

import "time"

// Prompt represents a single prompt record held in the catalog.
// It is the record type ranked by the search engine and stored in the
// full-text index.
type Prompt struct {
	// ID uniquely identifies the prompt within the catalog.
	ID string `json:"id" yaml:"id"`

	// WorkspaceID is the workspace the prompt belongs to.
	WorkspaceID string `json:"workspace_id,omitempty" yaml:"workspace_id,omitempty"`

	// Title is the short, always-present headline of the prompt.
	Title string `json:"title" yaml:"title"`

	// Description is the optional human-written description.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// GeneratedPrompt is the optional AI-produced elaboration of the prompt.
	GeneratedPrompt string `json:"generated_prompt,omitempty" yaml:"generated_prompt,omitempty"`

	// ProductID and EpicID reference the parent product and epic.
	ProductID string `json:"product_id,omitempty" yaml:"product_id,omitempty"`
	EpicID    string `json:"epic_id,omitempty" yaml:"epic_id,omitempty"`

	// ProductName and EpicName are the resolved parent labels.
	// Snapshot files may set them directly or leave them to be resolved
	// from ProductID/EpicID.
	ProductName string `json:"product,omitempty" yaml:"product,omitempty"`
	EpicName    string `json:"epic,omitempty" yaml:"epic,omitempty"`

	Status    string    `json:"status,omitempty" yaml:"status,omitempty"`
	Priority  int       `json:"priority,omitempty" yaml:"priority,omitempty"`
	Tags      []string  `json:"tags,omitempty" yaml:"tags,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitzero" yaml:"updated_at,omitempty"`
}

// Product groups epics and prompts.
type Product struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Epic groups prompts within a product.
type Epic struct {
	ID          string `json:"id" yaml:"id"`
	ProductID   string `json:"product_id,omitempty" yaml:"product_id,omitempty"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Prompt field name constants. They name the fields reported as matched by
// the search engine and the fields of the full-text index mapping.
const (
	PromptFieldID              = "id"
	PromptFieldTitle           = "title"
	PromptFieldGeneratedPrompt = "generated_prompt"
	PromptFieldDescription     = "description"
	PromptFieldProduct         = "product"
	PromptFieldEpic            = "epic"
	PromptFieldStatus          = "status"
)

// PriorityLabel returns the display label for a priority level.
// Priority 1 is high, 2 normal and 3 low; anything else is unset.
func PriorityLabel(p int) string {
	switch p {
	case 1:
		return "High"
	case 2:
		return "Normal"
	case 3:
		return "Low"
	default:
		return ""
	}
}
