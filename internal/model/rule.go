package model

import "time"

// Category classifies a knowledge rule. The set is closed; anything
// unrecognized parses as CategoryGeneral.
type Category string

const (
	CategoryArchitecture Category = "architecture"
	CategoryTesting      Category = "testing"
	CategoryStyle        Category = "style"
	CategoryWorkflow     Category = "workflow"
	CategorySecurity     Category = "security"
	CategoryPerformance  Category = "performance"
	CategoryDomain       Category = "domain"
	CategoryDesign       Category = "design"
	CategoryProduct      Category = "product"
	CategoryGeneral      Category = "general"
)

// Categories lists all valid categories in rendering order.
var Categories = []Category{
	CategoryArchitecture,
	CategoryTesting,
	CategoryStyle,
	CategoryWorkflow,
	CategorySecurity,
	CategoryPerformance,
	CategoryDomain,
	CategoryDesign,
	CategoryProduct,
	CategoryGeneral,
}

// ParseCategory maps a raw string to a Category, falling back to general.
func ParseCategory(s string) Category {
	c := Category(s)
	for _, known := range Categories {
		if c == known {
			return c
		}
	}
	return CategoryGeneral
}

// SourceKind identifies where a rule's evidence came from. It determines
// the rule's authority weight during contradiction resolution.
type SourceKind string

const (
	SourcePR           SourceKind = "pr"
	SourceConversation SourceKind = "conversation"
	SourceStructure    SourceKind = "structure"
	SourceDocs         SourceKind = "docs"
	SourceCIFix        SourceKind = "ci_fix"
	SourceConfig       SourceKind = "config"
	SourceAntiPattern  SourceKind = "anti_pattern"
)

// SourceKinds lists all valid source kinds.
var SourceKinds = []SourceKind{
	SourcePR,
	SourceConversation,
	SourceStructure,
	SourceDocs,
	SourceCIFix,
	SourceConfig,
	SourceAntiPattern,
}

// Authority returns the precedence tier for contradiction resolution.
// Higher wins. CI-enforced fixes and anti-pattern findings sit at the
// top because both are backed by an observed failure, not opinion.
func (k SourceKind) Authority() int {
	switch k {
	case SourceCIFix, SourceAntiPattern:
		return 3
	case SourceStructure, SourceDocs, SourceConfig:
		return 2
	case SourcePR:
		return 1
	case SourceConversation:
		return 0
	default:
		return 0
	}
}

// Valid reports whether k is a known source kind.
func (k SourceKind) Valid() bool {
	for _, known := range SourceKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Rule is a canonical, deduplicated knowledge unit in the store.
type Rule struct {
	ID                string     `json:"id"`
	Text              string     `json:"text"`
	Category          Category   `json:"category"`
	Confidence        float64    `json:"confidence"`
	SourceKind        SourceKind `json:"source_kind"`
	SourceRef         string     `json:"source_ref"`
	ProvenanceURL     string     `json:"provenance_url,omitempty"`
	ProvenanceSummary string     `json:"provenance_summary,omitempty"`
	ApplicablePaths   []string   `json:"applicable_paths,omitempty"`
	FeedbackScore     int        `json:"feedback_score"`
	// Published is false for rules that survived synthesis but sit below
	// the minimum confidence floor. They stay discoverable without being
	// rendered into guidance documents.
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Candidate is the provisional output of a single analysis task. It has
// the shape of a Rule minus store-assigned fields, plus a back-reference
// to the task and phase that produced it. Candidates exist only within a
// pipeline run.
type Candidate struct {
	Text              string     `json:"text"`
	Category          Category   `json:"category"`
	Confidence        float64    `json:"confidence"`
	SourceKind        SourceKind `json:"source_kind"`
	SourceRef         string     `json:"source_ref"`
	ProvenanceURL     string     `json:"provenance_url,omitempty"`
	ProvenanceSummary string     `json:"provenance_summary,omitempty"`
	ApplicablePaths   []string   `json:"applicable_paths,omitempty"`
	TaskName          string     `json:"task_name"`
	Phase             string     `json:"phase"`
}
