package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tacit-cli/internal/model"
)

// ErrNotFound is wrapped by every lookup that matched no row, so callers
// can distinguish a missing entity from a backend failure.
var ErrNotFound = eris.New("store: not found")

// RuleFilter specifies criteria for listing rules. Zero values mean "no
// filter". ListRules with an empty filter is the synthesis engine's
// bulk-read snapshot.
type RuleFilter struct {
	Category      model.Category   `json:"category,omitempty"`
	SourceKind    model.SourceKind `json:"source_kind,omitempty"`
	MinConfidence float64          `json:"min_confidence,omitempty"`
	PublishedOnly bool             `json:"published_only,omitempty"`
	Limit         int              `json:"limit,omitempty"`
	Offset        int              `json:"offset,omitempty"`
}

// RunFilter specifies criteria for listing extraction runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Repo   string          `json:"repo,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the knowledge base: the
// four logical collections (rules, proposals, contributions, decision
// trail) plus extraction run records. Writes of a single entity are
// atomic; AddContribution additionally bundles the contribution insert
// with the proposal counter bump in one transaction so contributor
// accounting holds by construction.
type Store interface {
	// Rules
	CreateRule(ctx context.Context, r *model.Rule) (*model.Rule, error)
	GetRule(ctx context.Context, id string) (*model.Rule, error)
	ListRules(ctx context.Context, filter RuleFilter) ([]model.Rule, error)
	UpdateRule(ctx context.Context, r *model.Rule) error
	// DeleteRule removes a rule merged away during synthesis. The merge
	// event is recorded on the surviving rule's decision trail by the
	// caller; this is the only deletion path.
	DeleteRule(ctx context.Context, id string) error
	VoteRule(ctx context.Context, id string, delta int) error

	// Proposals
	CreateProposal(ctx context.Context, p *model.Proposal) (*model.Proposal, error)
	GetProposal(ctx context.Context, id string) (*model.Proposal, error)
	ListProposals(ctx context.Context, status model.ProposalStatus) ([]model.Proposal, error)
	ReviewProposal(ctx context.Context, id string, status model.ProposalStatus, reviewedBy, feedback string) error
	// AddContribution atomically inserts the contribution, increments
	// the proposal's contributor_count, and stores the recomputed
	// consensus confidence. Returns the new contributor count.
	AddContribution(ctx context.Context, c *model.Contribution, newConfidence float64) (int, error)
	ListContributions(ctx context.Context, proposalID string) ([]model.Contribution, error)

	// Decision trail (append-only)
	AddTrailEntry(ctx context.Context, e *model.TrailEntry) error
	ListTrail(ctx context.Context, ruleID string) ([]model.TrailEntry, error)

	// Extraction runs
	CreateRun(ctx context.Context, repo string) (*model.ExtractionRun, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus, stage string) error
	UpdateRunProgress(ctx context.Context, runID string, progress model.RunProgress) error
	GetRun(ctx context.Context, runID string) (*model.ExtractionRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.ExtractionRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
