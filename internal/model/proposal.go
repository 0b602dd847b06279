package model

import "time"

// ProposalStatus is the review state of a proposal.
type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "pending"
	ProposalApproved ProposalStatus = "approved"
	ProposalRejected ProposalStatus = "rejected"
)

// Proposal is a rule awaiting human review. A logical statement exists
// either as a Proposal or as a canonical Rule, never both: approval
// promotes it into the store and rejection retains it for audit only.
type Proposal struct {
	ID               string         `json:"id"`
	Text             string         `json:"text"`
	Category         Category       `json:"category"`
	Confidence       float64        `json:"confidence"`
	SourceExcerpt    string         `json:"source_excerpt,omitempty"`
	ProposedBy       string         `json:"proposed_by"`
	Status           ProposalStatus `json:"status"`
	ContributorCount int            `json:"contributor_count"`
	ReviewedBy       string         `json:"reviewed_by,omitempty"`
	Feedback         string         `json:"feedback,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// Contribution links a proposal to one independent contributor whose
// submission matched it semantically. The count of contributions against
// a proposal is the federation consensus signal.
type Contribution struct {
	ID                 string    `json:"id"`
	ProposalID         string    `json:"proposal_id"`
	ContributorName    string    `json:"contributor_name"`
	Text               string    `json:"text"`
	OriginalConfidence float64   `json:"original_confidence"`
	SourceExcerpt      string    `json:"source_excerpt,omitempty"`
	SimilarityScore    float64   `json:"similarity_score"`
	CreatedAt          time.Time `json:"created_at"`
}
