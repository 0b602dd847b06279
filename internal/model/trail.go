package model

import "time"

// TrailEvent is the type of a decision trail entry.
type TrailEvent string

const (
	TrailCreated         TrailEvent = "created"
	TrailMerged          TrailEvent = "merged"
	TrailConfidenceBoost TrailEvent = "confidence_boost"
	TrailApproved        TrailEvent = "approved"
	TrailRejected        TrailEvent = "rejected"
	TrailContradiction   TrailEvent = "contradiction_resolved"
	TrailFiltered        TrailEvent = "filtered"
)

// TrailEntry is an append-only audit record of a rule's lifecycle. It is
// never mutated or deleted, and is the sole mechanism for reconstructing
// why a rule exists and how it changed.
type TrailEntry struct {
	ID          string     `json:"id"`
	RuleID      string     `json:"rule_id"`
	EventType   TrailEvent `json:"event_type"`
	Description string     `json:"description"`
	SourceRef   string     `json:"source_ref,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}
