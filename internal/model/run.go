package model

import "time"

// RunStatus is the lifecycle state of an extraction run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// ExtractionRun records one invocation of the batch pipeline. A run's
// failure never rolls back rules synthesized from phases that already
// settled; the counters reflect whatever durable progress was made.
type ExtractionRun struct {
	ID          string     `json:"id"`
	Repo        string     `json:"repo"`
	Status      RunStatus  `json:"status"`
	Stage       string     `json:"stage"`
	TasksTotal  int        `json:"tasks_total"`
	TasksFailed int        `json:"tasks_failed"`
	RulesFound  int        `json:"rules_found"`
	PRsAnalyzed int        `json:"prs_analyzed"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// RunProgress carries counter deltas added to a running extraction's
// totals. Stage replaces the stored stage when non-empty.
type RunProgress struct {
	Stage       string
	TasksTotal  int
	TasksFailed int
	RulesFound  int
	PRsAnalyzed int
}
