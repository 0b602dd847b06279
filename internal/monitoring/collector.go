// Package monitoring summarizes knowledge-base and extraction health for
// the status command and the serve endpoint.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tacit-cli/internal/model"
	"github.com/sells-group/tacit-cli/internal/store"
)

// MetricsSnapshot holds a point-in-time view of the knowledge base and
// recent extraction activity.
type MetricsSnapshot struct {
	// Knowledge base.
	RulesTotal       int            `json:"rules_total"`
	RulesPublished   int            `json:"rules_published"`
	RulesByCategory  map[string]int `json:"rules_by_category"`
	RulesBySource    map[string]int `json:"rules_by_source"`
	AvgConfidence    float64        `json:"avg_confidence"`
	PendingProposals int            `json:"pending_proposals"`

	// Extraction runs within the lookback window.
	RunsTotal     int     `json:"runs_total"`
	RunsCompleted int     `json:"runs_completed"`
	RunsFailed    int     `json:"runs_failed"`
	RunsRunning   int     `json:"runs_running"`
	RunFailRate   float64 `json:"run_fail_rate"`
	TasksFailed   int     `json:"tasks_failed"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the store.
type Collector struct {
	store store.Store
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot. Run metrics only count runs started within
// the lookback window; rule metrics always cover the whole knowledge base.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		RulesByCategory: make(map[string]int),
		RulesBySource:   make(map[string]int),
		LookbackHours:   lookbackHours,
		CollectedAt:     time.Now().UTC(),
	}

	rules, err := c.store.ListRules(ctx, store.RuleFilter{})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list rules")
	}

	snap.RulesTotal = len(rules)
	var confidenceSum float64
	for _, r := range rules {
		snap.RulesByCategory[string(r.Category)]++
		snap.RulesBySource[string(r.SourceKind)]++
		confidenceSum += r.Confidence
		if r.Published {
			snap.RulesPublished++
		}
	}
	if snap.RulesTotal > 0 {
		snap.AvgConfidence = confidenceSum / float64(snap.RulesTotal)
	}

	pending, err := c.store.ListProposals(ctx, model.ProposalPending)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list proposals")
	}
	snap.PendingProposals = len(pending)

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)
	runs, err := c.store.ListRuns(ctx, store.RunFilter{Limit: 10000})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	for _, r := range runs {
		if r.StartedAt.Before(cutoff) {
			continue
		}
		snap.RunsTotal++
		snap.TasksFailed += r.TasksFailed
		switch r.Status {
		case model.RunCompleted:
			snap.RunsCompleted++
		case model.RunFailed:
			snap.RunsFailed++
		case model.RunRunning:
			snap.RunsRunning++
		}
	}
	if snap.RunsTotal > 0 {
		snap.RunFailRate = float64(snap.RunsFailed) / float64(snap.RunsTotal)
	}

	return snap, nil
}
