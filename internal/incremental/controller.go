// Package incremental processes a single merged-PR event without a full
// extraction run: one analysis task, then the same reconciliation and
// proposal machinery the batch pipeline uses.
package incremental

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tacit-cli/internal/federation"
	"github.com/sells-group/tacit-cli/internal/model"
	"github.com/sells-group/tacit-cli/internal/store"
	"github.com/sells-group/tacit-cli/internal/synthesis"
	"github.com/sells-group/tacit-cli/internal/task"
)

// autoApproveThreshold is the reconciled cluster confidence at or above
// which a single event's finding is promoted directly instead of queued
// for review.
const autoApproveThreshold = 0.85

const incrementalPhase = "incremental"

// Result reports what one event produced.
type Result struct {
	AutoApproved []model.Rule     `json:"auto_approved"`
	Proposed     []model.Proposal `json:"proposed"`
	Filtered     int              `json:"filtered"`
}

// Controller routes a merged-PR event through the analysis task, the
// synthesis engine, and the proposal matcher.
type Controller struct {
	store   store.Store
	engine  *synthesis.Engine
	matcher *federation.Matcher
	tools   task.ToolAccess
}

// NewController wires the controller to the shared engines.
func NewController(st store.Store, engine *synthesis.Engine, matcher *federation.Matcher, tools task.ToolAccess) *Controller {
	return &Controller{store: st, engine: engine, matcher: matcher, tools: tools}
}

// HandleMergedPR mines one merged PR's discussion. Every candidate goes
// through the engine's filtering, clustering, and scoring first; clusters
// whose reconciled confidence clears the gate land in the knowledge base
// with an automatic approval on the trail, and the rest become proposals,
// pooled with any pending equivalents.
func (c *Controller) HandleMergedPR(ctx context.Context, repo string, number int) (*Result, error) {
	t := task.PRThreadTask{Repo: repo, Number: number, Phase: incrementalPhase}
	candidates, err := t.Invoke(ctx, c.tools)
	if err != nil {
		return nil, eris.Wrapf(err, "incremental: analyze PR #%d", number)
	}

	reconciled, err := c.engine.ReconcileEvent(ctx, candidates, autoApproveThreshold)
	if err != nil {
		return nil, eris.Wrap(err, "incremental: reconcile")
	}

	result := &Result{
		AutoApproved: reconciled.Promoted,
		Filtered:     len(reconciled.Filtered),
	}

	for _, r := range reconciled.Promoted {
		if err := c.store.AddTrailEntry(ctx, &model.TrailEntry{
			RuleID:    r.ID,
			EventType: model.TrailApproved,
			Description: fmt.Sprintf("auto-approved from merged PR #%d (confidence %.2f)",
				number, r.Confidence),
			SourceRef: fmt.Sprintf("pr:%d", number),
		}); err != nil {
			return nil, eris.Wrap(err, "incremental: trail auto-approval")
		}
	}

	for _, cluster := range reconciled.Deferred {
		sub, err := c.matcher.Submit(ctx, federation.Submission{
			Text:            cluster.Canonical.Text,
			Category:        cluster.Canonical.Category,
			Confidence:      cluster.Confidence,
			SourceExcerpt:   cluster.Canonical.ProvenanceSummary,
			ContributorName: repo,
		})
		if err != nil {
			return nil, eris.Wrap(err, "incremental: propose")
		}
		result.Proposed = append(result.Proposed, *sub.Proposal)
	}

	zap.L().Info("incremental event processed",
		zap.String("repo", repo),
		zap.Int("pr", number),
		zap.Int("auto_approved", len(result.AutoApproved)),
		zap.Int("proposed", len(result.Proposed)),
		zap.Int("filtered", result.Filtered),
	)
	return result, nil
}
