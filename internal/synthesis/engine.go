// Package synthesis turns task candidates into canonical rules: clustering,
// canonical-text selection, confidence scoring, generic-rule filtering, and
// the decision trail. It is the only component that writes rules.
package synthesis

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tacit-cli/internal/model"
	"github.com/sells-group/tacit-cli/internal/similarity"
	"github.com/sells-group/tacit-cli/internal/store"
)

// FilteredCandidate pairs a rejected candidate with the reason.
type FilteredCandidate struct {
	Candidate model.Candidate
	Reason    FilterReason
}

// ReconcileResult summarizes one reconcile pass.
type ReconcileResult struct {
	NewRules    []model.Rule
	MergedRules []model.Rule
	Filtered    []FilteredCandidate
}

// ScoredCluster is a cluster that survived filtering but stayed below an
// event's promotion gate. Nothing is committed for it; the caller decides
// where it goes next.
type ScoredCluster struct {
	Canonical  model.Candidate
	Confidence float64
	Size       int
}

// EventResult summarizes one single-event pass.
type EventResult struct {
	Promoted []model.Rule
	Deferred []ScoredCluster
	Filtered []FilteredCandidate
}

// Engine reconciles candidates against the knowledge store. All rule writes
// flow through the single-writer section, so two candidates resolving into
// the same cluster can never race into two canonical rules.
type Engine struct {
	store            store.Store
	clusterThreshold float64
	confidenceFloor  float64

	mu sync.Mutex
}

// NewEngine creates an engine with the given thresholds.
func NewEngine(st store.Store, clusterThreshold, confidenceFloor float64) *Engine {
	if clusterThreshold <= 0 {
		clusterThreshold = 0.80
	}
	if confidenceFloor <= 0 {
		confidenceFloor = 0.60
	}
	return &Engine{
		store:            st,
		clusterThreshold: clusterThreshold,
		confidenceFloor:  confidenceFloor,
	}
}

// Reconcile merges a batch of candidates into the store. It is idempotent:
// feeding the same candidates twice updates the same rules rather than
// duplicating them. Store errors abort the pass and are run-fatal.
func (e *Engine) Reconcile(ctx context.Context, candidates []model.Candidate) (*ReconcileResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := &ReconcileResult{}
	if len(candidates) == 0 {
		return result, nil
	}

	// Full snapshot of current canonical state, published or not.
	existing, err := e.store.ListRules(ctx, store.RuleFilter{})
	if err != nil {
		return nil, eris.Wrap(err, "synthesis: snapshot rules")
	}

	kept, err := e.applyFilter(ctx, candidates, &result.Filtered)
	if err != nil {
		return nil, err
	}

	for _, cluster := range clusterCandidates(kept, e.clusterThreshold) {
		if err := e.reconcileCluster(ctx, cluster, existing, result); err != nil {
			return nil, err
		}
	}

	zap.L().Info("reconcile pass complete",
		zap.Int("candidates", len(candidates)),
		zap.Int("new_rules", len(result.NewRules)),
		zap.Int("merged_rules", len(result.MergedRules)),
		zap.Int("filtered", len(result.Filtered)),
	)
	return result, nil
}

// ReconcileEvent runs a single event's candidates through the same
// filtering, clustering, and scoring as a batch pass, but only commits a
// cluster when its reconciled confidence reaches the gate or when it
// corroborates an already-canonical rule. Clusters below the gate come
// back deferred, scored, for the caller to queue for review.
func (e *Engine) ReconcileEvent(ctx context.Context, candidates []model.Candidate, gate float64) (*EventResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := &EventResult{}
	if len(candidates) == 0 {
		return result, nil
	}

	existing, err := e.store.ListRules(ctx, store.RuleFilter{})
	if err != nil {
		return nil, eris.Wrap(err, "synthesis: snapshot rules")
	}

	kept, err := e.applyFilter(ctx, candidates, &result.Filtered)
	if err != nil {
		return nil, err
	}

	inner := &ReconcileResult{}
	for _, cluster := range clusterCandidates(kept, e.clusterThreshold) {
		canonical := selectCanonical(cluster)
		conf := clusterConfidence(cluster)

		if match := e.matchExistingRule(canonical.Text, existing); match != nil {
			if err := e.mergeIntoRule(ctx, match, cluster, canonical, inner); err != nil {
				return nil, err
			}
			continue
		}
		if conf >= gate {
			if err := e.createRuleFromCluster(ctx, cluster, canonical, conf, inner); err != nil {
				return nil, err
			}
			continue
		}
		result.Deferred = append(result.Deferred, ScoredCluster{
			Canonical:  canonical,
			Confidence: conf,
			Size:       len(cluster),
		})
	}
	result.Promoted = append(inner.NewRules, inner.MergedRules...)

	zap.L().Info("event reconcile pass complete",
		zap.Int("candidates", len(candidates)),
		zap.Float64("gate", gate),
		zap.Int("promoted", len(result.Promoted)),
		zap.Int("deferred", len(result.Deferred)),
		zap.Int("filtered", len(result.Filtered)),
	)
	return result, nil
}

// applyFilter runs the generic-rule filter, recording each rejection on
// the trail.
func (e *Engine) applyFilter(ctx context.Context, candidates []model.Candidate, filtered *[]FilteredCandidate) ([]model.Candidate, error) {
	kept := make([]model.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if reason := filterCandidate(c.Text); reason != "" {
			*filtered = append(*filtered, FilteredCandidate{Candidate: c, Reason: reason})
			if err := e.store.AddTrailEntry(ctx, &model.TrailEntry{
				EventType:   model.TrailFiltered,
				Description: fmt.Sprintf("rejected candidate %q: %s", c.Text, reason),
				SourceRef:   c.SourceRef,
			}); err != nil {
				return nil, eris.Wrap(err, "synthesis: trail filtered")
			}
			continue
		}
		kept = append(kept, c)
	}
	return kept, nil
}

// reconcileCluster resolves one cluster into a new or existing rule.
func (e *Engine) reconcileCluster(ctx context.Context, cluster []model.Candidate, existing []model.Rule, result *ReconcileResult) error {
	canonical := selectCanonical(cluster)
	conf := clusterConfidence(cluster)

	if match := e.matchExistingRule(canonical.Text, existing); match != nil {
		return e.mergeIntoRule(ctx, match, cluster, canonical, result)
	}
	return e.createRuleFromCluster(ctx, cluster, canonical, conf, result)
}

// createRuleFromCluster commits a cluster that matched no existing rule.
func (e *Engine) createRuleFromCluster(ctx context.Context, cluster []model.Candidate, canonical model.Candidate, conf float64, result *ReconcileResult) error {
	rule := &model.Rule{
		Text:              canonical.Text,
		Category:          canonical.Category,
		Confidence:        conf,
		SourceKind:        canonical.SourceKind,
		SourceRef:         unionSourceRefs("", cluster),
		ProvenanceURL:     canonical.ProvenanceURL,
		ProvenanceSummary: canonical.ProvenanceSummary,
		ApplicablePaths:   canonical.ApplicablePaths,
		Published:         conf >= e.confidenceFloor,
	}
	created, err := e.store.CreateRule(ctx, rule)
	if err != nil {
		return eris.Wrap(err, "synthesis: create rule")
	}

	if err := e.store.AddTrailEntry(ctx, &model.TrailEntry{
		RuleID:      created.ID,
		EventType:   model.TrailCreated,
		Description: fmt.Sprintf("synthesized from %d candidate(s) by %s", len(cluster), canonical.TaskName),
		SourceRef:   created.SourceRef,
	}); err != nil {
		return eris.Wrap(err, "synthesis: trail created")
	}
	if err := e.recordClusterResolution(ctx, created.ID, cluster, canonical); err != nil {
		return err
	}

	result.NewRules = append(result.NewRules, *created)
	return nil
}

// mergeIntoRule folds a cluster into an already-canonical rule.
func (e *Engine) mergeIntoRule(ctx context.Context, rule *model.Rule, cluster []model.Candidate, canonical model.Candidate, result *ReconcileResult) error {
	// Score the cluster together with the existing rule so corroboration
	// across runs still boosts.
	withExisting := append([]model.Candidate{{
		Text:       rule.Text,
		Confidence: rule.Confidence,
		SourceKind: rule.SourceKind,
	}}, cluster...)
	conf := clusterConfidence(withExisting)
	if conf < rule.Confidence {
		// Confidence never decreases on merge.
		conf = rule.Confidence
	}
	boosted := conf > rule.Confidence

	// Wording replacement follows the canonical ordering: higher authority
	// wins, and at equal authority the higher-confidence wording wins.
	canonicalWins := canonical.SourceKind.Authority() > rule.SourceKind.Authority() ||
		(canonical.SourceKind.Authority() == rule.SourceKind.Authority() &&
			canonical.Confidence > rule.Confidence)
	if canonicalWins {
		rule.Text = canonical.Text
		rule.SourceKind = canonical.SourceKind
		if canonical.ProvenanceURL != "" {
			rule.ProvenanceURL = canonical.ProvenanceURL
			rule.ProvenanceSummary = canonical.ProvenanceSummary
		}
	}
	rule.Confidence = conf
	rule.SourceRef = unionSourceRefs(rule.SourceRef, cluster)
	if conf >= e.confidenceFloor {
		rule.Published = true
	}

	if err := e.store.UpdateRule(ctx, rule); err != nil {
		return eris.Wrap(err, "synthesis: merge rule")
	}

	if err := e.store.AddTrailEntry(ctx, &model.TrailEntry{
		RuleID:      rule.ID,
		EventType:   model.TrailMerged,
		Description: fmt.Sprintf("merged %d candidate(s) into existing rule", len(cluster)),
		SourceRef:   rule.SourceRef,
	}); err != nil {
		return eris.Wrap(err, "synthesis: trail merged")
	}
	if boosted {
		if err := e.store.AddTrailEntry(ctx, &model.TrailEntry{
			RuleID:      rule.ID,
			EventType:   model.TrailConfidenceBoost,
			Description: fmt.Sprintf("corroboration raised confidence to %.2f", conf),
		}); err != nil {
			return eris.Wrap(err, "synthesis: trail boost")
		}
	}
	if err := e.recordClusterResolution(ctx, rule.ID, cluster, canonical); err != nil {
		return err
	}

	result.MergedRules = append(result.MergedRules, *rule)
	return nil
}

// recordClusterResolution logs a contradiction_resolved entry for every
// distinct wording that lost to the canonical text. The loser is discarded
// but never silently.
func (e *Engine) recordClusterResolution(ctx context.Context, ruleID string, cluster []model.Candidate, canonical model.Candidate) error {
	canonicalNorm := similarity.Normalize(canonical.Text)
	seen := map[string]bool{canonicalNorm: true}
	for _, c := range cluster {
		norm := similarity.Normalize(c.Text)
		if seen[norm] {
			continue
		}
		seen[norm] = true
		if err := e.store.AddTrailEntry(ctx, &model.TrailEntry{
			RuleID:    ruleID,
			EventType: model.TrailContradiction,
			Description: fmt.Sprintf("%s wording %q lost to %s wording %q",
				c.SourceKind, c.Text, canonical.SourceKind, canonical.Text),
			SourceRef: c.SourceRef,
		}); err != nil {
			return eris.Wrap(err, "synthesis: trail contradiction")
		}
	}
	return nil
}

// matchExistingRule finds the best-scoring existing rule at or above the
// cluster threshold. Ties break toward the earliest-created rule, which
// ListRules ordering already provides.
func (e *Engine) matchExistingRule(text string, existing []model.Rule) *model.Rule {
	tokens := similarity.Tokens(text)
	var best *model.Rule
	bestScore := 0.0
	for i := range existing {
		score := similarity.ScoreTokens(tokens, similarity.Tokens(existing[i].Text))
		if score >= e.clusterThreshold && score > bestScore {
			best = &existing[i]
			bestScore = score
		}
	}
	return best
}

// unionSourceRefs merges the cluster's source refs into the stored
// comma-separated set, deduplicated and sorted.
func unionSourceRefs(current string, cluster []model.Candidate) string {
	set := map[string]bool{}
	for _, ref := range strings.Split(current, ",") {
		if ref = strings.TrimSpace(ref); ref != "" {
			set[ref] = true
		}
	}
	for _, c := range cluster {
		if ref := strings.TrimSpace(c.SourceRef); ref != "" {
			set[ref] = true
		}
	}
	refs := make([]string, 0, len(set))
	for ref := range set {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return strings.Join(refs, ",")
}
