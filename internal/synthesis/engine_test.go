package synthesis

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tacit-cli/internal/model"
	"github.com/sells-group/tacit-cli/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, store.Store) {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "synthesis_test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return NewEngine(s, 0.80, 0.60), s
}

func candidate(text string, conf float64, kind model.SourceKind) model.Candidate {
	return model.Candidate{
		Text:       text,
		Category:   model.CategoryStyle,
		Confidence: conf,
		SourceKind: kind,
		SourceRef:  string(kind) + ":ref",
		TaskName:   "test_task",
		Phase:      "test_phase",
	}
}

func TestReconcileCreatesRule(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	result, err := e.Reconcile(ctx, []model.Candidate{
		candidate("Wrap store errors with eris.Wrap", 0.85, model.SourceDocs),
	})
	require.NoError(t, err)
	require.Len(t, result.NewRules, 1)

	rule := result.NewRules[0]
	assert.True(t, rule.Published)
	assert.InDelta(t, 0.85, rule.Confidence, 1e-9)

	trail, err := s.ListTrail(ctx, rule.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, model.TrailCreated, trail[0].EventType)
}

func TestReconcileIdempotent(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	batch := []model.Candidate{
		candidate("Wrap store errors with eris.Wrap", 0.85, model.SourceDocs),
		candidate("Run `make lint` before pushing", 0.75, model.SourceConfig),
	}

	first, err := e.Reconcile(ctx, batch)
	require.NoError(t, err)
	assert.Len(t, first.NewRules, 2)

	second, err := e.Reconcile(ctx, batch)
	require.NoError(t, err)
	assert.Empty(t, second.NewRules)
	assert.Len(t, second.MergedRules, 2)

	rules, err := s.ListRules(ctx, store.RuleFilter{})
	require.NoError(t, err)
	assert.Len(t, rules, 2)
}

func TestReconcileConfidenceMonotonic(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	first, err := e.Reconcile(ctx, []model.Candidate{
		candidate("Pin golangci-lint in the ci.yml workflow", 0.9, model.SourceCIFix),
	})
	require.NoError(t, err)
	initial := first.NewRules[0].Confidence

	// A weaker restatement must never drag confidence down.
	second, err := e.Reconcile(ctx, []model.Candidate{
		candidate("Pin golangci-lint in the ci.yml workflow", 0.4, model.SourceCIFix),
	})
	require.NoError(t, err)
	require.Len(t, second.MergedRules, 1)
	assert.GreaterOrEqual(t, second.MergedRules[0].Confidence, initial)
}

func TestReconcileCorroborationBoost(t *testing.T) {
	e, _ := newTestEngine(t)

	result, err := e.Reconcile(context.Background(), []model.Candidate{
		candidate("Route outbound calls through pkg/claude", 0.70, model.SourceDocs),
		candidate("Route outbound calls through pkg/claude", 0.65, model.SourcePR),
	})
	require.NoError(t, err)
	require.Len(t, result.NewRules, 1)
	// Two distinct kinds: max + 0.10.
	assert.InDelta(t, 0.80, result.NewRules[0].Confidence, 1e-9)
}

func TestReconcileBoostCapped(t *testing.T) {
	e, _ := newTestEngine(t)

	result, err := e.Reconcile(context.Background(), []model.Candidate{
		candidate("Keep migrations in internal/store only", 0.92, model.SourceDocs),
		candidate("Keep migrations in internal/store only", 0.90, model.SourceStructure),
	})
	require.NoError(t, err)
	require.Len(t, result.NewRules, 1)
	assert.InDelta(t, 0.95, result.NewRules[0].Confidence, 1e-9)
}

func TestReconcileEnforcedPair(t *testing.T) {
	e, _ := newTestEngine(t)

	result, err := e.Reconcile(context.Background(), []model.Candidate{
		candidate("Never commit .env files", 0.70, model.SourceCIFix),
		candidate("Never commit .env files", 0.65, model.SourceAntiPattern),
	})
	require.NoError(t, err)
	require.Len(t, result.NewRules, 1)
	assert.InDelta(t, 0.98, result.NewRules[0].Confidence, 1e-9)
}

func TestReconcileAuthorityBeatsConfidence(t *testing.T) {
	// The contradiction scenario: a ci_fix wording at lower raw confidence
	// beats a conversation wording at higher confidence, the merged rule
	// is boosted, and the loser lands in the trail.
	e, s := newTestEngine(t)
	ctx := context.Background()

	result, err := e.Reconcile(ctx, []model.Candidate{
		candidate("never use X", 0.80, model.SourceCIFix),
		candidate("do not use X, use Y", 0.90, model.SourceConversation),
	})
	require.NoError(t, err)
	require.Len(t, result.NewRules, 1)

	rule := result.NewRules[0]
	assert.Equal(t, "never use X", rule.Text)
	assert.Equal(t, model.SourceCIFix, rule.SourceKind)
	assert.GreaterOrEqual(t, rule.Confidence, 0.90)

	trail, err := s.ListTrail(ctx, rule.ID)
	require.NoError(t, err)
	var contradictions int
	for _, entry := range trail {
		if entry.EventType == model.TrailContradiction {
			contradictions++
		}
	}
	assert.Equal(t, 1, contradictions)
}

func TestReconcileFiltersGenericRules(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	result, err := e.Reconcile(ctx, []model.Candidate{
		candidate("always write tests", 0.9, model.SourceDocs),
		candidate("write code that is maintainable and readable", 0.8, model.SourceDocs),
		candidate("Gate webhook handlers on the X-Hub-Signature-256 header", 0.85, model.SourceDocs),
	})
	require.NoError(t, err)
	assert.Len(t, result.Filtered, 2)
	require.Len(t, result.NewRules, 1)
	assert.Contains(t, result.NewRules[0].Text, "X-Hub-Signature-256")

	rules, err := s.ListRules(ctx, store.RuleFilter{})
	require.NoError(t, err)
	assert.Len(t, rules, 1)
}

func TestReconcileBelowFloorUnpublished(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	result, err := e.Reconcile(ctx, []model.Candidate{
		candidate("Maybe prefer pgx over database/sql", 0.40, model.SourcePR),
	})
	require.NoError(t, err)
	require.Len(t, result.NewRules, 1)
	assert.False(t, result.NewRules[0].Published)

	// Discoverable without the published filter, invisible with it.
	all, err := s.ListRules(ctx, store.RuleFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
	published, err := s.ListRules(ctx, store.RuleFilter{PublishedOnly: true})
	require.NoError(t, err)
	assert.Empty(t, published)
}

func TestReconcileOrderIndependent(t *testing.T) {
	batch := []model.Candidate{
		candidate("never use X", 0.80, model.SourceCIFix),
		candidate("do not use X, use Y", 0.90, model.SourceConversation),
		candidate("Run `make lint` before pushing", 0.75, model.SourceConfig),
	}
	reversed := []model.Candidate{batch[2], batch[1], batch[0]}

	e1, _ := newTestEngine(t)
	r1, err := e1.Reconcile(context.Background(), batch)
	require.NoError(t, err)

	e2, _ := newTestEngine(t)
	r2, err := e2.Reconcile(context.Background(), reversed)
	require.NoError(t, err)

	require.Equal(t, len(r1.NewRules), len(r2.NewRules))
	texts1 := map[string]float64{}
	for _, r := range r1.NewRules {
		texts1[r.Text] = r.Confidence
	}
	for _, r := range r2.NewRules {
		conf, ok := texts1[r.Text]
		require.True(t, ok, "rule %q missing from first pass", r.Text)
		assert.InDelta(t, conf, r.Confidence, 1e-9)
	}
}

func TestMergeEqualAuthorityHigherConfidenceWins(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	first, err := e.Reconcile(ctx, []model.Candidate{
		candidate("Keep database migrations in internal/store", 0.70, model.SourceDocs),
	})
	require.NoError(t, err)
	require.Len(t, first.NewRules, 1)

	// docs and structure share an authority tier, so the stronger wording
	// takes over the stored text.
	second, err := e.Reconcile(ctx, []model.Candidate{
		candidate("Keep database migrations inside internal/store", 0.90, model.SourceStructure),
	})
	require.NoError(t, err)
	require.Len(t, second.MergedRules, 1)
	assert.Equal(t, "Keep database migrations inside internal/store", second.MergedRules[0].Text)
	assert.Equal(t, model.SourceStructure, second.MergedRules[0].SourceKind)

	// A weaker equal-authority restatement leaves the wording alone.
	third, err := e.Reconcile(ctx, []model.Candidate{
		candidate("Keep the database migrations inside internal/store", 0.50, model.SourceDocs),
	})
	require.NoError(t, err)
	require.Len(t, third.MergedRules, 1)
	assert.Equal(t, "Keep database migrations inside internal/store", third.MergedRules[0].Text)
}

func TestReconcileEventGateSplits(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	result, err := e.ReconcileEvent(ctx, []model.Candidate{
		candidate("Pin golangci-lint in the ci.yml workflow", 0.90, model.SourcePR),
		candidate("Run `make integration` before merging store changes", 0.70, model.SourceConversation),
	}, 0.85)
	require.NoError(t, err)
	require.Len(t, result.Promoted, 1)
	assert.Contains(t, result.Promoted[0].Text, "golangci-lint")
	require.Len(t, result.Deferred, 1)
	assert.InDelta(t, 0.70, result.Deferred[0].Confidence, 1e-9)

	// Deferred clusters leave no trace in the store.
	rules, err := s.ListRules(ctx, store.RuleFilter{})
	require.NoError(t, err)
	assert.Len(t, rules, 1)
}

func TestReconcileEventCorroborationCrossesGate(t *testing.T) {
	e, _ := newTestEngine(t)

	// Neither candidate clears the gate alone; two distinct kinds agreeing
	// boost the cluster past it.
	result, err := e.ReconcileEvent(context.Background(), []model.Candidate{
		candidate("Validate webhook signatures before decoding the payload", 0.78, model.SourcePR),
		candidate("Validate webhook signatures before decoding the payload", 0.78, model.SourceAntiPattern),
	}, 0.85)
	require.NoError(t, err)
	require.Len(t, result.Promoted, 1)
	assert.Empty(t, result.Deferred)
	assert.InDelta(t, 0.88, result.Promoted[0].Confidence, 1e-9)
}

func TestReconcileEventFiltersGenericCandidates(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	result, err := e.ReconcileEvent(ctx, []model.Candidate{
		candidate("always write tests", 0.70, model.SourceConversation),
	}, 0.85)
	require.NoError(t, err)
	require.Len(t, result.Filtered, 1)
	assert.Empty(t, result.Promoted)
	assert.Empty(t, result.Deferred)

	rules, err := s.ListRules(ctx, store.RuleFilter{})
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestReconcileEventMergesBelowGateIntoExistingRule(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	first, err := e.Reconcile(ctx, []model.Candidate{
		candidate("Route outbound calls through pkg/claude", 0.80, model.SourceDocs),
	})
	require.NoError(t, err)
	require.Len(t, first.NewRules, 1)

	// A sub-gate restatement of canonical knowledge corroborates the rule
	// instead of opening a duplicate review.
	result, err := e.ReconcileEvent(ctx, []model.Candidate{
		candidate("Route all outbound calls through pkg/claude", 0.70, model.SourcePR),
	}, 0.85)
	require.NoError(t, err)
	require.Len(t, result.Promoted, 1)
	assert.Empty(t, result.Deferred)

	rules, err := s.ListRules(ctx, store.RuleFilter{})
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.InDelta(t, 0.90, rules[0].Confidence, 1e-9)
}
