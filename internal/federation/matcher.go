// Package federation matches rule submissions from other repositories
// against pending proposals, pooling agreement into consensus confidence
// instead of duplicate proposals.
package federation

import (
	"context"
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tacit-cli/internal/model"
	"github.com/sells-group/tacit-cli/internal/similarity"
	"github.com/sells-group/tacit-cli/internal/store"
)

// DefaultMatchThreshold is the similarity floor for attaching a submission
// to an existing pending proposal.
const DefaultMatchThreshold = 0.65

const (
	consensusIncrement = 0.08
	consensusCap       = 0.98
)

// Submission is one rule proposed by an external contributor.
type Submission struct {
	Text            string
	Category        model.Category
	Confidence      float64
	SourceExcerpt   string
	ContributorName string
}

// SubmitResult reports where a submission landed.
type SubmitResult struct {
	Proposal        *model.Proposal
	Matched         bool
	SimilarityScore float64
}

// Matcher routes submissions into the proposal queue.
type Matcher struct {
	store     store.Store
	threshold float64
}

// NewMatcher creates a matcher. A non-positive threshold falls back to the
// default.
func NewMatcher(st store.Store, threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}
	return &Matcher{store: st, threshold: threshold}
}

// Submit attaches the submission to the best-matching pending proposal, or
// creates a new proposal when nothing matches. Only pending proposals are
// candidates; approved and rejected ones never accumulate contributions.
func (m *Matcher) Submit(ctx context.Context, sub Submission) (*SubmitResult, error) {
	if sub.Text == "" {
		return nil, eris.New("federation: empty submission text")
	}
	if sub.ContributorName == "" {
		return nil, eris.New("federation: missing contributor name")
	}

	pending, err := m.store.ListProposals(ctx, model.ProposalPending)
	if err != nil {
		return nil, eris.Wrap(err, "federation: list pending proposals")
	}

	match, score := m.bestMatch(sub.Text, pending)
	if match == nil {
		proposal, err := m.store.CreateProposal(ctx, &model.Proposal{
			Text:          sub.Text,
			Category:      sub.Category,
			Confidence:    sub.Confidence,
			SourceExcerpt: sub.SourceExcerpt,
			ProposedBy:    sub.ContributorName,
		})
		if err != nil {
			return nil, eris.Wrap(err, "federation: create proposal")
		}
		zap.L().Info("new federated proposal",
			zap.String("proposal_id", proposal.ID),
			zap.String("contributor", sub.ContributorName),
		)
		return &SubmitResult{Proposal: proposal}, nil
	}

	newConfidence, err := m.consensusConfidence(ctx, match.ID, sub, match.ContributorCount+1)
	if err != nil {
		return nil, err
	}

	count, err := m.store.AddContribution(ctx, &model.Contribution{
		ProposalID:         match.ID,
		ContributorName:    sub.ContributorName,
		Text:               sub.Text,
		OriginalConfidence: sub.Confidence,
		SourceExcerpt:      sub.SourceExcerpt,
		SimilarityScore:    score,
	}, newConfidence)
	if err != nil {
		return nil, eris.Wrap(err, "federation: add contribution")
	}

	zap.L().Info("contribution pooled into proposal",
		zap.String("proposal_id", match.ID),
		zap.String("contributor", sub.ContributorName),
		zap.Int("contributor_count", count),
		zap.Float64("similarity", score),
		zap.Float64("consensus_confidence", newConfidence),
	)

	updated, err := m.store.GetProposal(ctx, match.ID)
	if err != nil {
		return nil, eris.Wrap(err, "federation: reload proposal")
	}
	return &SubmitResult{Proposal: updated, Matched: true, SimilarityScore: score}, nil
}

// bestMatch returns the highest-scoring pending proposal at or above the
// threshold. Ties keep the earlier proposal, which ListProposals ordering
// provides.
func (m *Matcher) bestMatch(text string, pending []model.Proposal) (*model.Proposal, float64) {
	tokens := similarity.Tokens(text)
	var best *model.Proposal
	bestScore := 0.0
	for i := range pending {
		score := similarity.ScoreTokens(tokens, similarity.Tokens(pending[i].Text))
		if score >= m.threshold && score > bestScore {
			best = &pending[i]
			bestScore = score
		}
	}
	return best, bestScore
}

// consensusConfidence recomputes min(cap, base + 0.08·log2(n)) where base is
// the strongest original confidence among all contributors (the proposer's
// own contribution row included) and n is the new contributor count.
func (m *Matcher) consensusConfidence(ctx context.Context, proposalID string, sub Submission, n int) (float64, error) {
	contributions, err := m.store.ListContributions(ctx, proposalID)
	if err != nil {
		return 0, eris.Wrap(err, "federation: list contributions")
	}

	base := sub.Confidence
	for _, c := range contributions {
		if c.OriginalConfidence > base {
			base = c.OriginalConfidence
		}
	}

	conf := base + consensusIncrement*math.Log2(float64(n))
	return math.Min(consensusCap, conf), nil
}

// ErrAlreadyDecided reports an approval attempt on a proposal that is no
// longer pending.
var ErrAlreadyDecided = eris.New("federation: proposal already decided")

// Approve promotes a pending proposal into a rule and records the review.
// The promotion lands first; if recording the review then fails the rule
// is removed again, so the proposal stays pending and the approval can be
// retried.
func Approve(ctx context.Context, st store.Store, proposalID, reviewedBy, feedback string) (*model.Rule, error) {
	proposal, err := st.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, eris.Wrapf(err, "federation: load proposal %s", proposalID)
	}
	if proposal.Status != model.ProposalPending {
		return nil, eris.Wrapf(ErrAlreadyDecided, "proposal %s is %s", proposalID, proposal.Status)
	}

	rule, err := Promote(ctx, st, proposal)
	if err != nil {
		return nil, err
	}
	if err := st.ReviewProposal(ctx, proposalID, model.ProposalApproved, reviewedBy, feedback); err != nil {
		if delErr := st.DeleteRule(ctx, rule.ID); delErr != nil {
			zap.L().Error("rule orphaned after failed approval",
				zap.String("proposal_id", proposalID),
				zap.String("rule_id", rule.ID),
				zap.Error(delErr),
			)
		}
		return nil, eris.Wrapf(err, "federation: record approval of %s", proposalID)
	}
	return rule, nil
}

// Promote turns an approved proposal into a canonical rule, crediting every
// contributor in the trail.
func Promote(ctx context.Context, st store.Store, proposal *model.Proposal) (*model.Rule, error) {
	rule, err := st.CreateRule(ctx, &model.Rule{
		Text:              proposal.Text,
		Category:          proposal.Category,
		Confidence:        proposal.Confidence,
		SourceKind:        model.SourceConversation,
		SourceRef:         "proposal:" + proposal.ID,
		ProvenanceSummary: proposal.SourceExcerpt,
		Published:         true,
	})
	if err != nil {
		return nil, eris.Wrap(err, "federation: promote proposal")
	}

	description := fmt.Sprintf("approved proposal from %s", proposal.ProposedBy)
	if proposal.ContributorCount > 1 {
		description = fmt.Sprintf("approved proposal with consensus from %d contributors", proposal.ContributorCount)
	}
	if err := st.AddTrailEntry(ctx, &model.TrailEntry{
		RuleID:      rule.ID,
		EventType:   model.TrailApproved,
		Description: description,
		SourceRef:   "proposal:" + proposal.ID,
	}); err != nil {
		if delErr := st.DeleteRule(ctx, rule.ID); delErr != nil {
			zap.L().Error("rule orphaned after failed trail write",
				zap.String("rule_id", rule.ID), zap.Error(delErr))
		}
		return nil, eris.Wrap(err, "federation: trail approved")
	}
	return rule, nil
}
