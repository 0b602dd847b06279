package synthesis

import (
	"sort"

	"github.com/sells-group/tacit-cli/internal/model"
)

const (
	// corroborationBoost is added to the max contributing confidence when
	// at least two distinct source kinds agree.
	corroborationBoost = 0.10

	// corroborationCap bounds the boosted confidence.
	corroborationCap = 0.95

	// enforcedPairConfidence applies when a CI-enforced fix and an
	// anti-pattern finding corroborate each other. Two independent
	// top-authority signals agreeing outrank the additive rule.
	enforcedPairConfidence = 0.98
)

// clusterConfidence applies the corroboration rules across one cluster.
func clusterConfidence(cands []model.Candidate) float64 {
	kinds := make(map[model.SourceKind]bool, len(cands))
	maxConf := 0.0
	for _, c := range cands {
		kinds[c.SourceKind] = true
		if c.Confidence > maxConf {
			maxConf = c.Confidence
		}
	}

	if kinds[model.SourceCIFix] && kinds[model.SourceAntiPattern] {
		return enforcedPairConfidence
	}
	if len(kinds) >= 2 {
		boosted := maxConf + corroborationBoost
		if boosted > corroborationCap {
			boosted = corroborationCap
		}
		return boosted
	}
	return maxConf
}

// selectCanonical picks the cluster's winning candidate: highest authority,
// then highest raw confidence, then lexicographically smallest text. The
// ordering is total, so the result is arrival-order independent.
func selectCanonical(cands []model.Candidate) model.Candidate {
	sorted := make([]model.Candidate, len(cands))
	copy(sorted, cands)
	sort.SliceStable(sorted, func(i, j int) bool {
		ai, aj := sorted[i].SourceKind.Authority(), sorted[j].SourceKind.Authority()
		if ai != aj {
			return ai > aj
		}
		if sorted[i].Confidence != sorted[j].Confidence {
			return sorted[i].Confidence > sorted[j].Confidence
		}
		return sorted[i].Text < sorted[j].Text
	})
	return sorted[0]
}
