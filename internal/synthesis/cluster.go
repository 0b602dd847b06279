package synthesis

import (
	"sort"

	"github.com/sells-group/tacit-cli/internal/model"
	"github.com/sells-group/tacit-cli/internal/similarity"
)

// unionFind is a plain disjoint-set with path compression.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		// Smaller root wins so grouping is deterministic.
		if ra < rb {
			u.parent[rb] = ra
		} else {
			u.parent[ra] = rb
		}
	}
}

// clusterCandidates groups candidates whose pairwise similarity meets the
// threshold, using union-find (so clusters are transitive: a~b and b~c puts
// all three together). Candidates are sorted by normalized text then source
// kind first, making the output independent of arrival order.
func clusterCandidates(cands []model.Candidate, threshold float64) [][]model.Candidate {
	if len(cands) == 0 {
		return nil
	}

	sorted := make([]model.Candidate, len(cands))
	copy(sorted, cands)
	sort.SliceStable(sorted, func(i, j int) bool {
		ni, nj := similarity.Normalize(sorted[i].Text), similarity.Normalize(sorted[j].Text)
		if ni != nj {
			return ni < nj
		}
		return sorted[i].SourceKind < sorted[j].SourceKind
	})

	tokens := make([][]string, len(sorted))
	for i, c := range sorted {
		tokens[i] = similarity.Tokens(c.Text)
	}

	uf := newUnionFind(len(sorted))
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if similarity.ScoreTokens(tokens[i], tokens[j]) >= threshold {
				uf.union(i, j)
			}
		}
	}

	byRoot := make(map[int][]model.Candidate)
	var roots []int
	for i, c := range sorted {
		root := uf.find(i)
		if _, seen := byRoot[root]; !seen {
			roots = append(roots, root)
		}
		byRoot[root] = append(byRoot[root], c)
	}

	sort.Ints(roots)
	out := make([][]model.Candidate, 0, len(roots))
	for _, r := range roots {
		out = append(out, byRoot[r])
	}
	return out
}
