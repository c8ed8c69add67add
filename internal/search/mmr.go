package search

import (
	"math"

	"github.com/Aman-CERP/docrag/internal/store"
)

// selectMMR picks up to k candidates from pool by maximal marginal relevance:
//
//	argmax λ·rel(c) − (1−λ)·max_{s ∈ selected} sim(c, s)
//
// Ties go to the lower ordinal. pool must be ordered by relevance. The
// running max similarity per candidate is updated after each pick, so the
// cost is O(k·len(pool)) similarity evaluations.
func selectMMR(idx *store.Index, pool []candidate, k int, lambda float64) []candidate {
	k = min(k, len(pool))
	if k == 0 {
		return nil
	}

	maxSim := make([]float64, len(pool))
	for i := range maxSim {
		maxSim[i] = math.Inf(-1)
	}
	taken := make([]bool, len(pool))
	selected := make([]candidate, 0, k)

	for len(selected) < k {
		best := -1
		var bestScore float64
		for i, c := range pool {
			if taken[i] {
				continue
			}
			redundancy := 0.0
			if len(selected) > 0 {
				redundancy = maxSim[i]
			}
			score := lambda*c.score - (1-lambda)*redundancy
			if best < 0 || score > bestScore || (score == bestScore && c.ord < pool[best].ord) {
				best, bestScore = i, score
			}
		}

		taken[best] = true
		pick := pool[best]
		selected = append(selected, pick)

		for i, c := range pool {
			if taken[i] {
				continue
			}
			if sim := idx.Similarity(c.ord, pick.ord); sim > maxSim[i] {
				maxSim[i] = sim
			}
		}
	}
	return selected
}
