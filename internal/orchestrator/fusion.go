package orchestrator

import "sort"

// rrfK is the reciprocal-rank-fusion constant (spec §4.7 step 3 leaves the
// fusion policy implementation-defined but deterministic and documented;
// k=60 is the standard RRF constant from Cormack et al., chosen here since
// it dampens the influence of any single rank list without a tuning pass).
const rrfK = 60

// fusedHit is one chunk id after RRF combines its dense and sparse ranks.
type fusedHit struct {
	ChunkID string
	Score   float64
}

// fuseRRF combines independently-ranked dense and sparse hit lists into one
// deterministic ranking via reciprocal rank fusion: each list contributes
// 1/(k+rank) to a chunk's score, summed across lists it appears in. A chunk
// present in both lists outranks one present in only one, and the fusion
// never needs the two lists' raw scores to be on comparable scales.
func fuseRRF(dense, sparse []rankedHit) []fusedHit {
	scores := make(map[string]float64)
	order := make([]string, 0, len(dense)+len(sparse))

	add := func(hits []rankedHit) {
		for rank, h := range hits {
			if _, seen := scores[h.ChunkID]; !seen {
				order = append(order, h.ChunkID)
			}
			scores[h.ChunkID] += 1.0 / float64(rrfK+rank+1)
		}
	}
	add(dense)
	add(sparse)

	fused := make([]fusedHit, 0, len(order))
	for _, id := range order {
		fused = append(fused, fusedHit{ChunkID: id, Score: scores[id]})
	}
	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].Score > fused[j].Score
	})
	return fused
}

// rankedHit is the minimal shape fuseRRF needs from a vector-store hit list,
// decoupled from vectorstore.SearchHit so this package has no import-cycle
// dependency on the concrete store.
type rankedHit struct {
	ChunkID string
}
