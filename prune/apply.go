package prune

import "github.com/dngram/dngram/ngram"

// Result reports what ApplyPruning did to one state.
type Result struct {
	Pruned  []ngram.Word // words whose count was moved to backoff
	NewGain float32      // sum of |DeltaL| for pruned entries, a lower bound on the log-likelihood lost by pruning them
}

// ApplyPruning walks one FloatLmState's word counts, pruning every entry
// whose DeltaL fails to clear -threshold and is not excluded, moving its
// mass into state.Discount and the matching word's count within backoff.
// backoff is mutated in place; both states must already be sorted by word.
func ApplyPruning(state *ngram.FloatLmState, backoff *ngram.FloatLmState, excl ExclusionSets, threshold float32) Result {
	var res Result
	backoffIdx := make(map[ngram.Word]int, len(backoff.Counts))
	for i, wc := range backoff.Counts {
		backoffIdx[wc.Word] = i
	}

	kept := state.Counts[:0]
	for _, wc := range state.Counts {
		bi, ok := backoffIdx[wc.Word]
		if !ok || excl.Excluded(state.History, wc.Word) {
			kept = append(kept, wc)
			continue
		}
		cand := Candidate{
			Count:        wc.Count,
			Total:        state.Total,
			Discount:     state.Discount,
			BackoffCount: backoff.Counts[bi].Count,
			BackoffTotal: backoff.Total,
		}
		dl := DeltaL(cand)
		if dl > -threshold {
			state.Discount += wc.Count
			backoff.Counts[bi].Count += wc.Count
			backoff.Total += wc.Count
			res.Pruned = append(res.Pruned, wc.Word)
			res.NewGain += -dl
			continue
		}
		kept = append(kept, wc)
	}
	state.Counts = kept
	return res
}
