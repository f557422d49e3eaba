package merge

import (
	"fmt"
	"sort"

	"github.com/dngram/dngram/ngram"
)

// MergeFloatCounts sums FloatLmStates that share the same history, which
// happens whenever more than one upstream file contributes to the same
// backoff history (e.g. two higher-order discounting runs backing off into
// the same lower-order history). States with a history seen only once pass
// through unchanged. Every input stream must already be sorted by reversed
// history.
func MergeFloatCounts(streams [][]*ngram.FloatLmState) ([]*ngram.FloatLmState, error) {
	byHistory := make(map[string]*ngram.FloatLmState)
	var order []string
	for _, stream := range streams {
		for _, s := range stream {
			key := historyKey(s.History)
			existing, ok := byHistory[key]
			if !ok {
				clone := &ngram.FloatLmState{History: s.History, Total: s.Total, Discount: s.Discount}
				clone.Counts = append(clone.Counts, s.Counts...)
				byHistory[key] = clone
				order = append(order, key)
				continue
			}
			if err := mergeFloatStateInto(existing, s); err != nil {
				return nil, err
			}
		}
	}
	sort.Slice(order, func(i, j int) bool {
		return historyLess(byHistory[order[i]].History, byHistory[order[j]].History)
	})
	out := make([]*ngram.FloatLmState, 0, len(order))
	for _, key := range order {
		out = append(out, byHistory[key])
	}
	return out, nil
}

func mergeFloatStateInto(dst *ngram.FloatLmState, src *ngram.FloatLmState) error {
	if len(dst.Counts) != len(src.Counts) {
		return fmt.Errorf("merge: MergeFloatCounts: duplicate history has mismatched word sets (%d vs %d words)", len(dst.Counts), len(src.Counts))
	}
	for i := range dst.Counts {
		if dst.Counts[i].Word != src.Counts[i].Word {
			return fmt.Errorf("merge: MergeFloatCounts: duplicate history word mismatch at position %d (%d vs %d)", i, dst.Counts[i].Word, src.Counts[i].Word)
		}
		dst.Counts[i].Count += src.Counts[i].Count
	}
	dst.Discount += src.Discount
	dst.Total += src.Total
	return nil
}

// MergeFloatCountsBackward broadcasts the merged derivative back to every
// duplicate that contributed to a shared history: addition's backward pass
// is the identity, so each contributor simply receives a copy.
func MergeFloatCountsBackward(mergedDeriv *ngram.FloatLmStateDerivs, numContributors int) []*ngram.FloatLmStateDerivs {
	out := make([]*ngram.FloatLmStateDerivs, numContributors)
	for i := range out {
		out[i] = &ngram.FloatLmStateDerivs{
			TotalDeriv:    mergedDeriv.TotalDeriv,
			DiscountDeriv: mergedDeriv.DiscountDeriv,
			CountDerivs:   append([]float32(nil), mergedDeriv.CountDerivs...),
		}
	}
	return out
}
