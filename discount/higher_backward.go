package discount

import (
	"fmt"

	"github.com/dngram/dngram/ngram"
)

// HigherOrderDerivs carries the accumulated gradient of the four
// higher-order discount constants.
type HigherOrderDerivs struct {
	D1, D2, D3, D4 float32
}

// HigherOrderBackward differentiates HigherOrder for a single state.
//
//   - countDerivs is parallel to state.Counts: the (post-Flush) gradient of
//     each word's discounted output count.
//   - backoffDerivs is parallel to state.Counts: the gradient of the Count
//     that word's removed mass contributed to the backoff aggregate,
//     already isolated from whatever else that aggregate accumulated
//     (i.e. after merge's own backward pass has apportioned it).
//
// It returns the gradient with respect to state's own Counts (parallel
// slice) and the accumulated gradient of D1..D4.
func HigherOrderBackward(state *ngram.GeneralLmState, cfg HigherOrderConfig, countDerivs []float32, backoffDerivs []ngram.Count) ([]ngram.Count, HigherOrderDerivs, error) {
	n := len(state.Counts)
	if len(countDerivs) != n || len(backoffDerivs) != n {
		return nil, HigherOrderDerivs{}, fmt.Errorf("discount: HigherOrderBackward length mismatch: state has %d words, got %d/%d derivatives", n, len(countDerivs), len(backoffDerivs))
	}
	_, work, err := higherOrderForward(state, cfg, nil)
	if err != nil {
		return nil, HigherOrderDerivs{}, err
	}

	out := make([]ngram.Count, n)
	var d HigherOrderDerivs
	for i, wc := range state.Counts {
		c := wc.Count
		gFinal := countDerivs[i]
		gB := backoffDerivs[i]

		gd := gB.Total - gFinal
		gd1 := gB.Top1 + gd
		gd2 := gB.Top2 + gd
		gd3 := gB.Top3 + gd
		gd4 := gd

		out[i].Top1 = cfg.D1*gd1 - cfg.D4*gd4
		out[i].Top2 = cfg.D2*gd2 - cfg.D4*gd4
		out[i].Top3 = cfg.D3*gd3 - cfg.D4*gd4
		out[i].Total = gFinal + cfg.D4*gd4

		d.D1 += c.Top1 * gd1
		d.D2 += c.Top2 * gd2
		d.D3 += c.Top3 * gd3
		d.D4 += work.top4[i] * gd4
	}
	return out, d, nil
}
