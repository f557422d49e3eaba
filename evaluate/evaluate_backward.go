package evaluate

import "github.com/dngram/dngram/ngram"

// DerivAccumulator collects per-(order, history) FloatLmStateDerivs as
// EvaluateWordBackward visits training states, mirroring the way the
// reference evaluator differentiates while it walks the corpus rather than
// buffering the whole gradient in a second pass.
type DerivAccumulator struct {
	byOrder []map[string]*ngram.FloatLmStateDerivs
}

// NewDerivAccumulator allocates one accumulator slot per order in m.
func NewDerivAccumulator(m *Model) *DerivAccumulator {
	a := &DerivAccumulator{byOrder: make([]map[string]*ngram.FloatLmStateDerivs, len(m.byOrder))}
	for i := range a.byOrder {
		a.byOrder[i] = make(map[string]*ngram.FloatLmStateDerivs)
	}
	return a
}

func (a *DerivAccumulator) derivFor(order int, s *ngram.FloatLmState) *ngram.FloatLmStateDerivs {
	key := historyKey(s.History)
	d, ok := a.byOrder[order][key]
	if !ok {
		d = &ngram.FloatLmStateDerivs{CountDerivs: make([]float32, len(s.Counts))}
		a.byOrder[order][key] = d
	}
	return d
}

// Get returns the accumulated derivative record for a training state at the
// given order and history, or nil if that state was never visited.
func (a *DerivAccumulator) Get(order int, history []ngram.Word) *ngram.FloatLmStateDerivs {
	return a.byOrder[order][historyKey(history)]
}

// EvaluateWordBackward differentiates one EvaluateWord call given the count
// c the word occurred with, accumulating into acc. It is the reverse-mode
// counterpart of the backoff recursion: the b-chain that flows top-down in
// the forward pass carries gradient bottom-up here, starting from the
// unigram (order 0) level and propagating up through every backed-off order
// up to h*.
func EvaluateWordBackward(trace *WordTrace, count int32, acc *DerivAccumulator) {
	g := float32(count) / trace.Prob

	var gPrev float32 // dL/dB_{h-1}, seeded by the order-0 level below
	n := len(trace.Levels)
	for i := n - 1; i >= 0; i-- {
		lt := trace.Levels[i]
		rec := acc.derivFor(lt.order, lt.state)

		if lt.order == 0 {
			c := lt.state.Counts[lt.foundAt].Count
			dcw := g * lt.bAtIn / lt.total
			dtotal := -g * lt.bAtIn * c / (lt.total * lt.total)
			rec.CountDerivs[lt.foundAt] += dcw
			rec.TotalDeriv += dtotal
			gPrev = g * c / lt.total // G_0, no further b-scaling of its own term
			continue
		}

		var contribute float32
		if lt.foundAt >= 0 {
			c := lt.state.Counts[lt.foundAt].Count
			dcw := g * lt.bAtIn / lt.total
			dtotal := -g * lt.bAtIn * c / (lt.total * lt.total)
			rec.CountDerivs[lt.foundAt] += dcw
			rec.TotalDeriv += dtotal
			contribute = g * c / lt.total
		}

		ddiscount := gPrev * lt.bAtIn / lt.total
		dtotalFromRatio := -gPrev * lt.bAtIn * lt.discount / (lt.total * lt.total)
		rec.DiscountDeriv += ddiscount
		rec.TotalDeriv += dtotalFromRatio

		ratio := lt.discount / lt.total
		gPrev = contribute + gPrev*ratio
	}
}

// CheckStateBackoffMass returns the state's own escape probability plus its
// direct word mass, (Discount + Σ Counts) / Total, or 0 when Total is 0.
// compute-probs requires the result to be within 1e-3 of 1 for every state
// and checks it once per state right after loading the model, not during
// the backward pass. This is a restatement of the FloatLmState.Check
// invariant expressed as a probability rather than raw counts.
func CheckStateBackoffMass(s *ngram.FloatLmState) float32 {
	var sum float32 = s.Discount
	for _, wc := range s.Counts {
		sum += wc.Count
	}
	if s.Total == 0 {
		return 0
	}
	return sum / s.Total
}
