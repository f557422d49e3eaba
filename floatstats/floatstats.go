// Package floatstats implements stage H: turning a trained model into the
// table of expected per-history-and-word counts that data generated by the
// model, with the training corpus's own distribution of contexts, would
// produce. It also carries the supplemented float-counts-remove-zeros
// structural cleanup (spec §8, testable property 6).
package floatstats

import (
	"sort"

	"github.com/dngram/dngram/evaluate"
	"github.com/dngram/dngram/ngram"
)

// accKey identifies one (order, history, word) accumulation slot.
type accKey struct {
	order   int
	history string
	word    ngram.Word
}

func historyKey(h []ngram.Word) string {
	buf := make([]byte, 0, 4*len(h))
	for _, w := range h {
		buf = append(buf, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	}
	return string(buf)
}

// Generate decomposes every (history, word, count) triple in trainingCounts
// (typically the highest-order raw counts the model was built from) across
// every order that backoff-with-interpolation touched while evaluating that
// word, crediting each order the fraction of the total probability mass it
// contributed. Because evaluate.WordTrace's per-level contributions sum
// exactly to the evaluated probability, this partitions each input count
// losslessly with no risk of double-counting the same mass at two orders —
// the "proportion_remaining" bookkeeping of spec §4.H falls out of reusing
// the same b-recursion the evaluator itself used.
func Generate(m *evaluate.Model, trainingCounts []*ngram.IntLmState) ([][]*ngram.FloatLmState, error) {
	sums := make(map[accKey]float32)
	histories := make(map[accKey][]ngram.Word)
	var maxOrder int

	for _, s := range trainingCounts {
		for _, wc := range s.Counts {
			trace, err := evaluate.EvaluateWord(m, s.History, wc.Word)
			if err != nil {
				return nil, err
			}
			for _, c := range trace.Contributions() {
				frac := c.Value / trace.Prob
				k := accKey{order: c.Order, history: historyKey(c.History), word: c.Word}
				sums[k] += float32(wc.Count) * frac
				histories[k] = c.History
				if c.Order > maxOrder {
					maxOrder = c.Order
				}
			}
		}
	}

	byOrder := make([]map[string]*ngram.FloatLmState, maxOrder+1)
	for i := range byOrder {
		byOrder[i] = make(map[string]*ngram.FloatLmState)
	}
	for k, v := range sums {
		st, ok := byOrder[k.order][k.history]
		if !ok {
			st = &ngram.FloatLmState{History: histories[k]}
			byOrder[k.order][k.history] = st
		}
		st.Counts = append(st.Counts, ngram.FloatWordCount{Word: k.word, Count: v})
	}

	out := make([][]*ngram.FloatLmState, maxOrder+1)
	for order, table := range byOrder {
		states := make([]*ngram.FloatLmState, 0, len(table))
		for _, st := range table {
			sort.Slice(st.Counts, func(i, j int) bool { return st.Counts[i].Word < st.Counts[j].Word })
			st.ComputeTotal()
			states = append(states, st)
		}
		sort.Slice(states, func(i, j int) bool { return historyLess(states[i].History, states[j].History) })
		out[order] = states
	}
	return out, nil
}

func historyLess(a, b []ngram.Word) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// RemoveZeros drops every zero-valued word entry from a FloatLmState,
// leaving Total and Discount untouched (they already account for the
// removed zero mass, which is zero by definition). Running it twice is a
// no-op: the second pass finds nothing left to remove, so its output is
// byte-identical to its input (spec §8, testable property 6).
func RemoveZeros(s *ngram.FloatLmState) *ngram.FloatLmState {
	out := &ngram.FloatLmState{History: s.History, Total: s.Total, Discount: s.Discount}
	for _, wc := range s.Counts {
		if wc.Count != 0 {
			out.Counts = append(out.Counts, wc)
		}
	}
	return out
}
