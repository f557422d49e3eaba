// Package reestimate implements stage J: a single E-M step that refits a
// pruned model's counts against the un-pruned model's expected sufficient
// statistics, per spec §4.J.
package reestimate

import (
	"math"
	"sort"

	"github.com/dngram/dngram/evaluate"
	"github.com/dngram/dngram/ngram"
)

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

func historyLess(a, b []ngram.Word) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// evaluateWeighted returns Σ weight·log p(word|history) over stats,
// evaluated against m, without mutating anything. It plays the same role
// EvaluateStream plays for integer dev counts, but stats carries fractional
// expected counts instead.
func evaluateWeighted(m *evaluate.Model, stats [][]*ngram.FloatLmState) (float64, error) {
	var total float64
	for _, order := range stats {
		for _, s := range order {
			for _, wc := range s.Counts {
				trace, err := evaluate.EvaluateWord(m, s.History, wc.Word)
				if err != nil {
					return 0, err
				}
				total += float64(wc.Count) * math.Log(float64(trace.Prob))
			}
		}
	}
	return total, nil
}

// Result carries the re-estimated model and the reported lower bound on the
// log-likelihood improvement the M-step achieved.
type Result struct {
	States        [][]*ngram.FloatLmState
	ObjectiveGain float64
}

// Reestimate performs the E-step (decompose every un-pruned expected count
// across the orders mPruned's own backoff structure would actually use to
// explain it, exactly the same decomposition floatstats.Generate uses,
// but weighted by the fractional stats counts and evaluated against the
// pruned model) followed by the M-step (the decomposition itself becomes
// the new counts; new discount is whatever fell through to order 0 or below
// a pruned entry).
func Reestimate(mPruned *evaluate.Model, stats [][]*ngram.FloatLmState) (Result, error) {
	before, err := evaluateWeighted(mPruned, stats)
	if err != nil {
		return Result{}, err
	}

	sums := make(map[accKey]float32)
	discounts := make(map[accKey]float32) // keyed like sums but without the word, using word=0 as the discount slot
	histories := make(map[accKey][]ngram.Word)
	var maxOrder int
	for _, order := range stats {
		for _, s := range order {
			for _, wc := range s.Counts {
				trace, err := evaluate.EvaluateWord(mPruned, s.History, wc.Word)
				if err != nil {
					return Result{}, err
				}
				for _, c := range trace.Contributions() {
					k := accKey{order: c.Order, history: historyKey(c.History), word: c.Word}
					frac := c.Value / trace.Prob
					sums[k] += wc.Count * frac
					histories[k] = c.History
					if c.Order > maxOrder {
						maxOrder = c.Order
					}
					if c.Escaped > 0 {
						dk := accKey{order: c.Order, history: k.history}
						discounts[dk] += wc.Count * c.Escaped / trace.Prob
						histories[dk] = c.History
					}
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
	for k, v := range discounts {
		st, ok := byOrder[k.order][k.history]
		if !ok {
			st = &ngram.FloatLmState{History: histories[k]}
			byOrder[k.order][k.history] = st
		}
		st.Discount += v
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

	newModel, err := evaluate.NewModel(out)
	if err != nil {
		return Result{}, err
	}
	after, err := evaluateWeighted(newModel, stats)
	if err != nil {
		return Result{}, err
	}

	return Result{States: out, ObjectiveGain: after - before}, nil
}
