// Package countagg implements stage A (raw count aggregation from
// integerized sentences) and stage B (minimum-count enforcement) of the
// pipeline, plus the supplemented FanOutOrders splitting helper.
package countagg

import (
	"fmt"
	"sort"

	"github.com/dngram/dngram/ngram"
)

// Sentence is one integerized training sentence, already bracketed with
// <s> and </s> by the caller.
type Sentence []ngram.Word

// aggKey identifies one (history, predicted) accumulation slot.
type aggKey struct {
	history string // history words joined with a NUL separator, oldest-first
	word    ngram.Word
}

func historyKey(h []ngram.Word) string {
	buf := make([]byte, 0, 4*len(h))
	for _, w := range h {
		buf = append(buf, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	}
	return string(buf)
}

// Aggregate walks every sentence and, for every order from 1 to maxOrder,
// counts how many times each (history, predicted-word) pair occurs with a
// history of exactly order-1 words immediately preceding the predicted word.
// It returns one slice of IntLmStates per order, sorted by reversed history
// then predicted word as spec §3 requires of every record stream.
//
// This is stage A (spec §4.A): get-text-counts.
func Aggregate(sentences []Sentence, maxOrder int) ([][]*ngram.IntLmState, error) {
	if maxOrder < 1 {
		return nil, fmt.Errorf("countagg: maxOrder must be >= 1, got %d", maxOrder)
	}
	// counts[order-1][historyKey][word] = count
	type slot struct {
		history []ngram.Word
		counts  map[ngram.Word]int32
	}
	tables := make([]map[string]*slot, maxOrder)
	for i := range tables {
		tables[i] = make(map[string]*slot)
	}

	for _, sent := range sentences {
		if len(sent) == 0 || sent[0] != ngram.BOS {
			return nil, fmt.Errorf("countagg: sentence must begin with <s>")
		}
		if sent[len(sent)-1] != ngram.EOS {
			return nil, fmt.Errorf("countagg: sentence must end with </s>")
		}
		for pos := 1; pos < len(sent); pos++ {
			word := sent[pos]
			for order := 1; order <= maxOrder; order++ {
				histLen := order - 1
				if pos-histLen < 0 {
					break
				}
				hist := make([]ngram.Word, histLen)
				// Reversed history: hist[0] is the word immediately before
				// the predicted word, hist[k] further back, per spec §3.
				for k := 0; k < histLen; k++ {
					hist[k] = sent[pos-1-k]
				}
				key := historyKey(hist)
				table := tables[order-1]
				s, ok := table[key]
				if !ok {
					s = &slot{history: hist, counts: make(map[ngram.Word]int32)}
					table[key] = s
				}
				s.counts[word]++
			}
		}
	}

	out := make([][]*ngram.IntLmState, maxOrder)
	for i, table := range tables {
		states := make([]*ngram.IntLmState, 0, len(table))
		for _, s := range table {
			words := make([]ngram.Word, 0, len(s.counts))
			for w := range s.counts {
				words = append(words, w)
			}
			sort.Slice(words, func(a, b int) bool { return words[a] < words[b] })
			st := &ngram.IntLmState{History: s.history}
			for _, w := range words {
				st.Counts = append(st.Counts, ngram.WordCount{Word: w, Count: s.counts[w]})
			}
			states = append(states, st)
		}
		sortStates(states)
		out[i] = states
	}
	return out, nil
}

func sortStates(states []*ngram.IntLmState) {
	sort.Slice(states, func(i, j int) bool {
		return historyLess(states[i].History, states[j].History)
	})
}

// historyLess orders reversed histories lexicographically by word id.
func historyLess(a, b []ngram.Word) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// MinCountSource bundles one data source's per-order IntLmState records
// (order-indexed: States[0] is order 1, States[maxOrder-1] is order
// maxOrder) with the per-order min-counts that apply to that source's own
// raw counts, indexed the same way MinCounts[0] is the min-count for order
// 3, MinCounts[1] for order 4, and so on. Orders 1 and 2 are never subject
// to a min-count (spec §4.B).
type MinCountSource struct {
	MinCounts []int32
	States    [][]*ngram.IntLmState
}

// EnforceMinCounts implements stage B: minimum-count enforcement at every
// order from 3 up to maxOrder, across every data source at once, following
// the weighted cross-source, cross-order accounting the reference
// toolkit's int-counts-enforce-min-counts.cc uses.
//
// A (history, word) pair at order o with per-source raw counts c_1..c_k and
// per-source min-counts m_1..m_k survives if its own raw count already
// clears its source's min-count, or if its weighted total across sources
// AND across every still-higher-order n-gram that backs off through this
// history --
//
//	sum over sources i, orders h >= o, of count_{h,i}(history, word) / m_{h,i}
//
// -- is at least 0.999, the same near-1.0 cutoff the reference toolkit uses
// to absorb floating-point roundoff. A word that fails this test is removed
// from its state's Counts, folded into the matching word entry of the
// next-lower-order state of the SAME source, and its amount is added to
// IntLmState.Discount on the state it was removed from: the state whose
// probability mass must now be reconstructed via backoff rather than an
// explicit count.
//
// Folding cascades: mass folded from order o+1 into order o can itself
// then fail order o's own min-count check and fold again into order o-1,
// so orders are processed from maxOrder down to 2, each order's states
// having duplicate words merged before that order's own pruning decision
// (mirroring FlushThisHistory's CombineSameWordCounts-then-BackOffLmState
// sequence). States left with no counts after folding are dropped from the
// output. Order 2 never has words removed, but still receives folded-in
// mass from order 3 and gets a final duplicate-word merge; order 1 is
// untouched.
func EnforceMinCounts(sources []MinCountSource, maxOrder int) error {
	if maxOrder < 3 {
		return nil
	}
	for si, src := range sources {
		if len(src.MinCounts) != maxOrder-2 {
			return fmt.Errorf("countagg: source %d: expected %d min-counts (orders 3..%d), got %d", si, maxOrder-2, maxOrder, len(src.MinCounts))
		}
		if len(src.States) != maxOrder {
			return fmt.Errorf("countagg: source %d: expected states for %d orders, got %d", si, maxOrder, len(src.States))
		}
		for o := 3; o < maxOrder; o++ {
			if src.MinCounts[o-3] > src.MinCounts[o-2] {
				return fmt.Errorf("countagg: source %d: min-counts must be non-decreasing, but order %d min-count %d > order %d min-count %d", si, o, src.MinCounts[o-3], o+1, src.MinCounts[o-2])
			}
		}
	}

	// weightedTotal[order][historyKey][word] accumulates, from the raw
	// (pre-folding) input, the sum over sources and over every order
	// h >= order that backs off through this history, of that state's raw
	// count for word divided by that source's own min-count at order h.
	weightedTotal := make([]map[string]map[ngram.Word]float64, maxOrder+1)
	for o := 3; o <= maxOrder; o++ {
		weightedTotal[o] = make(map[string]map[ngram.Word]float64)
	}
	for _, src := range sources {
		for order := 3; order <= maxOrder; order++ {
			for _, s := range src.States[order-1] {
				for h := order; h >= 3; h-- {
					invMinCount := 1.0 / float64(src.MinCounts[h-3])
					key := historyKey(s.History[:h-1])
					m := weightedTotal[h][key]
					if m == nil {
						m = make(map[ngram.Word]float64)
						weightedTotal[h][key] = m
					}
					for _, wc := range s.Counts {
						m[wc.Word] += float64(wc.Count) * invMinCount
					}
				}
			}
		}
	}

	for _, src := range sources {
		for order := maxOrder; order >= 2; order-- {
			states := src.States[order-1]
			for _, s := range states {
				combineSameWordCounts(s)
			}
			if order < 3 {
				continue
			}
			minCount := src.MinCounts[order-3]
			wt := weightedTotal[order]
			backoffByKey := make(map[string]*ngram.IntLmState, len(src.States[order-2]))
			for _, b := range src.States[order-2] {
				backoffByKey[historyKey(b.History)] = b
			}
			for _, s := range states {
				var discounted int32
				totals := wt[historyKey(s.History)]
				for i := range s.Counts {
					wc := &s.Counts[i]
					if wc.Count >= minCount || totals[wc.Word] >= 0.999 {
						continue
					}
					backoff, ok := backoffByKey[historyKey(s.History[:len(s.History)-1])]
					if !ok {
						return fmt.Errorf("countagg: no backoff state for history %v at order %d", s.History, order)
					}
					backoff.Counts = append(backoff.Counts, ngram.WordCount{Word: wc.Word, Count: wc.Count})
					discounted += wc.Count
					wc.Count = 0
				}
				s.Discount += discounted
				s.Counts = removeZeroCounts(s.Counts)
			}
			kept := states[:0]
			for _, s := range states {
				if len(s.Counts) > 0 {
					kept = append(kept, s)
				}
			}
			src.States[order-1] = kept
		}
	}
	return nil
}

// combineSameWordCounts sorts a state's Counts by word and merges entries
// for the same word into one, mirroring CombineSameWordCounts.
func combineSameWordCounts(s *ngram.IntLmState) {
	if len(s.Counts) < 2 {
		return
	}
	sort.Slice(s.Counts, func(i, j int) bool { return s.Counts[i].Word < s.Counts[j].Word })
	out := s.Counts[:0]
	for i, wc := range s.Counts {
		if i > 0 && wc.Word == out[len(out)-1].Word {
			out[len(out)-1].Count += wc.Count
			continue
		}
		out = append(out, wc)
	}
	s.Counts = out
}

func removeZeroCounts(counts []ngram.WordCount) []ngram.WordCount {
	out := counts[:0]
	for _, wc := range counts {
		if wc.Count != 0 {
			out = append(out, wc)
		}
	}
	return out
}

// FanOutOrders splits a single stream of records already tagged with their
// order into maxOrder parallel per-order slices. It exists because several
// downstream stages (stage F merge, stage G evaluate) consume one file per
// order rather than an interleaved stream, mirroring the on-disk layout the
// reference toolkit uses for the intermediate count files it fans out after
// aggregation.
func FanOutOrders(states []*ngram.IntLmState, orderOf func(*ngram.IntLmState) int, maxOrder int) ([][]*ngram.IntLmState, error) {
	out := make([][]*ngram.IntLmState, maxOrder)
	for _, s := range states {
		order := orderOf(s)
		if order < 1 || order > maxOrder {
			return nil, fmt.Errorf("countagg: FanOutOrders: order %d out of range [1,%d]", order, maxOrder)
		}
		out[order-1] = append(out[order-1], s)
	}
	return out, nil
}
