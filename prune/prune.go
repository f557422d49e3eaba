// Package prune implements stage I: Stolcke-style entropy pruning of a
// trained model's word-count entries, with the shadowed/protected exclusion
// rules spec §4.I requires.
package prune

import (
	"math"
	"sort"

	"github.com/dngram/dngram/ngram"
)

func historyKey(h []ngram.Word) string {
	buf := make([]byte, 0, 4*len(h))
	for _, w := range h {
		buf = append(buf, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	}
	return string(buf)
}

// Candidate is one (history, word) entry under consideration for pruning.
type Candidate struct {
	Count        float32 // this state's count for the word
	Total        float32 // this state's total
	Discount     float32 // this state's discount
	BackoffCount float32 // the word's count in the backoff state
	BackoffTotal float32 // the backoff state's total
}

// DeltaL computes the (non-positive) upper bound on the change in
// log-likelihood that results from moving Count entirely into the backoff
// path, per spec §4.I. It is assembled from four independent log-ratio
// terms:
//
//   - (a) the observations at this exact (history, word), weighted by the
//     word's old expected count there (its direct count plus its share of
//     the backoff mass, i.e. Total·p_before): the cost of re-explaining them
//     through the new backoff probability instead of their old
//     direct+backoff probability.
//   - (b) the phantom aggregate of other histories backing off through the
//     same word at the same backoff state, approximated by weighting the
//     old backoff count's own log-ratio change.
//   - (c) the phantom aggregate of every other word this state reaches
//     through backoff (mass discount·(backoff_total-backoff_count)/
//     backoff_total), whose escape probability discount/total grows now
//     that discount absorbs Count while its backoff denominator grows too.
//   - (d) the phantom aggregate of every other word in the backoff state,
//     whose shared denominator backoff_total grows now that it absorbs
//     Count too.
//
// Treating (b)-(d) as independent phantom symbols rather than tracking
// their true joint distribution is what makes this an upper bound rather
// than the exact divergence. Terms (a) and (c) together, and (b) and (d)
// together, each compare two distributions of equal total mass, so each
// pair is a scaled negative KL divergence and the sum is never positive.
func DeltaL(c Candidate) float32 {
	if c.Count == 0 {
		return 0
	}
	pBefore := c.Count/c.Total + (c.Discount/c.Total)*(c.BackoffCount/c.BackoffTotal)
	newDiscount := c.Discount + c.Count
	newBackoffCount := c.BackoffCount + c.Count
	newBackoffTotal := c.BackoffTotal + c.Count
	pAfter := (newDiscount / c.Total) * (newBackoffCount / newBackoffTotal)

	a := (c.Count + c.Discount*c.BackoffCount/c.BackoffTotal) * log(pAfter/pBefore)

	oldBackoffWordProb := c.BackoffCount / c.BackoffTotal
	newBackoffWordProb := newBackoffCount / newBackoffTotal
	b := c.BackoffCount * log(newBackoffWordProb/oldBackoffWordProb)

	var cc float32
	if otherViaBackoff := c.Discount * (c.BackoffTotal - c.BackoffCount) / c.BackoffTotal; otherViaBackoff > 0 {
		cc = otherViaBackoff * log((newDiscount/c.Discount)*(c.BackoffTotal/newBackoffTotal))
	}

	otherInBackoff := c.BackoffTotal - c.BackoffCount
	d := otherInBackoff * log(c.BackoffTotal/newBackoffTotal)

	return a + b + cc + d
}

// ShouldPrune reports whether a candidate's DeltaL fails to clear
// -threshold, i.e. the entropy cost of pruning it is small enough to accept.
func ShouldPrune(c Candidate, threshold float32) bool {
	return DeltaL(c) > -threshold
}

// FloatCountsToHistories emits, for every state with a nonempty history and
// at least one nonzero n-gram count, a NullLmState marking that the
// (history-without-its-newest-word, newest-history-word) pair is itself a
// valid history
// elsewhere in the model. Sorting this stream and feeding it to
// HistoriesToNullCounts produces the protected-candidate membership stream
// spec §4.I requires (spec §4.I, "protected"). A state left with only
// zero counts (typically after an earlier pruning pass) has already had its
// mass moved elsewhere and no longer protects its own history from pruning.
func FloatCountsToHistories(states []*ngram.FloatLmState) []*ngram.NullLmState {
	out := make([]*ngram.NullLmState, 0, len(states))
	for _, s := range states {
		if len(s.History) == 0 {
			continue
		}
		var foundNonzero bool
		for _, wc := range s.Counts {
			if wc.Count != 0 {
				foundNonzero = true
				break
			}
		}
		if !foundNonzero {
			continue
		}
		out = append(out, &ngram.NullLmState{History: s.History[1:], Predicted: []ngram.Word{s.History[0]}})
	}
	return out
}

// HistoriesToNullCounts merges a (typically sorted) stream of single-word
// NullLmState marks sharing a history into one record per history, with a
// deduplicated, sorted Predicted list.
func HistoriesToNullCounts(marks []*ngram.NullLmState) []*ngram.NullLmState {
	byHistory := make(map[string]*ngram.NullLmState)
	var order []string
	for _, m := range marks {
		key := historyKey(m.History)
		s, ok := byHistory[key]
		if !ok {
			s = &ngram.NullLmState{History: m.History}
			byHistory[key] = s
			order = append(order, key)
		}
		s.Predicted = append(s.Predicted, m.Predicted...)
	}
	for _, key := range order {
		s := byHistory[key]
		sort.Slice(s.Predicted, func(i, j int) bool { return s.Predicted[i] < s.Predicted[j] })
		s.Predicted = dedupSorted(s.Predicted)
	}
	sort.Slice(order, func(i, j int) bool { return historyLess(byHistory[order[i]].History, byHistory[order[j]].History) })
	out := make([]*ngram.NullLmState, 0, len(order))
	for _, key := range order {
		out = append(out, byHistory[key])
	}
	return out
}

func dedupSorted(words []ngram.Word) []ngram.Word {
	out := words[:0]
	for i, w := range words {
		if i == 0 || w != out[len(out)-1] {
			out = append(out, w)
		}
	}
	return out
}

func historyLess(a, b []ngram.Word) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// ExclusionSets indexes the shadowed and protected memberships a pruning
// pass needs to consult for every candidate.
type ExclusionSets struct {
	shadowed  map[string]map[ngram.Word]bool
	protected map[string]map[ngram.Word]bool
}

// BuildShadowed marks (history, word) as shadowed whenever some strictly
// higher-order state, extending history by one older word, has a nonzero
// count for word.
func BuildShadowed(higherOrder []*ngram.FloatLmState) map[string]map[ngram.Word]bool {
	out := make(map[string]map[ngram.Word]bool)
	for _, s := range higherOrder {
		if len(s.History) == 0 {
			continue
		}
		backoff := s.History[:len(s.History)-1]
		key := historyKey(backoff)
		for _, wc := range s.Counts {
			if wc.Count == 0 {
				continue
			}
			if out[key] == nil {
				out[key] = make(map[ngram.Word]bool)
			}
			out[key][wc.Word] = true
		}
	}
	return out
}

// BuildProtected turns a deduplicated NullLmState stream (the output of
// HistoriesToNullCounts) into the same lookup shape as BuildShadowed.
func BuildProtected(marks []*ngram.NullLmState) map[string]map[ngram.Word]bool {
	out := make(map[string]map[ngram.Word]bool)
	for _, m := range marks {
		key := historyKey(m.History)
		set := make(map[ngram.Word]bool, len(m.Predicted))
		for _, w := range m.Predicted {
			set[w] = true
		}
		out[key] = set
	}
	return out
}

// NewExclusionSets bundles both lookups.
func NewExclusionSets(shadowed, protected map[string]map[ngram.Word]bool) ExclusionSets {
	return ExclusionSets{shadowed: shadowed, protected: protected}
}

// Excluded reports whether (history, word) must never be pruned.
func (e ExclusionSets) Excluded(history []ngram.Word, word ngram.Word) bool {
	key := historyKey(history)
	if e.shadowed[key][word] {
		return true
	}
	if e.protected[key][word] {
		return true
	}
	return false
}

func log(x float32) float32 {
	if x <= 0 {
		return -1e30
	}
	return float32(math.Log(float64(x)))
}
