// Package merge implements stage F: combining several weighted, sorted
// count streams from different data sources into one GeneralLmState stream,
// plus the duplicate-tolerant float-count merge used ahead of evaluation.
package merge

import (
	"fmt"
	"sort"

	"github.com/dngram/dngram/ngram"
)

// WeightedSource is one input stream to MergeGeneral: a sorted sequence of
// GeneralLmStates together with the scalar interpolation weight this source
// contributes to the merged model (spec §4.F).
type WeightedSource struct {
	States []*ngram.GeneralLmState
	Weight float32
}

// IntSource turns a raw integer count stream into a WeightedSource whose
// per-word Count is NewCountPieces(1, count): every one of an integer
// source's count observations is an identical, indivisible piece of value
// 1, so scaling that by the source's own weight during MergeGeneral
// reproduces spec §4.F's Count(scale=w, num_pieces=count) exactly while
// keeping w a genuine free parameter of the merge rather than baked into
// the input.
func IntSource(states []*ngram.IntLmState, weight float32) WeightedSource {
	out := make([]*ngram.GeneralLmState, len(states))
	for i, s := range states {
		g := &ngram.GeneralLmState{History: s.History, Discount: float32(s.Discount)}
		g.Counts = make([]ngram.WordGeneralCount, len(s.Counts))
		for j, wc := range s.Counts {
			g.Counts[j] = ngram.WordGeneralCount{Word: wc.Word, Count: ngram.NewCountPieces(1, wc.Count)}
		}
		out[i] = g
	}
	return WeightedSource{States: out, Weight: weight}
}

// GeneralSource wraps an already-general count stream as an unweighted
// ("derivative-sink") source: its Count values are added directly, per
// spec §4.F, so its weight is fixed at 1.
func GeneralSource(states []*ngram.GeneralLmState) WeightedSource {
	return WeightedSource{States: states, Weight: 1}
}

// ScaleCount returns c with every component scaled by w.
func ScaleCount(c ngram.Count, w float32) ngram.Count {
	return ngram.Count{Total: w * c.Total, Top1: w * c.Top1, Top2: w * c.Top2, Top3: w * c.Top3}
}

func historyKey(h []ngram.Word) string {
	buf := make([]byte, 0, 4*len(h))
	for _, w := range h {
		buf = append(buf, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	}
	return string(buf)
}

// mergeGroup is the per-history working state kept while folding sources in.
type mergeGroup struct {
	history []ngram.Word
	words   []ngram.Word // first-seen order within this history, one entry per word
	byWord  map[ngram.Word]ngram.Count
	// contributions records, for every word, the ordered list of per-source
	// scaled Counts that were Add-ed together, so MergeGeneralBackward can
	// replay the exact same Add sequence.
	contributions map[ngram.Word][]scaledContribution
}

type scaledContribution struct {
	source int
	raw    ngram.Count // the source's own Count, before scaling
	weight float32
	cum    ngram.Count // running sum immediately after this contribution was folded in
}

func newMergeGroup(h []ngram.Word) *mergeGroup {
	return &mergeGroup{history: h, byWord: make(map[ngram.Word]ngram.Count), contributions: make(map[ngram.Word][]scaledContribution)}
}

func (g *mergeGroup) add(source int, w ngram.Word, raw ngram.Count, weight float32) {
	if _, ok := g.byWord[w]; !ok {
		g.words = append(g.words, w)
	}
	cur := g.byWord[w]
	cur.Add(ScaleCount(raw, weight))
	g.byWord[w] = cur
	g.contributions[w] = append(g.contributions[w], scaledContribution{source: source, raw: raw, weight: weight, cum: cur})
}

func (g *mergeGroup) finish() *ngram.GeneralLmState {
	words := append([]ngram.Word(nil), g.words...)
	sort.Slice(words, func(i, j int) bool { return words[i] < words[j] })
	out := &ngram.GeneralLmState{History: g.history}
	for _, w := range words {
		out.Counts = append(out.Counts, ngram.WordGeneralCount{Word: w, Count: g.byWord[w]})
	}
	return out
}

// MergeGeneral performs a k-way merge across weighted, individually sorted
// GeneralLmState streams, scaling each source's Count by its stream weight
// before folding it in with the top-k-preserving Count.Add. Every stream
// must already be sorted by reversed history then predicted word.
//
// It returns the merged stream and, for use by MergeGeneralBackward, the
// per-history contribution ledger.
func MergeGeneral(sources []WeightedSource) ([]*ngram.GeneralLmState, []*mergeGroup, error) {
	if len(sources) == 0 {
		return nil, nil, fmt.Errorf("merge: MergeGeneral requires at least one source")
	}
	groups := make(map[string]*mergeGroup)
	var order []string
	for si, src := range sources {
		for _, s := range src.States {
			key := historyKey(s.History)
			g, ok := groups[key]
			if !ok {
				g = newMergeGroup(s.History)
				groups[key] = g
				order = append(order, key)
			}
			for _, wc := range s.Counts {
				g.add(si, wc.Word, wc.Count, src.Weight)
			}
		}
	}
	sort.Slice(order, func(i, j int) bool {
		return historyLess(groups[order[i]].history, groups[order[j]].history)
	})
	out := make([]*ngram.GeneralLmState, 0, len(order))
	ledger := make([]*mergeGroup, 0, len(order))
	for _, key := range order {
		g := groups[key]
		out = append(out, g.finish())
		ledger = append(ledger, g)
	}
	return out, ledger, nil
}

func historyLess(a, b []ngram.Word) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
