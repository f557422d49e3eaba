package discount

import (
	"fmt"
	"sort"

	"github.com/dngram/dngram/internal/mathutil"
	"github.com/dngram/dngram/ngram"
)

// backoffContribution records one state's raw contribution to a backoff
// group's running sum for one word, and the sum immediately after it was
// folded in, so backward() can replay Count.AddBackward in the same order
// the forward pass folded contributions in.
type backoffContribution struct {
	stateIndex int
	raw        ngram.Count
	cum        ngram.Count
}

// backoffGroup extends backoffBuilder with the ledger RunHigherOrderBackward
// needs; forward-only callers (RunHigherOrder) never build one of these.
type backoffGroup struct {
	*backoffBuilder
	contributions map[ngram.Word][]backoffContribution
}

func newBackoffGroup(history []ngram.Word) *backoffGroup {
	return &backoffGroup{backoffBuilder: newBackoffBuilder(history), contributions: make(map[ngram.Word][]backoffContribution)}
}

func (g *backoffGroup) add(stateIndex int, w ngram.Word, d ngram.Count) {
	g.backoffBuilder.add(w, d)
	g.contributions[w] = append(g.contributions[w], backoffContribution{stateIndex: stateIndex, raw: d, cum: g.byWord[w]})
}

func (g *backoffGroup) sortedWords() []ngram.Word {
	words := append([]ngram.Word(nil), g.order...)
	sort.Slice(words, func(i, j int) bool { return words[i] < words[j] })
	return words
}

// backward replays this group's Add sequence in reverse, word by word, and
// returns each contributing state's share of groupDeriv (parallel to
// sortedWords()) as a map from state index to per-word Count derivative.
func (g *backoffGroup) backward(groupDeriv []ngram.Count) (map[int]map[ngram.Word]ngram.Count, error) {
	words := g.sortedWords()
	if len(groupDeriv) != len(words) {
		return nil, fmt.Errorf("discount: backoff group %v: derivative length %d != %d words", g.history, len(groupDeriv), len(words))
	}
	out := make(map[int]map[ngram.Word]ngram.Count)
	for i, w := range words {
		contribs := g.contributions[w]
		thisDeriv := groupDeriv[i]
		for k := len(contribs) - 1; k >= 0; k-- {
			c := contribs[k]
			var otherDeriv ngram.Count
			c.cum.AddBackward(c.raw, &thisDeriv, &otherDeriv)
			if out[c.stateIndex] == nil {
				out[c.stateIndex] = make(map[ngram.Word]ngram.Count)
			}
			out[c.stateIndex][w] = otherDeriv
		}
	}
	return out, nil
}

// RunHigherOrderBackward mirrors RunHigherOrder's streaming backoff-history
// grouping for the backward pass. Per spec §4.E, "the backward pass
// recomputes [d1..d4] from inputs and relies on bit-identical equality to
// re-identify which of top1/top2/top3 ... came from this source" — so this
// recomputes the forward discount arithmetic itself (rather than reusing
// higherOrderForward, which would bypass this ledger) purely to rebuild
// each group's contribution ledger, then:
//
//  1. the moment a backoff history's group of states closes, asks
//     backoffDerivsOf for that group's flushed derivative (parallel to the
//     group's own sorted word list);
//  2. replays Count.AddBackward against the ledger to split that derivative
//     back across the states that contributed to it;
//  3. calls HigherOrderBackward once per state with its share of the split
//     plus its own direct output derivative from countDerivsOf.
func RunHigherOrderBackward(
	states []*ngram.GeneralLmState,
	cfg HigherOrderConfig,
	countDerivsOf func(stateIndex int, state *ngram.GeneralLmState) []float32,
	backoffDerivsOf func(backoffHistory []ngram.Word, numWords int) ([]ngram.Count, error),
	emit func(stateIndex int, state *ngram.GeneralLmState, inputDerivs []ngram.Count, cfgDerivs HigherOrderDerivs) error,
) error {
	var cur *backoffGroup
	type pending struct {
		index int
		state *ngram.GeneralLmState
	}
	var group []pending

	flush := func() error {
		defer func() { group = nil }()
		if cur == nil || len(cur.order) == 0 {
			return nil
		}
		words := cur.sortedWords()
		groupDeriv, err := backoffDerivsOf(cur.history, len(words))
		if err != nil {
			return err
		}
		perState, err := cur.backward(groupDeriv)
		if err != nil {
			return err
		}
		for _, p := range group {
			share := perState[p.index]
			backoffDerivs := make([]ngram.Count, len(p.state.Counts))
			for i, wc := range p.state.Counts {
				backoffDerivs[i] = share[wc.Word]
			}
			inputDerivs, cfgDerivs, err := HigherOrderBackward(p.state, cfg, countDerivsOf(p.index, p.state), backoffDerivs)
			if err != nil {
				return err
			}
			if err := emit(p.index, p.state, inputDerivs, cfgDerivs); err != nil {
				return err
			}
		}
		return nil
	}

	for i, s := range states {
		bh := BackoffHistoryOf(s.History)
		if cur == nil || !historyEqual(cur.history, bh) {
			if err := flush(); err != nil {
				return err
			}
			cur = newBackoffGroup(bh)
		}
		for _, wc := range s.Counts {
			c := wc.Count
			top4 := mathutil.Round32(c.Total - mathutil.Round32(mathutil.Round32(c.Top1+c.Top2)+c.Top3))
			d1 := mathutil.Round32(cfg.D1 * c.Top1)
			d2 := mathutil.Round32(cfg.D2 * c.Top2)
			d3 := mathutil.Round32(cfg.D3 * c.Top3)
			d4 := mathutil.Round32(cfg.D4 * top4)
			d := mathutil.Round32(mathutil.Round32(mathutil.Round32(d1+d2)+d3) + d4)
			cur.add(i, wc.Word, ngram.Count{Total: d, Top1: d1, Top2: d2, Top3: d3})
		}
		group = append(group, pending{index: i, state: s})
	}
	return flush()
}
