// Package evaluate implements stage G, the forward/backward pivot of the
// pipeline: backoff-with-interpolation probability evaluation of a
// tokenized corpus against a trained model, and its reverse-mode gradient
// with respect to every float-count that participated.
package evaluate

import (
	"fmt"
	"math"
	"sort"

	"github.com/dngram/dngram/ngram"
)

// Model is a random-access view of a full trained model: one FloatLmState
// per (order, history) pair, for orders 0..maxOrder-1 (history lengths 0
// through maxOrder-1). This plays the role of the reference evaluator's
// live S[h] array, but as an indexed lookup table rather than a buffered
// stream cursor — the two are equivalent as long as every order's stream
// was sorted by reversed history on the way in, which callers are required
// to guarantee (spec §3's one true ordering invariant).
type Model struct {
	byOrder []map[string]*ngram.FloatLmState
}

// NewModel indexes byOrder[h] (a sorted FloatLmState stream for history
// length h) for lookup. byOrder[0] must contain exactly one record: the
// unigram state with an empty history.
func NewModel(byOrder [][]*ngram.FloatLmState) (*Model, error) {
	if len(byOrder) == 0 {
		return nil, fmt.Errorf("evaluate: model must have exactly one unigram state, got no orders")
	}
	if len(byOrder[0]) != 1 {
		return nil, fmt.Errorf("evaluate: model must have exactly one unigram state, got %d", len(byOrder[0]))
	}
	m := &Model{byOrder: make([]map[string]*ngram.FloatLmState, len(byOrder))}
	for h, states := range byOrder {
		idx := make(map[string]*ngram.FloatLmState, len(states))
		for _, s := range states {
			idx[historyKey(s.History)] = s
		}
		m.byOrder[h] = idx
	}
	return m, nil
}

func (m *Model) lookup(h int, history []ngram.Word) *ngram.FloatLmState {
	if h < 0 || h >= len(m.byOrder) {
		return nil
	}
	return m.byOrder[h][historyKey(history)]
}

func historyKey(h []ngram.Word) string {
	buf := make([]byte, 0, 4*len(h))
	for _, w := range h {
		buf = append(buf, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	}
	return string(buf)
}

// levelTrace records everything the backward pass needs to retrace one
// order's contribution to a single word's evaluated probability.
type levelTrace struct {
	order    int
	state    *ngram.FloatLmState
	foundAt  int // index into state.Counts, or -1
	bAtIn    float32
	total    float32
	discount float32 // meaningless (unused) at order 0
	contrib  float32 // this level's additive contribution to Prob
}

// LevelContribution exposes one order's share of an evaluated word's total
// probability, for consumers (e.g. the expected-count generator) that need
// to split a count losslessly across the orders that produced it.
type LevelContribution struct {
	Order   int
	History []ngram.Word
	Word    ngram.Word
	Value   float32
	// Escaped is the part of Prob that continued past this order into
	// still-lower orders: the sum of their Values (zero at order 0). A
	// caller accumulating expected counts per order can credit this order's
	// backoff/discount with weight·Escaped/Prob without re-deriving the
	// recursion.
	Escaped float32
}

// Contributions returns, for every order visited, the additive share of
// t.Prob that order contributed. The values sum to t.Prob exactly, by
// construction of the forward backoff recursion.
func (t *WordTrace) Contributions() []LevelContribution {
	out := make([]LevelContribution, len(t.Levels))
	var below float32
	for i := len(t.Levels) - 1; i >= 0; i-- {
		lt := t.Levels[i]
		out[i] = LevelContribution{Order: lt.order, History: lt.state.History, Word: t.Word, Value: lt.contrib, Escaped: below}
		below += lt.contrib
	}
	return out
}

// WordTrace is the full forward-pass record for one dev (word, history)
// evaluation, sufficient for EvaluateWordBackward to reconstruct every
// partial derivative.
type WordTrace struct {
	Word   ngram.Word
	Prob   float32
	Levels []levelTrace // ordered highest order (h*) first, ending at order 0
}

// EvaluateWord computes p(word|history) by backoff-with-interpolation from
// the longest training history that is a prefix of history down to the
// unigram, per spec §4.G.
func EvaluateWord(m *Model, history []ngram.Word, word ngram.Word) (*WordTrace, error) {
	hStar := len(history)
	if hStar > len(m.byOrder)-1 {
		hStar = len(m.byOrder) - 1
	}
	for hStar > 0 && m.lookup(hStar, history[:hStar]) == nil {
		hStar--
	}

	trace := &WordTrace{Word: word}
	var p, b float32 = 0, 1
	for h := hStar; h >= 1; h-- {
		s := m.lookup(h, history[:h])
		if s == nil {
			return nil, fmt.Errorf("evaluate: no training state for order %d history %v", h, history[:h])
		}
		idx, found := findWord(s.Counts, word)
		lt := levelTrace{order: h, state: s, foundAt: -1, bAtIn: b, total: s.Total, discount: s.Discount}
		if found {
			lt.foundAt = idx
			lt.contrib = b * s.Counts[idx].Count / s.Total
			p += lt.contrib
		}
		trace.Levels = append(trace.Levels, lt)
		b *= s.Discount / s.Total
	}
	s0 := m.lookup(0, nil)
	if s0 == nil {
		return nil, fmt.Errorf("evaluate: model has no unigram state")
	}
	idx, found := findWord(s0.Counts, word)
	if !found {
		return nil, fmt.Errorf("evaluate: word %d absent from dense unigram state", word)
	}
	contrib0 := b * s0.Counts[idx].Count / s0.Total
	p += contrib0
	trace.Levels = append(trace.Levels, levelTrace{order: 0, state: s0, foundAt: idx, bAtIn: b, total: s0.Total, contrib: contrib0})
	trace.Prob = p
	return trace, nil
}

func findWord(counts []ngram.FloatWordCount, w ngram.Word) (int, bool) {
	i := sort.Search(len(counts), func(i int) bool { return counts[i].Word >= w })
	if i < len(counts) && counts[i].Word == w {
		return i, true
	}
	return -1, false
}

// EvaluateResult summarizes a full run over a dev/evaluation corpus.
type EvaluateResult struct {
	TotalCount   float64
	TotalLogProb float64
}

// Perplexity returns exp(-TotalLogProb/TotalCount) (natural-log convention,
// matching the log used by EvaluateStream).
func (r EvaluateResult) Perplexity() float64 {
	if r.TotalCount == 0 {
		return math.Inf(1)
	}
	return math.Exp(-r.TotalLogProb / r.TotalCount)
}

// EvaluateStream walks a sorted dev IntLmState stream against m, calling
// onWord (if non-nil) with each word's trace so a caller doing the backward
// pass can accumulate derivatives per history/order as it goes, exactly as
// the reference toolkit differentiates while it evaluates rather than in a
// second pass.
func EvaluateStream(m *Model, dev []*ngram.IntLmState, onWord func(history []ngram.Word, trace *WordTrace, count int32) error) (EvaluateResult, error) {
	var res EvaluateResult
	for _, d := range dev {
		for _, wc := range d.Counts {
			trace, err := EvaluateWord(m, d.History, wc.Word)
			if err != nil {
				return res, err
			}
			if trace.Prob <= 0 {
				return res, fmt.Errorf("evaluate: non-positive probability %g for word %d given history %v", trace.Prob, wc.Word, d.History)
			}
			res.TotalCount += float64(wc.Count)
			res.TotalLogProb += float64(wc.Count) * math.Log(float64(trace.Prob))
			if onWord != nil {
				if err := onWord(d.History, trace, wc.Count); err != nil {
					return res, err
				}
			}
		}
	}
	return res, nil
}
