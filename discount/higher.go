package discount

import (
	"fmt"
	"sort"

	"github.com/dngram/dngram/internal/mathutil"
	"github.com/dngram/dngram/ngram"
)

// HigherOrderConfig holds the four discount constants used above the
// unigram order, per spec §4.E. The reference ordering is D1 >= D2 >= D3 >= D4.
type HigherOrderConfig struct {
	D1, D2, D3, D4 float32
}

// backoffBuilder accumulates the discounted-away mass for a single backoff
// history, flushed to a GeneralLmState the moment the caller moves on to a
// different backoff history. This mirrors the discount_builder_ accumulation
// pattern in the reference discounting stage.
type backoffBuilder struct {
	history []ngram.Word
	byWord  map[ngram.Word]ngram.Count
	order   []ngram.Word // first-seen order, for deterministic output
}

func newBackoffBuilder(history []ngram.Word) *backoffBuilder {
	return &backoffBuilder{history: history, byWord: make(map[ngram.Word]ngram.Count)}
}

func (b *backoffBuilder) add(w ngram.Word, d ngram.Count) {
	if _, ok := b.byWord[w]; !ok {
		b.order = append(b.order, w)
	}
	cur := b.byWord[w]
	cur.Add(d)
	b.byWord[w] = cur
}

func (b *backoffBuilder) flush() *ngram.GeneralLmState {
	if b == nil || len(b.order) == 0 {
		return nil
	}
	out := &ngram.GeneralLmState{History: b.history}
	words := append([]ngram.Word(nil), b.order...)
	sort.Slice(words, func(i, j int) bool { return words[i] < words[j] })
	for _, w := range words {
		out.Counts = append(out.Counts, ngram.WordGeneralCount{Word: w, Count: b.byWord[w]})
	}
	return out
}

// HigherOrderState is one input record to higher-order discounting: an
// observed GeneralLmState together with the (order-1)-word backoff history
// its removed mass should be folded into.
type HigherOrderState struct {
	State          *ngram.GeneralLmState
	BackoffHistory []ngram.Word
}

// higherWorking captures the per-word intermediates for a single state, kept
// so HigherOrderBackward can retrace them exactly.
type higherWorking struct {
	top4       []float32
	d1, d2, d3, d4 []float32
}

// HigherOrder discounts every word of a single GeneralLmState by
// D1*top1 + D2*top2 + D3*top3 + D4*top4 (top4 = total - top1 - top2 - top3),
// producing the discounted order's FloatLmState and accumulating the
// removed mass into backoff's running total for its (order-1) history.
func HigherOrder(state *ngram.GeneralLmState, cfg HigherOrderConfig, backoff *backoffBuilder) (*ngram.FloatLmState, error) {
	out, _, err := higherOrderForward(state, cfg, backoff)
	return out, err
}

func higherOrderForward(state *ngram.GeneralLmState, cfg HigherOrderConfig, backoff *backoffBuilder) (*ngram.FloatLmState, *higherWorking, error) {
	work := &higherWorking{
		top4: make([]float32, len(state.Counts)),
		d1:   make([]float32, len(state.Counts)),
		d2:   make([]float32, len(state.Counts)),
		d3:   make([]float32, len(state.Counts)),
		d4:   make([]float32, len(state.Counts)),
	}
	out := &ngram.FloatLmState{History: state.History, Discount: state.Discount}
	var total float32 = state.Discount
	for i, wc := range state.Counts {
		c := wc.Count
		top4 := mathutil.Round32(c.Total - mathutil.Round32(mathutil.Round32(c.Top1+c.Top2)+c.Top3))
		d1 := mathutil.Round32(cfg.D1 * c.Top1)
		d2 := mathutil.Round32(cfg.D2 * c.Top2)
		d3 := mathutil.Round32(cfg.D3 * c.Top3)
		d4 := mathutil.Round32(cfg.D4 * top4)
		d := mathutil.Round32(mathutil.Round32(mathutil.Round32(d1+d2)+d3) + d4)
		discounted := mathutil.Round32(c.Total - d)
		if discounted < 0 {
			return nil, nil, fmt.Errorf("discount: higher-order discounting produced negative count %g for word %d", discounted, wc.Word)
		}
		work.top4[i], work.d1[i], work.d2[i], work.d3[i], work.d4[i] = top4, d1, d2, d3, d4
		out.Counts = append(out.Counts, ngram.FloatWordCount{Word: wc.Word, Count: discounted})
		total += discounted
		if backoff != nil {
			backoff.add(wc.Word, ngram.Count{Total: d, Top1: d1, Top2: d2, Top3: d3})
		}
	}
	out.Total = total
	return out, work, nil
}
