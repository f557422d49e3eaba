package discount

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dngram/dngram/ngram"
)

func TestUnigramConservesMassPlusDiscount(t *testing.T) {
	counts := map[ngram.Word]ngram.Count{
		ngram.EOS: ngram.NewCountPieces(4, 3), // total=12
		ngram.UNK: ngram.NewCount(2),
		4:         ngram.NewCountPieces(1, 5), // total=5
	}
	cfg := DefaultUnigramConfig(5)
	out, err := Unigram(counts, cfg)
	require.NoError(t, err)
	assert.Len(t, out.Counts, 4) // words 2,3,4,5
	assert.Empty(t, out.History)
	assert.Equal(t, float32(0), out.Discount)

	var sum float32
	for _, wc := range out.Counts {
		assert.GreaterOrEqual(t, wc.Count, float32(0))
		sum += wc.Count
	}
	assert.InDelta(t, float64(out.Total), float64(sum), 1e-4)
}

func TestUnigramBackwardLengthMismatch(t *testing.T) {
	counts := map[ngram.Word]ngram.Count{ngram.EOS: ngram.NewCount(1)}
	cfg := DefaultUnigramConfig(4)
	_, _, err := UnigramBackward(counts, cfg, []float32{1, 2})
	require.Error(t, err)
}

func TestUnigramBackwardMatchesNumericalGradient(t *testing.T) {
	counts := map[ngram.Word]ngram.Count{
		ngram.EOS: {Total: 10, Top1: 5, Top2: 3, Top3: 1},
		ngram.UNK: {Total: 4, Top1: 2, Top2: 1, Top3: 0.5},
		4:         {Total: 6, Top1: 3, Top2: 2, Top3: 0.5},
	}
	cfg := DefaultUnigramConfig(4)

	baseOut, err := Unigram(counts, cfg)
	require.NoError(t, err)

	// A scalar loss: sum of squares of the output counts.
	lossAndGrad := func(out *ngram.FloatLmState) (float32, []float32) {
		var loss float32
		grad := make([]float32, len(out.Counts))
		for i, wc := range out.Counts {
			loss += wc.Count * wc.Count
			grad[i] = 2 * wc.Count
		}
		return loss, grad
	}
	baseLoss, grad := lossAndGrad(baseOut)
	_ = baseLoss

	countDerivs, hyperDerivs, err := UnigramBackward(counts, cfg, grad)
	require.NoError(t, err)

	// Perturb c.Top1 of word 4 and check the analytic gradient against a
	// central finite difference.
	const eps = 1e-3
	perturbed := make(map[ngram.Word]ngram.Count, len(counts))
	for w, c := range counts {
		perturbed[w] = c
	}
	c4 := perturbed[4]
	c4.Top1 += eps
	perturbed[4] = c4
	outPlus, err := Unigram(perturbed, cfg)
	require.NoError(t, err)
	lossPlus, _ := lossAndGrad(outPlus)

	c4.Top1 -= 2 * eps
	perturbed[4] = c4
	outMinus, err := Unigram(perturbed, cfg)
	require.NoError(t, err)
	lossMinus, _ := lossAndGrad(outMinus)

	numeric := (lossPlus - lossMinus) / (2 * eps)
	analytic := countDerivs[4].Top1
	assert.InDelta(t, float64(numeric), float64(analytic), 5e-2)
	_ = hyperDerivs
}

func TestHigherOrderDiscountsAndAccumulatesBackoff(t *testing.T) {
	state := &ngram.GeneralLmState{
		History: []ngram.Word{20, 11},
		Counts: []ngram.WordGeneralCount{
			{Word: 12, Count: ngram.Count{Total: 10, Top1: 4, Top2: 3, Top3: 2}},
			{Word: 13, Count: ngram.Count{Total: 4, Top1: 4}},
		},
	}
	cfg := HigherOrderConfig{D1: 0.5, D2: 0.5, D3: 0.5, D4: 0.5}
	backoff := newBackoffBuilder(BackoffHistoryOf(state.History))
	out, err := HigherOrder(state, cfg, backoff)
	require.NoError(t, err)
	require.Len(t, out.Counts, 2)

	for _, wc := range out.Counts {
		assert.GreaterOrEqual(t, wc.Count, float32(0))
	}

	g := backoff.flush()
	require.NotNil(t, g)
	assert.Equal(t, []ngram.Word{20}, g.History)
	require.Len(t, g.Counts, 2)
}

func TestHigherOrderRejectsNegativeDiscountedCount(t *testing.T) {
	state := &ngram.GeneralLmState{
		History: []ngram.Word{11},
		Counts: []ngram.WordGeneralCount{
			{Word: 12, Count: ngram.Count{Total: 1, Top1: 1}},
		},
	}
	cfg := HigherOrderConfig{D1: 5, D2: 5, D3: 5, D4: 5}
	_, err := HigherOrder(state, cfg, nil)
	require.Error(t, err)
}

func TestHigherOrderBackwardLengthMismatch(t *testing.T) {
	state := &ngram.GeneralLmState{
		History: []ngram.Word{11},
		Counts: []ngram.WordGeneralCount{
			{Word: 12, Count: ngram.Count{Total: 1, Top1: 1}},
		},
	}
	cfg := HigherOrderConfig{D1: 0.5, D2: 0.5, D3: 0.5, D4: 0.5}
	_, _, err := HigherOrderBackward(state, cfg, []float32{1}, nil)
	require.Error(t, err)
}

func TestHigherOrderBackwardMatchesNumericalGradient(t *testing.T) {
	state := &ngram.GeneralLmState{
		History: []ngram.Word{20, 11},
		Counts: []ngram.WordGeneralCount{
			{Word: 12, Count: ngram.Count{Total: 10, Top1: 4, Top2: 3, Top3: 2}},
		},
	}
	cfg := HigherOrderConfig{D1: 0.6, D2: 0.4, D3: 0.2, D4: 0.1}

	countDerivs := []float32{1} // dL/d(discounted count) = 1
	backoffDerivs := []ngram.Count{{Total: 0.3, Top1: 0.2, Top2: 0.1, Top3: 0.05}}

	grads, _, err := HigherOrderBackward(state, cfg, countDerivs, backoffDerivs)
	require.NoError(t, err)

	loss := func(s *ngram.GeneralLmState) float32 {
		backoff := newBackoffBuilder(BackoffHistoryOf(s.History))
		out, err := HigherOrder(s, cfg, backoff)
		require.NoError(t, err)
		g := backoff.flush()
		var l float32
		l += countDerivs[0] * out.Counts[0].Count
		bc := g.Counts[0].Count
		l += backoffDerivs[0].Total*bc.Total + backoffDerivs[0].Top1*bc.Top1 + backoffDerivs[0].Top2*bc.Top2 + backoffDerivs[0].Top3*bc.Top3
		return l
	}

	const eps = 1e-3
	check := func(name string, get func(*ngram.GeneralLmState) *float32, analytic float32) {
		t.Run(name, func(t *testing.T) {
			plus := cloneState(state)
			*get(plus) += eps
			minus := cloneState(state)
			*get(minus) -= eps
			numeric := (loss(plus) - loss(minus)) / (2 * eps)
			assert.InDelta(t, float64(numeric), float64(analytic), 5e-2)
		})
	}
	check("Total", func(s *ngram.GeneralLmState) *float32 { return &s.Counts[0].Count.Total }, grads[0].Total)
	check("Top1", func(s *ngram.GeneralLmState) *float32 { return &s.Counts[0].Count.Top1 }, grads[0].Top1)
	check("Top2", func(s *ngram.GeneralLmState) *float32 { return &s.Counts[0].Count.Top2 }, grads[0].Top2)
	check("Top3", func(s *ngram.GeneralLmState) *float32 { return &s.Counts[0].Count.Top3 }, grads[0].Top3)
}

func cloneState(s *ngram.GeneralLmState) *ngram.GeneralLmState {
	out := &ngram.GeneralLmState{History: append([]ngram.Word(nil), s.History...), Discount: s.Discount}
	out.Counts = append([]ngram.WordGeneralCount(nil), s.Counts...)
	return out
}

func TestRunHigherOrderFlushesOnHistoryChange(t *testing.T) {
	states := []*ngram.GeneralLmState{
		{History: []ngram.Word{11, 20}, Counts: []ngram.WordGeneralCount{{Word: 12, Count: ngram.NewCount(4)}}},
		{History: []ngram.Word{11, 21}, Counts: []ngram.WordGeneralCount{{Word: 13, Count: ngram.NewCount(4)}}},
		{History: []ngram.Word{14, 22}, Counts: []ngram.WordGeneralCount{{Word: 15, Count: ngram.NewCount(4)}}},
	}
	cfg := HigherOrderConfig{D1: 0.5, D2: 0.5, D3: 0.5, D4: 0.5}

	var discounted []*ngram.FloatLmState
	var backoffs []*ngram.GeneralLmState
	err := RunHigherOrder(states, cfg,
		func(f *ngram.FloatLmState) error { discounted = append(discounted, f); return nil },
		func(g *ngram.GeneralLmState) error { backoffs = append(backoffs, g); return nil },
	)
	require.NoError(t, err)
	assert.Len(t, discounted, 3)
	// Histories {11,20} and {11,21} share backoff history {11} and merge
	// into one flushed record; {14,22} backs off to {14} on its own.
	require.Len(t, backoffs, 2)
	assert.Equal(t, []ngram.Word{11}, backoffs[0].History)
	assert.Equal(t, []ngram.Word{14}, backoffs[1].History)
}

func TestRunHigherOrderBackwardMatchesNumericalGradient(t *testing.T) {
	cfg := HigherOrderConfig{D1: 0.6, D2: 0.4, D3: 0.2, D4: 0.1}
	history := []ngram.Word{11}
	countDerivs := []float32{1, 0.5} // dL/d(discounted count) per state
	backoffDeriv := ngram.Count{Total: 0.3, Top1: 0.2, Top2: 0.1, Top3: 0.05}

	newStates := func() []*ngram.GeneralLmState {
		return []*ngram.GeneralLmState{
			{History: []ngram.Word{11, 20}, Counts: []ngram.WordGeneralCount{{Word: 12, Count: ngram.Count{Total: 10, Top1: 4, Top2: 3, Top3: 2}}}},
			{History: []ngram.Word{11, 21}, Counts: []ngram.WordGeneralCount{{Word: 12, Count: ngram.Count{Total: 6, Top1: 2, Top2: 2, Top3: 1}}}},
		}
	}

	loss := func(states []*ngram.GeneralLmState) float32 {
		backoff := newBackoffBuilder(history)
		var l float32
		for i, s := range states {
			out, err := HigherOrder(s, cfg, backoff)
			require.NoError(t, err)
			l += countDerivs[i] * out.Counts[0].Count
		}
		merged := backoff.flush()
		bc := merged.Counts[0].Count
		l += backoffDeriv.Total*bc.Total + backoffDeriv.Top1*bc.Top1 + backoffDeriv.Top2*bc.Top2 + backoffDeriv.Top3*bc.Top3
		return l
	}

	states := newStates()
	grads := make([][]ngram.Count, len(states))
	err := RunHigherOrderBackward(states, cfg,
		func(idx int, s *ngram.GeneralLmState) []float32 { return []float32{countDerivs[idx]} },
		func(bh []ngram.Word, numWords int) ([]ngram.Count, error) {
			require.Equal(t, history, bh)
			require.Equal(t, 1, numWords)
			return []ngram.Count{backoffDeriv}, nil
		},
		func(idx int, s *ngram.GeneralLmState, inputDerivs []ngram.Count, _ HigherOrderDerivs) error {
			grads[idx] = inputDerivs
			return nil
		},
	)
	require.NoError(t, err)

	const eps = 1e-3
	check := func(name string, idx int, get func(*ngram.GeneralLmState) *float32, analytic float32) {
		t.Run(name, func(t *testing.T) {
			plus := newStates()
			*get(plus[idx]) += eps
			minus := newStates()
			*get(minus[idx]) -= eps
			numeric := (loss(plus) - loss(minus)) / (2 * eps)
			assert.InDelta(t, float64(numeric), float64(analytic), 5e-2)
		})
	}
	for idx := range states {
		check("Total", idx, func(s *ngram.GeneralLmState) *float32 { return &s.Counts[0].Count.Total }, grads[idx][0].Total)
		check("Top1", idx, func(s *ngram.GeneralLmState) *float32 { return &s.Counts[0].Count.Top1 }, grads[idx][0].Top1)
		check("Top2", idx, func(s *ngram.GeneralLmState) *float32 { return &s.Counts[0].Count.Top2 }, grads[idx][0].Top2)
		check("Top3", idx, func(s *ngram.GeneralLmState) *float32 { return &s.Counts[0].Count.Top3 }, grads[idx][0].Top3)
	}
}

func TestUnigramRejectsTinyVocab(t *testing.T) {
	_, err := Unigram(nil, UnigramConfig{VocabSize: 1})
	require.Error(t, err)
}

func TestUnigramDeterministicRounding(t *testing.T) {
	counts := map[ngram.Word]ngram.Count{ngram.EOS: ngram.NewCount(3)}
	cfg := DefaultUnigramConfig(3)
	a, err := Unigram(counts, cfg)
	require.NoError(t, err)
	b, err := Unigram(counts, cfg)
	require.NoError(t, err)
	for i := range a.Counts {
		assert.True(t, math.Float32bits(a.Counts[i].Count) == math.Float32bits(b.Counts[i].Count))
	}
}
