package gradcheck

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dngram/dngram/ngram"
)

func TestPerturbStateStaysWithinRelativeScale(t *testing.T) {
	state := &ngram.FloatLmState{
		History:  []ngram.Word{4},
		Total:    10,
		Discount: 2,
		Counts:   []ngram.FloatWordCount{{Word: 5, Count: 8}},
	}
	deriv := &ngram.FloatLmStateDerivs{DiscountDeriv: 0.1, CountDerivs: []float32{0.2}}
	rng := rand.New(rand.NewSource(1))

	perturbed, p := PerturbState(state, deriv, 5e-3, rng)
	assert.LessOrEqual(t, abs32(p.DiscountDelta), 5e-3*state.Discount+1e-9)
	assert.LessOrEqual(t, abs32(p.CountDeltas[0]), 5e-3*state.Counts[0].Count+1e-9)
	assert.NotEqual(t, state.Discount, perturbed.Discount)
}

func TestPerturbStatePredictionMatchesManualDotProduct(t *testing.T) {
	state := &ngram.FloatLmState{
		Discount: 4,
		Counts:   []ngram.FloatWordCount{{Word: 5, Count: 10}, {Word: 6, Count: 20}},
	}
	deriv := &ngram.FloatLmStateDerivs{DiscountDeriv: 1, CountDerivs: []float32{2, 3}}
	rng := rand.New(rand.NewSource(42))
	_, p := PerturbState(state, deriv, 1e-2, rng)

	want := p.DiscountDelta*1 + p.CountDeltas[0]*2 + p.CountDeltas[1]*3
	assert.InDelta(t, float64(want), float64(p.PredictedDeltaL), 1e-4)
}

func TestTotalPredictedDeltaLSums(t *testing.T) {
	perts := []Perturbation{{PredictedDeltaL: 0.5}, {PredictedDeltaL: -0.2}}
	assert.InDelta(t, 0.3, float64(TotalPredictedDeltaL(perts)), 1e-6)
}

func TestRelativeErrorRejectsNearZeroObserved(t *testing.T) {
	_, err := RelativeError(1, 0)
	require.Error(t, err)
}

func TestRelativeErrorComputesRatio(t *testing.T) {
	got, err := RelativeError(1.01, 1.0)
	require.NoError(t, err)
	assert.InDelta(t, 0.01, float64(got), 1e-6)
}

func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
