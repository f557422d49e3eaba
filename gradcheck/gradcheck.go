// Package gradcheck implements stage K: perturbing a counts file by a small
// signed relative delta per entry, predicting the resulting change in
// objective from the paired derivative file via an inner product, so a
// caller can compare that prediction against a re-run of the evaluator.
package gradcheck

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/dngram/dngram/ngram"
)

// Perturbation is one state's worth of perturbation applied during a
// gradient check: the state's history, the applied deltas, and the
// predicted contribution to ΔL.
type Perturbation struct {
	History         []ngram.Word
	DiscountDelta   float32
	CountDeltas     []float32
	PredictedDeltaL float32
}

// PerturbState draws one relative perturbation per component of state
// (Discount and each entry of Counts), scaled by relativeScale (spec §8
// calls for |ΔC/C| <= 5e-3 for the perturbation to stay in the regime where
// the linear approximation is expected to hold), applies them in place to a
// clone of state, and predicts the resulting ΔL as the inner product of the
// deltas with deriv.
//
// gonum's floats.Dot computes that inner product; using a library routine
// here (rather than a hand-rolled loop) keeps this stage's one piece of
// vector arithmetic consistent with the rest of the numeric stack.
func PerturbState(state *ngram.FloatLmState, deriv *ngram.FloatLmStateDerivs, relativeScale float32, rng *rand.Rand) (*ngram.FloatLmState, Perturbation) {
	perturbed := &ngram.FloatLmState{History: state.History, Discount: state.Discount}
	perturbed.Counts = append(perturbed.Counts, state.Counts...)

	p := Perturbation{History: state.History, CountDeltas: make([]float32, len(state.Counts))}

	discountDelta := relativeSignedDelta(state.Discount, relativeScale, rng)
	perturbed.Discount += discountDelta
	p.DiscountDelta = discountDelta

	values := make([]float64, len(state.Counts)+1)
	derivs := make([]float64, len(state.Counts)+1)
	values[0] = float64(discountDelta)
	derivs[0] = float64(deriv.DiscountDeriv)

	for i, wc := range state.Counts {
		delta := relativeSignedDelta(wc.Count, relativeScale, rng)
		perturbed.Counts[i].Count += delta
		p.CountDeltas[i] = delta
		values[i+1] = float64(delta)
		if i < len(deriv.CountDerivs) {
			derivs[i+1] = float64(deriv.CountDerivs[i])
		}
	}
	perturbed.ComputeTotal()

	p.PredictedDeltaL = float32(floats.Dot(values, derivs))
	return perturbed, p
}

func relativeSignedDelta(value, relativeScale float32, rng *rand.Rand) float32 {
	sign := float32(1)
	if rng.Intn(2) == 0 {
		sign = -1
	}
	return sign * relativeScale * value
}

// TotalPredictedDeltaL sums the predicted ΔL across every perturbed state,
// the quantity a caller compares against the observed ΔL from re-running
// the evaluator on the fully perturbed model.
func TotalPredictedDeltaL(perturbations []Perturbation) float32 {
	var total float64
	vals := make([]float64, 0, len(perturbations))
	for _, p := range perturbations {
		vals = append(vals, float64(p.PredictedDeltaL))
	}
	total = floats.Sum(vals)
	return float32(total)
}

// RelativeError reports |predicted-observed|/|observed|, the comparison
// spec §8's gradient-check property is stated in terms of. It returns an
// error instead when |observed| is below 1e-12.
func RelativeError(predicted, observed float32) (float32, error) {
	denom := observed
	if denom < 0 {
		denom = -denom
	}
	if denom < 1e-12 {
		return 0, fmt.Errorf("gradcheck: observed ΔL too close to zero (%g) for a meaningful relative comparison", observed)
	}
	diff := predicted - observed
	if diff < 0 {
		diff = -diff
	}
	return diff / denom, nil
}
