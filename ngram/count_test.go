package ngram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountAddMaintainsTopK(t *testing.T) {
	var c Count
	c.AddFloat(3)
	c.AddFloat(1)
	c.AddFloat(5)
	c.AddFloat(2)
	assert.InDelta(t, 11, c.Total, 1e-6)
	assert.Equal(t, float32(5), c.Top1)
	assert.Equal(t, float32(3), c.Top2)
	assert.Equal(t, float32(2), c.Top3)
	require.NoError(t, c.Check())
}

func TestCountAddPiecesMatchesRepeatedAddFloat(t *testing.T) {
	var bulk Count
	bulk.AddPieces(2.5, 4)

	var loop Count
	for i := 0; i < 4; i++ {
		loop.AddFloat(2.5)
	}

	assert.InDelta(t, float64(loop.Total), float64(bulk.Total), 1e-5)
	assert.InDelta(t, float64(loop.Top1), float64(bulk.Top1), 1e-5)
	assert.InDelta(t, float64(loop.Top2), float64(bulk.Top2), 1e-5)
	assert.InDelta(t, float64(loop.Top3), float64(bulk.Top3), 1e-5)
}

func TestCountAddCombinesTwoCounts(t *testing.T) {
	a := NewCountPieces(2, 3) // total=6, top=(2,2,2)
	b := NewCount(5)          // total=5, top=(5,0,0)
	a.Add(b)
	assert.InDelta(t, 11, a.Total, 1e-6)
	assert.Equal(t, float32(5), a.Top1)
	assert.Equal(t, float32(2), a.Top2)
	assert.Equal(t, float32(2), a.Top3)
}

func TestCountAddBackwardNoTies(t *testing.T) {
	c1 := NewCount(5)
	c2 := NewCount(3)
	c3 := NewCount(1)
	var sum Count
	sum.Add(c1)
	sum.Add(c2)
	sum.Add(c3)

	sumDeriv := Count{Total: 1, Top1: 1, Top2: 1, Top3: 1}
	var d1, d2, d3 Count
	sum.AddBackward(c3, &sumDeriv, &d3)
	sum.AddBackward(c2, &sumDeriv, &d2)
	sum.AddBackward(c1, &sumDeriv, &d1)

	// total_deriv is unconditional and goes to every summand.
	assert.Equal(t, float32(1), d1.Total)
	assert.Equal(t, float32(1), d2.Total)
	assert.Equal(t, float32(1), d3.Total)

	// Each summand's top1 receives the sumDeriv slot whose value it equals:
	// c1's 5 is sum.Top1, c2's 3 is sum.Top2 and c3's 1 is sum.Top3.
	assert.Equal(t, float32(1), d1.Top1)
	assert.Equal(t, float32(1), d2.Top1)
	assert.Equal(t, float32(1), d3.Top1)

	// after processing all summands, sumDeriv's top slots must be zeroed.
	assert.Equal(t, float32(0), sumDeriv.Top1)
	assert.Equal(t, float32(0), sumDeriv.Top2)
	assert.Equal(t, float32(0), sumDeriv.Top3)
}

func TestCountAddBackwardTiesConsumeFirstMatchOnly(t *testing.T) {
	// Two equal contributions of value 4: sum.top1 == sum.top2 == 4.
	c1 := NewCount(4)
	c2 := NewCount(4)
	var sum Count
	sum.Add(c1)
	sum.Add(c2)

	sumDeriv := Count{Top1: 1, Top2: 1}
	var d1, d2 Count
	// Process c1 first: it matches top1 (first structural match wins).
	sum.AddBackward(c1, &sumDeriv, &d1)
	sum.AddBackward(c2, &sumDeriv, &d2)

	assert.Equal(t, float32(1), d1.Top1, "first match should absorb the top1 slot")
	// c2 only has Top1 == 4 as well, but Top1 slot of sumDeriv is now 0,
	// so it falls through to Top2 which is still 1.
	assert.Equal(t, float32(1), d2.Top1)
	assert.Equal(t, float32(0), sumDeriv.Top1)
	assert.Equal(t, float32(0), sumDeriv.Top2)
}

func TestCountDotProduct(t *testing.T) {
	a := Count{Total: 1, Top1: 2, Top2: 3, Top3: 4}
	b := Count{Total: 5, Top1: 6, Top2: 7, Top3: 8}
	got := a.DotProduct(b)
	want := float32(1*5 + 2*6 + 3*7 + 4*8)
	assert.InDelta(t, float64(want), float64(got), 1e-4)
}

func TestCountCheckRejectsUnsortedTopK(t *testing.T) {
	c := Count{Total: 10, Top1: 2, Top2: 5, Top3: 1}
	require.Error(t, c.Check())
}

func TestCountCheckRejectsTotalDrift(t *testing.T) {
	c := Count{Total: 1, Top1: 5, Top2: 5, Top3: 5}
	require.Error(t, c.Check())
}
