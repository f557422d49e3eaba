package prune

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dngram/dngram/ngram"
)

func TestDeltaLIsNonPositive(t *testing.T) {
	c := Candidate{Count: 1, Total: 100, Discount: 10, BackoffCount: 5, BackoffTotal: 200}
	assert.LessOrEqual(t, DeltaL(c), float32(0))
}

func TestDeltaLZeroForZeroCount(t *testing.T) {
	c := Candidate{Count: 0, Total: 100, Discount: 10, BackoffCount: 5, BackoffTotal: 200}
	assert.Equal(t, float32(0), DeltaL(c))
}

func TestDeltaLSmallerCountsCostLess(t *testing.T) {
	small := Candidate{Count: 0.1, Total: 100, Discount: 10, BackoffCount: 5, BackoffTotal: 200}
	big := Candidate{Count: 5, Total: 100, Discount: 10, BackoffCount: 5, BackoffTotal: 200}
	assert.Greater(t, DeltaL(small), DeltaL(big)) // less negative == cheaper to prune
}

func TestFloatCountsToHistoriesAndDedup(t *testing.T) {
	states := []*ngram.FloatLmState{
		{History: []ngram.Word{11, 10}, Counts: []ngram.FloatWordCount{{Word: 13, Count: 1}}},
		{History: []ngram.Word{12, 10}, Counts: []ngram.FloatWordCount{{Word: 13, Count: 1}}},
		{History: []ngram.Word{11, 10}, Counts: []ngram.FloatWordCount{{Word: 13, Count: 1}}}, // duplicate mark
	}
	marks := FloatCountsToHistories(states)
	require.Len(t, marks, 3)
	deduped := HistoriesToNullCounts(marks)
	require.Len(t, deduped, 1)
	assert.Equal(t, []ngram.Word{10}, deduped[0].History)
	assert.Equal(t, []ngram.Word{11, 12}, deduped[0].Predicted)
}

func TestBuildShadowedMarksExtendedHistories(t *testing.T) {
	higher := []*ngram.FloatLmState{
		{History: []ngram.Word{20, 10}, Counts: []ngram.FloatWordCount{{Word: 11, Count: 3}, {Word: 12, Count: 0}}},
	}
	shadowed := BuildShadowed(higher)
	key := historyKey([]ngram.Word{20})
	assert.True(t, shadowed[key][11])
	assert.False(t, shadowed[key][12]) // zero count doesn't shadow
}

func TestExclusionSetsExcluded(t *testing.T) {
	shadowed := map[string]map[ngram.Word]bool{historyKey([]ngram.Word{10}): {11: true}}
	protected := map[string]map[ngram.Word]bool{historyKey([]ngram.Word{10}): {12: true}}
	excl := NewExclusionSets(shadowed, protected)
	assert.True(t, excl.Excluded([]ngram.Word{10}, 11))
	assert.True(t, excl.Excluded([]ngram.Word{10}, 12))
	assert.False(t, excl.Excluded([]ngram.Word{10}, 13))
}

func TestApplyPruningMovesMassToBackoff(t *testing.T) {
	state := &ngram.FloatLmState{
		History:  []ngram.Word{10},
		Total:    100,
		Discount: 10,
		Counts:   []ngram.FloatWordCount{{Word: 11, Count: 0.05}, {Word: 12, Count: 50}},
	}
	backoff := &ngram.FloatLmState{
		Total:  200,
		Counts: []ngram.FloatWordCount{{Word: 11, Count: 5}, {Word: 12, Count: 20}},
	}
	excl := NewExclusionSets(nil, nil)
	res := ApplyPruning(state, backoff, excl, 1e9) // huge threshold prunes everything eligible
	assert.Contains(t, res.Pruned, ngram.Word(11))
	// word 12 has a large count; with a huge threshold it too gets pruned,
	// so just check the mass conservation invariant instead of exact survivors:
	// discount plus counts stays at 10 + 0.05 + 50.
	var sumState, sumBackoff float32
	for _, wc := range state.Counts {
		sumState += wc.Count
	}
	for _, wc := range backoff.Counts {
		sumBackoff += wc.Count
	}
	assert.InDelta(t, 60.05, float64(state.Discount+sumState), 1e-3)
}

func TestApplyPruningRespectsExclusions(t *testing.T) {
	state := &ngram.FloatLmState{
		History:  []ngram.Word{10},
		Total:    100,
		Discount: 10,
		Counts:   []ngram.FloatWordCount{{Word: 11, Count: 0.01}},
	}
	backoff := &ngram.FloatLmState{
		Total:  200,
		Counts: []ngram.FloatWordCount{{Word: 11, Count: 5}},
	}
	protected := map[string]map[ngram.Word]bool{historyKey([]ngram.Word{10}): {11: true}}
	excl := NewExclusionSets(nil, protected)
	res := ApplyPruning(state, backoff, excl, 1e9)
	assert.Empty(t, res.Pruned)
	require.Len(t, state.Counts, 1)
}
