package countagg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dngram/dngram/ngram"
)

func sent(words ...ngram.Word) Sentence { return Sentence(words) }

func TestAggregateUnigramAndBigram(t *testing.T) {
	// <s> a b </s>
	sentences := []Sentence{sent(ngram.BOS, 10, 11, ngram.EOS)}
	out, err := Aggregate(sentences, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)

	unigrams := out[0]
	require.Len(t, unigrams, 1) // one empty-history record
	assert.Empty(t, unigrams[0].History)
	total := map[ngram.Word]int32{}
	for _, wc := range unigrams[0].Counts {
		total[wc.Word] = wc.Count
	}
	assert.Equal(t, int32(1), total[10])
	assert.Equal(t, int32(1), total[11])
	assert.Equal(t, int32(1), total[ngram.EOS])

	bigrams := out[1]
	require.Len(t, bigrams, 3) // histories {<s>}, {10}, {11}
}

func TestAggregateRejectsMalformedSentence(t *testing.T) {
	_, err := Aggregate([]Sentence{sent(10, ngram.EOS)}, 1)
	require.Error(t, err)
	_, err = Aggregate([]Sentence{sent(ngram.BOS, 10)}, 1)
	require.Error(t, err)
}

func TestAggregateAccumulatesRepeats(t *testing.T) {
	sentences := []Sentence{
		sent(ngram.BOS, 10, ngram.EOS),
		sent(ngram.BOS, 10, ngram.EOS),
	}
	out, err := Aggregate(sentences, 1)
	require.NoError(t, err)
	require.Len(t, out[0][0].Counts, 2) // word 10 and </s>
	for _, wc := range out[0][0].Counts {
		if wc.Word == 10 {
			assert.Equal(t, int32(2), wc.Count)
		}
	}
}

// buildTrigramSource lays out a single-source MinCountSource for a 3-order model
// (unigram, bigram, trigram) from an explicit trigram history [13,12] with
// counts matching the reference toolkit's worked example: word 2 (e.g.
// </s>) with count 4, word 14 with count 1, min-count 2. Word 14's own
// count (1) is below the min-count and, with no higher order present to
// contribute to its weighted total, 1/2 = 0.5 < 0.999, so it discounts.
func buildTrigramSource(minCount int32) MinCountSource {
	trigram := &ngram.IntLmState{
		History: []ngram.Word{13, 12},
		Counts:  []ngram.WordCount{{Word: 2, Count: 4}, {Word: 14, Count: 1}},
	}
	bigram := &ngram.IntLmState{History: []ngram.Word{13}}
	unigram := &ngram.IntLmState{History: nil}
	return MinCountSource{
		MinCounts: []int32{minCount},
		States: [][]*ngram.IntLmState{
			{unigram},
			{bigram},
			{trigram},
		},
	}
}

func TestEnforceMinCountsFoldsSubThresholdWordIntoBackoff(t *testing.T) {
	src := buildTrigramSource(2)
	require.NoError(t, EnforceMinCounts([]MinCountSource{src}, 3))

	trigram := src.States[2][0]
	require.Len(t, trigram.Counts, 1)
	assert.Equal(t, ngram.Word(2), trigram.Counts[0].Word)
	assert.Equal(t, int32(4), trigram.Counts[0].Count)
	assert.Equal(t, int32(1), trigram.Discount)

	bigram := src.States[1][0]
	require.Len(t, bigram.Counts, 1)
	assert.Equal(t, ngram.Word(14), bigram.Counts[0].Word)
	assert.Equal(t, int32(1), bigram.Counts[0].Count)
}

func TestEnforceMinCountsKeepsWordsAboveThreshold(t *testing.T) {
	src := buildTrigramSource(1)
	require.NoError(t, EnforceMinCounts([]MinCountSource{src}, 3))

	trigram := src.States[2][0]
	require.Len(t, trigram.Counts, 2)
	assert.Equal(t, int32(0), trigram.Discount)
}

func TestEnforceMinCountsDropsHistoryLeftWithNoCounts(t *testing.T) {
	trigram := &ngram.IntLmState{
		History: []ngram.Word{11, 10},
		Counts:  []ngram.WordCount{{Word: 12, Count: 1}},
	}
	bigram := &ngram.IntLmState{History: []ngram.Word{11}}
	unigram := &ngram.IntLmState{History: nil}
	src := MinCountSource{
		MinCounts: []int32{5},
		States:    [][]*ngram.IntLmState{{unigram}, {bigram}, {trigram}},
	}
	require.NoError(t, EnforceMinCounts([]MinCountSource{src}, 3))
	assert.Empty(t, src.States[2])
	require.Len(t, src.States[1], 1)
	assert.Equal(t, ngram.Word(12), src.States[1][0].Counts[0].Word)
}

func TestEnforceMinCountsNoOpBelowOrder3(t *testing.T) {
	src := MinCountSource{States: [][]*ngram.IntLmState{{{History: nil}}, {{History: []ngram.Word{10}}}}}
	require.NoError(t, EnforceMinCounts([]MinCountSource{src}, 2))
}

func TestEnforceMinCountsRejectsMismatchedMinCounts(t *testing.T) {
	src := MinCountSource{
		MinCounts: []int32{2}, // maxOrder 4 needs 2 min-counts, for orders 3 and 4
		States:    [][]*ngram.IntLmState{{}, {}, {}, {}},
	}
	require.Error(t, EnforceMinCounts([]MinCountSource{src}, 4))
}

func TestFanOutOrdersSplitsByOrder(t *testing.T) {
	states := []*ngram.IntLmState{
		{History: nil},
		{History: []ngram.Word{10}},
		{History: []ngram.Word{11, 10}},
	}
	orderOf := func(s *ngram.IntLmState) int { return len(s.History) + 1 }
	out, err := FanOutOrders(states, orderOf, 3)
	require.NoError(t, err)
	assert.Len(t, out[0], 1)
	assert.Len(t, out[1], 1)
	assert.Len(t, out[2], 1)
}

func TestFanOutOrdersRejectsOutOfRange(t *testing.T) {
	states := []*ngram.IntLmState{{History: []ngram.Word{1, 2, 3}}}
	orderOf := func(s *ngram.IntLmState) int { return len(s.History) + 1 }
	_, err := FanOutOrders(states, orderOf, 2)
	require.Error(t, err)
}
