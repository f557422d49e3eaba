package ngram

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntLmStateRoundTripWithDiscount(t *testing.T) {
	orig := &IntLmState{
		History:  []Word{12, 11},
		Counts:   []WordCount{{Word: 13, Count: 2}, {Word: 14, Count: 1}},
		Discount: 3,
	}
	var buf bytes.Buffer
	require.NoError(t, orig.WriteTo(&buf))

	got, err := ReadIntLmState(&buf)
	require.NoError(t, err)
	assert.Equal(t, orig, got)
}

func TestIntLmStateRoundTripZeroDiscount(t *testing.T) {
	orig := &IntLmState{
		History: []Word{11},
		Counts:  []WordCount{{Word: 12, Count: 5}},
	}
	var buf bytes.Buffer
	require.NoError(t, orig.WriteTo(&buf))
	got, err := ReadIntLmState(&buf)
	require.NoError(t, err)
	assert.Equal(t, orig, got)
}

func TestIntLmStateReadEOF(t *testing.T) {
	_, err := ReadIntLmState(bytes.NewReader(nil))
	assert.ErrorIs(t, err, io.EOF)
}

func TestFloatLmStateRoundTrip(t *testing.T) {
	orig := &FloatLmState{
		History:  []Word{11},
		Total:    1.0,
		Discount: 0.25,
		Counts:   []FloatWordCount{{Word: 12, Count: 0.75}},
	}
	var buf bytes.Buffer
	require.NoError(t, orig.WriteTo(&buf))
	got, err := ReadFloatLmState(&buf)
	require.NoError(t, err)
	assert.Equal(t, orig, got)
}

func TestFloatLmStateCheckCatchesTotalDrift(t *testing.T) {
	s := &FloatLmState{
		Total:    10,
		Discount: 0,
		Counts:   []FloatWordCount{{Word: 4, Count: 1}},
	}
	require.Error(t, s.Check())
}

func TestGeneralLmStateRoundTrip(t *testing.T) {
	orig := &GeneralLmState{
		History:  []Word{11, 12},
		Discount: 0.4,
		Counts: []WordGeneralCount{
			{Word: 2, Count: Count{Total: 0.4, Top1: 0.4}},
			{Word: 14, Count: Count{Total: 0.4, Top1: 0.4}},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, orig.WriteTo(&buf))
	got, err := ReadGeneralLmState(&buf)
	require.NoError(t, err)
	assert.Equal(t, orig, got)
}

func TestNullLmStateRoundTrip(t *testing.T) {
	orig := &NullLmState{History: []Word{12, 11}, Predicted: []Word{13, 14}}
	var buf bytes.Buffer
	require.NoError(t, orig.WriteTo(&buf))
	got, err := ReadNullLmState(&buf)
	require.NoError(t, err)
	assert.Equal(t, orig, got)
}

func TestFloatLmStateDerivsRoundTrip(t *testing.T) {
	d := &FloatLmStateDerivs{CountDerivs: []float32{0.1, 0.2, 0.3}}
	d.DiscountDeriv = 0.5
	var buf bytes.Buffer
	require.NoError(t, d.WriteTo(&buf))
	got, err := ReadFloatLmStateDerivs(&buf, 3)
	require.NoError(t, err)
	assert.Equal(t, d, got)
}

func TestFloatLmStateDerivsFlushDistributesTotal(t *testing.T) {
	d := &FloatLmStateDerivs{
		TotalDeriv:  1.0,
		CountDerivs: []float32{0, 0, 0},
	}
	d.Flush()
	assert.Equal(t, float32(0), d.TotalDeriv)
	assert.Equal(t, float32(1.0), d.DiscountDeriv)
	for _, v := range d.CountDerivs {
		assert.Equal(t, float32(1.0), v)
	}
}

func TestGeneralLmStateDerivsRoundTrip(t *testing.T) {
	d := &GeneralLmStateDerivs{
		DiscountDeriv: 0.5,
		CountDerivs:   []Count{{Total: 1, Top1: 0.5, Top2: 0.3, Top3: 0.2}},
	}
	var buf bytes.Buffer
	require.NoError(t, d.WriteTo(&buf))
	got, err := ReadGeneralLmStateDerivs(&buf, 1)
	require.NoError(t, err)
	assert.Equal(t, d, got)
}

func TestGeneralLmStateDerivsRejectsCountMismatch(t *testing.T) {
	d := &GeneralLmStateDerivs{CountDerivs: []Count{{Total: 1}}}
	var buf bytes.Buffer
	require.NoError(t, d.WriteTo(&buf))
	_, err := ReadGeneralLmStateDerivs(&buf, 2)
	require.Error(t, err)
}

func TestReadAllIntLmStatesReadsUntilEOF(t *testing.T) {
	states := []*IntLmState{
		{History: []Word{11}, Counts: []WordCount{{Word: 12, Count: 1}}},
		{History: []Word{12}, Counts: []WordCount{{Word: 13, Count: 2}}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteAllIntLmStates(&buf, states))
	got, err := ReadAllIntLmStates(&buf)
	require.NoError(t, err)
	assert.Equal(t, states, got)
}

func TestIntLmStateCheckRejectsBOSPredicted(t *testing.T) {
	s := &IntLmState{History: []Word{11}, Counts: []WordCount{{Word: BOS, Count: 1}}}
	require.Error(t, s.Check())
}

func TestIntLmStateCheckRejectsEOSInHistory(t *testing.T) {
	s := &IntLmState{History: []Word{EOS}, Counts: []WordCount{{Word: 11, Count: 1}}}
	require.Error(t, s.Check())
}

func TestIntLmStateCheckRejectsUnsortedCounts(t *testing.T) {
	s := &IntLmState{History: []Word{11}, Counts: []WordCount{{Word: 14, Count: 1}, {Word: 12, Count: 1}}}
	require.Error(t, s.Check())
}
