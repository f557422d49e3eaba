// Package discount implements the forward and reverse-mode passes of both
// discounting stages: fixed-constant unigram discounting (spec §4.D) and
// parameterized (D1..D4) higher-order discounting (spec §4.E).
package discount

import (
	"fmt"
	"sort"

	"github.com/dngram/dngram/internal/mathutil"
	"github.com/dngram/dngram/ngram"
)

// UnigramConfig holds the fixed discount constants and the <unk> mass
// fraction used by unigram discounting.
type UnigramConfig struct {
	D1, D2, D3  float32 // default 0.75, 0.25, 0.1
	UnkFraction float32 // pi, default 0.5
	VocabSize   int32   // highest valid word id (predicted words range 2..VocabSize)
}

// DefaultUnigramConfig returns the reference constants from spec §4.D.
func DefaultUnigramConfig(vocabSize int32) UnigramConfig {
	return UnigramConfig{D1: 0.75, D2: 0.25, D3: 0.1, UnkFraction: 0.5, VocabSize: vocabSize}
}

// unigramWorking holds the intermediates computed by the forward pass.
// UnigramBackward obtains them by re-running unigramForward, so they come
// from the same arithmetic, with the same rounding, as the forward output.
type unigramWorking struct {
	words      []ngram.Word
	remaining  map[ngram.Word]float32
	d1, d2, d3 map[ngram.Word]float32
	dTotal     float32
}

// Unigram applies fixed-constant discounting to a bag of unigram Counts
// (one per observed word) and produces the order-1 FloatLmState: an empty
// history and an explicit count for every word from </s> (2) through
// cfg.VocabSize, per spec §4.D.
func Unigram(counts map[ngram.Word]ngram.Count, cfg UnigramConfig) (*ngram.FloatLmState, error) {
	out, _, err := unigramForward(counts, cfg)
	return out, err
}

func unigramForward(counts map[ngram.Word]ngram.Count, cfg UnigramConfig) (*ngram.FloatLmState, *unigramWorking, error) {
	if cfg.VocabSize < int32(ngram.UNK) {
		return nil, nil, fmt.Errorf("discount: vocab size %d too small for <unk>=%d", cfg.VocabSize, ngram.UNK)
	}
	work := &unigramWorking{
		remaining: make(map[ngram.Word]float32, len(counts)),
		d1:        make(map[ngram.Word]float32, len(counts)),
		d2:        make(map[ngram.Word]float32, len(counts)),
		d3:        make(map[ngram.Word]float32, len(counts)),
	}
	var dTotal float32
	for w, c := range counts {
		d1 := mathutil.Round32(cfg.D1 * c.Top1)
		d2 := mathutil.Round32(cfg.D2 * c.Top2)
		d3 := mathutil.Round32(cfg.D3 * c.Top3)
		d := mathutil.Round32(mathutil.Round32(d1+d2) + d3)
		work.d1[w], work.d2[w], work.d3[w] = d1, d2, d3
		work.remaining[w] = mathutil.Round32(c.Total - d)
		dTotal = mathutil.Round32(dTotal + d)
	}
	work.dTotal = dTotal

	numOther := cfg.VocabSize - 2 // exclude <s>(1) and <unk>(3)
	if numOther < 1 {
		numOther = 1
	}
	unkShare := mathutil.Round32(cfg.UnkFraction * dTotal)
	otherShare := mathutil.Round32((1 - cfg.UnkFraction) * dTotal / float32(numOther))

	out := &ngram.FloatLmState{History: nil}
	var total float32
	for w := ngram.EOS; int32(w) <= cfg.VocabSize; w++ {
		remaining := work.remaining[ngram.Word(w)]
		var extra float32
		if w == ngram.UNK {
			extra = unkShare
		} else {
			extra = otherShare
		}
		final := mathutil.Round32(remaining + extra)
		if final < 0 {
			return nil, nil, fmt.Errorf("discount: unigram discounting produced negative count %g for word %d", final, w)
		}
		out.Counts = append(out.Counts, ngram.FloatWordCount{Word: ngram.Word(w), Count: final})
		total += final
		work.words = append(work.words, ngram.Word(w))
	}
	sort.Slice(out.Counts, func(i, j int) bool { return out.Counts[i].Word < out.Counts[j].Word })
	out.Total = total
	out.Discount = 0
	return out, work, nil
}
