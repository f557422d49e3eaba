package discount

import (
	"fmt"

	"github.com/dngram/dngram/ngram"
)

// UnigramDerivs carries the accumulated gradient of the unigram hyperparameters.
type UnigramDerivs struct {
	D1, D2, D3  float32
	UnkFraction float32
}

// UnigramBackward differentiates Unigram. outputDerivs must be parallel to
// the FloatLmState.Counts produced by Unigram: one entry per word from </s>
// through cfg.VocabSize, in ascending word order.
//
// It returns the gradient with respect to each input word's raw Count and
// the gradient of the four scalar hyperparameters.
func UnigramBackward(counts map[ngram.Word]ngram.Count, cfg UnigramConfig, outputDerivs []float32) (map[ngram.Word]ngram.Count, UnigramDerivs, error) {
	_, work, err := unigramForward(counts, cfg)
	if err != nil {
		return nil, UnigramDerivs{}, err
	}
	wantLen := int(cfg.VocabSize) - 1 // words 2..VocabSize inclusive
	if len(outputDerivs) != wantLen {
		return nil, UnigramDerivs{}, fmt.Errorf("discount: UnigramBackward expected %d output derivatives, got %d", wantLen, len(outputDerivs))
	}

	numOther := cfg.VocabSize - 2
	if numOther < 1 {
		numOther = 1
	}

	derivByWord := make(map[ngram.Word]float32, len(work.words))
	for i, w := range work.words {
		derivByWord[w] = outputDerivs[i]
	}

	// dL/dDtot accumulates the contribution of every word's share coefficient.
	var dDtot float32
	var otherSum float32
	unkDeriv := derivByWord[ngram.UNK]
	for _, w := range work.words {
		if w == ngram.UNK {
			continue
		}
		otherSum += derivByWord[w]
	}
	dDtot += cfg.UnkFraction * unkDeriv
	dDtot += (1 - cfg.UnkFraction) / float32(numOther) * otherSum

	dPi := work.dTotal*unkDeriv - work.dTotal/float32(numOther)*otherSum

	countDerivs := make(map[ngram.Word]ngram.Count, len(counts))
	var out UnigramDerivs
	out.UnkFraction = dPi

	for w, c := range counts {
		gFinal := derivByWord[w]
		// G_w = dL/d(total discount removed from w)
		gw := -gFinal + dDtot
		cd := countDerivs[w]
		cd.Total += gFinal
		cd.Top1 += cfg.D1 * gw
		cd.Top2 += cfg.D2 * gw
		cd.Top3 += cfg.D3 * gw
		countDerivs[w] = cd

		out.D1 += c.Top1 * gw
		out.D2 += c.Top2 * gw
		out.D3 += c.Top3 * gw
	}
	return countDerivs, out, nil
}
