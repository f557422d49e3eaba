package merge

import "github.com/dngram/dngram/ngram"

// ScaleCountBackward is the reverse-mode counterpart of ScaleCount.
func ScaleCountBackward(c ngram.Count, w float32, outDeriv ngram.Count) (ngram.Count, float32) {
	cDeriv := ScaleCount(outDeriv, w)
	wDeriv := outDeriv.DotProduct(c)
	return cDeriv, wDeriv
}

// SourceGradient is the gradient contributed by one source's participation
// in a single merged (history, word) slot.
type SourceGradient struct {
	Source      int
	Word        ngram.Word
	RawDeriv    ngram.Count
	WeightDeriv float32
}

// MergeGeneralBackward differentiates one merged history's worth of
// MergeGeneral, given the derivative of that history's merged
// GeneralLmState (parallel to its Counts, in the same word order finish()
// emitted). It replays each word's Add sequence in reverse so that
// Count.AddBackward's tie-breaking is applied against the exact same
// running sums the forward pass produced.
func MergeGeneralBackward(g *mergeGroup, merged *ngram.GeneralLmState, mergedDerivs []ngram.Count) []SourceGradient {
	var out []SourceGradient
	for i, wc := range merged.Counts {
		w := wc.Word
		contribs := g.contributions[w]
		thisDeriv := mergedDerivs[i]
		for k := len(contribs) - 1; k >= 0; k-- {
			c := contribs[k]
			var otherDeriv ngram.Count
			c.cum.AddBackward(ScaleCount(c.raw, c.weight), &thisDeriv, &otherDeriv)
			rawDeriv, weightDeriv := ScaleCountBackward(c.raw, c.weight, otherDeriv)
			out = append(out, SourceGradient{Source: c.source, Word: w, RawDeriv: rawDeriv, WeightDeriv: weightDeriv})
		}
	}
	return out
}
