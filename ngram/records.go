package ngram

// WordCount pairs a predicted word with an integer count. IntLmState.Counts
// is sorted ascending by Word with no duplicates.
type WordCount struct {
	Word  Word
	Count int32
}

// IntLmState is the raw per-history count record produced directly from
// tokenized data, before any weighting or smoothing (spec §3).
type IntLmState struct {
	History  []Word
	Counts   []WordCount
	Discount int32 // count mass folded in by min-count enforcement; 0 for fresh data.
}

// FloatWordCount pairs a predicted word with a float32 count.
type FloatWordCount struct {
	Word  Word
	Count float32
}

// FloatLmState is a discounted, order-homogeneous count record. Invariant:
// Total ≈ Discount + Σ Counts[i].Count, to within 1e-4·|Total| (spec §3).
type FloatLmState struct {
	History  []Word
	Total    float32
	Discount float32
	Counts   []FloatWordCount
}

// ComputeTotal recomputes Total from Discount and Counts. Used by callers
// (e.g. perturb-float-counts) that mutate Counts and need Total kept
// consistent, mirroring FloatLmState::ComputeTotal in the reference
// implementation.
func (s *FloatLmState) ComputeTotal() {
	total := s.Discount
	for _, wc := range s.Counts {
		total += wc.Count
	}
	s.Total = total
}

// WordGeneralCount pairs a predicted word with a Count.
type WordGeneralCount struct {
	Word  Word
	Count Count
}

// GeneralLmState is the top-k-aware count record produced by weighted
// merging of multiple sources (spec §3).
type GeneralLmState struct {
	History  []Word
	Discount float32
	Counts   []WordGeneralCount
}

// NullLmState records that a given reversed history exists as a history
// state somewhere in the model, without any count information. Used by
// pruning to mark protected n-grams (spec §3).
type NullLmState struct {
	History   []Word
	Predicted []Word
}

// FloatLmStateDerivs is the "body-only" derivative counterpart of
// FloatLmState: same shape, but History is never populated on disk (the
// caller supplies it out of band, since derivative streams are always
// read/written in lock-step with the record stream they differentiate).
// It never carries a total derivative: TotalDeriv is distributed into
// DiscountDeriv and CountDerivs at Flush time, per spec §4.G's "lazy total
// gradient" invariant, and is zeroed immediately afterward.
type FloatLmStateDerivs struct {
	TotalDeriv    float32
	DiscountDeriv float32
	CountDerivs   []float32 // parallel to the FloatLmState's Counts
}

// Flush distributes TotalDeriv (since Total = Discount + Σ Counts) into
// DiscountDeriv and every entry of CountDerivs, then zeroes TotalDeriv.
// This is what makes the on-disk derivative format canonical: it is called
// unconditionally before every write.
func (d *FloatLmStateDerivs) Flush() {
	d.DiscountDeriv += d.TotalDeriv
	for i := range d.CountDerivs {
		d.CountDerivs[i] += d.TotalDeriv
	}
	d.TotalDeriv = 0
}

// GeneralLmStateDerivs is the derivative counterpart of GeneralLmState.
type GeneralLmStateDerivs struct {
	DiscountDeriv float32
	CountDerivs   []Count // parallel to the GeneralLmState's Counts
}
