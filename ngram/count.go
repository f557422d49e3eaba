// Package ngram defines the record and count types shared by every stage
// of the differentiable n-gram estimation pipeline, and their canonical
// little-endian binary encodings.
package ngram

import "fmt"

// Word identifies a vocabulary entry. Word 1 is <s>, word 2 is </s>, word 3
// is <unk>; all other ids are ordinary vocabulary words.
type Word int32

const (
	BOS  Word = 1
	EOS  Word = 2
	UNK  Word = 3
)

// Count stores the sum of a bag of non-negative contributions ("total"),
// together with the three largest individual contributions ("top1" >=
// "top2" >= "top3"). It is the primitive that makes modified-Kneser-Ney
// style discounting meaningful when the contributions are weighted
// mixtures rather than raw integers.
type Count struct {
	Total float32
	Top1  float32
	Top2  float32
	Top3  float32
}

// NewCount returns a Count consisting of a single contribution f.
func NewCount(f float32) Count {
	return Count{Total: f, Top1: f}
}

// NewCountPieces returns a Count consisting of numPieces identical
// contributions of value scale. It is the bulk form used when N >= 1
// identical pieces are added at once, e.g. an integer-weighted count.
func NewCountPieces(scale float32, numPieces int32) Count {
	if numPieces <= 0 {
		return Count{}
	}
	c := Count{Total: scale * float32(numPieces)}
	if numPieces >= 1 {
		c.Top1 = scale
	}
	if numPieces >= 2 {
		c.Top2 = scale
	}
	if numPieces >= 3 {
		c.Top3 = scale
	}
	return c
}

// Check verifies the (top1 >= top2 >= top3 >= 0, total >= 0.99*(top1+top2+top3))
// invariant from spec §8. It must not be applied to Counts that represent
// derivatives, whose components carry no such ordering.
func (c Count) Check() error {
	if c.Top1 < c.Top2 {
		return fmt.Errorf("ngram: count invariant violated: top1=%g < top2=%g", c.Top1, c.Top2)
	}
	if c.Top2 < c.Top3 {
		return fmt.Errorf("ngram: count invariant violated: top2=%g < top3=%g", c.Top2, c.Top3)
	}
	if c.Top3 < 0 {
		return fmt.Errorf("ngram: count invariant violated: top3=%g < 0", c.Top3)
	}
	sum := c.Top1 + c.Top2 + c.Top3
	if c.Total < 0.99*sum {
		return fmt.Errorf("ngram: count invariant violated: total=%g < 0.99*(top1+top2+top3)=%g", c.Total, sum)
	}
	return nil
}

// Add adds another Count to c in place, maintaining the top1/top2/top3
// invariant by insertion sort into the top-3 slots while accumulating total.
func (c *Count) Add(other Count) {
	c.Total += other.Total
	var f, g float32
	if other.Top1 > c.Top1 {
		f = c.Top1
		g = c.Top2
		c.Top1 = other.Top1
		if f > other.Top2 {
			c.Top2 = f
			if g > other.Top2 {
				c.Top3 = g
			} else {
				c.Top3 = other.Top2
			}
		} else {
			c.Top2 = other.Top2
			if f > other.Top3 {
				c.Top3 = f
			} else {
				c.Top3 = other.Top3
			}
		}
	} else if other.Top1 > c.Top2 {
		f = c.Top2
		c.Top2 = other.Top1
		if other.Top2 > f {
			c.Top3 = other.Top2
		} else {
			c.Top3 = f
		}
	} else if other.Top1 > c.Top3 {
		c.Top3 = other.Top1
	}
}

// AddFloat adds a single non-negative contribution f, equivalent to
// c.Add(NewCount(f)) but without allocating an intermediate Count.
func (c *Count) AddFloat(f float32) {
	c.Total += f
	if f > c.Top1 {
		c.Top1, f = f, c.Top1
	}
	if f > c.Top2 {
		c.Top2, f = f, c.Top2
	}
	if f > c.Top3 {
		c.Top3 = f
	}
}

// AddPieces adds numPieces identical contributions of value scale.
func (c *Count) AddPieces(scale float32, numPieces int32) {
	if numPieces == 1 {
		c.AddFloat(scale)
		return
	}
	if numPieces <= 0 {
		return
	}
	c.Total += float32(numPieces) * scale
	if scale >= c.Top1 {
		if numPieces > 2 {
			c.Top3 = scale
		} else {
			c.Top3 = c.Top1
		}
		c.Top1 = scale
		c.Top2 = scale
	} else if scale >= c.Top2 {
		c.Top2 = scale
		c.Top3 = scale
	} else if scale >= c.Top3 {
		c.Top3 = scale
	}
}

// AddBackward is the reverse-mode differentiation counterpart of Add.
// thisDeriv holds ∂L/∂(c after Add), i.e. the derivative w.r.t. the sum;
// AddBackward propagates it into otherDeriv (accumulating) and, to avoid
// double-counting ties, zeroes out whichever of thisDeriv's top1/top2/top3
// slots gets consumed by the *first* structural match. This tie-breaking
// policy is a documented sub-gradient choice, not a bug: see spec §9.
func (c Count) AddBackward(other Count, thisDeriv, otherDeriv *Count) {
	otherDeriv.Total += thisDeriv.Total
	c.addBackwardInternal(other.Top1, thisDeriv, &otherDeriv.Top1)
	c.addBackwardInternal(other.Top2, thisDeriv, &otherDeriv.Top2)
	c.addBackwardInternal(other.Top3, thisDeriv, &otherDeriv.Top3)
}

// AddFloatBackward is the reverse-mode counterpart of AddFloat.
func (c Count) AddFloatBackward(f float32, thisDeriv *Count, fDeriv *float32) {
	*fDeriv += thisDeriv.Total
	c.addBackwardInternal(f, thisDeriv, fDeriv)
}

func (c Count) addBackwardInternal(f float32, thisDeriv *Count, fDeriv *float32) {
	switch {
	case f == c.Top1 && thisDeriv.Top1 != 0:
		*fDeriv += thisDeriv.Top1
		thisDeriv.Top1 = 0
	case f == c.Top2 && thisDeriv.Top2 != 0:
		*fDeriv += thisDeriv.Top2
		thisDeriv.Top2 = 0
	case f == c.Top3 && thisDeriv.Top3 != 0:
		*fDeriv += thisDeriv.Top3
		thisDeriv.Top3 = 0
	}
}

// DotProduct returns total*other.total + top1*other.top1 + top2*other.top2 +
// top3*other.top3. This is the inner product that makes Count a vector
// space, used by the finite-difference / gradient-check machinery.
func (c Count) DotProduct(other Count) float32 {
	return c.Total*other.Total + c.Top1*other.Top1 + c.Top2*other.Top2 + c.Top3*other.Top3
}

func (c Count) String() string {
	return fmt.Sprintf("(%g,%g,%g,%g)", c.Total, c.Top1, c.Top2, c.Top3)
}
