// Command discount-counts-backward differentiates stage E.
//
// Usage: discount-counts-backward d1 d2 d3 d4 states-in.bin count-derivs-in.bin backoff-derivs-in.bin input-derivs-out.bin
// count-derivs-in.bin is a stream of FloatLmStateDerivs aligned 1:1 with
// the FloatLmState stream discount-counts produced from states-in.bin;
// backoff-derivs-in.bin is a stream of GeneralLmStateDerivs aligned with
// discount-counts' backoff-out.bin, one per flushed backoff history in the
// same order. Writes input-derivs-out.bin as a GeneralLmStateDerivs stream
// aligned with states-in.bin, and prints "d1_deriv d2_deriv d3_deriv
// d4_deriv" to stdout.
package main

import (
	"fmt"

	"github.com/dngram/dngram/discount"
	"github.com/dngram/dngram/internal/cliargs"
	"github.com/dngram/dngram/ngram"
)

func main() {
	args := cliargs.Require("d1 d2 d3 d4 states-in count-derivs-in backoff-derivs-in input-derivs-out", 8)
	cfg := discount.HigherOrderConfig{D1: args.Float32(0), D2: args.Float32(1), D3: args.Float32(2), D4: args.Float32(3)}
	statesInPath := args.String(4)
	countDerivsInPath := args.String(5)
	backoffDerivsInPath := args.String(6)
	outPath := args.String(7)

	in := cliargs.MustOpen(statesInPath)
	states, err := ngram.ReadAllGeneralLmStates(in)
	in.Close()
	if err != nil {
		cliargs.Fatal("read %s: %v", statesInPath, err)
	}

	countDerivsIn := cliargs.MustOpen(countDerivsInPath)
	discountDerivs := make([]float32, len(states))
	countDerivsByIndex := make([][]float32, len(states))
	for i, s := range states {
		d, err := ngram.ReadFloatLmStateDerivs(countDerivsIn, len(s.Counts))
		if err != nil {
			cliargs.Fatal("read %s record %d: %v", countDerivsInPath, i, err)
		}
		d.Flush()
		discountDerivs[i] = d.DiscountDeriv
		countDerivsByIndex[i] = d.CountDerivs
	}
	countDerivsIn.Close()

	backoffDerivsIn := cliargs.MustOpen(backoffDerivsInPath)
	out := cliargs.MustCreate(outPath)
	var cfgSum discount.HigherOrderDerivs

	err = discount.RunHigherOrderBackward(states, cfg,
		func(idx int, s *ngram.GeneralLmState) []float32 { return countDerivsByIndex[idx] },
		func(bh []ngram.Word, numWords int) ([]ngram.Count, error) {
			d, err := ngram.ReadGeneralLmStateDerivs(backoffDerivsIn, numWords)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", backoffDerivsInPath, err)
			}
			return d.CountDerivs, nil
		},
		func(idx int, s *ngram.GeneralLmState, inputDerivs []ngram.Count, cfgDerivs discount.HigherOrderDerivs) error {
			cfgSum.D1 += cfgDerivs.D1
			cfgSum.D2 += cfgDerivs.D2
			cfgSum.D3 += cfgDerivs.D3
			cfgSum.D4 += cfgDerivs.D4
			rec := ngram.GeneralLmStateDerivs{DiscountDeriv: discountDerivs[idx], CountDerivs: inputDerivs}
			return rec.WriteTo(out)
		},
	)
	backoffDerivsIn.Close()
	cerr := out.Close()
	if err != nil {
		cliargs.Fatal("%v", err)
	}
	if cerr != nil {
		cliargs.Fatal("close %s: %v", outPath, cerr)
	}
	fmt.Printf("%g %g %g %g\n", cfgSum.D1, cfgSum.D2, cfgSum.D3, cfgSum.D4)
}
