// Command discount-counts-1gram-backward differentiates stage D.
//
// Usage: discount-counts-1gram-backward vocab-size d1 d2 d3 unk-fraction counts-in.bin count-derivs-in.bin input-derivs-out.bin
// count-derivs-in.bin is a FloatLmStateDerivs record aligned with the
// FloatLmState discount-counts-1gram produced from counts-in.bin.
// Prints "d1_deriv d2_deriv d3_deriv unk_fraction_deriv" to stdout.
package main

import (
	"fmt"

	"github.com/dngram/dngram/discount"
	"github.com/dngram/dngram/internal/cliargs"
	"github.com/dngram/dngram/ngram"
)

func main() {
	args := cliargs.Require("vocab-size d1 d2 d3 unk-fraction counts-in count-derivs-in input-derivs-out", 8)
	vocabSize := int32(args.Int(0))
	cfg := discount.UnigramConfig{
		VocabSize:   vocabSize,
		D1:          args.Float32(1),
		D2:          args.Float32(2),
		D3:          args.Float32(3),
		UnkFraction: args.Float32(4),
	}
	countsInPath := args.String(5)
	countDerivsInPath := args.String(6)
	outPath := args.String(7)

	in := cliargs.MustOpen(countsInPath)
	counts, err := ngram.ReadGeneralLmState(in)
	in.Close()
	if err != nil {
		cliargs.Fatal("read %s: %v", countsInPath, err)
	}
	m := make(map[ngram.Word]ngram.Count, len(counts.Counts))
	for _, wc := range counts.Counts {
		m[wc.Word] = wc.Count
	}

	wantLen := int(vocabSize) - 1
	dIn := cliargs.MustOpen(countDerivsInPath)
	countDerivs, err := ngram.ReadFloatLmStateDerivs(dIn, wantLen)
	dIn.Close()
	if err != nil {
		cliargs.Fatal("read %s: %v", countDerivsInPath, err)
	}
	countDerivs.Flush()

	grads, cfgDerivs, err := discount.UnigramBackward(m, cfg, countDerivs.CountDerivs)
	if err != nil {
		cliargs.Fatal("%v", err)
	}

	out := ngram.GeneralLmStateDerivs{CountDerivs: make([]ngram.Count, len(counts.Counts))}
	for i, wc := range counts.Counts {
		out.CountDerivs[i] = grads[wc.Word]
	}

	outFile := cliargs.MustCreate(outPath)
	err = out.WriteTo(outFile)
	cerr := outFile.Close()
	if err != nil {
		cliargs.Fatal("write %s: %v", outPath, err)
	}
	if cerr != nil {
		cliargs.Fatal("close %s: %v", outPath, cerr)
	}
	fmt.Printf("%g %g %g %g\n", cfgDerivs.D1, cfgDerivs.D2, cfgDerivs.D3, cfgDerivs.UnkFraction)
}
