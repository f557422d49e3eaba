// Command perturb-float-counts implements stage K: it perturbs each count
// in a FloatLmState stream by a small signed relative delta and predicts
// the resulting change in objective from the paired derivative stream via
// an inner product, so a caller can validate the hand-derived gradients by
// comparing against a re-run of the evaluator.
//
// Usage: perturb-float-counts relative-scale seed in.bin derivs-in.bin out.bin
// Prints the total predicted ΔL to stdout.
package main

import (
	"fmt"
	"math/rand"

	"github.com/dngram/dngram/gradcheck"
	"github.com/dngram/dngram/internal/cliargs"
	"github.com/dngram/dngram/ngram"
)

func main() {
	args := cliargs.Require("relative-scale seed in derivs-in out", 5)
	relativeScale := args.Float32(0)
	seed := int64(args.Int(1))
	inPath := args.String(2)
	derivsInPath := args.String(3)
	outPath := args.String(4)

	in := cliargs.MustOpen(inPath)
	states, err := ngram.ReadAllFloatLmStates(in)
	in.Close()
	if err != nil {
		cliargs.Fatal("read %s: %v", inPath, err)
	}

	derivsIn := cliargs.MustOpen(derivsInPath)
	rng := rand.New(rand.NewSource(seed))
	out := cliargs.MustCreate(outPath)
	var perturbations []gradcheck.Perturbation
	for i, s := range states {
		d, err := ngram.ReadFloatLmStateDerivs(derivsIn, len(s.Counts))
		if err != nil {
			cliargs.Fatal("read %s record %d: %v", derivsInPath, i, err)
		}
		perturbed, p := gradcheck.PerturbState(s, d, relativeScale, rng)
		perturbations = append(perturbations, p)
		if err := perturbed.WriteTo(out); err != nil {
			cliargs.Fatal("write %s: %v", outPath, err)
		}
	}
	derivsIn.Close()
	if err := out.Close(); err != nil {
		cliargs.Fatal("close %s: %v", outPath, err)
	}

	fmt.Printf("%g\n", gradcheck.TotalPredictedDeltaL(perturbations))
}
