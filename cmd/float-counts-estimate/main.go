// Command float-counts-estimate implements stage J: a single E-M step that
// refits a pruned model's counts against the un-pruned model's expected
// sufficient statistics.
//
// Usage: float-counts-estimate max-order pruned-model-prefix stats-prefix out-prefix
package main

import (
	"fmt"

	"github.com/dngram/dngram/internal/cliargs"
	"github.com/dngram/dngram/internal/modelio"
	"github.com/dngram/dngram/reestimate"
)

func main() {
	args := cliargs.Require("max-order pruned-model-prefix stats-prefix out-prefix", 4)
	maxOrder := args.Int(0)
	prunedPrefix := args.String(1)
	statsPrefix := args.String(2)
	outPrefix := args.String(3)

	mPruned, _, err := modelio.LoadModel(prunedPrefix, maxOrder)
	if err != nil {
		cliargs.Fatal("%v", err)
	}
	stats, err := modelio.ReadByOrder(statsPrefix, maxOrder)
	if err != nil {
		cliargs.Fatal("%v", err)
	}

	res, err := reestimate.Reestimate(mPruned, stats)
	if err != nil {
		cliargs.Fatal("%v", err)
	}
	if err := modelio.WriteByOrder(outPrefix, res.States); err != nil {
		cliargs.Fatal("%v", err)
	}
	fmt.Printf("%g\n", res.ObjectiveGain)
}
