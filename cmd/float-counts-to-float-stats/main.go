// Command float-counts-to-float-stats implements stage H: it decomposes a
// training count stream's probability mass across every order backoff
// touched, producing the expected-count table reestimate's E-step consumes.
//
// Usage: float-counts-to-float-stats max-order model-prefix training-counts-in.bin stats-out-prefix
package main

import (
	"fmt"

	"github.com/dngram/dngram/floatstats"
	"github.com/dngram/dngram/internal/cliargs"
	"github.com/dngram/dngram/internal/modelio"
	"github.com/dngram/dngram/ngram"
)

func main() {
	args := cliargs.Require("max-order model-prefix training-counts-in stats-out-prefix", 4)
	maxOrder := args.Int(0)
	modelPrefix := args.String(1)
	trainingPath := args.String(2)
	statsOutPrefix := args.String(3)

	m, _, err := modelio.LoadModel(modelPrefix, maxOrder)
	if err != nil {
		cliargs.Fatal("%v", err)
	}

	trainingIn := cliargs.MustOpen(trainingPath)
	training, err := ngram.ReadAllIntLmStates(trainingIn)
	trainingIn.Close()
	if err != nil {
		cliargs.Fatal("read %s: %v", trainingPath, err)
	}

	stats, err := floatstats.Generate(m, training)
	if err != nil {
		cliargs.Fatal("%v", err)
	}
	if err := modelio.WriteByOrder(statsOutPrefix, stats); err != nil {
		cliargs.Fatal("%v", err)
	}

	var total int
	for _, order := range stats {
		total += len(order)
	}
	fmt.Printf("%d %d\n", len(stats)-1, total)
}
