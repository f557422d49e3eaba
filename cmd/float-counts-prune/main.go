// Command float-counts-prune implements stage I: Stolcke-style entropy
// pruning of a trained model, processed from the highest order down so
// that each order's shadowed-exclusion set reflects the already-pruned
// order above it.
//
// Usage: float-counts-prune max-order model-prefix protected-in.bin threshold out-prefix
package main

import (
	"fmt"

	"github.com/dngram/dngram/internal/cliargs"
	"github.com/dngram/dngram/internal/modelio"
	"github.com/dngram/dngram/ngram"
	"github.com/dngram/dngram/prune"
)

func historyKey(h []ngram.Word) string {
	buf := make([]byte, 0, 4*len(h))
	for _, w := range h {
		buf = append(buf, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	}
	return string(buf)
}

func main() {
	args := cliargs.Require("max-order model-prefix protected-in threshold out-prefix", 5)
	maxOrder := args.Int(0)
	modelPrefix := args.String(1)
	protectedPath := args.String(2)
	threshold := args.Float32(3)
	outPrefix := args.String(4)

	byOrder, err := modelio.ReadByOrder(modelPrefix, maxOrder)
	if err != nil {
		cliargs.Fatal("%v", err)
	}

	protIn := cliargs.MustOpen(protectedPath)
	marks, err := ngram.ReadAllNullLmStates(protIn)
	protIn.Close()
	if err != nil {
		cliargs.Fatal("read %s: %v", protectedPath, err)
	}
	protectedSet := prune.BuildProtected(marks)

	var totalPruned int
	var totalGain float32

	for order := maxOrder; order >= 1; order-- {
		var shadowed map[string]map[ngram.Word]bool
		if order+1 <= maxOrder {
			shadowed = prune.BuildShadowed(byOrder[order+1])
		}
		excl := prune.NewExclusionSets(shadowed, protectedSet)

		backoffByHistory := make(map[string]*ngram.FloatLmState, len(byOrder[order-1]))
		for _, b := range byOrder[order-1] {
			backoffByHistory[historyKey(b.History)] = b
		}

		for _, s := range byOrder[order] {
			backoff, ok := backoffByHistory[historyKey(s.History[:len(s.History)-1])]
			if !ok {
				cliargs.Fatal("no backoff state for history %v at order %d", s.History, order)
			}
			res := prune.ApplyPruning(s, backoff, excl, threshold)
			totalPruned += len(res.Pruned)
			totalGain += res.NewGain
		}
	}

	if err := modelio.WriteByOrder(outPrefix, byOrder); err != nil {
		cliargs.Fatal("%v", err)
	}
	fmt.Printf("%d %g\n", totalPruned, totalGain)
}
