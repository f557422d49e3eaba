// Command float-counts-remove-zeros drops zero-valued word entries from a
// FloatLmState stream, a structural cleanup that is idempotent by
// construction (spec §8, testable property 6).
//
// Usage: float-counts-remove-zeros in.bin out.bin
package main

import (
	"fmt"

	"github.com/dngram/dngram/floatstats"
	"github.com/dngram/dngram/internal/cliargs"
	"github.com/dngram/dngram/ngram"
)

func main() {
	args := cliargs.Require("in out", 2)
	in := cliargs.MustOpen(args.String(0))
	states, err := ngram.ReadAllFloatLmStates(in)
	in.Close()
	if err != nil {
		cliargs.Fatal("%v", err)
	}

	out := make([]*ngram.FloatLmState, len(states))
	for i, s := range states {
		out[i] = floatstats.RemoveZeros(s)
	}

	f := cliargs.MustCreate(args.String(1))
	err = ngram.WriteAllFloatLmStates(f, out)
	cerr := f.Close()
	if err != nil {
		cliargs.Fatal("%v", err)
	}
	if cerr != nil {
		cliargs.Fatal("%v", cerr)
	}
	fmt.Println(len(out))
}
