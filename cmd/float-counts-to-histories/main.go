// Command float-counts-to-histories implements the first half of stage I's
// protected-set construction: it turns a FloatLmState stream into single-
// word NullLmState marks recording that a history-state starting with each
// word exists in the current model. The output is meant to be piped
// through sort and then histories-to-null-counts.
//
// Usage: float-counts-to-histories in.bin out.bin
package main

import (
	"fmt"

	"github.com/dngram/dngram/internal/cliargs"
	"github.com/dngram/dngram/ngram"
	"github.com/dngram/dngram/prune"
)

func main() {
	args := cliargs.Require("in out", 2)
	in := cliargs.MustOpen(args.String(0))
	states, err := ngram.ReadAllFloatLmStates(in)
	in.Close()
	if err != nil {
		cliargs.Fatal("%v", err)
	}

	marks := prune.FloatCountsToHistories(states)

	out := cliargs.MustCreate(args.String(1))
	err = ngram.WriteAllNullLmStates(out, marks)
	cerr := out.Close()
	if err != nil {
		cliargs.Fatal("%v", err)
	}
	if cerr != nil {
		cliargs.Fatal("%v", cerr)
	}
	fmt.Println(len(marks))
}
