// Command histories-to-null-counts merges a sorted stream of single-word
// NullLmState marks sharing a history into one deduplicated record per
// history, completing the protected-set construction for stage I.
//
// Usage: histories-to-null-counts in.bin out.bin
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
	marks, err := ngram.ReadAllNullLmStates(in)
	in.Close()
	if err != nil {
		cliargs.Fatal("%v", err)
	}

	merged := prune.HistoriesToNullCounts(marks)

	out := cliargs.MustCreate(args.String(1))
	err = ngram.WriteAllNullLmStates(out, merged)
	cerr := out.Close()
	if err != nil {
		cliargs.Fatal("%v", err)
	}
	if cerr != nil {
		cliargs.Fatal("%v", cerr)
	}
	fmt.Println(len(merged))
}
