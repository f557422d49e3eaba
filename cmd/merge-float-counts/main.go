// Command merge-float-counts implements the duplicate-tolerant float-count
// merge of spec §4.F: several FloatLmState streams for the same order are
// combined, permitting identical histories from different inputs iff their
// count vectors are pointwise equal.
//
// Usage: merge-float-counts out.bin in [in...]
package main

import (
	"fmt"
	"os"

	"github.com/dngram/dngram/internal/cliargs"
	"github.com/dngram/dngram/merge"
	"github.com/dngram/dngram/ngram"
)

func main() {
	argv := os.Args[1:]
	if len(argv) < 2 {
		fmt.Fprintln(os.Stderr, "usage: merge-float-counts out.bin in [in...]")
		os.Exit(2)
	}
	outPath := argv[0]

	streams := make([][]*ngram.FloatLmState, len(argv)-1)
	for i, path := range argv[1:] {
		f, err := os.Open(path)
		if err != nil {
			cliargs.Fatal("%v", err)
		}
		states, err := ngram.ReadAllFloatLmStates(f)
		f.Close()
		if err != nil {
			cliargs.Fatal("read %s: %v", path, err)
		}
		streams[i] = states
	}

	merged, err := merge.MergeFloatCounts(streams)
	if err != nil {
		cliargs.Fatal("%v", err)
	}

	out := cliargs.MustCreate(outPath)
	err = ngram.WriteAllFloatLmStates(out, merged)
	cerr := out.Close()
	if err != nil {
		cliargs.Fatal("write %s: %v", outPath, err)
	}
	if cerr != nil {
		cliargs.Fatal("close %s: %v", outPath, cerr)
	}
	fmt.Printf("%d %d\n", len(streams), len(merged))
}
