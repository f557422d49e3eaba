// Command merge-counts implements stage F: a k-way merge of weighted,
// sorted IntLmState and/or GeneralLmState streams into one GeneralLmState
// stream, per spec §4.F.
//
// Usage: merge-counts out.bin source [source...]
// where each source is either "int:<weight>:<path>" (a raw integer count
// stream scaled by weight) or "general:<path>" (an already-general,
// unweighted "derivative-sink" stream).
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dngram/dngram/internal/cliargs"
	"github.com/dngram/dngram/merge"
	"github.com/dngram/dngram/ngram"
)

func main() {
	argv := os.Args[1:]
	if len(argv) < 2 {
		fmt.Fprintln(os.Stderr, "usage: merge-counts out.bin source [source...]")
		os.Exit(2)
	}
	outPath := argv[0]
	sources := make([]merge.WeightedSource, 0, len(argv)-1)
	for _, spec := range argv[1:] {
		src, err := parseSource(spec)
		if err != nil {
			cliargs.Fatal("%v", err)
		}
		sources = append(sources, src)
	}

	merged, _, err := merge.MergeGeneral(sources)
	if err != nil {
		cliargs.Fatal("%v", err)
	}

	out := cliargs.MustCreate(outPath)
	err = ngram.WriteAllGeneralLmStates(out, merged)
	cerr := out.Close()
	if err != nil {
		cliargs.Fatal("write %s: %v", outPath, err)
	}
	if cerr != nil {
		cliargs.Fatal("close %s: %v", outPath, cerr)
	}
	fmt.Printf("%d %d\n", len(sources), len(merged))
}

func parseSource(spec string) (merge.WeightedSource, error) {
	parts := strings.SplitN(spec, ":", 3)
	switch parts[0] {
	case "int":
		if len(parts) != 3 {
			return merge.WeightedSource{}, fmt.Errorf("merge-counts: malformed int source %q, want int:<weight>:<path>", spec)
		}
		weight, err := strconv.ParseFloat(parts[1], 32)
		if err != nil {
			return merge.WeightedSource{}, fmt.Errorf("merge-counts: int source weight: %w", err)
		}
		f, err := os.Open(parts[2])
		if err != nil {
			return merge.WeightedSource{}, fmt.Errorf("merge-counts: %w", err)
		}
		defer f.Close()
		states, err := ngram.ReadAllIntLmStates(f)
		if err != nil {
			return merge.WeightedSource{}, fmt.Errorf("merge-counts: read %s: %w", parts[2], err)
		}
		return merge.IntSource(states, float32(weight)), nil
	case "general":
		if len(parts) != 2 {
			return merge.WeightedSource{}, fmt.Errorf("merge-counts: malformed general source %q, want general:<path>", spec)
		}
		f, err := os.Open(parts[1])
		if err != nil {
			return merge.WeightedSource{}, fmt.Errorf("merge-counts: %w", err)
		}
		defer f.Close()
		states, err := ngram.ReadAllGeneralLmStates(f)
		if err != nil {
			return merge.WeightedSource{}, fmt.Errorf("merge-counts: read %s: %w", parts[1], err)
		}
		return merge.GeneralSource(states), nil
	default:
		return merge.WeightedSource{}, fmt.Errorf("merge-counts: unknown source type %q in %q", parts[0], spec)
	}
}
