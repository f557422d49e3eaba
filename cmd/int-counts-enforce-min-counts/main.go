// Command int-counts-enforce-min-counts implements stage B: it enforces,
// for every order from 3 up to max-order and across every data source at
// once, the weighted min-count rule of countagg.EnforceMinCounts, folding
// sub-threshold word counts down into the matching lower-order record and
// recording the discounted amount on the record it was removed from.
//
// Each data source's per-order IntLmState streams live in files named
// "<prefix>.<order>" for order 1..max-order, the same naming get-text-counts
// uses for its per-order output files.
//
// Usage: int-counts-enforce-min-counts max-order min-counts source-in-prefixes out-prefixes
//
//	max-order            highest n-gram order present in the input streams
//	min-counts           comma-separated list of length max-order-2: the
//	                     min-count for order 3, order 4, ..., max-order,
//	                     applied identically to every data source
//	source-in-prefixes   comma-separated list of input file prefixes, one
//	                     per data source
//	out-prefixes         comma-separated list of output file prefixes, one
//	                     per data source, in the same order
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dngram/dngram/countagg"
	"github.com/dngram/dngram/internal/cliargs"
	"github.com/dngram/dngram/ngram"
)

func main() {
	argv := os.Args[1:]
	if len(argv) != 4 {
		fmt.Fprintln(os.Stderr, "usage: int-counts-enforce-min-counts max-order min-counts source-in-prefixes out-prefixes")
		os.Exit(2)
	}
	maxOrder, err := strconv.Atoi(argv[0])
	if err != nil || maxOrder < 3 {
		cliargs.Fatal("bad max-order %q: must be an integer >= 3", argv[0])
	}
	minCounts, err := parseMinCounts(argv[1], maxOrder)
	if err != nil {
		cliargs.Fatal("%v", err)
	}
	inPrefixes := strings.Split(argv[2], ",")
	outPrefixes := strings.Split(argv[3], ",")
	if len(inPrefixes) != len(outPrefixes) {
		cliargs.Fatal("source-in-prefixes and out-prefixes must list the same number of data sources")
	}

	sources := make([]countagg.MinCountSource, len(inPrefixes))
	for i, prefix := range inPrefixes {
		states, err := readByOrder(prefix, maxOrder)
		if err != nil {
			cliargs.Fatal("%v", err)
		}
		sources[i] = countagg.MinCountSource{MinCounts: minCounts, States: states}
	}

	if err := countagg.EnforceMinCounts(sources, maxOrder); err != nil {
		cliargs.Fatal("%v", err)
	}

	var totalKept, totalDiscount int
	for i, prefix := range outPrefixes {
		if err := writeByOrder(prefix, maxOrder, sources[i].States); err != nil {
			cliargs.Fatal("%v", err)
		}
		for _, states := range sources[i].States {
			for _, s := range states {
				totalKept++
				totalDiscount += int(s.Discount)
			}
		}
	}
	fmt.Printf("%d %d\n", totalKept, totalDiscount)
}

func parseMinCounts(spec string, maxOrder int) ([]int32, error) {
	parts := strings.Split(spec, ",")
	if len(parts) != maxOrder-2 {
		return nil, fmt.Errorf("min-counts %q: expected %d values (orders 3..%d), got %d", spec, maxOrder-2, maxOrder, len(parts))
	}
	out := make([]int32, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("min-counts %q: bad value %q: must be an integer >= 1", spec, p)
		}
		out[i] = int32(v)
	}
	return out, nil
}

func orderFile(prefix string, order int) string {
	return fmt.Sprintf("%s.%d", prefix, order)
}

func readByOrder(prefix string, maxOrder int) ([][]*ngram.IntLmState, error) {
	out := make([][]*ngram.IntLmState, maxOrder)
	for order := 1; order <= maxOrder; order++ {
		path := orderFile(prefix, order)
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		states, err := ngram.ReadAllIntLmStates(f)
		cerr := f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if cerr != nil {
			return nil, fmt.Errorf("close %s: %w", path, cerr)
		}
		out[order-1] = states
	}
	return out, nil
}

func writeByOrder(prefix string, maxOrder int, byOrder [][]*ngram.IntLmState) error {
	for order := 1; order <= maxOrder; order++ {
		path := orderFile(prefix, order)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		err = ngram.WriteAllIntLmStates(f, byOrder[order-1])
		cerr := f.Close()
		if err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		if cerr != nil {
			return fmt.Errorf("close %s: %w", path, cerr)
		}
	}
	return nil
}
