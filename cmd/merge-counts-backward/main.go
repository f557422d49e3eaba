// Command merge-counts-backward differentiates stage F's merge, per
// spec §4.F: it re-runs the forward merge to rebuild the per-history
// contribution ledger, then reads the merged stream's derivative file and
// splits it back across sources, printing one scalar weight-derivative
// line per integer source to stdout and writing a parallel
// GeneralLmStateDerivs stream per general source.
//
// Usage: merge-counts-backward derivs-in.bin source [source...]
// where each source is "int:<weight>:<path>" or
// "general:<path>:<derivs-out-path>".
package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/dngram/dngram/internal/cliargs"
	"github.com/dngram/dngram/merge"
	"github.com/dngram/dngram/ngram"
)

type generalSource struct {
	states    []*ngram.GeneralLmState
	byHistory map[string]int
	derivs    []*ngram.GeneralLmStateDerivs
	outPath   string
}

func historyKey(h []ngram.Word) string {
	buf := make([]byte, 0, 4*len(h))
	for _, w := range h {
		buf = append(buf, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	}
	return string(buf)
}

func main() {
	argv := os.Args[1:]
	if len(argv) < 2 {
		fmt.Fprintln(os.Stderr, "usage: merge-counts-backward derivs-in.bin source [source...]")
		os.Exit(2)
	}
	derivsInPath := argv[0]

	var sources []merge.WeightedSource
	var kinds []string // parallel to sources: "int" or "general"
	generals := make(map[int]*generalSource)

	for i, spec := range argv[1:] {
		parts := strings.SplitN(spec, ":", 3)
		switch parts[0] {
		case "int":
			if len(parts) != 3 {
				cliargs.Fatal("malformed int source %q, want int:<weight>:<path>", spec)
			}
			weight, err := strconv.ParseFloat(parts[1], 32)
			if err != nil {
				cliargs.Fatal("int source weight: %v", err)
			}
			f, err := os.Open(parts[2])
			if err != nil {
				cliargs.Fatal("%v", err)
			}
			states, err := ngram.ReadAllIntLmStates(f)
			f.Close()
			if err != nil {
				cliargs.Fatal("read %s: %v", parts[2], err)
			}
			sources = append(sources, merge.IntSource(states, float32(weight)))
			kinds = append(kinds, "int")
		case "general":
			if len(parts) != 3 {
				cliargs.Fatal("malformed general source %q, want general:<path>:<derivs-out-path>", spec)
			}
			f, err := os.Open(parts[1])
			if err != nil {
				cliargs.Fatal("%v", err)
			}
			states, err := ngram.ReadAllGeneralLmStates(f)
			f.Close()
			if err != nil {
				cliargs.Fatal("read %s: %v", parts[1], err)
			}
			gs := &generalSource{states: states, byHistory: make(map[string]int, len(states)), outPath: parts[2]}
			gs.derivs = make([]*ngram.GeneralLmStateDerivs, len(states))
			for j, s := range states {
				gs.byHistory[historyKey(s.History)] = j
				gs.derivs[j] = &ngram.GeneralLmStateDerivs{CountDerivs: make([]ngram.Count, len(s.Counts))}
			}
			sources = append(sources, merge.GeneralSource(states))
			kinds = append(kinds, "general")
			generals[i] = gs
		default:
			cliargs.Fatal("unknown source type %q in %q", parts[0], spec)
		}
	}

	merged, ledger, err := merge.MergeGeneral(sources)
	if err != nil {
		cliargs.Fatal("%v", err)
	}

	derivsIn := cliargs.MustOpen(derivsInPath)
	weightDerivs := make([]float32, len(sources))
	for i, m := range merged {
		d, err := ngram.ReadGeneralLmStateDerivs(derivsIn, len(m.Counts))
		if err != nil {
			cliargs.Fatal("read %s record %d: %v", derivsInPath, i, err)
		}
		grads := merge.MergeGeneralBackward(ledger[i], m, d.CountDerivs)
		for _, g := range grads {
			switch kinds[g.Source] {
			case "int":
				weightDerivs[g.Source] += g.WeightDeriv
			case "general":
				gs := generals[g.Source]
				pos, ok := gs.byHistory[historyKey(m.History)]
				if !ok {
					cliargs.Fatal("merge ledger references a history absent from general source %d", g.Source)
				}
				wordIdx := sort.Search(len(gs.states[pos].Counts), func(k int) bool { return gs.states[pos].Counts[k].Word >= g.Word })
				cur := &gs.derivs[pos].CountDerivs[wordIdx]
				cur.Total += g.RawDeriv.Total
				cur.Top1 += g.RawDeriv.Top1
				cur.Top2 += g.RawDeriv.Top2
				cur.Top3 += g.RawDeriv.Top3
			}
		}
	}
	derivsIn.Close()

	for i, k := range kinds {
		if k != "int" {
			continue
		}
		fmt.Printf("%d %g\n", i, weightDerivs[i])
	}

	for _, gs := range generals {
		out := cliargs.MustCreate(gs.outPath)
		for _, d := range gs.derivs {
			if err := d.WriteTo(out); err != nil {
				cliargs.Fatal("write %s: %v", gs.outPath, err)
			}
		}
		if err := out.Close(); err != nil {
			cliargs.Fatal("close %s: %v", gs.outPath, err)
		}
	}
}
