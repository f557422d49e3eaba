// Command discount-counts-1gram implements stage D: fixed-constant unigram
// discounting, producing the order-1 FloatLmState with an explicit count
// for every vocabulary word from </s> upward.
//
// Usage: discount-counts-1gram vocab-size d1 d2 d3 unk-fraction counts-in.bin discounted-out.bin
package main

import (
	"fmt"

	"github.com/dngram/dngram/discount"
	"github.com/dngram/dngram/internal/cliargs"
	"github.com/dngram/dngram/ngram"
)

func main() {
	args := cliargs.Require("vocab-size d1 d2 d3 unk-fraction counts-in discounted-out", 7)
	cfg := discount.UnigramConfig{
		VocabSize:   int32(args.Int(0)),
		D1:          args.Float32(1),
		D2:          args.Float32(2),
		D3:          args.Float32(3),
		UnkFraction: args.Float32(4),
	}
	countsInPath := args.String(5)
	outPath := args.String(6)

	in := cliargs.MustOpen(countsInPath)
	counts, err := ngram.ReadGeneralLmState(in)
	in.Close()
	if err != nil {
		cliargs.Fatal("read %s: %v", countsInPath, err)
	}
	m := make(map[ngram.Word]ngram.Count, len(counts.Counts))
	for _, wc := range counts.Counts {
		m[wc.Word] = wc.Count
	}

	out, err := discount.Unigram(m, cfg)
	if err != nil {
		cliargs.Fatal("%v", err)
	}

	outFile := cliargs.MustCreate(outPath)
	err = out.WriteTo(outFile)
	cerr := outFile.Close()
	if err != nil {
		cliargs.Fatal("write %s: %v", outPath, err)
	}
	if cerr != nil {
		cliargs.Fatal("close %s: %v", outPath, cerr)
	}
	fmt.Printf("%d %g\n", len(out.Counts), out.Total)
}
