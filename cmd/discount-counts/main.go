// Command discount-counts implements stage E: parameterized higher-order
// discounting, streaming a sorted GeneralLmState input into a discounted
// FloatLmState output plus a backoff GeneralLmState stream for the next
// lower order.
//
// Usage: discount-counts d1 d2 d3 d4 states-in.bin discounted-out.bin backoff-out.bin
package main

import (
	"fmt"

	"github.com/dngram/dngram/discount"
	"github.com/dngram/dngram/internal/cliargs"
	"github.com/dngram/dngram/ngram"
)

func main() {
	args := cliargs.Require("d1 d2 d3 d4 states-in discounted-out backoff-out", 7)
	cfg := discount.HigherOrderConfig{D1: args.Float32(0), D2: args.Float32(1), D3: args.Float32(2), D4: args.Float32(3)}
	statesInPath := args.String(4)
	discountedOutPath := args.String(5)
	backoffOutPath := args.String(6)

	in := cliargs.MustOpen(statesInPath)
	states, err := ngram.ReadAllGeneralLmStates(in)
	in.Close()
	if err != nil {
		cliargs.Fatal("read %s: %v", statesInPath, err)
	}

	discountedOut := cliargs.MustCreate(discountedOutPath)
	backoffOut := cliargs.MustCreate(backoffOutPath)
	var nDiscounted, nBackoff int
	err = discount.RunHigherOrder(states, cfg,
		func(f *ngram.FloatLmState) error { nDiscounted++; return f.WriteTo(discountedOut) },
		func(g *ngram.GeneralLmState) error { nBackoff++; return g.WriteTo(backoffOut) },
	)
	cerr1 := discountedOut.Close()
	cerr2 := backoffOut.Close()
	if err != nil {
		cliargs.Fatal("%v", err)
	}
	if cerr1 != nil {
		cliargs.Fatal("close %s: %v", discountedOutPath, cerr1)
	}
	if cerr2 != nil {
		cliargs.Fatal("close %s: %v", backoffOutPath, cerr2)
	}
	fmt.Printf("%d %d\n", nDiscounted, nBackoff)
}
