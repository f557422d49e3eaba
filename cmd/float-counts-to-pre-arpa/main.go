// Command float-counts-to-pre-arpa implements the first half of stage L: it
// converts a trained model into sort-friendly "pre-ARPA" text lines. Pipe
// the output through sort before feeding it to pre-arpa-to-arpa.
//
// Usage: float-counts-to-pre-arpa max-order model-prefix out.txt
package main

import (
	"fmt"

	"github.com/dngram/dngram/arpa"
	"github.com/dngram/dngram/internal/cliargs"
	"github.com/dngram/dngram/internal/modelio"
)

func main() {
	args := cliargs.Require("max-order model-prefix out", 3)
	maxOrder := args.Int(0)
	modelPrefix := args.String(1)
	outPath := args.String(2)

	m, byOrder, err := modelio.LoadModel(modelPrefix, maxOrder)
	if err != nil {
		cliargs.Fatal("%v", err)
	}

	out := cliargs.MustCreate(outPath)
	err = arpa.WritePreARPA(out, m, byOrder)
	cerr := out.Close()
	if err != nil {
		cliargs.Fatal("%v", err)
	}
	if cerr != nil {
		cliargs.Fatal("close %s: %v", outPath, cerr)
	}
	fmt.Println("ok")
}
