// Command pre-arpa-to-arpa implements the second half of stage L: it turns
// the sorted "pre-ARPA" stream into a real ARPA model file, merging backoff
// bookkeeping lines with their corresponding n-gram lines.
//
// Usage: pre-arpa-to-arpa max-order vocab-in.txt pre-arpa-sorted-in.txt out.arpa
package main

import (
	"fmt"

	"github.com/dngram/dngram/arpa"
	"github.com/dngram/dngram/internal/cliargs"
)

func main() {
	args := cliargs.Require("max-order vocab-in pre-arpa-sorted-in out", 4)
	maxOrder := args.Int(0)
	vocabPath := args.String(1)
	inPath := args.String(2)
	outPath := args.String(3)

	vocabFile := cliargs.MustOpen(vocabPath)
	vocab, err := arpa.LoadVocab(vocabFile)
	vocabFile.Close()
	if err != nil {
		cliargs.Fatal("load vocab %s: %v", vocabPath, err)
	}

	in := cliargs.MustOpen(inPath)
	out := cliargs.MustCreate(outPath)
	err = arpa.WriteARPA(in, out, vocab, maxOrder)
	cerr1 := in.Close()
	cerr2 := out.Close()
	if err != nil {
		cliargs.Fatal("%v", err)
	}
	if cerr1 != nil {
		cliargs.Fatal("close %s: %v", inPath, cerr1)
	}
	if cerr2 != nil {
		cliargs.Fatal("close %s: %v", outPath, cerr2)
	}
	fmt.Println("ok")
}
