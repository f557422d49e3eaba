// Command get-text-counts implements stage A: it turns integerized training
// sentences into one raw IntLmState count stream per n-gram order.
package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dngram/dngram/countagg"
	"github.com/dngram/dngram/internal/cliargs"
	"github.com/dngram/dngram/ngram"
)

func main() {
	args := cliargs.Require("max-order sentences.txt out-prefix", 3)
	maxOrder := args.Int(0)
	sentPath := args.String(1)
	outPrefix := args.String(2)

	f := cliargs.MustOpen(sentPath)
	sentences, err := readSentences(f)
	f.Close()
	if err != nil {
		cliargs.Fatal("%v", err)
	}

	byOrder, err := countagg.Aggregate(sentences, maxOrder)
	if err != nil {
		cliargs.Fatal("%v", err)
	}

	for i, states := range byOrder {
		order := i + 1
		out := cliargs.MustCreate(fmt.Sprintf("%s.%d", outPrefix, order))
		err := ngram.WriteAllIntLmStates(out, states)
		cerr := out.Close()
		if err != nil {
			cliargs.Fatal("write order %d: %v", order, err)
		}
		if cerr != nil {
			cliargs.Fatal("close order %d output: %v", order, cerr)
		}
	}
	fmt.Printf("%d %d\n", len(sentences), maxOrder)
}

// readSentences parses one integerized sentence per line, whitespace
// separated word ids, per spec §6's text-format convention for this stage.
func readSentences(r io.Reader) ([]countagg.Sentence, error) {
	scanner := bufio.NewScanner(r)
	var out []countagg.Sentence
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		fields := strings.Fields(text)
		sent := make(countagg.Sentence, len(fields))
		for i, tok := range fields {
			v, err := strconv.Atoi(tok)
			if err != nil {
				return nil, fmt.Errorf("get-text-counts: line %d: %w", line, err)
			}
			sent[i] = ngram.Word(v)
		}
		out = append(out, sent)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
