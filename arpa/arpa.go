package arpa

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dngram/dngram/ngram"
)

// LoadVocab reads the "integer id -> token, one pair per line" vocabulary
// file described by spec §6, used to translate pre-ARPA's integer word ids
// back into text for the final ARPA file.
func LoadVocab(r io.Reader) (map[ngram.Word]string, error) {
	vocab := make(map[ngram.Word]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("arpa: malformed vocab line %q", line)
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("arpa: bad vocab id in %q: %w", line, err)
		}
		vocab[ngram.Word(id)] = fields[1]
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("arpa: read vocab: %w", err)
	}
	return vocab, nil
}

type ngramLine struct {
	words   []ngram.Word
	logProb float64
	hasBow  bool
	logBow  float64
}

// parsePreARPALine parses one line of the grammar spec §6 describes:
// "⟨order⟩ ⟨word1⟩..⟨wordN⟩ ⟨log10 prob⟩", optionally followed by a tab and
// a log10 backoff weight. A leading order of 0 marks a bookkeeping line
// (spec §6's "bookkeeping lines beginning with 0"): words followed by a
// log10 backoff weight only, no probability.
func parsePreARPALine(line string) (order int, words []ngram.Word, logProb float64, hasBow bool, logBow float64, err error) {
	fields := strings.Split(line, "\t")
	main := strings.Fields(fields[0])
	if len(main) < 2 {
		return 0, nil, 0, false, 0, fmt.Errorf("malformed pre-arpa line %q", line)
	}
	order, err = strconv.Atoi(main[0])
	if err != nil {
		return 0, nil, 0, false, 0, fmt.Errorf("bad order in %q: %w", line, err)
	}
	logProb, err = strconv.ParseFloat(main[len(main)-1], 64)
	if err != nil {
		return 0, nil, 0, false, 0, fmt.Errorf("bad log-prob in %q: %w", line, err)
	}
	wordTokens := main[1 : len(main)-1]
	words = make([]ngram.Word, len(wordTokens))
	for i, tok := range wordTokens {
		v, err := strconv.Atoi(tok)
		if err != nil {
			return 0, nil, 0, false, 0, fmt.Errorf("bad word id in %q: %w", line, err)
		}
		words[i] = ngram.Word(v)
	}
	if len(fields) > 1 {
		bow, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return 0, nil, 0, false, 0, fmt.Errorf("bad backoff in %q: %w", line, err)
		}
		hasBow, logBow = true, bow
	}
	return order, words, logProb, hasBow, logBow, nil
}

// WriteARPA reads a sorted pre-ARPA stream from r (the concatenated,
// string-sorted output of one or more WritePreARPA calls) and writes a
// standard ARPA-format language model to w, substituting vocab tokens for
// pre-ARPA's integer word ids. This is stage L's second pass, generalized
// from fixed-order trigram-only text parsing to arbitrary order and to
// reading this module's own pre-ARPA grammar rather than a foreign ARPA
// file.
//
// Because a string sort groups order-0 bookkeeping lines ahead of every
// real n-gram line, a caller feeding WriteARPA the whole sorted stream at
// once never needs those bookkeeping lines held past the point their
// matching n-gram line is written; this implementation still buffers them
// in a map for simplicity rather than trying to stream the merge.
func WriteARPA(r io.Reader, w io.Writer, vocab map[ngram.Word]string, maxOrder int) error {
	bows := make(map[string]float64)
	perOrder := make([][]ngramLine, maxOrder+1)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		order, words, logProb, hasBow, logBow, err := parsePreARPALine(line)
		if err != nil {
			return fmt.Errorf("arpa: %w", err)
		}
		if order == 0 {
			bows[wordsKey(words)] = logProb
			continue
		}
		if order < 1 || order > maxOrder {
			return fmt.Errorf("arpa: order %d out of range 1..%d", order, maxOrder)
		}
		perOrder[order] = append(perOrder[order], ngramLine{words: words, logProb: logProb, hasBow: hasBow, logBow: logBow})
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("arpa: read pre-arpa stream: %w", err)
	}

	fmt.Fprintln(w, `\data\`)
	for order := 1; order <= maxOrder; order++ {
		fmt.Fprintf(w, "ngram %d=%d\n", order, len(perOrder[order]))
	}
	fmt.Fprintln(w)

	for order := 1; order <= maxOrder; order++ {
		fmt.Fprintf(w, "\\%d-grams:\n", order)
		for _, nl := range perOrder[order] {
			hasBow, logBow := nl.hasBow, nl.logBow
			if !hasBow {
				if v, ok := bows[wordsKey(nl.words)]; ok {
					hasBow, logBow = true, v
				}
			}
			tokens, err := tokenize(nl.words, vocab)
			if err != nil {
				return err
			}
			if hasBow && order < maxOrder {
				fmt.Fprintf(w, "%.6f\t%s\t%.6f\n", nl.logProb, tokens, logBow)
			} else {
				fmt.Fprintf(w, "%.6f\t%s\n", nl.logProb, tokens)
			}
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, `\end\`)
	return nil
}

func tokenize(words []ngram.Word, vocab map[ngram.Word]string) (string, error) {
	toks := make([]string, len(words))
	for i, wd := range words {
		tok, ok := vocab[wd]
		if !ok {
			return "", fmt.Errorf("arpa: word id %d missing from vocab", wd)
		}
		toks[i] = tok
	}
	return strings.Join(toks, " "), nil
}
