package arpa

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/dngram/dngram/evaluate"
	"github.com/dngram/dngram/ngram"
)

func log10(x float32) float64 {
	if x <= 0 {
		return bosLogProb
	}
	return math.Log10(float64(x))
}

func writeNGramLine(w io.Writer, order int, seq []ngram.Word, logProb float64) error {
	_, err := fmt.Fprintf(w, "%d %s %s\n", order, wordsKey(seq), strconv.FormatFloat(logProb, 'f', 6, 64))
	return err
}

func writeBackoffLine(w io.Writer, seq []ngram.Word, logBow float64) error {
	_, err := fmt.Fprintf(w, "0 %s %s\n", wordsKey(seq), strconv.FormatFloat(logBow, 'f', 6, 64))
	return err
}

// WritePreARPA emits stage L's first pass over a fully estimated,
// interpolation-evaluated model: one n-gram line per (history, word) pair
// at every order, plus one "0"-tagged backoff bookkeeping line per history
// that is itself used as a context by the next higher order. m must be
// built from the same byOrder streams (NewModel(byOrder)) so evaluation
// sees the whole backoff chain, not just the order being emitted.
//
// The lines this writes are not in ARPA block order on their own; the
// caller is expected to concatenate the output of however many calls it
// makes and sort the result as plain text. Sorting groups lines by the
// leading order field, restoring \1-grams:, \2-grams:, ... block order, and
// since '0' sorts before any digit 1-9, every backoff bookkeeping line lands
// ahead of all real n-gram lines. WriteARPA (pre-arpa-to-arpa) buffers the
// whole sorted stream and looks each bookkeeping line up by its word
// sequence when it writes the matching n-gram line.
func WritePreARPA(w io.Writer, m *evaluate.Model, byOrder [][]*ngram.FloatLmState) error {
	if err := writeNGramLine(w, 1, []ngram.Word{ngram.BOS}, bosLogProb); err != nil {
		return fmt.Errorf("arpa: write <s> line: %w", err)
	}

	for h, states := range byOrder {
		order := h + 1
		for _, s := range states {
			for _, wc := range s.Counts {
				seq := chronological(s.History, wc.Word)
				trace, err := evaluate.EvaluateWord(m, s.History, wc.Word)
				if err != nil {
					return fmt.Errorf("arpa: evaluate history %v word %d: %w", s.History, wc.Word, err)
				}
				if err := writeNGramLine(w, order, seq, log10(trace.Prob)); err != nil {
					return fmt.Errorf("arpa: write n-gram line: %w", err)
				}
			}
			if len(s.History) > 0 && s.Total > 0 {
				seq := reversedWords(s.History)
				if err := writeBackoffLine(w, seq, log10(s.Discount/s.Total)); err != nil {
					return fmt.Errorf("arpa: write backoff line: %w", err)
				}
			}
		}
	}
	return nil
}
