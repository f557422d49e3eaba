// Package arpa implements stage L: converting a fully estimated set of
// float-counts into ARPA-format text, via an intermediate "pre-ARPA" line
// format that a plain string sort regroups into correct ARPA block order,
// per spec §4.L.
package arpa

import (
	"strconv"
	"strings"

	"github.com/dngram/dngram/ngram"
)

// bosLogProb is the conventional log10 probability assigned to <s>, which
// never appears as a predicted word in training data and so has no count
// of its own to estimate a probability from.
const bosLogProb = -99.0

// wordsKey renders a chronological word sequence the same way on both the
// writing and reading side of the pre-ARPA format, so a bookkeeping line's
// word field can be matched byte-for-byte against its n-gram line's.
func wordsKey(words []ngram.Word) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = strconv.Itoa(int(w))
	}
	return strings.Join(parts, " ")
}

// chronological turns a reversed-history + predicted-word pair into the
// left-to-right word sequence ARPA text expects.
func chronological(history []ngram.Word, word ngram.Word) []ngram.Word {
	seq := make([]ngram.Word, len(history)+1)
	for i, h := range history {
		seq[len(history)-1-i] = h
	}
	seq[len(history)] = word
	return seq
}

// reversedWords returns a new slice holding a history in left-to-right order,
// the word sequence that history is itself an instance of once it is used
// as a context rather than as a lookup key.
func reversedWords(history []ngram.Word) []ngram.Word {
	seq := make([]ngram.Word, len(history))
	for i, h := range history {
		seq[len(history)-1-i] = h
	}
	return seq
}
