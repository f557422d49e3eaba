package discount

import "github.com/dngram/dngram/ngram"

// BackoffHistoryOf returns the (order-1)-word backoff history for a state's
// history: the history with its oldest word (the one furthest from the
// predicted word, i.e. the last index in the reversed-history convention of
// spec §3) dropped.
func BackoffHistoryOf(history []ngram.Word) []ngram.Word {
	if len(history) == 0 {
		return nil
	}
	return history[:len(history)-1]
}

// RunHigherOrder streams a sequence of GeneralLmStates, sorted by reversed
// history then predicted word so that every state sharing a backoff history
// arrives contiguously, and discounts each one. Every time the backoff
// history changes, the accumulated removed mass for the just-finished
// history is flushed and passed to emit.
//
// This is the streaming shape of stage E (spec §4.E): a single pass with a
// single open backoffBuilder, exactly mirroring how the reference
// discounting stage holds one discount_builder_ open across a run of same-
// backoff-history input records.
func RunHigherOrder(states []*ngram.GeneralLmState, cfg HigherOrderConfig, emitDiscounted func(*ngram.FloatLmState) error, emitBackoff func(*ngram.GeneralLmState) error) error {
	var cur *backoffBuilder
	flush := func() error {
		if g := cur.flush(); g != nil {
			return emitBackoff(g)
		}
		return nil
	}
	for _, s := range states {
		bh := BackoffHistoryOf(s.History)
		if cur == nil || !historyEqual(cur.history, bh) {
			if err := flush(); err != nil {
				return err
			}
			cur = newBackoffBuilder(bh)
		}
		out, err := HigherOrder(s, cfg, cur)
		if err != nil {
			return err
		}
		if err := emitDiscounted(out); err != nil {
			return err
		}
	}
	return flush()
}

func historyEqual(a, b []ngram.Word) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
