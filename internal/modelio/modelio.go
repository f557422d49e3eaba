// Package modelio holds the on-disk convention shared by every stage
// binary that consumes or produces a full trained model: one FloatLmState
// stream per order, named prefix.0 (the unigram) through prefix.N. This is
// glue between the codec and evaluate packages and the filesystem, kept
// out of both so neither has to know about file naming.
package modelio

import (
	"fmt"
	"os"

	"github.com/dngram/dngram/evaluate"
	"github.com/dngram/dngram/ngram"
)

// ReadByOrder reads prefix.0 through prefix.maxOrder into one FloatLmState
// slice per order.
func ReadByOrder(prefix string, maxOrder int) ([][]*ngram.FloatLmState, error) {
	byOrder := make([][]*ngram.FloatLmState, maxOrder+1)
	for order := 0; order <= maxOrder; order++ {
		path := fmt.Sprintf("%s.%d", prefix, order)
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("modelio: open %s: %w", path, err)
		}
		states, err := ngram.ReadAllFloatLmStates(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("modelio: read %s: %w", path, err)
		}
		byOrder[order] = states
	}
	return byOrder, nil
}

// LoadModel reads a full model and indexes it with evaluate.NewModel.
func LoadModel(prefix string, maxOrder int) (*evaluate.Model, [][]*ngram.FloatLmState, error) {
	byOrder, err := ReadByOrder(prefix, maxOrder)
	if err != nil {
		return nil, nil, err
	}
	m, err := evaluate.NewModel(byOrder)
	if err != nil {
		return nil, nil, err
	}
	return m, byOrder, nil
}

// WriteByOrder writes one file per order, named as ReadByOrder expects.
func WriteByOrder(prefix string, byOrder [][]*ngram.FloatLmState) error {
	for order, states := range byOrder {
		path := fmt.Sprintf("%s.%d", prefix, order)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("modelio: create %s: %w", path, err)
		}
		err = ngram.WriteAllFloatLmStates(f, states)
		cerr := f.Close()
		if err != nil {
			return fmt.Errorf("modelio: write %s: %w", path, err)
		}
		if cerr != nil {
			return fmt.Errorf("modelio: close %s: %w", path, cerr)
		}
	}
	return nil
}
