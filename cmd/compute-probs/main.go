// Command compute-probs implements stage G: backoff-with-interpolation
// evaluation of a dev corpus against a trained model, plus the reverse-mode
// pass that differentiates the total log-probability with respect to every
// float-count the model carries.
//
// Usage: compute-probs max-order model-prefix dev-in.bin derivs-out-prefix
// model-prefix.0 .. model-prefix.<max-order> are the model's per-order
// FloatLmState streams (modelio's convention); derivs-out-prefix.0 ..
// derivs-out-prefix.<max-order> receive the matching FloatLmStateDerivs
// streams. Prints "total-count total-logprob" to stdout.
package main

import (
	"fmt"
	"math"

	"github.com/dngram/dngram/evaluate"
	"github.com/dngram/dngram/internal/cliargs"
	"github.com/dngram/dngram/internal/modelio"
	"github.com/dngram/dngram/ngram"
)

func main() {
	args := cliargs.Require("max-order model-prefix dev-in derivs-out-prefix", 4)
	maxOrder := args.Int(0)
	modelPrefix := args.String(1)
	devPath := args.String(2)
	derivsOutPrefix := args.String(3)

	m, byOrder, err := modelio.LoadModel(modelPrefix, maxOrder)
	if err != nil {
		cliargs.Fatal("%v", err)
	}
	for _, order := range byOrder {
		for _, s := range order {
			sum := evaluate.CheckStateBackoffMass(s)
			if math.Abs(float64(sum-1)) > 1e-3 {
				cliargs.Fatal("state with history %v fails backoff-mass self-consistency: sum=%g", s.History, sum)
			}
		}
	}

	devIn := cliargs.MustOpen(devPath)
	dev, err := ngram.ReadAllIntLmStates(devIn)
	devIn.Close()
	if err != nil {
		cliargs.Fatal("read %s: %v", devPath, err)
	}

	acc := evaluate.NewDerivAccumulator(m)
	res, err := evaluate.EvaluateStream(m, dev, func(history []ngram.Word, trace *evaluate.WordTrace, count int32) error {
		evaluate.EvaluateWordBackward(trace, count, acc)
		return nil
	})
	if err != nil {
		cliargs.Fatal("%v", err)
	}

	derivsByOrder := make([][]*ngram.FloatLmStateDerivs, len(byOrder))
	for order, states := range byOrder {
		derivsByOrder[order] = make([]*ngram.FloatLmStateDerivs, len(states))
		for i, s := range states {
			d := acc.Get(order, s.History)
			if d == nil {
				d = &ngram.FloatLmStateDerivs{CountDerivs: make([]float32, len(s.Counts))}
			}
			d.Flush()
			derivsByOrder[order][i] = d
		}
	}

	for order, ds := range derivsByOrder {
		path := fmt.Sprintf("%s.%d", derivsOutPrefix, order)
		out := cliargs.MustCreate(path)
		for _, d := range ds {
			if err := d.WriteTo(out); err != nil {
				cliargs.Fatal("write %s: %v", path, err)
			}
		}
		if err := out.Close(); err != nil {
			cliargs.Fatal("close %s: %v", path, err)
		}
	}

	fmt.Printf("%g %g\n", res.TotalCount, res.TotalLogProb)
}
