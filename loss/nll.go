package loss

import (
	"github.com/cockroachdb/errors"

	"github.com/fumitoshi0524/adasoft/tensor"
)

// NLLLoss computes the negative log likelihood given log-probabilities and
// target indices. The result is differentiable with respect to logProb.
func NLLLoss(logProb *tensor.Tensor, targets []int, reduction Reduction) (*tensor.Tensor, error) {
	shape := logProb.Shape()
	if len(shape) != 2 {
		return nil, errors.Newf("loss: NLLLoss expects [batch, classes] input, got %v", shape)
	}
	batch, classes := shape[0], shape[1]
	if len(targets) != batch {
		return nil, errors.Newf("loss: NLLLoss got %d targets for batch %d", len(targets), batch)
	}
	for i, label := range targets {
		if label < 0 || label >= classes {
			return nil, errors.Newf("loss: target %d at position %d out of range [0,%d)", label, i, classes)
		}
	}
	picked, err := tensor.Gather(logProb, 1, targetIndexColumn(targets))
	if err != nil {
		return nil, err
	}
	return reduce(tensor.MulScalar(picked, -1), reduction)
}
