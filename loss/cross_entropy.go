package loss

import (
	"github.com/cockroachdb/errors"

	"github.com/fumitoshi0524/adasoft/tensor"
)

// CrossEntropy computes softmax cross entropy from raw logits, mean-reduced
// over the batch.
func CrossEntropy(logits *tensor.Tensor, targets []int) (*tensor.Tensor, error) {
	return CrossEntropyWithReduction(logits, targets, ReductionMean)
}

// CrossEntropyWithReduction composes a stable log-softmax with NLLLoss.
func CrossEntropyWithReduction(logits *tensor.Tensor, targets []int, reduction Reduction) (*tensor.Tensor, error) {
	shape := logits.Shape()
	if len(shape) != 2 {
		return nil, errors.Newf("loss: CrossEntropy expects rank-2 logits, got %v", shape)
	}
	logProb, err := tensor.LogSoftmax(logits, 1)
	if err != nil {
		return nil, err
	}
	return NLLLoss(logProb, targets, reduction)
}
