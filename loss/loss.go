// Package loss provides training criteria built on the tensor autograd
// engine, from plain MSE up to an adaptive softmax for very large
// vocabularies.
package loss

import (
	"github.com/cockroachdb/errors"

	"github.com/fumitoshi0524/adasoft/tensor"
)

// Reduction selects how per-example losses combine into the returned value.
type Reduction int

const (
	// ReductionNone returns the per-example loss vector unreduced.
	ReductionNone Reduction = iota
	// ReductionSum returns the scalar sum over the batch.
	ReductionSum
	// ReductionMean returns the sum divided by the batch size.
	ReductionMean
)

func (r Reduction) String() string {
	switch r {
	case ReductionNone:
		return "none"
	case ReductionSum:
		return "sum"
	case ReductionMean:
		return "mean"
	default:
		return "unknown"
	}
}

func parseReduction(s string) (Reduction, error) {
	switch s {
	case "none":
		return ReductionNone, nil
	case "sum":
		return ReductionSum, nil
	case "mean":
		return ReductionMean, nil
	default:
		return 0, errors.Newf("loss: unknown reduction %q", s)
	}
}

// Loss is a criterion over integer class targets. Implementations may own
// trainable parameters (the adaptive softmax does; the simple criteria do
// not).
type Loss interface {
	Forward(inputs *tensor.Tensor, targets []int) (*tensor.Tensor, error)
	Parameters() []*tensor.Tensor
	ZeroGrad()
}

// reduce collapses a [batch, 1] per-example loss according to r. For
// ReductionNone the result is reshaped to [batch].
func reduce(perExample *tensor.Tensor, r Reduction) (*tensor.Tensor, error) {
	switch r {
	case ReductionNone:
		return perExample.Reshape(perExample.Numel())
	case ReductionSum:
		return tensor.Sum(perExample), nil
	case ReductionMean:
		return tensor.Mean(perExample), nil
	default:
		return nil, errors.Newf("loss: invalid reduction %d", int(r))
	}
}

// targetIndexColumn builds a [batch, 1] index tensor from integer targets.
func targetIndexColumn(targets []int) *tensor.Tensor {
	data := make([]float64, len(targets))
	for i, v := range targets {
		data[i] = float64(v)
	}
	return tensor.MustNew(data, len(targets), 1)
}
