package tensor

import (
	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/fumitoshi0524/adasoft/internal/parallel"
)

func Max(a *Tensor, axis int) (*Tensor, error) {
	out, _, err := reduceMaxMin(a, axis, true)
	return out, err
}

func Min(a *Tensor, axis int) (*Tensor, error) {
	out, _, err := reduceMaxMin(a, axis, false)
	return out, err
}

// ArgMax returns, for each slice along axis, the index of its maximum value.
// Ties break toward the lowest index. The result does not participate in
// autograd.
func ArgMax(a *Tensor, axis int) ([]int, error) {
	_, indices, err := reduceMaxMin(a.Detach(), axis, true)
	if err != nil {
		return nil, err
	}
	return indices, nil
}

func reduceMaxMin(a *Tensor, axis int, isMax bool) (*Tensor, []int, error) {
	if len(a.shape) == 0 {
		return nil, nil, errors.New("tensor: reduction requires rank >= 1 tensor")
	}
	rank := len(a.shape)
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		return nil, nil, errors.Newf("tensor: reduction axis %d out of range for shape %v", axis, a.shape)
	}
	outer := 1
	for i := 0; i < axis; i++ {
		outer *= a.shape[i]
	}
	inner := 1
	for i := axis + 1; i < rank; i++ {
		inner *= a.shape[i]
	}
	axisSize := a.shape[axis]
	outShape := make([]int, 0, rank-1)
	for i, dim := range a.shape {
		if i == axis {
			continue
		}
		outShape = append(outShape, dim)
	}
	if len(outShape) == 0 {
		outShape = []int{1}
	}
	out := Zeros(outShape...)
	indices := make([]int, len(out.data))
	parallel.For(outer, func(start, end int) {
		for o := start; o < end; o++ {
			dstBase := o * inner
			srcBase := o * axisSize * inner
			for in := 0; in < inner; in++ {
				bestIdx := 0
				bestVal := a.data[srcBase+in]
				for k := 1; k < axisSize; k++ {
					candidate := a.data[srcBase+k*inner+in]
					if isMax {
						if candidate > bestVal {
							bestVal = candidate
							bestIdx = k
						}
					} else {
						if candidate < bestVal {
							bestVal = candidate
							bestIdx = k
						}
					}
				}
				outIndex := dstBase + in
				out.data[outIndex] = bestVal
				indices[outIndex] = bestIdx
			}
		}
	})
	if !a.requiresGrad {
		return out, indices, nil
	}
	out.requiresGrad = true
	out.parents = []*Tensor{a}
	axisSizeCopy := axisSize
	innerCopy := inner
	indicesCopy := append([]int(nil), indices...)
	out.node = &node{
		backward: func(grad *Tensor, grads map[*Tensor]*Tensor) {
			g := Zeros(a.shape...)
			parallel.For(len(indicesCopy), func(start, end int) {
				for idx := start; idx < end; idx++ {
					outerIdx := 0
					if innerCopy > 0 {
						outerIdx = idx / innerCopy
					}
					innerIdx := 0
					if innerCopy > 0 {
						innerIdx = idx % innerCopy
					}
					dst := outerIdx*axisSizeCopy*innerCopy + indicesCopy[idx]*innerCopy + innerIdx
					g.data[dst] += grad.data[idx]
				}
			})
			accumulate(grads, a, g)
		},
	}
	return out, indices, nil
}

// SumAxis sums elements along the given axis and returns a tensor with that
// axis removed. Preserves autograd when the input requires gradients.
func SumAxis(a *Tensor, axis int) (*Tensor, error) {
	if len(a.shape) == 0 {
		return nil, errors.New("tensor: reduction requires rank >= 1 tensor")
	}
	rank := len(a.shape)
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		return nil, errors.Newf("tensor: reduction axis %d out of range for shape %v", axis, a.shape)
	}
	outer := 1
	for i := 0; i < axis; i++ {
		outer *= a.shape[i]
	}
	inner := 1
	for i := axis + 1; i < rank; i++ {
		inner *= a.shape[i]
	}
	axisSize := a.shape[axis]
	outShape := make([]int, 0, rank-1)
	for i, dim := range a.shape {
		if i == axis {
			continue
		}
		outShape = append(outShape, dim)
	}
	if len(outShape) == 0 {
		outShape = []int{1}
	}
	out := Zeros(outShape...)
	parallel.For(outer, func(start, end int) {
		for o := start; o < end; o++ {
			dstBase := o * inner
			srcBase := o * axisSize * inner
			if inner == 1 {
				out.data[dstBase] = floats.Sum(a.data[srcBase : srcBase+axisSize])
				continue
			}
			for in := 0; in < inner; in++ {
				s := 0.0
				for k := 0; k < axisSize; k++ {
					s += a.data[srcBase+k*inner+in]
				}
				out.data[dstBase+in] = s
			}
		}
	})
	if !a.requiresGrad {
		return out, nil
	}
	out.requiresGrad = true
	out.parents = []*Tensor{a}
	axisSizeCopy := axisSize
	innerCopy := inner
	out.node = &node{
		backward: func(grad *Tensor, grads map[*Tensor]*Tensor) {
			g := Zeros(a.shape...)
			parallel.For(outer*innerCopy, func(start, end int) {
				for idx := start; idx < end; idx++ {
					outerIdx := 0
					if innerCopy > 0 {
						outerIdx = idx / innerCopy
					}
					innerIdx := 0
					if innerCopy > 0 {
						innerIdx = idx % innerCopy
					}
					base := outerIdx*axisSizeCopy*innerCopy + innerIdx
					for k := 0; k < axisSizeCopy; k++ {
						g.data[base+k*innerCopy] += grad.data[idx]
					}
				}
			})
			accumulate(grads, a, g)
		},
	}
	return out, nil
}

// MeanAxis computes the mean along the given axis and returns a tensor with
// that axis removed. It reuses SumAxis and scales the result.
func MeanAxis(a *Tensor, axis int) (*Tensor, error) {
	rank := len(a.shape)
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		return nil, errors.Newf("tensor: reduction axis %d out of range for shape %v", axis, a.shape)
	}
	s, err := SumAxis(a, axis)
	if err != nil {
		return nil, err
	}
	return MulScalar(s, 1.0/float64(a.shape[axis])), nil
}
