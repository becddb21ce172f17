package tensor

import (
	"math"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/fumitoshi0524/adasoft/internal/parallel"
)

// LogSoftmax computes a numerically stable log-softmax over axis 1 of a
// rank-2 tensor. Stability comes from gonum's LogSumExp, which subtracts the
// per-row maximum before exponentiating.
func LogSoftmax(a *Tensor, axis int) (*Tensor, error) {
	if len(a.shape) != 2 {
		return nil, errors.Newf("tensor: LogSoftmax expects rank-2 tensor, got %v", a.shape)
	}
	if axis < 0 {
		axis += len(a.shape)
	}
	if axis != 1 {
		return nil, errors.Newf("tensor: LogSoftmax supports axis 1 only, got %d", axis)
	}
	rows, cols := a.shape[0], a.shape[1]
	out := Zeros(rows, cols)
	parallel.For(rows, func(start, end int) {
		for i := start; i < end; i++ {
			row := a.data[i*cols : (i+1)*cols]
			logSum := floats.LogSumExp(row)
			dst := out.data[i*cols : (i+1)*cols]
			copy(dst, row)
			floats.AddConst(-logSum, dst)
		}
	})
	if a.requiresGrad {
		out.requiresGrad = true
		out.parents = []*Tensor{a}
		out.node = &node{
			backward: func(grad *Tensor, grads map[*Tensor]*Tensor) {
				gx := Zeros(a.shape...)
				parallel.For(rows, func(start, end int) {
					for i := start; i < end; i++ {
						offset := i * cols
						sumGrad := floats.Sum(grad.data[offset : offset+cols])
						for j := 0; j < cols; j++ {
							soft := math.Exp(out.data[offset+j])
							gx.data[offset+j] = grad.data[offset+j] - soft*sumGrad
						}
					}
				})
				accumulate(grads, a, gx)
			},
		}
	}
	return out, nil
}

func Softmax(a *Tensor, axis int) (*Tensor, error) {
	logsm, err := LogSoftmax(a, axis)
	if err != nil {
		return nil, err
	}
	return Exp(logsm), nil
}
