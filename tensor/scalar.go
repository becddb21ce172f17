package tensor

import (
	"gonum.org/v1/gonum/floats"

	"github.com/fumitoshi0524/adasoft/internal/parallel"
)

func AddScalar(a *Tensor, value float64) *Tensor {
	out := Zeros(a.shape...)
	parallel.For(len(out.data), func(start, end int) {
		copy(out.data[start:end], a.data[start:end])
		floats.AddConst(value, out.data[start:end])
	})
	if a.requiresGrad {
		out.requiresGrad = true
		out.parents = []*Tensor{a}
		out.node = &node{
			backward: func(grad *Tensor, grads map[*Tensor]*Tensor) {
				accumulate(grads, a, grad)
			},
		}
	}
	return out
}

func MulScalar(a *Tensor, value float64) *Tensor {
	out := Zeros(a.shape...)
	parallel.For(len(out.data), func(start, end int) {
		floats.ScaleTo(out.data[start:end], value, a.data[start:end])
	})
	if a.requiresGrad {
		out.requiresGrad = true
		out.parents = []*Tensor{a}
		out.node = &node{
			backward: func(grad *Tensor, grads map[*Tensor]*Tensor) {
				scaled := grad.Clone()
				scaled.Scale(value)
				accumulate(grads, a, scaled)
			},
		}
	}
	return out
}
