package tensor

import (
	"math"

	"github.com/fumitoshi0524/adasoft/internal/parallel"
)

func Relu(a *Tensor) *Tensor {
	out := Zeros(a.shape...)
	parallel.For(len(out.data), func(start, end int) {
		for i := start; i < end; i++ {
			v := a.data[i]
			if v > 0 {
				out.data[i] = v
			}
		}
	})
	if a.requiresGrad {
		out.requiresGrad = true
		out.parents = []*Tensor{a}
		mask := out.Detach()
		parallel.For(len(mask.data), func(start, end int) {
			for i := start; i < end; i++ {
				if mask.data[i] > 0 {
					mask.data[i] = 1
				} else {
					mask.data[i] = 0
				}
			}
		})
		out.node = &node{
			backward: func(grad *Tensor, grads map[*Tensor]*Tensor) {
				accumulate(grads, a, hadamard(grad, mask))
			},
		}
	}
	return out
}

func Sigmoid(a *Tensor) *Tensor {
	out := Zeros(a.shape...)
	parallel.For(len(out.data), func(start, end int) {
		for i := start; i < end; i++ {
			out.data[i] = 1 / (1 + math.Exp(-a.data[i]))
		}
	})
	if a.requiresGrad {
		out.requiresGrad = true
		out.parents = []*Tensor{a}
		out.node = &node{
			backward: func(grad *Tensor, grads map[*Tensor]*Tensor) {
				oneMinus := Full(1, out.shape...)
				parallel.For(len(oneMinus.data), func(start, end int) {
					for i := start; i < end; i++ {
						oneMinus.data[i] -= out.data[i]
					}
				})
				accumulate(grads, a, hadamard(grad, hadamard(out.Detach(), oneMinus)))
			},
		}
	}
	return out
}

func Tanh(a *Tensor) *Tensor {
	out := Zeros(a.shape...)
	parallel.For(len(out.data), func(start, end int) {
		for i := start; i < end; i++ {
			out.data[i] = math.Tanh(a.data[i])
		}
	})
	if a.requiresGrad {
		out.requiresGrad = true
		out.parents = []*Tensor{a}
		out.node = &node{
			backward: func(grad *Tensor, grads map[*Tensor]*Tensor) {
				deriv := Full(1, out.shape...)
				parallel.For(len(deriv.data), func(start, end int) {
					for i := start; i < end; i++ {
						deriv.data[i] -= out.data[i] * out.data[i]
					}
				})
				accumulate(grads, a, hadamard(grad, deriv))
			},
		}
	}
	return out
}
