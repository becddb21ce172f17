package tensor

import (
	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"
)

// MatMul multiplies two rank-2 tensors, delegating the kernel to gonum's
// BLAS-backed mat.Dense.
func MatMul(a, b *Tensor) (*Tensor, error) {
	if len(a.shape) != 2 || len(b.shape) != 2 {
		return nil, errors.Newf("tensor: MatMul expects rank-2 tensors, got %v and %v", a.shape, b.shape)
	}
	if a.shape[1] != b.shape[0] {
		return nil, errors.Newf("tensor: MatMul shapes %v and %v are incompatible", a.shape, b.shape)
	}
	out := matmulRaw(a, b, false, false)
	if a.requiresGrad || b.requiresGrad {
		out.requiresGrad = true
		parents := make([]*Tensor, 0, 2)
		if a.requiresGrad {
			parents = append(parents, a)
		}
		if b.requiresGrad {
			parents = append(parents, b)
		}
		out.parents = parents
		out.node = &node{
			backward: func(grad *Tensor, grads map[*Tensor]*Tensor) {
				if a.requiresGrad {
					accumulate(grads, a, matmulRaw(grad, b, false, true))
				}
				if b.requiresGrad {
					accumulate(grads, b, matmulRaw(a, grad, true, false))
				}
			},
		}
	}
	return out, nil
}

func matmulRaw(a, b *Tensor, transA, transB bool) *Tensor {
	left := denseView(a, transA)
	right := denseView(b, transB)
	lr, _ := left.Dims()
	_, rc := right.Dims()
	out := Zeros(lr, rc)
	dst := mat.NewDense(lr, rc, out.data)
	dst.Mul(left, right)
	return out
}

func denseView(t *Tensor, trans bool) mat.Matrix {
	if len(t.shape) != 2 {
		panic(errors.Newf("tensor: denseView expects rank-2 tensor, got %v", t.shape))
	}
	d := mat.NewDense(t.shape[0], t.shape[1], t.data)
	if trans {
		return d.T()
	}
	return d
}
