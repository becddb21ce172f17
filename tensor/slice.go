package tensor

import (
	"github.com/cockroachdb/errors"

	"github.com/fumitoshi0524/adasoft/internal/parallel"
)

// SliceRows2D returns a view of consecutive rows [rowStart, rowStart+rows) of a rank-2 tensor.
// The returned tensor shares the underlying data slice and supports autograd (accumulates
// gradients back to the source tensor in the corresponding region).
func SliceRows2D(t *Tensor, rowStart, rows int) (*Tensor, error) {
	if t == nil {
		return nil, errors.New("tensor: SliceRows2D on nil tensor")
	}
	if len(t.shape) != 2 {
		return nil, errors.Newf("tensor: SliceRows2D expects rank-2 tensor, got %v", t.shape)
	}
	cols := t.shape[1]
	if rowStart < 0 || rows < 0 || rowStart+rows > t.shape[0] {
		return nil, errors.Newf("tensor: SliceRows2D range [%d,%d) out of [0,%d)", rowStart, rowStart+rows, t.shape[0])
	}
	start := rowStart * cols
	end := (rowStart + rows) * cols
	out := &Tensor{
		data:         t.data[start:end],
		shape:        []int{rows, cols},
		strides:      makeStrides([]int{rows, cols}),
		requiresGrad: t.requiresGrad,
	}
	if t.requiresGrad {
		out.parents = []*Tensor{t}
		rs := rowStart
		out.node = &node{
			backward: func(grad *Tensor, grads map[*Tensor]*Tensor) {
				g := Zeros(t.shape...)
				parallel.For(rows, func(startRow, endRow int) {
					for r := startRow; r < endRow; r++ {
						dstBase := (rs + r) * cols
						srcBase := r * cols
						for c := 0; c < cols; c++ {
							g.data[dstBase+c] += grad.data[srcBase+c]
						}
					}
				})
				accumulate(grads, t, g)
			},
		}
	}
	return out, nil
}
