package tensor

import (
	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/fumitoshi0524/adasoft/internal/parallel"
)

// AddBias2D adds a rank-1 bias to every row of a rank-2 tensor.
func AddBias2D(a, bias *Tensor) (*Tensor, error) {
	if len(a.shape) != 2 {
		return nil, errors.Newf("tensor: AddBias2D expects rank-2 input, got %v", a.shape)
	}
	if len(bias.shape) != 1 {
		return nil, errors.Newf("tensor: AddBias2D expects rank-1 bias, got %v", bias.shape)
	}
	if a.shape[1] != bias.shape[0] {
		return nil, errors.Newf("tensor: AddBias2D dimension mismatch %v vs %v", a.shape, bias.shape)
	}
	out := Zeros(a.shape...)
	rows, cols := a.shape[0], a.shape[1]
	parallel.For(rows, func(start, end int) {
		for i := start; i < end; i++ {
			floats.AddTo(out.data[i*cols:(i+1)*cols], a.data[i*cols:(i+1)*cols], bias.data)
		}
	})
	if a.requiresGrad || bias.requiresGrad {
		out.requiresGrad = true
		parents := make([]*Tensor, 0, 2)
		if a.requiresGrad {
			parents = append(parents, a)
		}
		if bias.requiresGrad {
			parents = append(parents, bias)
		}
		out.parents = parents
		out.node = &node{
			backward: func(grad *Tensor, grads map[*Tensor]*Tensor) {
				if a.requiresGrad {
					accumulate(grads, a, grad)
				}
				if bias.requiresGrad {
					agg := Zeros(bias.shape...)
					for i := 0; i < rows; i++ {
						floats.Add(agg.data, grad.data[i*cols:(i+1)*cols])
					}
					accumulate(grads, bias, agg)
				}
			},
		}
	}
	return out, nil
}

// AddCols2D adds a [rows, 1] column to every column of a [rows, cols] tensor,
// broadcasting the per-row value across the row.
func AddCols2D(a, col *Tensor) (*Tensor, error) {
	if len(a.shape) != 2 {
		return nil, errors.Newf("tensor: AddCols2D expects rank-2 input, got %v", a.shape)
	}
	if len(col.shape) != 2 || col.shape[1] != 1 {
		return nil, errors.Newf("tensor: AddCols2D expects [rows, 1] column, got %v", col.shape)
	}
	if a.shape[0] != col.shape[0] {
		return nil, errors.Newf("tensor: AddCols2D row mismatch %v vs %v", a.shape, col.shape)
	}
	rows, cols := a.shape[0], a.shape[1]
	out := Zeros(a.shape...)
	parallel.For(rows, func(start, end int) {
		for i := start; i < end; i++ {
			dst := out.data[i*cols : (i+1)*cols]
			copy(dst, a.data[i*cols:(i+1)*cols])
			floats.AddConst(col.data[i], dst)
		}
	})
	if a.requiresGrad || col.requiresGrad {
		out.requiresGrad = true
		parents := make([]*Tensor, 0, 2)
		if a.requiresGrad {
			parents = append(parents, a)
		}
		if col.requiresGrad {
			parents = append(parents, col)
		}
		out.parents = parents
		out.node = &node{
			backward: func(grad *Tensor, grads map[*Tensor]*Tensor) {
				if a.requiresGrad {
					accumulate(grads, a, grad)
				}
				if col.requiresGrad {
					agg := Zeros(col.shape...)
					for i := 0; i < rows; i++ {
						agg.data[i] = floats.Sum(grad.data[i*cols : (i+1)*cols])
					}
					accumulate(grads, col, agg)
				}
			},
		}
	}
	return out, nil
}
