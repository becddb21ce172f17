package tensor

import (
	"github.com/cockroachdb/errors"

	"github.com/fumitoshi0524/adasoft/internal/parallel"
)

// TakeRows compacts the rows of a rank-2 tensor named by indices into a new
// [len(indices), cols] tensor. Rows may repeat and appear in any order.
// Gradients scatter-add back into the source rows, so rows that are never
// taken receive zero gradient.
func TakeRows(t *Tensor, indices []int) (*Tensor, error) {
	if t == nil {
		return nil, errors.New("tensor: TakeRows on nil tensor")
	}
	if len(t.shape) != 2 {
		return nil, errors.Newf("tensor: TakeRows expects rank-2 tensor, got %v", t.shape)
	}
	rows, cols := t.shape[0], t.shape[1]
	for _, idx := range indices {
		if idx < 0 || idx >= rows {
			return nil, errors.Newf("tensor: TakeRows index %d out of range [0,%d)", idx, rows)
		}
	}
	if len(indices) == 0 {
		return nil, errors.New("tensor: TakeRows requires at least one index")
	}
	contiguous := true
	for i := 1; i < len(indices); i++ {
		if indices[i] != indices[0]+i {
			contiguous = false
			break
		}
	}
	if contiguous {
		// a consecutive run compacts to a zero-copy view
		return SliceRows2D(t, indices[0], len(indices))
	}
	out := Zeros(len(indices), cols)
	parallel.For(len(indices), func(start, end int) {
		for r := start; r < end; r++ {
			src := indices[r] * cols
			copy(out.data[r*cols:(r+1)*cols], t.data[src:src+cols])
		}
	})
	if t.requiresGrad {
		out.requiresGrad = true
		out.parents = []*Tensor{t}
		taken := append([]int(nil), indices...)
		out.node = &node{
			backward: func(grad *Tensor, grads map[*Tensor]*Tensor) {
				g := Zeros(t.shape...)
				for r, idx := range taken {
					dst := idx * cols
					src := r * cols
					for c := 0; c < cols; c++ {
						g.data[dst+c] += grad.data[src+c]
					}
				}
				accumulate(grads, t, g)
			},
		}
	}
	return out, nil
}

// ScatterRows spreads the rows of a rank-2 tensor into a zero-filled
// [rows, cols] tensor at the positions named by indices. It is the inverse
// of TakeRows: gradients gather back from the scattered positions.
func ScatterRows(t *Tensor, indices []int, rows int) (*Tensor, error) {
	if t == nil {
		return nil, errors.New("tensor: ScatterRows on nil tensor")
	}
	if len(t.shape) != 2 {
		return nil, errors.Newf("tensor: ScatterRows expects rank-2 tensor, got %v", t.shape)
	}
	if len(indices) != t.shape[0] {
		return nil, errors.Newf("tensor: ScatterRows got %d indices for %d rows", len(indices), t.shape[0])
	}
	cols := t.shape[1]
	for _, idx := range indices {
		if idx < 0 || idx >= rows {
			return nil, errors.Newf("tensor: ScatterRows index %d out of range [0,%d)", idx, rows)
		}
	}
	out := Zeros(rows, cols)
	for r, idx := range indices {
		copy(out.data[idx*cols:(idx+1)*cols], t.data[r*cols:(r+1)*cols])
	}
	if t.requiresGrad {
		out.requiresGrad = true
		out.parents = []*Tensor{t}
		placed := append([]int(nil), indices...)
		out.node = &node{
			backward: func(grad *Tensor, grads map[*Tensor]*Tensor) {
				g := Zeros(t.shape...)
				for r, idx := range placed {
					copy(g.data[r*cols:(r+1)*cols], grad.data[idx*cols:(idx+1)*cols])
				}
				accumulate(grads, t, g)
			},
		}
	}
	return out, nil
}
