package tensor

import "github.com/cockroachdb/errors"

func (t *Tensor) Reshape(shape ...int) (*Tensor, error) {
	if len(shape) == 0 {
		return nil, errors.New("tensor: Reshape requires a shape")
	}
	total := t.Numel()
	prod := 1
	infer := -1
	for i, dim := range shape {
		if dim == -1 {
			if infer != -1 {
				return nil, errors.New("tensor: Reshape allows one inferred dimension")
			}
			infer = i
			continue
		}
		if dim <= 0 {
			return nil, errors.Newf("tensor: invalid Reshape dimension %d", dim)
		}
		prod *= dim
	}
	if infer != -1 {
		if prod == 0 || total%prod != 0 {
			return nil, errors.Newf("tensor: cannot infer dimension for %d elements in shape %v", total, shape)
		}
		shape[infer] = total / prod
		prod = total
	}
	if prod != total {
		return nil, errors.Newf("tensor: Reshape to %v changes element count %d", shape, total)
	}
	out := &Tensor{
		data:         t.data,
		shape:        append([]int(nil), shape...),
		strides:      makeStrides(shape),
		requiresGrad: t.requiresGrad,
	}
	if t.requiresGrad {
		out.parents = []*Tensor{t}
		out.node = &node{
			backward: func(grad *Tensor, grads map[*Tensor]*Tensor) {
				reshaped := grad.Clone()
				reshaped.shape = append([]int(nil), t.shape...)
				reshaped.strides = makeStrides(reshaped.shape)
				accumulate(grads, t, reshaped)
			},
		}
	}
	return out, nil
}

func Flatten(a *Tensor) (*Tensor, error) {
	if len(a.shape) < 2 {
		return a.Reshape(a.Numel())
	}
	batch := a.shape[0]
	features := 1
	for _, dim := range a.shape[1:] {
		features *= dim
	}
	return a.Reshape(batch, features)
}
