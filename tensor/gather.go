package tensor

import "github.com/cockroachdb/errors"

// Gather selects values along axis according to integer indices.
func Gather(input *Tensor, axis int, index *Tensor) (*Tensor, error) {
	if index == nil {
		return nil, errors.New("tensor: Gather requires an index tensor")
	}
	rank := len(input.shape)
	if rank == 0 {
		return nil, errors.New("tensor: Gather requires rank >= 1 input")
	}
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		return nil, errors.Newf("tensor: Gather axis %d out of range for shape %v", axis, input.shape)
	}
	if len(index.shape) != rank {
		return nil, errors.Newf("tensor: Gather index rank %d does not match input rank %d", len(index.shape), rank)
	}
	for i, dim := range index.shape {
		if i == axis {
			continue
		}
		if dim != input.shape[i] {
			return nil, errors.Newf("tensor: Gather index shape %v incompatible with input %v", index.shape, input.shape)
		}
	}

	out := Zeros(index.shape...)
	axisSize := input.shape[axis]
	indexAxis := index.shape[axis]
	outer := 1
	for i := 0; i < axis; i++ {
		outer *= input.shape[i]
	}
	inner := 1
	for i := axis + 1; i < rank; i++ {
		inner *= input.shape[i]
	}

	for o := 0; o < outer; o++ {
		for ia := 0; ia < indexAxis; ia++ {
			for inr := 0; inr < inner; inr++ {
				idxOffset := ((o*indexAxis)+ia)*inner + inr
				idxVal := int(index.data[idxOffset])
				if idxVal < 0 || idxVal >= axisSize {
					return nil, errors.Newf("tensor: Gather index %d out of range [0,%d)", idxVal, axisSize)
				}
				inOffset := ((o*axisSize)+idxVal)*inner + inr
				out.data[idxOffset] = input.data[inOffset]
			}
		}
	}

	if input.requiresGrad {
		out.requiresGrad = true
		out.parents = []*Tensor{input}
		out.node = &node{
			backward: func(grad *Tensor, grads map[*Tensor]*Tensor) {
				gInput := Zeros(input.shape...)
				for o := 0; o < outer; o++ {
					for ia := 0; ia < indexAxis; ia++ {
						for inr := 0; inr < inner; inr++ {
							idxOffset := ((o*indexAxis)+ia)*inner + inr
							idxVal := int(index.data[idxOffset])
							inOffset := ((o*axisSize)+idxVal)*inner + inr
							gInput.data[inOffset] += grad.data[idxOffset]
						}
					}
				}
				accumulate(grads, input, gInput)
			},
		}
	}

	return out, nil
}
