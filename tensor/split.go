package tensor

import (
	"github.com/cockroachdb/errors"

	"github.com/fumitoshi0524/adasoft/internal/parallel"
)

// Split partitions t along axis into consecutive pieces of the given sizes.
// Each piece participates in autograd independently: its gradient flows back
// into the matching region of t.
func Split(axis int, sizes []int, t *Tensor) ([]*Tensor, error) {
	if len(sizes) == 0 {
		return nil, errors.New("tensor: Split requires at least one size")
	}
	rank := len(t.shape)
	if rank == 0 {
		return nil, errors.New("tensor: Split requires rank >= 1 tensor")
	}
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		return nil, errors.Newf("tensor: Split axis %d out of range for rank %d", axis, rank)
	}
	total := 0
	for _, s := range sizes {
		if s <= 0 {
			return nil, errors.Newf("tensor: Split sizes must be positive, got %v", sizes)
		}
		total += s
	}
	if total != t.shape[axis] {
		return nil, errors.Newf("tensor: Split sizes %v sum to %d, axis has %d", sizes, total, t.shape[axis])
	}
	outer := 1
	for i := 0; i < axis; i++ {
		outer *= t.shape[i]
	}
	inner := 1
	for i := axis + 1; i < rank; i++ {
		inner *= t.shape[i]
	}
	result := make([]*Tensor, len(sizes))
	offset := 0
	for idx, size := range sizes {
		shape := append([]int(nil), t.shape...)
		shape[axis] = size
		data := make([]float64, size*outer*inner)
		pieceOffset := offset
		parallel.For(outer, func(start, end int) {
			for o := start; o < end; o++ {
				src := (o*t.shape[axis] + pieceOffset) * inner
				dst := o * size * inner
				copy(data[dst:dst+size*inner], t.data[src:src+size*inner])
			}
		})
		result[idx] = MustNew(data, shape...)
		offset += size
	}
	if t.requiresGrad {
		offset := 0
		for i, part := range result {
			part.requiresGrad = true
			part.parents = []*Tensor{t}
			size := sizes[i]
			partOffset := offset
			part.node = &node{
				backward: func(grad *Tensor, grads map[*Tensor]*Tensor) {
					gFull := Zeros(t.shape...)
					parallel.For(outer, func(start, end int) {
						for o := start; o < end; o++ {
							dst := (o*t.shape[axis] + partOffset) * inner
							src := o * size * inner
							copy(gFull.data[dst:dst+size*inner], grad.data[src:src+size*inner])
						}
					})
					accumulate(grads, t, gFull)
				},
			}
			offset += size
		}
	}
	return result, nil
}

// Chunk splits t along axis into parts pieces of near-equal size.
func Chunk(axis int, parts int, t *Tensor) ([]*Tensor, error) {
	if parts <= 0 {
		return nil, errors.Newf("tensor: Chunk parts must be positive, got %d", parts)
	}
	rank := len(t.shape)
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		return nil, errors.Newf("tensor: Chunk axis %d out of range for rank %d", axis, rank)
	}
	size := t.shape[axis]
	base := size / parts
	remainder := size % parts
	sizes := make([]int, 0, parts)
	for i := 0; i < parts; i++ {
		chunk := base
		if i < remainder {
			chunk++
		}
		sizes = append(sizes, chunk)
	}
	return Split(axis, sizes, t)
}
