package loss

import "github.com/fumitoshi0524/adasoft/tensor"

func MSE(pred, target *tensor.Tensor) (*tensor.Tensor, error) {
	diff, err := tensor.Sub(pred, target)
	if err != nil {
		return nil, err
	}
	return tensor.Mean(tensor.Pow(diff, 2)), nil
}
