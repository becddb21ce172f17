package tensor

import (
	"gonum.org/v1/gonum/floats"
)

func (t *Tensor) Scale(v float64) {
	floats.Scale(v, t.data)
}

func (t *Tensor) AddScaled(other *Tensor, alpha float64) error {
	if err := ensureSameShape(t, other); err != nil {
		return err
	}
	floats.AddScaled(t.data, alpha, other.data)
	return nil
}

func (t *Tensor) MulInPlace(other *Tensor) error {
	if err := ensureSameShape(t, other); err != nil {
		return err
	}
	floats.Mul(t.data, other.data)
	return nil
}
