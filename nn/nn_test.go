package nn

import (
	"math"
	"testing"

	"github.com/fumitoshi0524/adasoft/tensor"
)

func floatsAlmostEqual(a, b []float64, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		diff := a[i] - b[i]
		if diff < 0 {
			diff = -diff
		}
		if diff > tol {
			return false
		}
	}
	return true
}

func TestSequentialForwardBackward(t *testing.T) {
	linear1 := NewLinear(3, 2, true)
	if err := linear1.Weight().SetData([]float64{
		0.5, -1.0, 1.5,
		-0.25, 0.75, -0.5,
	}); err != nil {
		t.Fatalf("set linear1 weight: %v", err)
	}
	if err := linear1.Bias().SetData([]float64{0.1, -0.2}); err != nil {
		t.Fatalf("set linear1 bias: %v", err)
	}
	relu := Relu()
	linear2 := NewLinear(2, 1, true)
	if err := linear2.Weight().SetData([]float64{0.6, -1.2}); err != nil {
		t.Fatalf("set linear2 weight: %v", err)
	}
	if err := linear2.Bias().SetData([]float64{0.05}); err != nil {
		t.Fatalf("set linear2 bias: %v", err)
	}
	model := NewSequential(linear1, relu, linear2)

	inputs := tensor.MustNew([]float64{
		1, 0, -1,
		2, 1, 0,
	}, 2, 3)
	targets := tensor.MustNew([]float64{1, -1}, 2, 1)

	out, err := model.Forward(inputs)
	if err != nil {
		t.Fatalf("forward failed: %v", err)
	}
	if out == nil {
		t.Fatalf("forward returned nil output")
	}

	diff, err := tensor.Sub(out, targets)
	if err != nil {
		t.Fatalf("sub failed: %v", err)
	}
	l := tensor.Mean(tensor.Pow(diff, 2))
	if err := l.Backward(); err != nil {
		t.Fatalf("backward failed: %v", err)
	}

	if linear1.Weight().Grad() == nil {
		t.Fatalf("expected gradient on linear1 weight")
	}
	if linear1.Bias().Grad() == nil {
		t.Fatalf("expected gradient on linear1 bias")
	}
	if linear2.Weight().Grad() == nil {
		t.Fatalf("expected gradient on linear2 weight")
	}
	if linear2.Bias().Grad() == nil {
		t.Fatalf("expected gradient on linear2 bias")
	}

	ZeroGradAll(model)
	if linear1.Weight().Grad() != nil || linear2.Weight().Grad() != nil {
		t.Fatalf("ZeroGradAll did not clear gradients")
	}
}

func TestSequentialStateDictAndLoad(t *testing.T) {
	linear1 := NewLinear(3, 2, true)
	linear2 := NewLinear(2, 1, true)
	model := NewSequential(linear1, Relu(), linear2)

	if err := linear1.Weight().SetData([]float64{
		0.5, -0.25, 0.75,
		-1.2, 0.9, -0.4,
	}); err != nil {
		t.Fatalf("set linear1 weight: %v", err)
	}
	if err := linear1.Bias().SetData([]float64{0.3, -0.1}); err != nil {
		t.Fatalf("set linear1 bias: %v", err)
	}
	if err := linear2.Weight().SetData([]float64{1.1, -0.7}); err != nil {
		t.Fatalf("set linear2 weight: %v", err)
	}
	if err := linear2.Bias().SetData([]float64{0.2}); err != nil {
		t.Fatalf("set linear2 bias: %v", err)
	}

	state := map[string]*tensor.Tensor{}
	model.StateDict("", state)
	if len(state) != 4 {
		t.Fatalf("expected 4 tensors in state dict, got %d", len(state))
	}

	clone := NewSequential(NewLinear(3, 2, true), Relu(), NewLinear(2, 1, true))
	if err := clone.LoadState("", state); err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}

	origParams := model.Parameters()
	cloneParams := clone.Parameters()
	if len(origParams) != len(cloneParams) {
		t.Fatalf("parameter length mismatch: %d vs %d", len(origParams), len(cloneParams))
	}
	for i := range origParams {
		if !floatsAlmostEqual(origParams[i].Data(), cloneParams[i].Data(), 1e-9) {
			t.Fatalf("parameter %d mismatch after load", i)
		}
	}
}

func TestLogSoftmaxModuleRowsNormalize(t *testing.T) {
	m := LogSoftmax()
	input := tensor.MustNew([]float64{
		1, 2, 3,
		-1, 0, 1,
	}, 2, 3)
	out, err := m.Forward(input)
	if err != nil {
		t.Fatalf("logsoftmax module failed: %v", err)
	}
	data := out.Data()
	for r := 0; r < 2; r++ {
		sum := 0.0
		for c := 0; c < 3; c++ {
			sum += math.Exp(data[r*3+c])
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("row %d does not normalize: %v", r, sum)
		}
	}
}
