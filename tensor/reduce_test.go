package tensor

import "testing"

func TestMaxMinReduce(t *testing.T) {
	input := MustNew([]float64{
		1, 4, 2,
		3, 0, -1,
	}, 2, 3)
	input.SetRequiresGrad(true)

	mx, err := Max(input, 1)
	if err != nil {
		t.Fatalf("max reduce failed: %v", err)
	}
	mn, err := Min(input, 1)
	if err != nil {
		t.Fatalf("min reduce failed: %v", err)
	}
	if !AlmostEqualSlices(mx.Data(), []float64{4, 3}, 1e-9) {
		t.Fatalf("unexpected max result: %v", mx.Data())
	}
	if !AlmostEqualSlices(mn.Data(), []float64{1, -1}, 1e-9) {
		t.Fatalf("unexpected min result: %v", mn.Data())
	}

	total := Sum(mx)
	if err := total.Backward(); err != nil {
		t.Fatalf("backward failed: %v", err)
	}
	grad := input.Grad()
	if grad == nil {
		t.Fatalf("expected gradient on input")
	}
	expected := []float64{0, 1, 0, 1, 0, 0}
	if !AlmostEqualSlices(grad.Data(), expected, 1e-9) {
		t.Fatalf("unexpected max gradient: %v", grad.Data())
	}

	input.ZeroGrad()
	totalMin := Sum(mn)
	if err := totalMin.Backward(); err != nil {
		t.Fatalf("min backward failed: %v", err)
	}
	grad = input.Grad()
	expectedMin := []float64{1, 0, 0, 0, 0, 1}
	if !AlmostEqualSlices(grad.Data(), expectedMin, 1e-9) {
		t.Fatalf("unexpected min gradient: %v", grad.Data())
	}
}

func TestArgMaxFirstWins(t *testing.T) {
	input := MustNew([]float64{
		1, 4, 4,
		3, 0, -1,
	}, 2, 3)
	idx, err := ArgMax(input, 1)
	if err != nil {
		t.Fatalf("argmax failed: %v", err)
	}
	// Ties break toward the lowest index.
	if len(idx) != 2 || idx[0] != 1 || idx[1] != 0 {
		t.Fatalf("unexpected argmax indices: %v", idx)
	}
}

func TestSumAxisForwardBackward(t *testing.T) {
	input := MustNew([]float64{
		1, 2, 3,
		4, 5, 6,
	}, 2, 3)
	input.SetRequiresGrad(true)
	rowSums, err := SumAxis(input, 1)
	if err != nil {
		t.Fatalf("sumaxis failed: %v", err)
	}
	if !AlmostEqualSlices(rowSums.Data(), []float64{6, 15}, 1e-9) {
		t.Fatalf("unexpected row sums: %v", rowSums.Data())
	}
	if err := Sum(rowSums).Backward(); err != nil {
		t.Fatalf("backward failed: %v", err)
	}
	if !AlmostEqualSlices(input.Grad().Data(), []float64{1, 1, 1, 1, 1, 1}, 1e-9) {
		t.Fatalf("unexpected sumaxis gradient: %v", input.Grad().Data())
	}
}

func TestMeanAxis(t *testing.T) {
	input := MustNew([]float64{
		1, 2, 3,
		4, 5, 6,
	}, 2, 3)
	input.SetRequiresGrad(true)

	// Negative axes count from the back.
	rowMeans, err := MeanAxis(input, -1)
	if err != nil {
		t.Fatalf("meanaxis failed: %v", err)
	}
	if !AlmostEqualSlices(rowMeans.Data(), []float64{2, 5}, 1e-12) {
		t.Fatalf("unexpected row means: %v", rowMeans.Data())
	}
	if err := Sum(rowMeans).Backward(); err != nil {
		t.Fatalf("backward failed: %v", err)
	}
	third := 1.0 / 3.0
	want := []float64{third, third, third, third, third, third}
	if !AlmostEqualSlices(input.Grad().Data(), want, 1e-12) {
		t.Fatalf("unexpected meanaxis gradient: %v", input.Grad().Data())
	}

	colMeans, err := MeanAxis(input, 0)
	if err != nil {
		t.Fatalf("meanaxis failed: %v", err)
	}
	if !AlmostEqualSlices(colMeans.Data(), []float64{2.5, 3.5, 4.5}, 1e-12) {
		t.Fatalf("unexpected column means: %v", colMeans.Data())
	}

	if _, err := MeanAxis(input, 2); err == nil {
		t.Fatalf("expected axis out of range")
	}
	if _, err := MeanAxis(input, -3); err == nil {
		t.Fatalf("expected negative axis out of range")
	}
}

func TestReduceErrors(t *testing.T) {
	tensor := MustNew([]float64{1, 2, 3, 4}, 2, 2)
	if _, err := Max(tensor, 2); err == nil {
		t.Fatalf("expected axis out of range")
	}
	if _, err := Min(tensor, -3); err == nil {
		t.Fatalf("expected negative axis out of range")
	}
}
