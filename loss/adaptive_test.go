package loss

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/fumitoshi0524/adasoft/tensor"
)

func almostEqual(a, b []float64, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

func TestAdaptiveSoftmaxConfigValidation(t *testing.T) {
	if _, err := NewAdaptiveSoftmax(16, nil); err == nil {
		t.Fatalf("expected error for empty cutoff")
	}
	if _, err := NewAdaptiveSoftmax(16, []int{5, 5}); err == nil {
		t.Fatalf("expected error for non-ascending cutoff")
	}
	if _, err := NewAdaptiveSoftmax(16, []int{8, 5}); err == nil {
		t.Fatalf("expected error for descending cutoff")
	}
	if _, err := NewAdaptiveSoftmax(16, []int{0, 5}); err == nil {
		t.Fatalf("expected error for zero cutoff")
	}
	if _, err := NewAdaptiveSoftmax(16, []int{5, 8}, WithDivValue(0)); err == nil {
		t.Fatalf("expected error for non-positive div value")
	}
	if _, err := NewAdaptiveSoftmax(0, []int{5, 8}); err == nil {
		t.Fatalf("expected error for non-positive input size")
	}
}

func TestAdaptiveSoftmaxRouting(t *testing.T) {
	a, err := NewAdaptiveSoftmax(16, []int{5, 8})
	if err != nil {
		t.Fatalf("construction failed: %v", err)
	}
	// Head bucket holds 5 classes plus one meta-class slot; the tail
	// cluster covers [5,8) with hidden width floor(16/4)=4.
	if got := a.head.OutFeatures(); got != 6 {
		t.Fatalf("unexpected head size: %d", got)
	}
	if got := a.tails[0].down.OutFeatures(); got != 4 {
		t.Fatalf("unexpected tail hidden width: %d", got)
	}
	if got := a.tails[0].up.OutFeatures(); got != 3 {
		t.Fatalf("unexpected tail cluster size: %d", got)
	}

	headSlots, clusters, err := a.routeTargets([]int{0, 6, 2, 7})
	if err != nil {
		t.Fatalf("routing failed: %v", err)
	}
	wantSlots := []int{0, 5, 2, 5}
	for i, slot := range headSlots {
		if slot != wantSlots[i] {
			t.Fatalf("head slot mismatch at %d: got %d want %d", i, slot, wantSlots[i])
		}
	}
	if len(clusters) != 1 {
		t.Fatalf("expected one tail cluster, got %d", len(clusters))
	}
	sel := clusters[0]
	if len(sel.rows) != 2 || sel.rows[0] != 1 || sel.rows[1] != 3 {
		t.Fatalf("unexpected selected rows: %v", sel.rows)
	}
	if len(sel.local) != 2 || sel.local[0] != 1 || sel.local[1] != 2 {
		t.Fatalf("unexpected remapped targets: %v", sel.local)
	}
}

func TestAdaptiveSoftmaxTargetRange(t *testing.T) {
	a, err := NewAdaptiveSoftmax(8, []int{3, 6})
	if err != nil {
		t.Fatalf("construction failed: %v", err)
	}
	inputs := tensor.Randn(2, 8)
	if _, err := a.Forward(inputs, []int{0, 6}); err == nil {
		t.Fatalf("expected out-of-range target error")
	}
	if _, err := a.Forward(inputs, []int{-1, 0}); err == nil {
		t.Fatalf("expected negative target error")
	}
	if _, err := a.Forward(inputs, []int{0}); err == nil {
		t.Fatalf("expected batch size mismatch error")
	}
}

func TestLogProbIsDistribution(t *testing.T) {
	a, err := NewAdaptiveSoftmax(12, []int{4, 9, 15}, WithDivValue(2))
	if err != nil {
		t.Fatalf("construction failed: %v", err)
	}
	inputs := tensor.Randn(5, 12)
	lp, err := a.LogProb(inputs)
	if err != nil {
		t.Fatalf("logprob failed: %v", err)
	}
	shape := lp.Shape()
	if shape[0] != 5 || shape[1] != 15 {
		t.Fatalf("unexpected logprob shape: %v", shape)
	}
	data := lp.Data()
	for r := 0; r < 5; r++ {
		sum := 0.0
		for c := 0; c < 15; c++ {
			sum += math.Exp(data[r*15+c])
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("row %d probabilities sum to %v", r, sum)
		}
	}
}

func TestForwardMatchesLogProb(t *testing.T) {
	a, err := NewAdaptiveSoftmax(10, []int{3, 7, 12}, WithReduction(ReductionNone))
	if err != nil {
		t.Fatalf("construction failed: %v", err)
	}
	inputs := tensor.Randn(6, 10)
	targets := []int{0, 4, 11, 2, 8, 5}

	lossVec, err := a.Forward(inputs, targets)
	if err != nil {
		t.Fatalf("forward failed: %v", err)
	}
	if lossVec.Numel() != 6 {
		t.Fatalf("unexpected per-example loss size: %v", lossVec.Shape())
	}
	lp, err := a.LogProb(inputs)
	if err != nil {
		t.Fatalf("logprob failed: %v", err)
	}
	lpData := lp.Data()
	lossData := lossVec.Data()
	for i, target := range targets {
		want := -lpData[i*12+target]
		if math.Abs(lossData[i]-want) > 1e-9 {
			t.Fatalf("loss mismatch at %d: got %v want %v", i, lossData[i], want)
		}
	}
}

func TestPredictMatchesArgMax(t *testing.T) {
	a, err := NewAdaptiveSoftmax(8, []int{4, 10})
	if err != nil {
		t.Fatalf("construction failed: %v", err)
	}
	inputs := tensor.Randn(7, 8)
	predicted, err := a.Predict(inputs)
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	lp, err := a.LogProb(inputs)
	if err != nil {
		t.Fatalf("logprob failed: %v", err)
	}
	want, err := tensor.ArgMax(lp, 1)
	if err != nil {
		t.Fatalf("argmax failed: %v", err)
	}
	if len(predicted) != len(want) {
		t.Fatalf("prediction count mismatch: %d vs %d", len(predicted), len(want))
	}
	for i := range predicted {
		if predicted[i] != want[i] {
			t.Fatalf("prediction mismatch at %d: got %d want %d", i, predicted[i], want[i])
		}
	}
}

func TestHeadOnlyBatchSkipsTails(t *testing.T) {
	a, err := NewAdaptiveSoftmax(6, []int{3, 8}, WithReduction(ReductionNone))
	if err != nil {
		t.Fatalf("construction failed: %v", err)
	}
	inputs := tensor.Randn(4, 6)
	targets := []int{0, 2, 1, 0}

	before, err := a.Forward(inputs, targets)
	if err != nil {
		t.Fatalf("forward failed: %v", err)
	}

	// Corrupting tail parameters must not change a head-only loss.
	for _, p := range a.tails[0].down.Parameters() {
		if err := p.SetData(make([]float64, p.Numel())); err != nil {
			t.Fatalf("corrupt tail: %v", err)
		}
	}
	after, err := a.Forward(inputs, targets)
	if err != nil {
		t.Fatalf("forward after corruption failed: %v", err)
	}
	if !almostEqual(before.Data(), after.Data(), 0) {
		t.Fatalf("head-only loss depends on tail parameters: %v vs %v", before.Data(), after.Data())
	}
}

func TestGradientFlowThroughRouting(t *testing.T) {
	a, err := NewAdaptiveSoftmax(6, []int{2, 5, 9})
	if err != nil {
		t.Fatalf("construction failed: %v", err)
	}
	inputs := tensor.Randn(4, 6)
	inputs.SetRequiresGrad(true)
	// Targets touch the head and the first tail cluster, never the second.
	targets := []int{0, 3, 4, 1}

	l, err := a.Forward(inputs, targets)
	if err != nil {
		t.Fatalf("forward failed: %v", err)
	}
	if err := l.Backward(); err != nil {
		t.Fatalf("backward failed: %v", err)
	}

	if a.head.Weight().Grad() == nil {
		t.Fatalf("expected gradient on head weight")
	}
	if a.tails[0].down.Weight().Grad() == nil {
		t.Fatalf("expected gradient on routed tail cluster")
	}
	if a.tails[1].down.Weight().Grad() != nil {
		t.Fatalf("tail cluster without targets must receive no gradient")
	}
	if inputs.Grad() == nil {
		t.Fatalf("expected gradient on inputs")
	}
}

func TestReductionModes(t *testing.T) {
	inputs := tensor.Randn(5, 7)
	targets := []int{0, 6, 3, 1, 4}
	build := func(r Reduction) *tensor.Tensor {
		tensor.Seed(99)
		a, err := NewAdaptiveSoftmax(7, []int{3, 7}, WithReduction(r))
		if err != nil {
			t.Fatalf("construction failed: %v", err)
		}
		out, err := a.Forward(inputs, targets)
		if err != nil {
			t.Fatalf("forward failed: %v", err)
		}
		return out
	}
	none := build(ReductionNone)
	sum := build(ReductionSum)
	mean := build(ReductionMean)

	if none.Numel() != 5 {
		t.Fatalf("unexpected unreduced size: %v", none.Shape())
	}
	total := 0.0
	for _, v := range none.Data() {
		total += v
	}
	if math.Abs(sum.Data()[0]-total) > 1e-9 {
		t.Fatalf("sum reduction mismatch: got %v want %v", sum.Data()[0], total)
	}
	if math.Abs(mean.Data()[0]-total/5) > 1e-9 {
		t.Fatalf("mean reduction mismatch: got %v want %v", mean.Data()[0], total/5)
	}
}

func TestAdaptiveSoftmaxSaveLoadRoundTrip(t *testing.T) {
	a, err := NewAdaptiveSoftmax(9, []int{4, 11}, WithDivValue(3), WithReduction(ReductionSum), WithBias(true))
	if err != nil {
		t.Fatalf("construction failed: %v", err)
	}
	inputs := tensor.Randn(3, 9)
	before, err := a.LogProb(inputs)
	if err != nil {
		t.Fatalf("logprob failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "adaptive.json")
	if err := a.Save(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	loaded, err := LoadAdaptiveSoftmax(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Reduction() != ReductionSum {
		t.Fatalf("reduction not restored: %v", loaded.Reduction())
	}
	after, err := loaded.LogProb(inputs)
	if err != nil {
		t.Fatalf("logprob after load failed: %v", err)
	}
	// Round-trip must be bit-identical.
	if !almostEqual(before.Data(), after.Data(), 0) {
		t.Fatalf("logprob changed across save/load")
	}
}

func TestTailHiddenWidthFloorsAtOne(t *testing.T) {
	a, err := NewAdaptiveSoftmax(4, []int{2, 5, 9, 12}, WithDivValue(4))
	if err != nil {
		t.Fatalf("construction failed: %v", err)
	}
	widths := make([]int, len(a.tails))
	for i, tail := range a.tails {
		widths[i] = tail.down.OutFeatures()
	}
	// floor(4/4)=1, floor(4/16)=0 -> floored to 1, same for deeper tails.
	want := []int{1, 1, 1}
	for i := range want {
		if widths[i] != want[i] {
			t.Fatalf("unexpected hidden widths: %v", widths)
		}
	}
	if widths[0] < widths[1] || widths[1] < widths[2] {
		t.Fatalf("hidden widths must be non-increasing: %v", widths)
	}
}

func TestLogProbPreservesBatchDims(t *testing.T) {
	a, err := NewAdaptiveSoftmax(5, []int{2, 6})
	if err != nil {
		t.Fatalf("construction failed: %v", err)
	}
	inputs := tensor.Randn(2, 3, 5)
	lp, err := a.LogProb(inputs)
	if err != nil {
		t.Fatalf("logprob failed: %v", err)
	}
	shape := lp.Shape()
	if len(shape) != 3 || shape[0] != 2 || shape[1] != 3 || shape[2] != 6 {
		t.Fatalf("unexpected logprob shape: %v", shape)
	}
	predicted, err := a.Predict(inputs)
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	if len(predicted) != 6 {
		t.Fatalf("expected one prediction per example, got %d", len(predicted))
	}
}
