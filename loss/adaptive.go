package loss

import (
	"fmt"
	"math"

	"github.com/cockroachdb/errors"

	"github.com/fumitoshi0524/adasoft/nn"
	"github.com/fumitoshi0524/adasoft/tensor"
)

// AdaptiveSoftmax is an efficient approximation of softmax cross entropy for
// very large, frequency-skewed vocabularies (Grave et al. 2017, "Efficient
// softmax approximation for GPUs"). Classes are bucketed by frequency: a
// head cluster of frequent classes plus one meta-class slot per tail
// cluster, and reduced-rank tail clusters for the rare classes. During
// training only the tail clusters that actually receive targets in a
// minibatch are evaluated.
type AdaptiveSoftmax struct {
	inputSize int
	cutoff    []int
	divValue  float64
	reduction Reduction
	withBias  bool

	head  *nn.Linear
	tails []tailProjection
}

// tailProjection factorizes a tail cluster's projection through a narrow
// hidden width. There is deliberately no nonlinearity between the two maps:
// the factorization is a low-rank approximation, not extra capacity.
type tailProjection struct {
	down *nn.Linear
	up   *nn.Linear
}

var _ Loss = (*AdaptiveSoftmax)(nil)

// Option configures an AdaptiveSoftmax at construction.
type Option func(*AdaptiveSoftmax)

// WithDivValue sets the geometric shrink factor for tail hidden widths.
func WithDivValue(v float64) Option {
	return func(a *AdaptiveSoftmax) { a.divValue = v }
}

// WithReduction sets how per-example losses are combined.
func WithReduction(r Reduction) Option {
	return func(a *AdaptiveSoftmax) { a.reduction = r }
}

// WithBias enables bias terms on all cluster projections.
func WithBias(enabled bool) Option {
	return func(a *AdaptiveSoftmax) { a.withBias = enabled }
}

// NewAdaptiveSoftmax builds an adaptive softmax over cutoff[len-1] classes.
// cutoff must be strictly ascending and positive; its last entry is the
// total number of classes (there is no overflow bucket). Misconfiguration
// fails here, not at the first forward call.
func NewAdaptiveSoftmax(inputSize int, cutoff []int, opts ...Option) (*AdaptiveSoftmax, error) {
	a := &AdaptiveSoftmax{
		inputSize: inputSize,
		cutoff:    append([]int(nil), cutoff...),
		divValue:  4.0,
		reduction: ReductionMean,
	}
	for _, opt := range opts {
		opt(a)
	}
	if inputSize <= 0 {
		return nil, errors.Newf("loss: adaptive softmax input size must be positive, got %d", inputSize)
	}
	if len(cutoff) == 0 {
		return nil, errors.New("loss: adaptive softmax requires at least one cutoff")
	}
	prev := 0
	for i, c := range cutoff {
		if c <= prev {
			return nil, errors.Newf("loss: cutoffs must be strictly ascending and positive, got %v at index %d", cutoff, i)
		}
		prev = c
	}
	if a.divValue <= 0 {
		return nil, errors.Newf("loss: div value must be positive, got %g", a.divValue)
	}

	headSize := cutoff[0] + len(cutoff) - 1
	a.head = nn.NewLinear(inputSize, headSize, a.withBias)
	a.tails = make([]tailProjection, 0, len(cutoff)-1)
	for i := 1; i < len(cutoff); i++ {
		hidden := int(float64(inputSize) / math.Pow(a.divValue, float64(i)))
		if hidden < 1 {
			hidden = 1
		}
		clusterSize := cutoff[i] - cutoff[i-1]
		a.tails = append(a.tails, tailProjection{
			down: nn.NewLinear(inputSize, hidden, a.withBias),
			up:   nn.NewLinear(hidden, clusterSize, a.withBias),
		})
	}
	return a, nil
}

// NumClasses reports the total class count, cutoff[len-1].
func (a *AdaptiveSoftmax) NumClasses() int {
	return a.cutoff[len(a.cutoff)-1]
}

// Cutoff returns a copy of the configured cutoffs.
func (a *AdaptiveSoftmax) Cutoff() []int {
	return append([]int(nil), a.cutoff...)
}

// Reduction reports the configured reduction mode.
func (a *AdaptiveSoftmax) Reduction() Reduction {
	return a.reduction
}

// clusterSelection names the batch rows routed to one tail cluster and their
// targets remapped to local cluster indices. Ephemeral per forward call.
type clusterSelection struct {
	rows  []int
	local []int
}

// routeTargets validates targets and assigns each example a head slot: the
// target itself when it falls in the head bucket, otherwise the meta-class
// slot of its tail cluster. It is a pure function of targets and cutoffs.
func (a *AdaptiveSoftmax) routeTargets(targets []int) ([]int, []clusterSelection, error) {
	numClasses := a.NumClasses()
	headSlots := make([]int, len(targets))
	clusters := make([]clusterSelection, len(a.tails))
	for pos, target := range targets {
		if target < 0 || target >= numClasses {
			return nil, nil, errors.Newf("loss: target %d at position %d out of range [0,%d)", target, pos, numClasses)
		}
		if target < a.cutoff[0] {
			headSlots[pos] = target
			continue
		}
		cluster := 0
		for target >= a.cutoff[cluster+1] {
			cluster++
		}
		headSlots[pos] = a.cutoff[0] + cluster
		clusters[cluster].rows = append(clusters[cluster].rows, pos)
		clusters[cluster].local = append(clusters[cluster].local, target-a.cutoff[cluster])
	}
	return headSlots, clusters, nil
}

// flattenBatch collapses any leading batch dimensions into one, leaving
// [batch, inputSize]. The original batch dimensions come back so callers
// can restore output shapes.
func (a *AdaptiveSoftmax) flattenBatch(inputs *tensor.Tensor) (*tensor.Tensor, []int, error) {
	shape := inputs.Shape()
	if len(shape) == 0 || shape[len(shape)-1] != a.inputSize {
		return nil, nil, errors.Newf("loss: adaptive softmax expects trailing dimension %d, got shape %v", a.inputSize, shape)
	}
	batchDims := shape[:len(shape)-1]
	batch := 1
	for _, d := range batchDims {
		batch *= d
	}
	if batch == 0 {
		return nil, nil, errors.Newf("loss: adaptive softmax requires a non-empty batch, got shape %v", shape)
	}
	x, err := inputs.Reshape(batch, a.inputSize)
	if err != nil {
		return nil, nil, err
	}
	return x, batchDims, nil
}

// Forward computes the adaptive softmax negative log likelihood. Tail
// clusters with no routed targets are skipped entirely; the log-probability
// of a tail target decomposes as log P(cluster) + log P(class | cluster).
func (a *AdaptiveSoftmax) Forward(inputs *tensor.Tensor, targets []int) (*tensor.Tensor, error) {
	x, _, err := a.flattenBatch(inputs)
	if err != nil {
		return nil, err
	}
	batch := x.Shape()[0]
	if len(targets) != batch {
		return nil, errors.Newf("loss: got %d targets for batch %d", len(targets), batch)
	}
	headSlots, clusters, err := a.routeTargets(targets)
	if err != nil {
		return nil, err
	}

	headOut, err := a.head.Forward(x)
	if err != nil {
		return nil, err
	}
	headLogProb, err := tensor.LogSoftmax(headOut, 1)
	if err != nil {
		return nil, err
	}
	logProb, err := tensor.Gather(headLogProb, 1, targetIndexColumn(headSlots))
	if err != nil {
		return nil, err
	}

	for i, sel := range clusters {
		if len(sel.rows) == 0 {
			continue
		}
		selected, err := tensor.TakeRows(x, sel.rows)
		if err != nil {
			return nil, err
		}
		tailLogProb, err := a.tails[i].logSoftmax(selected)
		if err != nil {
			return nil, err
		}
		picked, err := tensor.Gather(tailLogProb, 1, targetIndexColumn(sel.local))
		if err != nil {
			return nil, err
		}
		spread, err := tensor.ScatterRows(picked, sel.rows, batch)
		if err != nil {
			return nil, err
		}
		logProb, err = tensor.Add(logProb, spread)
		if err != nil {
			return nil, err
		}
	}
	return reduce(tensor.MulScalar(logProb, -1), a.reduction)
}

func (p tailProjection) logSoftmax(x *tensor.Tensor) (*tensor.Tensor, error) {
	hidden, err := p.down.Forward(x)
	if err != nil {
		return nil, err
	}
	out, err := p.up.Forward(hidden)
	if err != nil {
		return nil, err
	}
	return tensor.LogSoftmax(out, 1)
}

// LogProb computes log-probabilities over the full class range for every
// example, shaped [batch..., NumClasses()]. Unlike Forward it runs every
// tail projection on all rows, so it costs O(classes) per example.
func (a *AdaptiveSoftmax) LogProb(inputs *tensor.Tensor) (*tensor.Tensor, error) {
	x, batchDims, err := a.flattenBatch(inputs)
	if err != nil {
		return nil, err
	}
	headOut, err := a.head.Forward(x)
	if err != nil {
		return nil, err
	}
	headLogProb, err := tensor.LogSoftmax(headOut, 1)
	if err != nil {
		return nil, err
	}
	full, err := a.fullLogProb(x, headLogProb)
	if err != nil {
		return nil, err
	}
	outShape := append(append([]int(nil), batchDims...), a.NumClasses())
	if len(outShape) == 1 {
		return full.Reshape(outShape[0])
	}
	return full.Reshape(outShape...)
}

// fullLogProb expands the head log-probabilities into a dense distribution
// over all classes: the head block passes through unchanged, and each tail
// cluster's log-softmax is shifted by its meta-class column.
func (a *AdaptiveSoftmax) fullLogProb(x, headLogProb *tensor.Tensor) (*tensor.Tensor, error) {
	sizes := make([]int, 0, len(a.cutoff))
	sizes = append(sizes, a.cutoff[0])
	for range a.tails {
		sizes = append(sizes, 1)
	}
	parts, err := tensor.Split(1, sizes, headLogProb)
	if err != nil {
		return nil, err
	}
	pieces := make([]*tensor.Tensor, 0, len(a.cutoff))
	pieces = append(pieces, parts[0])
	for i := range a.tails {
		tailLogProb, err := a.tails[i].logSoftmax(x)
		if err != nil {
			return nil, err
		}
		shifted, err := tensor.AddCols2D(tailLogProb, parts[i+1])
		if err != nil {
			return nil, err
		}
		pieces = append(pieces, shifted)
	}
	return tensor.Concat(1, pieces...)
}

// Predict returns the most probable class per example, in row-major order
// over any leading batch dimensions. Ties break toward the lowest class id.
func (a *AdaptiveSoftmax) Predict(inputs *tensor.Tensor) ([]int, error) {
	x, _, err := a.flattenBatch(inputs)
	if err != nil {
		return nil, err
	}
	headOut, err := a.head.Forward(x)
	if err != nil {
		return nil, err
	}
	headLogProb, err := tensor.LogSoftmax(headOut, 1)
	if err != nil {
		return nil, err
	}
	full, err := a.fullLogProb(x, headLogProb)
	if err != nil {
		return nil, err
	}
	return tensor.ArgMax(full, 1)
}

// PrettyString returns a short human-readable descriptor.
func (a *AdaptiveSoftmax) PrettyString() string {
	return fmt.Sprintf("AdaptiveSoftmax(in=%d, cutoff=%v, div=%g, reduction=%s)",
		a.inputSize, a.cutoff, a.divValue, a.reduction)
}

// Parameters exposes all projection parameters for optimization.
func (a *AdaptiveSoftmax) Parameters() []*tensor.Tensor {
	params := a.head.Parameters()
	for _, t := range a.tails {
		params = append(params, t.down.Parameters()...)
		params = append(params, t.up.Parameters()...)
	}
	return params
}

func (a *AdaptiveSoftmax) ZeroGrad() {
	for _, p := range a.Parameters() {
		p.ZeroGrad()
	}
}

// StateDict captures every projection parameter under stable names.
func (a *AdaptiveSoftmax) StateDict(prefix string, state map[string]*tensor.Tensor) {
	a.head.StateDict(join(prefix, "head"), state)
	for i, t := range a.tails {
		t.down.StateDict(join(prefix, fmt.Sprintf("tail.%d.down", i)), state)
		t.up.StateDict(join(prefix, fmt.Sprintf("tail.%d.up", i)), state)
	}
}

// LoadState restores parameters captured by StateDict.
func (a *AdaptiveSoftmax) LoadState(prefix string, state map[string]*tensor.Tensor) error {
	if err := a.head.LoadState(join(prefix, "head"), state); err != nil {
		return err
	}
	for i, t := range a.tails {
		if err := t.down.LoadState(join(prefix, fmt.Sprintf("tail.%d.down", i)), state); err != nil {
			return err
		}
		if err := t.up.LoadState(join(prefix, fmt.Sprintf("tail.%d.up", i)), state); err != nil {
			return err
		}
	}
	return nil
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
