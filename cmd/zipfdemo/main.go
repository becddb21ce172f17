// Command zipfdemo trains an adaptive softmax on a synthetic classification
// task with a Zipf-shaped label distribution, the regime the loss is built
// for: a few frequent head classes and a long tail of rare ones.
package main

import (
	"flag"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/fumitoshi0524/adasoft/loss"
	"github.com/fumitoshi0524/adasoft/pkg/log"
	"github.com/fumitoshi0524/adasoft/tensor"
)

func main() {
	var (
		classes  = flag.Int("classes", 200, "total number of classes")
		dim      = flag.Int("dim", 32, "input feature dimension")
		batch    = flag.Int("batch", 64, "minibatch size")
		steps    = flag.Int("steps", 400, "training steps")
		lr       = flag.Float64("lr", 0.5, "learning rate")
		clip     = flag.Float64("clip", 5.0, "gradient value clip, 0 disables")
		exponent = flag.Float64("s", 1.2, "Zipf exponent for the label distribution")
		seed     = flag.Uint64("seed", 7, "RNG seed")
		outDir   = flag.String("out", "", "directory for the saved model (default temp)")
		verbose  = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := log.Console(level).With().Str(log.ComponentKey, "zipfdemo").Logger()

	tensor.Seed(int64(*seed))
	src := rand.NewPCG(*seed, *seed+1)
	task := newZipfTask(*classes, *dim, *exponent, src)

	cutoff := []int{*classes / 10, *classes / 2, *classes}
	model, err := loss.NewAdaptiveSoftmax(*dim, cutoff, loss.WithDivValue(4))
	if err != nil {
		logger.Fatal().Err(err).Msg("build model")
	}
	logger.Info().
		Str("model", model.PrettyString()).
		Int("classes", *classes).
		Float64("zipf_exponent", *exponent).
		Msg("training")

	start := time.Now()
	for step := 1; step <= *steps; step++ {
		inputs, targets := task.sample(*batch)
		l, err := model.Forward(inputs, targets)
		if err != nil {
			logger.Fatal().Err(err).Msg("forward")
		}
		if err := l.Backward(); err != nil {
			logger.Fatal().Err(err).Msg("backward")
		}
		sgdStep(model.Parameters(), *lr, *clip)
		model.ZeroGrad()

		if step%50 == 0 || step == *steps {
			logger.Info().
				Int(log.StepKey, step).
				Float64(log.LossKey, l.Data()[0]).
				Msg("progress")
		} else {
			logger.Debug().Int(log.StepKey, step).Float64(log.LossKey, l.Data()[0]).Msg("progress")
		}
	}
	logger.Info().Int64(log.DurationKey, time.Since(start).Milliseconds()).Msg("training done")

	inputs, targets := task.sample(512)
	predicted, err := model.Predict(inputs)
	if err != nil {
		logger.Fatal().Err(err).Msg("predict")
	}
	logger.Info().Float64(log.AccuracyKey, accuracy(predicted, targets)).Msg("evaluation")

	dir := *outDir
	if dir == "" {
		dir, err = os.MkdirTemp("", "zipfdemo")
		if err != nil {
			logger.Fatal().Err(err).Msg("temp dir")
		}
	}
	path := filepath.Join(dir, "adaptive_softmax.json")
	if err := model.Save(path); err != nil {
		logger.Fatal().Err(err).Msg("save model")
	}
	restored, err := loss.LoadAdaptiveSoftmax(path)
	if err != nil {
		logger.Fatal().Err(err).Msg("load model")
	}
	reloaded, err := restored.Predict(inputs)
	if err != nil {
		logger.Fatal().Err(err).Msg("predict after reload")
	}
	logger.Info().
		Str("path", path).
		Float64(log.AccuracyKey, accuracy(reloaded, targets)).
		Msg("model saved and restored")
}

// zipfTask generates linearly separable examples whose labels follow a
// Zipf-shaped categorical distribution: weight 1/rank^s for class rank.
type zipfTask struct {
	dim        int
	embeddings []float64
	labels     distuv.Categorical
	noise      *rand.Rand
}

func newZipfTask(classes, dim int, exponent float64, src rand.Source) *zipfTask {
	noise := rand.New(src)
	embeddings := make([]float64, classes*dim)
	for i := range embeddings {
		embeddings[i] = noise.NormFloat64()
	}
	weights := make([]float64, classes)
	for i := range weights {
		weights[i] = 1 / math.Pow(float64(i+1), exponent)
	}
	return &zipfTask{
		dim:        dim,
		embeddings: embeddings,
		labels:     distuv.NewCategorical(weights, src),
		noise:      noise,
	}
}

func (z *zipfTask) sample(batch int) (*tensor.Tensor, []int) {
	data := make([]float64, batch*z.dim)
	targets := make([]int, batch)
	for i := 0; i < batch; i++ {
		label := int(z.labels.Rand())
		targets[i] = label
		for j := 0; j < z.dim; j++ {
			data[i*z.dim+j] = z.embeddings[label*z.dim+j] + 0.3*z.noise.NormFloat64()
		}
	}
	return tensor.MustNew(data, batch, z.dim), targets
}

// sgdStep applies one vanilla gradient descent update with optional value
// clipping.
func sgdStep(params []*tensor.Tensor, lr, clip float64) {
	for _, p := range params {
		if p.Grad() == nil {
			continue
		}
		if clip > 0 {
			p.ClipGradValue(clip)
		}
		if err := p.AddScaled(p.Grad(), -lr); err != nil {
			panic(err)
		}
	}
}

func accuracy(predicted, targets []int) float64 {
	if len(predicted) == 0 {
		return 0
	}
	hits := 0
	for i := range predicted {
		if predicted[i] == targets[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(predicted))
}
