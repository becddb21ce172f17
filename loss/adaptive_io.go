package loss

import (
	"encoding/json"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/fumitoshi0524/adasoft/tensor"
)

const adaptiveFormatVersion = 1

type adaptiveParamRecord struct {
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// adaptiveRecord is the on-disk envelope: configuration plus every
// projection parameter, versioned so the format can evolve.
type adaptiveRecord struct {
	Version   int                            `json:"version"`
	InputSize int                            `json:"input_size"`
	Cutoff    []int                          `json:"cutoff"`
	DivValue  float64                        `json:"div_value"`
	Reduction string                         `json:"reduction"`
	Bias      bool                           `json:"bias"`
	State     map[string]adaptiveParamRecord `json:"state"`
}

// Save persists configuration and parameters to path. The encoding
// round-trips float64 values exactly.
func (a *AdaptiveSoftmax) Save(path string) error {
	state := make(map[string]*tensor.Tensor)
	a.StateDict("", state)
	record := adaptiveRecord{
		Version:   adaptiveFormatVersion,
		InputSize: a.inputSize,
		Cutoff:    a.Cutoff(),
		DivValue:  a.divValue,
		Reduction: a.reduction.String(),
		Bias:      a.withBias,
		State:     make(map[string]adaptiveParamRecord, len(state)),
	}
	for name, t := range state {
		record.State[name] = adaptiveParamRecord{Shape: t.Shape(), Data: t.Data()}
	}
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "loss: create %s", path)
	}
	defer file.Close()
	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(record)
}

// LoadAdaptiveSoftmax reconstructs a saved adaptive softmax, restoring both
// configuration and parameters.
func LoadAdaptiveSoftmax(path string) (*AdaptiveSoftmax, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "loss: open %s", path)
	}
	defer file.Close()
	var record adaptiveRecord
	if err := json.NewDecoder(file).Decode(&record); err != nil {
		return nil, errors.Wrapf(err, "loss: decode %s", path)
	}
	if record.Version != adaptiveFormatVersion {
		return nil, errors.Newf("loss: unsupported adaptive softmax format version %d", record.Version)
	}
	reduction, err := parseReduction(record.Reduction)
	if err != nil {
		return nil, err
	}
	a, err := NewAdaptiveSoftmax(record.InputSize, record.Cutoff,
		WithDivValue(record.DivValue),
		WithReduction(reduction),
		WithBias(record.Bias),
	)
	if err != nil {
		return nil, err
	}
	state := make(map[string]*tensor.Tensor, len(record.State))
	for name, rec := range record.State {
		t, err := tensor.New(rec.Data, rec.Shape...)
		if err != nil {
			return nil, errors.Wrapf(err, "loss: parameter %q", name)
		}
		state[name] = t
	}
	if err := a.LoadState("", state); err != nil {
		return nil, err
	}
	return a, nil
}
