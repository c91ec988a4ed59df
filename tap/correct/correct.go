package correct

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-tap/dsp/filter/savgol"
	"github.com/cwbudde/algo-tap/tap/pulse"
)

// Window is an inclusive time span [Start, End].
type Window struct {
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
}

// Disabled is the sentinel window meaning "no baseline window selected".
var Disabled = Window{Start: 1, End: 1}

// Contains reports whether t lies in the window.
func (w Window) Contains(t float64) bool {
	return t >= w.Start && t <= w.End
}

// suppressed reports whether w is the disabled sentinel for a dataset
// sampled on times.
func (w Window) suppressed(times []float64) bool {
	if w != Disabled || len(times) == 0 {
		return false
	}
	return 1 < times[0] || 1 > times[len(times)-1]
}

// Params selects the correction applied to one dataset.
type Params struct {
	Window     Window
	Baseline   bool
	Smooth     bool
	WindowSize int
	Order      int
}

// Validate checks the parameters of the enabled stages.
func (p Params) Validate() error {
	if p.Baseline {
		if math.IsNaN(p.Window.Start) || math.IsNaN(p.Window.End) {
			return fmt.Errorf("%w: correct: baseline window is NaN", pulse.ErrValidation)
		}
		if p.Window.Start > p.Window.End {
			return fmt.Errorf("%w: correct: baseline window start %g after end %g",
				pulse.ErrValidation, p.Window.Start, p.Window.End)
		}
	}
	if p.Smooth {
		if err := savgol.Validate(p.WindowSize, p.Order); err != nil {
			return fmt.Errorf("%w: correct: %w", pulse.ErrValidation, err)
		}
	}
	return nil
}

// Variant returns the variant name produced by p.
func (p Params) Variant() pulse.Variant {
	return pulse.VariantFor(p.Baseline, p.Smooth)
}

// Result is the outcome of Correct.
type Result struct {
	// Dataset is a copy of the input with Pulses attached under Variant.
	Dataset *pulse.Dataset
	Variant pulse.Variant
	Pulses  [][]float64
}

// Array returns the export-ready array of the corrected pulses.
func (r Result) Array() (pulse.Array, error) {
	return pulse.NewArray(r.Dataset.AMU, r.Dataset.Times, r.Pulses)
}

// Correct applies p to d. With both toggles off, or with baseline
// suppressed by the Disabled window, the result carries a copy of the raw
// pulses.
func Correct(d *pulse.Dataset, p Params) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	if d == nil {
		return Result{}, fmt.Errorf("%w: correct: nil dataset", pulse.ErrValidation)
	}
	if err := d.Validate(); err != nil {
		return Result{}, fmt.Errorf("correct: dataset %s: %w", d.Key(), err)
	}

	pulses := d.Pulses
	changed := false
	if p.Baseline && !p.Window.suppressed(d.Times) {
		var err error
		if pulses, err = Baseline(pulses, d.Times, p.Window); err != nil {
			return Result{}, fmt.Errorf("correct: dataset %s: %w", d.Key(), err)
		}
		changed = true
	}
	if p.Smooth {
		var err error
		if pulses, err = Smooth(pulses, p.WindowSize, p.Order); err != nil {
			return Result{}, fmt.Errorf("correct: dataset %s: %w", d.Key(), err)
		}
		changed = true
	}
	if !changed {
		pulses = copyMatrix(d.Pulses)
	}

	v := p.Variant()
	return Result{
		Dataset: d.WithVariant(v, pulses),
		Variant: v,
		Pulses:  pulses,
	}, nil
}

// Baseline subtracts from each pulse its mean over the samples inside w.
// The input is not modified.
func Baseline(pulses [][]float64, times []float64, w Window) ([][]float64, error) {
	var idx []int
	for i, t := range times {
		if w.Contains(t) {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return nil, fmt.Errorf("%w: correct: baseline window [%g, %g] selects no samples",
			pulse.ErrValidation, w.Start, w.End)
	}

	out := make([][]float64, len(pulses))
	for i, p := range pulses {
		if len(p) != len(times) {
			return nil, fmt.Errorf("%w: correct: pulse %d has %d samples, times has %d",
				pulse.ErrShape, i, len(p), len(times))
		}
		var sum float64
		for _, j := range idx {
			sum += p[j]
		}
		mean := sum / float64(len(idx))

		q := make([]float64, len(p))
		for j, v := range p {
			q[j] = v - mean
		}
		out[i] = q
	}
	return out, nil
}

// Smooth applies a Savitzky-Golay filter to each pulse. The filter is
// designed once and shared by all pulses.
func Smooth(pulses [][]float64, windowSize, order int) ([][]float64, error) {
	f, err := savgol.Design(windowSize, order)
	if err != nil {
		return nil, fmt.Errorf("%w: correct: %w", pulse.ErrValidation, err)
	}
	out := make([][]float64, len(pulses))
	for i, p := range pulses {
		y, err := f.Apply(p)
		if err != nil {
			return nil, fmt.Errorf("%w: correct: pulse %d: %w", pulse.ErrValidation, i, err)
		}
		out[i] = y
	}
	return out, nil
}

func copyMatrix(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, r := range m {
		out[i] = append([]float64(nil), r...)
	}
	return out
}
