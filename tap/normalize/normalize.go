// Package normalize rescales every species' pulses against the per-pulse
// areas of a reference ("inert") species.
//
// For the inert species the trapezoid area of each pulse is divided by
// the largest one, giving coefficients in (0, 1] with the max-area pulse
// at exactly 1. Pulse i of every species, the inert one included, is then
// divided by coefficient i. All species must carry the same number of
// pulses as the inert one; a mismatch fails the whole call.
package normalize

import (
	"fmt"
	"slices"

	"github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"

	"github.com/cwbudde/algo-tap/tap/pulse"
	"github.com/cwbudde/algo-tap/tap/registry"
)

// Areas integrates each pulse over times with the trapezoid rule.
func Areas(pulses [][]float64, times []float64) ([]float64, error) {
	if len(times) < 2 {
		return nil, fmt.Errorf("%w: normalize: %d time samples, need at least 2", pulse.ErrShape, len(times))
	}
	if !slices.IsSorted(times) {
		return nil, fmt.Errorf("%w: normalize: time axis is not sorted", pulse.ErrShape)
	}
	out := make([]float64, len(pulses))
	for i, p := range pulses {
		if len(p) != len(times) {
			return nil, fmt.Errorf("%w: normalize: pulse %d has %d samples, times has %d",
				pulse.ErrShape, i, len(p), len(times))
		}
		out[i] = integrate.Trapezoidal(times, p)
	}
	return out, nil
}

// Coefficients divides areas by their maximum. Every coefficient must be
// positive.
func Coefficients(areas []float64) ([]float64, error) {
	if len(areas) == 0 {
		return nil, fmt.Errorf("%w: normalize: no areas", pulse.ErrShape)
	}
	peak := floats.Max(areas)
	if !(peak > 0) {
		return nil, fmt.Errorf("%w: normalize: largest pulse area %g is not positive", pulse.ErrValidation, peak)
	}
	out := make([]float64, len(areas))
	for i, a := range areas {
		c := a / peak
		if !(c > 0) {
			return nil, fmt.Errorf("%w: normalize: pulse %d coefficient %g is not positive", pulse.ErrValidation, i, c)
		}
		out[i] = c
	}
	return out, nil
}

// MaxAreaPulse returns the index of the largest area, the pulse every
// other one is normalized against.
func MaxAreaPulse(areas []float64) int {
	if len(areas) == 0 {
		return -1
	}
	return floats.MaxIdx(areas)
}

// Result holds the normalized arrays of one call.
type Result struct {
	Inert        string
	Coefficients []float64
	Areas        map[string][]float64
	Arrays       map[string]pulse.Array
}

// Keys returns the normalized keys in registry order.
func (r Result) Keys() []string {
	keys := make([]string, 0, len(r.Arrays))
	for k := range r.Arrays {
		keys = append(keys, k)
	}
	registry.SortKeys(keys)
	return keys
}

// Normalize rescales every array in snapshot against the inert key. Each
// array is integrated over its own time axis. Nothing is returned unless
// every species can be normalized.
func Normalize(snapshot map[string]pulse.Array, inert string) (Result, error) {
	ref, ok := snapshot[inert]
	if !ok {
		return Result{}, fmt.Errorf("%w: normalize: inert species %q not found", pulse.ErrLookup, inert)
	}

	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	registry.SortKeys(keys)

	nPulses := ref.NPulses()
	for _, k := range keys {
		a := snapshot[k]
		if err := a.Validate(); err != nil {
			return Result{}, fmt.Errorf("normalize: %s: %w", k, err)
		}
		if a.NPulses() != nPulses {
			return Result{}, fmt.Errorf("%w: normalize: %s has %d pulses, inert %s has %d",
				pulse.ErrShape, k, a.NPulses(), inert, nPulses)
		}
	}

	areas := make(map[string][]float64, len(keys))
	for _, k := range keys {
		a := snapshot[k]
		ar, err := Areas(a.Pulses(), a.Times())
		if err != nil {
			return Result{}, fmt.Errorf("normalize: %s: %w", k, err)
		}
		areas[k] = ar
	}

	coeffs, err := Coefficients(areas[inert])
	if err != nil {
		return Result{}, fmt.Errorf("normalize: inert %s: %w", inert, err)
	}

	arrays := make(map[string]pulse.Array, len(keys))
	for _, k := range keys {
		a := snapshot[k]
		scaled := make([][]float64, nPulses)
		for i, p := range a.Pulses() {
			q := make([]float64, len(p))
			vecmath.ScaleBlock(q, p, 1/coeffs[i])
			scaled[i] = q
		}
		out, err := pulse.NewArray(a.AMU(), a.Times(), scaled)
		if err != nil {
			return Result{}, fmt.Errorf("normalize: %s: %w", k, err)
		}
		arrays[k] = out
	}

	return Result{
		Inert:        inert,
		Coefficients: coeffs,
		Areas:        areas,
		Arrays:       arrays,
	}, nil
}
