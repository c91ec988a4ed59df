package pulse

import (
	"fmt"
)

// Array is the export-ready form of one species' pulses.
//
// Row 0 repeats the AMU value, row 1 is the time axis, row 2 the average
// pulse and rows 3.. the pulses themselves. Every row has one entry per
// datapoint.
type Array [][]float64

// Number of leading metadata rows before the first pulse row.
const headerRows = 3

// NewArray assembles an Array, recomputing the average row from pulses.
// The input slices are copied.
func NewArray(amu float64, times []float64, pulses [][]float64) (Array, error) {
	n := len(times)
	if n == 0 {
		return nil, fmt.Errorf("%w: empty time axis", ErrShape)
	}
	if len(pulses) == 0 {
		return nil, fmt.Errorf("%w: no pulses", ErrShape)
	}
	if err := checkMatrix(pulses, len(pulses), n); err != nil {
		return nil, err
	}

	a := make(Array, headerRows+len(pulses))
	amuRow := make([]float64, n)
	for i := range amuRow {
		amuRow[i] = amu
	}
	a[0] = amuRow
	a[1] = append([]float64(nil), times...)
	a[2] = Mean(pulses)
	for i, p := range pulses {
		a[headerRows+i] = append([]float64(nil), p...)
	}
	return a, nil
}

// Validate checks the Array has a header, at least one pulse and a
// rectangular layout.
func (a Array) Validate() error {
	if len(a) <= headerRows {
		return fmt.Errorf("%w: array has %d rows, need at least %d", ErrShape, len(a), headerRows+1)
	}
	n := len(a[0])
	if n == 0 {
		return fmt.Errorf("%w: array has no datapoints", ErrShape)
	}
	return checkMatrix(a, len(a), n)
}

// AMU returns the species identifier stored in the first row.
func (a Array) AMU() float64 {
	if len(a) == 0 || len(a[0]) == 0 {
		return 0
	}
	return a[0][0]
}

// Times returns the time axis row.
func (a Array) Times() []float64 {
	if len(a) < 2 {
		return nil
	}
	return a[1]
}

// Avg returns the average pulse row.
func (a Array) Avg() []float64 {
	if len(a) < headerRows {
		return nil
	}
	return a[2]
}

// Pulses returns the pulse rows.
func (a Array) Pulses() [][]float64 {
	if len(a) < headerRows {
		return nil
	}
	return a[headerRows:]
}

// NPulses returns the number of pulse rows.
func (a Array) NPulses() int {
	return len(a.Pulses())
}

// NDatapoints returns the number of columns.
func (a Array) NDatapoints() int {
	if len(a) == 0 {
		return 0
	}
	return len(a[0])
}
