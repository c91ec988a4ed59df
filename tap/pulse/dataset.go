package pulse

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Dataset is one species' full pulse-response record.
type Dataset struct {
	AMU            float64     `json:"amu"`
	Gain           int         `json:"gain"`
	CollectionTime float64     `json:"collection_time"`
	PulseSpacing   float64     `json:"pulse_spacing"`
	Index          int         `json:"index"`
	NDatapoints    int         `json:"n_datapoints"`
	NPulses        int         `json:"n_pulses"`
	Times          []float64   `json:"times"`
	Pulses         [][]float64 `json:"pulses"`

	variants map[Variant][][]float64
}

// Key formats an AMU value as a registry key.
func Key(amu float64) string {
	return strconv.FormatFloat(amu, 'f', 1, 64)
}

// Key returns the formatted AMU of d.
func (d *Dataset) Key() string {
	return Key(d.AMU)
}

// Validate checks that the pulse matrix and time axis agree with the
// declared counts and that times are non-decreasing.
func (d *Dataset) Validate() error {
	if d.NDatapoints <= 0 || d.NPulses <= 0 {
		return fmt.Errorf("%w: dataset %s: %d pulses x %d datapoints", ErrShape, d.Key(), d.NPulses, d.NDatapoints)
	}
	if len(d.Times) != d.NDatapoints {
		return fmt.Errorf("%w: dataset %s: %d times for %d datapoints", ErrShape, d.Key(), len(d.Times), d.NDatapoints)
	}
	if len(d.Pulses) != d.NPulses {
		return fmt.Errorf("%w: dataset %s: %d pulses, declared %d", ErrShape, d.Key(), len(d.Pulses), d.NPulses)
	}
	for i, p := range d.Pulses {
		if len(p) != d.NDatapoints {
			return fmt.Errorf("%w: dataset %s: pulse %d has %d samples, want %d", ErrShape, d.Key(), i, len(p), d.NDatapoints)
		}
	}
	for i := 1; i < len(d.Times); i++ {
		if d.Times[i] < d.Times[i-1] {
			return fmt.Errorf("%w: dataset %s: time axis decreases at sample %d", ErrShape, d.Key(), i)
		}
	}
	for v, pulses := range d.variants {
		if err := checkMatrix(pulses, d.NPulses, d.NDatapoints); err != nil {
			return fmt.Errorf("dataset %s: variant %q: %w", d.Key(), v, err)
		}
	}
	return nil
}

// AvgPulse returns the element-wise mean of the raw pulses.
func (d *Dataset) AvgPulse() []float64 {
	return Mean(d.Pulses)
}

// Variant returns the pulses stored under v. VariantRaw always resolves
// to the original pulses.
func (d *Dataset) Variant(v Variant) ([][]float64, bool) {
	if v == VariantRaw {
		return d.Pulses, true
	}
	p, ok := d.variants[v]
	return p, ok
}

// Variants returns the names of the attached derived variants.
func (d *Dataset) Variants() []Variant {
	out := make([]Variant, 0, len(d.variants))
	for _, v := range Variants() {
		if _, ok := d.variants[v]; ok {
			out = append(out, v)
		}
	}
	return out
}

// WithVariant returns a copy of d with pulses attached under v.
// The receiver is left untouched. Attaching VariantRaw is a no-op copy
// since the raw pulses can never be replaced.
func (d *Dataset) WithVariant(v Variant, pulses [][]float64) *Dataset {
	out := *d
	out.variants = make(map[Variant][][]float64, len(d.variants)+1)
	for k, p := range d.variants {
		out.variants[k] = p
	}
	if v != VariantRaw {
		out.variants[v] = pulses
	}
	return &out
}

// Array builds the export-ready array for the pulses stored under v.
func (d *Dataset) Array(v Variant) (Array, error) {
	pulses, ok := d.Variant(v)
	if !ok {
		return nil, fmt.Errorf("%w: dataset %s has no variant %q", ErrLookup, d.Key(), v)
	}
	return NewArray(d.AMU, d.Times, pulses)
}

type datasetJSON struct {
	AMU            float64                 `json:"amu"`
	Gain           int                     `json:"gain"`
	CollectionTime float64                 `json:"collection_time"`
	PulseSpacing   float64                 `json:"pulse_spacing"`
	Index          int                     `json:"index"`
	NDatapoints    int                     `json:"n_datapoints"`
	NPulses        int                     `json:"n_pulses"`
	Times          []float64               `json:"times"`
	Pulses         [][]float64             `json:"pulses"`
	Variants       map[Variant][][]float64 `json:"variants,omitempty"`
}

// MarshalJSON encodes the dataset including its attached variants.
func (d *Dataset) MarshalJSON() ([]byte, error) {
	return json.Marshal(datasetJSON{
		AMU:            d.AMU,
		Gain:           d.Gain,
		CollectionTime: d.CollectionTime,
		PulseSpacing:   d.PulseSpacing,
		Index:          d.Index,
		NDatapoints:    d.NDatapoints,
		NPulses:        d.NPulses,
		Times:          d.Times,
		Pulses:         d.Pulses,
		Variants:       d.variants,
	})
}

// UnmarshalJSON decodes a dataset previously written by MarshalJSON.
func (d *Dataset) UnmarshalJSON(data []byte) error {
	var raw datasetJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = Dataset{
		AMU:            raw.AMU,
		Gain:           raw.Gain,
		CollectionTime: raw.CollectionTime,
		PulseSpacing:   raw.PulseSpacing,
		Index:          raw.Index,
		NDatapoints:    raw.NDatapoints,
		NPulses:        raw.NPulses,
		Times:          raw.Times,
		Pulses:         raw.Pulses,
	}
	for v, p := range raw.Variants {
		if v == VariantRaw || !v.Valid() {
			continue
		}
		if d.variants == nil {
			d.variants = make(map[Variant][][]float64, len(raw.Variants))
		}
		d.variants[v] = p
	}
	return nil
}

// Mean returns the element-wise mean of equally long rows.
// Returns nil for an empty matrix.
func Mean(rows [][]float64) []float64 {
	if len(rows) == 0 {
		return nil
	}
	out := make([]float64, len(rows[0]))
	for _, r := range rows {
		for j := range out {
			out[j] += r[j]
		}
	}
	n := float64(len(rows))
	for j := range out {
		out[j] /= n
	}
	return out
}

// Linspace returns n evenly spaced samples from start to stop inclusive.
func Linspace(start, stop float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = stop
	return out
}

func checkMatrix(rows [][]float64, nRows, nCols int) error {
	if len(rows) != nRows {
		return fmt.Errorf("%w: %d rows, want %d", ErrShape, len(rows), nRows)
	}
	for i, r := range rows {
		if len(r) != nCols {
			return fmt.Errorf("%w: row %d has %d columns, want %d", ErrShape, i, len(r), nCols)
		}
	}
	return nil
}
