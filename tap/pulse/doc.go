// Package pulse defines the canonical representation of a TAP pulse-response
// dataset and the derived arrays the correction pipeline produces.
//
// A [Dataset] holds every pulse recorded for one species, identified by its
// AMU value. Pulses are aligned sample-for-sample with the shared time axis.
// Corrections never edit [Dataset.Pulses]; they attach a named [Variant]
// to a copy of the dataset:
//
//	res := d.WithVariant(pulse.VariantBaseline, corrected)
//	arr, err := res.Array(pulse.VariantBaseline)
//
// An [Array] is the export-ready matrix used for persistence, normalization
// and spreadsheet export. Its rows are
//
//	[amu, time, avg, pulse_1, ..., pulse_n]
//
// and its columns are datapoints.
//
// # Errors
//
// The pipeline reports four kinds of failure. Every error returned by the
// tap packages wraps exactly one of [ErrParse], [ErrValidation], [ErrLookup]
// or [ErrShape], so callers can classify with errors.Is.
package pulse
