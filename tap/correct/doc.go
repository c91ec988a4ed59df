// Package correct implements the per-dataset correction stage: baseline
// subtraction over a time window followed by Savitzky-Golay smoothing.
//
// The two toggles combine into the four variants named in package pulse.
// Baseline correction always runs before smoothing when both are enabled;
// smoothing then operates on the baseline-corrected pulses.
//
// All parameters are checked by Params.Validate before any array work, so
// a rejected request never produces a partial result. The source dataset
// and its raw pulses are never modified: Correct returns a copy of the
// dataset with the new variant attached.
//
// # Baseline window
//
// The mean of each pulse over the samples whose time lies in
// [Start, End] (inclusive on both ends) is subtracted from the whole
// pulse. The pair Disabled = {1, 1} is the "no window selected" sentinel:
// when 1 lies outside the dataset's time range it suppresses baseline
// correction even with the Baseline toggle set.
package correct
