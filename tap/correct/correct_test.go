package correct

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-tap/dsp/filter/savgol"
	"github.com/cwbudde/algo-tap/internal/testutil"
	"github.com/cwbudde/algo-tap/tap/pulse"
)

func offsetDataset() *pulse.Dataset {
	d := testutil.Dataset(28.0, 10, 500, 0.5, 1, 1.2, 0.8, 1.1, 0.9, 1, 1.3, 0.7, 1, 1.05)
	for i, p := range d.Pulses {
		noise := testutil.DeterministicNoise(int64(i+1), 0.01, len(p))
		for j := range p {
			p[j] += 0.5 + float64(i)*0.1 + noise[j]
		}
	}
	return d
}

func windowMean(p, times []float64, w Window) float64 {
	var sum float64
	var n int
	for i, t := range times {
		if w.Contains(t) {
			sum += p[i]
			n++
		}
	}
	return sum / float64(n)
}

func TestCorrectRawRoundTrip(t *testing.T) {
	d := offsetDataset()
	res, err := Correct(d, Params{Window: Window{0.1, 0.3}, WindowSize: 5, Order: 2})
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	if res.Variant != pulse.VariantRaw {
		t.Fatalf("variant = %q", res.Variant)
	}
	testutil.RequireMatrixNearlyEqual(t, res.Pulses, d.Pulses, 0)
	got, ok := res.Dataset.Variant(pulse.VariantRaw)
	if !ok {
		t.Fatal("raw variant missing")
	}
	testutil.RequireMatrixNearlyEqual(t, got, d.Pulses, 0)

	res.Pulses[0][0] = 1e9
	if d.Pulses[0][0] == 1e9 {
		t.Fatal("result aliases the raw pulses")
	}
}

func TestCorrectBaselineEndToEnd(t *testing.T) {
	d := offsetDataset()
	w := Window{0.1, 0.3}
	res, err := Correct(d, Params{Window: w, Baseline: true})
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	if res.Variant != pulse.VariantBaseline {
		t.Fatalf("variant = %q", res.Variant)
	}
	if len(res.Pulses) != 10 || len(res.Pulses[0]) != 500 {
		t.Fatalf("shape = %d x %d", len(res.Pulses), len(res.Pulses[0]))
	}
	for i, p := range res.Pulses {
		if m := windowMean(p, d.Times, w); math.Abs(m) > 1e-12 {
			t.Fatalf("pulse %d window mean = %g, want 0", i, m)
		}
	}
	if _, ok := d.Variant(pulse.VariantBaseline); ok {
		t.Fatal("source dataset was modified")
	}
	if got, ok := res.Dataset.Variant(pulse.VariantBaseline); !ok || &got[0][0] != &res.Pulses[0][0] {
		t.Fatal("variant not attached to result dataset")
	}
}

func TestBaselineIdempotent(t *testing.T) {
	d := offsetDataset()
	w := Window{0.05, 0.2}
	once, err := Baseline(d.Pulses, d.Times, w)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := Baseline(once, d.Times, w)
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireMatrixNearlyEqual(t, twice, once, 1e-12)
}

func TestBaselineEmptyWindow(t *testing.T) {
	d := offsetDataset()
	_, err := Baseline(d.Pulses, d.Times, Window{2, 3})
	if !errors.Is(err, pulse.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestDisabledSentinel(t *testing.T) {
	d := offsetDataset() // times span [0, 0.5]
	res, err := Correct(d, Params{Window: Disabled, Baseline: true})
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	if res.Variant != pulse.VariantBaseline {
		t.Fatalf("variant = %q", res.Variant)
	}
	testutil.RequireMatrixNearlyEqual(t, res.Pulses, d.Pulses, 0)

	before := d.Pulses[0][0]
	res.Pulses[0][0] = before + 99
	if d.Pulses[0][0] != before {
		t.Fatal("suppressed baseline result aliases the raw pulses")
	}

	// Inside the time range [1, 1] is an ordinary one-sample window.
	wide := testutil.Dataset(2, 2, 5, 2) // times 0, 0.5, 1, 1.5, 2
	res, err = Correct(wide, Params{Window: Disabled, Baseline: true})
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	for i, p := range res.Pulses {
		if p[2] != 0 {
			t.Fatalf("pulse %d sample at t=1 = %g, want 0", i, p[2])
		}
	}
}

func TestCorrectSmoothing(t *testing.T) {
	d := offsetDataset()
	p := Params{Window: Window{0.1, 0.3}, Baseline: true, Smooth: true, WindowSize: 21, Order: 3}
	res, err := Correct(d, p)
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	if res.Variant != pulse.VariantBaselineSmooth {
		t.Fatalf("variant = %q", res.Variant)
	}

	corrected, err := Baseline(d.Pulses, d.Times, p.Window)
	if err != nil {
		t.Fatal(err)
	}
	for i := range corrected {
		want, err := savgol.Smooth(corrected[i], 21, 3)
		if err != nil {
			t.Fatal(err)
		}
		testutil.RequireSliceNearlyEqual(t, res.Pulses[i], want, 1e-12)
	}

	smoothOnly, err := Correct(d, Params{Smooth: true, WindowSize: 21, Order: 3})
	if err != nil {
		t.Fatal(err)
	}
	if smoothOnly.Variant != pulse.VariantSmooth {
		t.Fatalf("variant = %q", smoothOnly.Variant)
	}
	if len(smoothOnly.Pulses[0]) != d.NDatapoints {
		t.Fatalf("smoothing changed length to %d", len(smoothOnly.Pulses[0]))
	}
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name string
		p    Params
		want error
	}{
		{"even window", Params{Smooth: true, WindowSize: 4, Order: 2}, savgol.ErrWindowSize},
		{"zero window", Params{Smooth: true, WindowSize: 0, Order: 0}, savgol.ErrWindowSize},
		{"window too small", Params{Smooth: true, WindowSize: 3, Order: 2}, savgol.ErrWindowTooSmall},
		{"negative order", Params{Smooth: true, WindowSize: 5, Order: -1}, savgol.ErrOrder},
		{"reversed window", Params{Baseline: true, Window: Window{0.3, 0.1}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if !errors.Is(err, pulse.ErrValidation) {
				t.Fatalf("error = %v, want ErrValidation", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if _, err := Correct(offsetDataset(), tt.p); !errors.Is(err, pulse.ErrValidation) {
				t.Fatalf("Correct error = %v, want ErrValidation", err)
			}
		})
	}

	// Parameters of disabled stages are not checked.
	if err := (Params{WindowSize: 4, Window: Window{3, 1}}).Validate(); err != nil {
		t.Fatalf("disabled stages validated: %v", err)
	}
}

func TestCorrectShortPulses(t *testing.T) {
	d := testutil.Dataset(2, 2, 5, 1)
	_, err := Correct(d, Params{Smooth: true, WindowSize: 11, Order: 2})
	if !errors.Is(err, pulse.ErrValidation) || !errors.Is(err, savgol.ErrSignalTooShort) {
		t.Fatalf("error = %v, want ErrSignalTooShort", err)
	}
}
