package normalize

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/cwbudde/algo-tap/internal/testutil"
	"github.com/cwbudde/algo-tap/tap/pulse"
)

func array(t *testing.T, d *pulse.Dataset) pulse.Array {
	t.Helper()
	a, err := d.Array(pulse.VariantRaw)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestAreas(t *testing.T) {
	times := []float64{0, 1, 2, 4}
	pulses := [][]float64{
		{1, 1, 1, 1},
		{0, 2, 0, 0},
	}
	got, err := Areas(pulses, times)
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireSliceNearlyEqual(t, got, []float64{4, 2}, 1e-15)

	for name, tc := range map[string]struct {
		pulses [][]float64
		times  []float64
	}{
		"one sample": {[][]float64{{1}}, []float64{0}},
		"unsorted":   {[][]float64{{1, 1}}, []float64{1, 0}},
		"ragged":     {[][]float64{{1, 1, 1}}, []float64{0, 1}},
	} {
		if _, err := Areas(tc.pulses, tc.times); !errors.Is(err, pulse.ErrShape) {
			t.Errorf("%s: error = %v, want ErrShape", name, err)
		}
	}
}

func TestCoefficients(t *testing.T) {
	got, err := Coefficients([]float64{1, 4, 2})
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireSliceNearlyEqual(t, got, []float64{0.25, 1, 0.5}, 0)
	if i := MaxAreaPulse([]float64{1, 4, 2}); i != 1 {
		t.Fatalf("MaxAreaPulse = %d, want 1", i)
	}

	for _, areas := range [][]float64{{-1, -2}, {0, 0}, {1, 0}} {
		if _, err := Coefficients(areas); !errors.Is(err, pulse.ErrValidation) {
			t.Errorf("Coefficients(%v) error = %v, want ErrValidation", areas, err)
		}
	}
}

func TestNormalizeTwoSpecies(t *testing.T) {
	heights := []float64{1, 1.5, 3, 2, 0.5}
	inert := testutil.Dataset(2.0, 5, 200, 1, heights...)
	other := testutil.Dataset(28.0, 5, 200, 1, 2, 2, 2, 2, 2)

	snapshot := map[string]pulse.Array{
		"2.0":  array(t, inert),
		"28.0": array(t, other),
	}
	res, err := Normalize(snapshot, "2.0")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !slices.Equal(res.Keys(), []string{"2.0", "28.0"}) {
		t.Fatalf("keys = %v", res.Keys())
	}
	if i := MaxAreaPulse(res.Areas["2.0"]); i != 2 {
		t.Fatalf("max area pulse = %d, want 2", i)
	}
	if res.Coefficients[2] != 1 {
		t.Fatalf("reference coefficient = %g, want 1", res.Coefficients[2])
	}

	norm := res.Arrays["28.0"]
	if norm.AMU() != 28 || norm.NPulses() != 5 || norm.NDatapoints() != 200 {
		t.Fatalf("normalized array: amu %g, %d x %d", norm.AMU(), norm.NPulses(), norm.NDatapoints())
	}
	testutil.RequireSliceNearlyEqual(t, norm.Pulses()[2], other.Pulses[2], 0)
	for i, h := range heights {
		scale := 3 / h
		want := make([]float64, len(other.Pulses[i]))
		for j, v := range other.Pulses[i] {
			want[j] = v * scale
		}
		testutil.RequireSliceNearlyEqual(t, norm.Pulses()[i], want, 1e-9)
	}
	testutil.RequireSliceNearlyEqual(t, norm.Avg(), pulse.Mean(norm.Pulses()), 1e-12)
}

func TestNormalizeReferenceProperty(t *testing.T) {
	inert := testutil.Dataset(40.0, 4, 100, 2, 0.7, 1.9, 1.2, 0.4)
	res, err := Normalize(map[string]pulse.Array{"40.0": array(t, inert)}, "40.0")
	if err != nil {
		t.Fatal(err)
	}
	// After normalization every inert pulse has the area of the largest one.
	areas, err := Areas(res.Arrays["40.0"].Pulses(), res.Arrays["40.0"].Times())
	if err != nil {
		t.Fatal(err)
	}
	peak := res.Areas["40.0"][MaxAreaPulse(res.Areas["40.0"])]
	for i, a := range areas {
		if math.Abs(a-peak) > 1e-9*peak {
			t.Fatalf("pulse %d area %g, want %g", i, a, peak)
		}
	}
	for _, c := range res.Coefficients {
		if c <= 0 || c > 1 {
			t.Fatalf("coefficient %g outside (0, 1]", c)
		}
	}
}

func TestNormalizeOwnTimeAxis(t *testing.T) {
	inert := testutil.Dataset(2.0, 2, 50, 1, 1, 2)
	slow := testutil.Dataset(28.0, 2, 80, 4, 1, 1)
	res, err := Normalize(map[string]pulse.Array{
		"2.0":  array(t, inert),
		"28.0": array(t, slow),
	}, "2.0")
	if err != nil {
		t.Fatal(err)
	}
	wantArea, _ := Areas(slow.Pulses, slow.Times)
	testutil.RequireSliceNearlyEqual(t, res.Areas["28.0"], wantArea, 0)
	testutil.RequireSliceNearlyEqual(t, res.Arrays["28.0"].Times(), slow.Times, 0)
}

func TestNormalizeErrors(t *testing.T) {
	a := array(t, testutil.Dataset(2.0, 3, 20, 1))
	b := array(t, testutil.Dataset(28.0, 4, 20, 1))

	if _, err := Normalize(map[string]pulse.Array{"2.0": a}, "40.0"); !errors.Is(err, pulse.ErrLookup) {
		t.Fatalf("missing inert: error = %v, want ErrLookup", err)
	}
	res, err := Normalize(map[string]pulse.Array{"2.0": a, "28.0": b}, "2.0")
	if !errors.Is(err, pulse.ErrShape) {
		t.Fatalf("pulse count mismatch: error = %v, want ErrShape", err)
	}
	if res.Arrays != nil {
		t.Fatal("partial result returned")
	}
}
