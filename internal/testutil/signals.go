package testutil

import (
	"math"
	"math/rand"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-tap/tap/pulse"
)

// DeterministicNoise generates white noise with a fixed seed for reproducibility.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

// DC generates a constant-valued signal.
func DC(value float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = value
	}
	return out
}

// Response generates a TAP-like pulse response on times: a fast rise and
// exponential tail with peak height, on top of offset.
func Response(times []float64, height, tau, offset float64) []float64 {
	out := make([]float64, len(times))
	for i, t := range times {
		out[i] = offset + height*(t/tau)*math.Exp(1-t/tau)
	}
	return out
}

// Dataset builds a synthetic dataset with nPulses responses of nPoints
// samples over [0, collectionTime]. Pulse heights follow heights when
// given, otherwise all pulses have unit height.
func Dataset(amu float64, nPulses, nPoints int, collectionTime float64, heights ...float64) *pulse.Dataset {
	times := pulse.Linspace(0, collectionTime, nPoints)
	pulses := make([][]float64, nPulses)
	for i := range pulses {
		h := 1.0
		if i < len(heights) {
			h = heights[i]
		}
		pulses[i] = Response(times, h, collectionTime/10, 0)
	}
	return &pulse.Dataset{
		AMU:            amu,
		Gain:           8,
		CollectionTime: collectionTime,
		PulseSpacing:   1,
		NDatapoints:    nPoints,
		NPulses:        nPulses,
		Times:          times,
		Pulses:         pulses,
	}
}

// RawFile renders d in the TAP-1 raw token layout: a header line followed
// by one numeric token per line, metadata at fixed positions and the
// pulse matrix from position 18 on.
func RawFile(d *pulse.Dataset) []byte {
	meta := make([]float64, 18)
	meta[3] = float64(d.NDatapoints)
	meta[5] = d.CollectionTime
	meta[6] = float64(d.Gain)
	meta[7] = float64(d.NPulses)
	meta[13] = d.AMU / 30
	meta[15] = d.PulseSpacing
	meta[16] = float64(d.Index)

	var b strings.Builder
	b.WriteString("TAP-1 pulse file\n")
	for _, v := range meta {
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		b.WriteByte('\n')
	}
	for _, p := range d.Pulses {
		for _, v := range p {
			b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
			b.WriteByte('\n')
		}
	}
	return []byte(b.String())
}
