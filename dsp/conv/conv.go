package conv

import (
	"errors"

	"github.com/cwbudde/algo-vecmath"
)

// Errors returned by convolution functions.
var (
	ErrEmptyInput  = errors.New("conv: empty input")
	ErrEmptyKernel = errors.New("conv: empty kernel")
	ErrInvalidMode = errors.New("conv: invalid mode")
)

// Mode specifies which part of the linear convolution is returned.
type Mode int

const (
	// ModeFull returns all len(a)+len(b)-1 samples.
	ModeFull Mode = iota

	// ModeSame returns len(a) samples centered on the full result.
	ModeSame

	// ModeValid returns the max(len(a), len(b)) - min(len(a), len(b)) + 1
	// samples where the inputs overlap completely.
	ModeValid
)

// directThreshold is the kernel length up to which Convolve stays in the
// time domain.
const directThreshold = 64

// Direct computes the full linear convolution of a and b in the time domain.
func Direct(a, b []float64) ([]float64, error) {
	if len(a) == 0 {
		return nil, ErrEmptyInput
	}
	if len(b) == 0 {
		return nil, ErrEmptyKernel
	}

	dst := make([]float64, len(a)+len(b)-1)
	DirectTo(dst, a, b)
	return dst, nil
}

// DirectTo writes the full convolution of a and b into dst, which must
// have length len(a)+len(b)-1.
func DirectTo(dst, a, b []float64) {
	for i := range dst {
		dst[i] = 0
	}

	m := len(b)
	scaled := make([]float64, m)
	for i, x := range a {
		if x == 0 {
			continue
		}
		vecmath.ScaleBlock(scaled, b, x)
		vecmath.AddBlockInPlace(dst[i:i+m], scaled)
	}
}

// Convolve performs linear convolution of a and b and returns the part
// selected by mode. Kernels longer than 64 samples go through FFT
// overlap-add.
func Convolve(a, b []float64, mode Mode) ([]float64, error) {
	if len(a) == 0 {
		return nil, ErrEmptyInput
	}
	if len(b) == 0 {
		return nil, ErrEmptyKernel
	}
	if mode < ModeFull || mode > ModeValid {
		return nil, ErrInvalidMode
	}

	long, short := a, b
	if len(short) > len(long) {
		long, short = short, long
	}

	var (
		full []float64
		err  error
	)
	if len(short) <= directThreshold {
		full, err = Direct(long, short)
	} else {
		full, err = OverlapAdd(long, short)
	}
	if err != nil {
		return nil, err
	}

	return trim(full, len(a), len(b), mode), nil
}

// trim extracts the mode-specific window from a full convolution.
func trim(full []float64, lenA, lenB int, mode Mode) []float64 {
	switch mode {
	case ModeSame:
		start := (lenB - 1) / 2
		return full[start : start+lenA]
	case ModeValid:
		lo, hi := lenA, lenB
		if lo > hi {
			lo, hi = hi, lo
		}
		return full[lo-1 : hi]
	default:
		return full
	}
}

// nextPowerOf2 returns the smallest power of two >= n.
func nextPowerOf2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
