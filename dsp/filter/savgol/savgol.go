package savgol

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/algo-tap/dsp/conv"
)

// Errors returned by filter design and application.
var (
	ErrWindowSize     = errors.New("savgol: window size must be a positive odd number")
	ErrWindowTooSmall = errors.New("savgol: window size is too small for the polynomial order")
	ErrOrder          = errors.New("savgol: polynomial order must be non-negative")
	ErrDerivative     = errors.New("savgol: derivative order out of range")
	ErrRate           = errors.New("savgol: sample rate must be positive")
	ErrSignalTooShort = errors.New("savgol: signal too short for window")
	ErrDesign         = errors.New("savgol: pseudo-inverse failed")
)

// rcond matches the singular value cutoff numpy uses for pinv.
const rcond = 1e-15

// Option configures filter design.
type Option func(*config)

type config struct {
	deriv int
	rate  float64
}

// WithDerivative evaluates the d-th derivative of the local fit instead of
// the fit itself.
func WithDerivative(d int) Option {
	return func(c *config) {
		c.deriv = d
	}
}

// WithRate sets the sample rate used to scale derivative estimates.
func WithRate(rate float64) Option {
	return func(c *config) {
		c.rate = rate
	}
}

// Validate checks window size and polynomial order without designing the
// filter.
func Validate(windowSize, order int) error {
	if windowSize < 1 || windowSize%2 != 1 {
		return fmt.Errorf("%w: got %d", ErrWindowSize, windowSize)
	}
	if order < 0 {
		return fmt.Errorf("%w: got %d", ErrOrder, order)
	}
	if windowSize < order+2 {
		return fmt.Errorf("%w: window %d, order %d", ErrWindowTooSmall, windowSize, order)
	}
	return nil
}

// MinWindowSize returns the smallest valid window size for order.
func MinWindowSize(order int) int {
	w := max(order, 0) + 2
	if w%2 == 0 {
		w++
	}
	return w
}

// Filter is a designed Savitzky-Golay kernel.
type Filter struct {
	coeffs []float64
	kernel []float64 // coeffs reversed, ready for convolution
	half   int
	order  int
	deriv  int
}

// Design computes the Savitzky-Golay kernel for windowSize and order.
func Design(windowSize, order int, opts ...Option) (*Filter, error) {
	if err := Validate(windowSize, order); err != nil {
		return nil, err
	}

	cfg := config{rate: 1}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.deriv < 0 || cfg.deriv > order {
		return nil, fmt.Errorf("%w: derivative %d, order %d", ErrDerivative, cfg.deriv, order)
	}
	if cfg.rate <= 0 {
		return nil, fmt.Errorf("%w: got %v", ErrRate, cfg.rate)
	}

	half := (windowSize - 1) / 2
	row, err := pinvRow(half, order, cfg.deriv)
	if err != nil {
		return nil, err
	}

	scale := 1.0
	for i := 1; i <= cfg.deriv; i++ {
		scale *= cfg.rate * float64(i)
	}

	coeffs := make([]float64, windowSize)
	kernel := make([]float64, windowSize)
	for i, v := range row {
		coeffs[i] = v * scale
		kernel[windowSize-1-i] = coeffs[i]
	}

	return &Filter{
		coeffs: coeffs,
		kernel: kernel,
		half:   half,
		order:  order,
		deriv:  cfg.deriv,
	}, nil
}

// pinvRow returns row deriv of the pseudo-inverse of the design matrix
// B[k][i] = k^i for k in [-half, half], i in [0, order].
func pinvRow(half, order, deriv int) ([]float64, error) {
	rows := 2*half + 1
	cols := order + 1

	b := mat.NewDense(rows, cols, nil)
	for r := range rows {
		k := float64(r - half)
		p := 1.0
		for c := range cols {
			b.Set(r, c, p)
			p *= k
		}
	}

	var svd mat.SVD
	if !svd.Factorize(b, mat.SVDThin) {
		return nil, ErrDesign
	}
	s := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var smax float64
	for _, x := range s {
		smax = max(smax, x)
	}
	cutoff := rcond * smax

	// pinv(B) = V * diag(1/s) * U^T; only row deriv is needed.
	row := make([]float64, rows)
	for k, sk := range s {
		if sk <= cutoff {
			continue
		}
		w := v.At(deriv, k) / sk
		for j := range rows {
			row[j] += w * u.At(j, k)
		}
	}
	return row, nil
}

// Coefficients returns a copy of the filter coefficients in window order
// (offset -h first).
func (f *Filter) Coefficients() []float64 {
	return append([]float64(nil), f.coeffs...)
}

// WindowSize returns the number of taps.
func (f *Filter) WindowSize() int {
	return len(f.coeffs)
}

// Order returns the polynomial order of the fit.
func (f *Filter) Order() int {
	return f.order
}

// Derivative returns the derivative order evaluated by the filter.
func (f *Filter) Derivative() int {
	return f.deriv
}

// Apply filters y and returns a new slice of the same length.
// y must hold at least half window + 1 samples.
func (f *Filter) Apply(y []float64) ([]float64, error) {
	if len(y) < f.half+1 {
		return nil, fmt.Errorf("%w: %d samples, need %d", ErrSignalTooShort, len(y), f.half+1)
	}

	padded := Pad(y, f.half)
	return conv.Convolve(padded, f.kernel, conv.ModeValid)
}

// Pad extends y by h samples on each side. Each padding sample mirrors the
// corresponding interior sample about the boundary value:
//
//	left[i]  = y[0]   - |y[h-i]   - y[0]|
//	right[i] = y[n-1] + |y[n-2-i] - y[n-1]|
//
// y must hold at least h+1 samples.
func Pad(y []float64, h int) []float64 {
	n := len(y)
	out := make([]float64, n+2*h)

	first := y[0]
	for i := range h {
		d := y[h-i] - first
		if d < 0 {
			d = -d
		}
		out[i] = first - d
	}

	copy(out[h:], y)

	last := y[n-1]
	for i := range h {
		d := y[n-2-i] - last
		if d < 0 {
			d = -d
		}
		out[h+n+i] = last + d
	}
	return out
}

// Smooth designs a plain smoothing filter and applies it to y.
func Smooth(y []float64, windowSize, order int) ([]float64, error) {
	f, err := Design(windowSize, order)
	if err != nil {
		return nil, err
	}
	return f.Apply(y)
}
