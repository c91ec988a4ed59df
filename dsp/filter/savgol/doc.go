// Package savgol implements Savitzky-Golay smoothing and differentiation
// filters.
//
// A Savitzky-Golay filter fits a polynomial of the given order to every
// window of samples by least squares and evaluates the fit (or one of its
// derivatives) at the window center. The fit reduces to a fixed FIR kernel,
// obtained here from the pseudo-inverse of the Vandermonde design matrix
//
//	B[k][i] = k^i,  k in [-h, h], i in [0, order]
//
// with h = (windowSize-1)/2.
//
// # Boundaries
//
// Before filtering, the signal is extended by h samples at either end by
// mirroring the interior samples about the boundary value, so the output
// has exactly the input length and linear trends survive the edges:
//
//	f, err := savgol.Design(11, 3)
//	smoothed, err := f.Apply(signal) // len(smoothed) == len(signal)
package savgol
