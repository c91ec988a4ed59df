// Package conv provides one-shot linear convolution for finite signals.
//
// Two strategies are available:
//
//   - Direct: O(N*M) time-domain accumulation, used for short kernels
//   - Overlap-add: FFT block convolution, used once the kernel gets long
//
// [Convolve] selects between them by kernel length and trims the full
// result to the requested [Mode]:
//
//	full, err := conv.Convolve(signal, kernel, conv.ModeFull)
//	valid, err := conv.Convolve(padded, kernel, conv.ModeValid)
//
// ModeValid is what boundary-padded filters such as Savitzky-Golay need:
// only samples computed from a fully overlapping kernel are kept.
package conv
