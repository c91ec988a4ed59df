package conv

import (
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// minBlockSize keeps the FFT size reasonable for short kernels.
const minBlockSize = 256

// OverlapAdd computes the full linear convolution of signal and kernel
// with FFT block processing.
//
// The signal is cut into blocks of at least the kernel length, each block
// is zero-padded to a power-of-two FFT size, multiplied with the kernel
// spectrum and the block results are summed at their offsets.
func OverlapAdd(signal, kernel []float64) ([]float64, error) {
	if len(signal) == 0 {
		return nil, ErrEmptyInput
	}
	if len(kernel) == 0 {
		return nil, ErrEmptyKernel
	}

	blockSize := nextPowerOf2(len(kernel))
	if blockSize < minBlockSize {
		blockSize = minBlockSize
	}
	fftSize := nextPowerOf2(blockSize + len(kernel) - 1)

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("conv: failed to create FFT plan: %w", err)
	}

	spectrum := make([]complex128, fftSize)
	for i, v := range kernel {
		spectrum[i] = complex(v, 0)
	}
	if err := plan.Forward(spectrum, spectrum); err != nil {
		return nil, fmt.Errorf("conv: kernel FFT failed: %w", err)
	}

	out := make([]float64, len(signal)+len(kernel)-1)
	work := make([]complex128, fftSize)

	for start := 0; start < len(signal); start += blockSize {
		end := min(start+blockSize, len(signal))

		for i := range work {
			work[i] = 0
		}
		for i, v := range signal[start:end] {
			work[i] = complex(v, 0)
		}

		if err := plan.Forward(work, work); err != nil {
			return nil, fmt.Errorf("conv: forward FFT failed: %w", err)
		}
		for i := range work {
			work[i] *= spectrum[i]
		}
		if err := plan.Inverse(work, work); err != nil {
			return nil, fmt.Errorf("conv: inverse FFT failed: %w", err)
		}

		n := end - start + len(kernel) - 1
		for i := 0; i < n && start+i < len(out); i++ {
			out[start+i] += real(work[i])
		}
	}

	return out, nil
}
