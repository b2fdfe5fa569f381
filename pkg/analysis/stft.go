package analysis

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// STFTConfig describes parameters for STFT computation.
type STFTConfig struct {
	FFTSize    int // FFT window size (e.g., 2048, 4096)
	HopSize    int // Hop between frames (512 is ~23ms at 22050Hz)
	WindowSize int // Analysis window size (usually same as FFTSize)
}

// DefaultSTFTConfig is the 2048/512 transform shared by most stages.
func DefaultSTFTConfig() STFTConfig {
	return STFTConfig{FFTSize: 2048, HopSize: 512, WindowSize: 2048}
}

// Spectrogram is a complex STFT laid out as [frames][bins].
type Spectrogram [][]complex128

// NumFrames returns the frame count of the STFT of n samples.
func (cfg STFTConfig) NumFrames(n int) int {
	if n == 0 {
		return 0
	}
	return 1 + n/cfg.HopSize
}

// STFT computes a centered Short-Time Fourier Transform. The signal is
// zero-padded by FFTSize/2 on both sides so frame t is centered on sample
// t*HopSize. Returns nil for an empty signal.
func STFT(samples []float64, cfg STFTConfig) Spectrogram {
	if len(samples) == 0 {
		return nil
	}
	window := paddedWindow(cfg)
	fft := fourier.NewFFT(cfg.FFTSize)

	pad := cfg.FFTSize / 2
	numFrames := 1 + (len(samples)+2*pad-cfg.FFTSize)/cfg.HopSize
	numBins := cfg.FFTSize/2 + 1

	result := make(Spectrogram, numFrames)
	frame := make([]float64, cfg.FFTSize)

	for i := 0; i < numFrames; i++ {
		start := i*cfg.HopSize - pad

		for j := range frame {
			k := start + j
			if k < 0 || k >= len(samples) {
				frame[j] = 0
				continue
			}
			frame[j] = samples[k] * window[j]
		}

		result[i] = fft.Coefficients(make([]complex128, numBins), frame)
	}

	return result
}

// ISTFT inverts a spectrogram produced by STFT with the same config by
// windowed overlap-add, returning exactly length samples.
func ISTFT(spec Spectrogram, cfg STFTConfig, length int) []float64 {
	out := make([]float64, length)
	if len(spec) == 0 || length == 0 {
		return out
	}
	window := paddedWindow(cfg)
	fft := fourier.NewFFT(cfg.FFTSize)

	n := cfg.FFTSize
	total := n + cfg.HopSize*(len(spec)-1)
	y := make([]float64, total)
	wss := make([]float64, total)
	frame := make([]float64, n)
	norm := 1 / float64(n)

	for i, coeffs := range spec {
		fft.Sequence(frame, coeffs)
		start := i * cfg.HopSize
		for j := 0; j < n; j++ {
			y[start+j] += frame[j] * norm * window[j]
			wss[start+j] += window[j] * window[j]
		}
	}

	pad := n / 2
	for i := range out {
		k := i + pad
		if k >= total {
			break
		}
		if wss[k] > math.SmallestNonzeroFloat64 {
			out[i] = y[k] / wss[k]
		}
	}
	return out
}

// Magnitude returns |X| for every cell of the spectrogram.
func (s Spectrogram) Magnitude() [][]float64 {
	return s.mapCells(cmplx.Abs)
}

// Power returns |X|^2 for every cell of the spectrogram.
func (s Spectrogram) Power() [][]float64 {
	return s.mapCells(func(c complex128) float64 {
		re, im := real(c), imag(c)
		return re*re + im*im
	})
}

func (s Spectrogram) mapCells(f func(complex128) float64) [][]float64 {
	out := make([][]float64, len(s))
	for i, frame := range s {
		out[i] = make([]float64, len(frame))
		for j, c := range frame {
			out[i][j] = f(c)
		}
	}
	return out
}

// FFTFrequencies returns the center frequency in Hz of each STFT bin.
func FFTFrequencies(sampleRate, fftSize int) []float64 {
	freqs := make([]float64, fftSize/2+1)
	for i := range freqs {
		freqs[i] = float64(i) * float64(sampleRate) / float64(fftSize)
	}
	return freqs
}

// hannWindow generates a periodic Hann window of given size, which sums to
// a constant under 75% overlap.
func hannWindow(size int) []float64 {
	w := make([]float64, size)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size)))
	}
	return w
}

// paddedWindow centers a WindowSize Hann window inside FFTSize.
func paddedWindow(cfg STFTConfig) []float64 {
	size := cfg.WindowSize
	if size <= 0 || size > cfg.FFTSize {
		size = cfg.FFTSize
	}
	w := make([]float64, cfg.FFTSize)
	copy(w[(cfg.FFTSize-size)/2:], hannWindow(size))
	return w
}
