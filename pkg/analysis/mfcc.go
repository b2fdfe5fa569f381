package analysis

import "math"

// NumMFCC is how many cepstral coefficients summarize timbre.
const NumMFCC = 5

// MFCC applies an orthonormal DCT-II across the bands of each frame of a
// [frames][mels] dB spectrogram and returns the per-coefficient mean of the
// first n coefficients.
func MFCC(melDB [][]float64, n int) []float64 {
	means := make([]float64, n)
	if len(melDB) == 0 {
		return means
	}
	basis := dctBasis(n, len(melDB[0]))
	for _, frame := range melDB {
		for k, row := range basis {
			var c float64
			for i, v := range frame {
				c += v * row[i]
			}
			means[k] += c
		}
	}
	for k := range means {
		means[k] /= float64(len(melDB))
	}
	return means
}

// dctBasis returns the first n rows of the orthonormal DCT-II matrix of
// size size. gonum's dsp/fourier DCT is type I, so the basis is built here.
func dctBasis(n, size int) [][]float64 {
	basis := make([][]float64, n)
	for k := range basis {
		scale := math.Sqrt(2 / float64(size))
		if k == 0 {
			scale = math.Sqrt(1 / float64(size))
		}
		basis[k] = make([]float64, size)
		for i := range basis[k] {
			basis[k][i] = scale * math.Cos(math.Pi*float64(k)*(2*float64(i)+1)/(2*float64(size)))
		}
	}
	return basis
}
