package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// SpectralResult holds frame-averaged spectral shape statistics.
type SpectralResult struct {
	Centroid         float64 // Hz
	Rolloff          float64 // Hz
	ZeroCrossingRate float64 // crossings per sample
}

// RolloffPercent is the fraction of magnitude below the rolloff frequency.
const RolloffPercent = 0.85

// SpectralShape averages centroid and rolloff over the frames of a
// [frames][bins] magnitude spectrogram and the zero-crossing rate over
// time-domain frames of samples.
func SpectralShape(samples []float64, mag [][]float64, sampleRate int, stft STFTConfig, frames FrameConfig) SpectralResult {
	var res SpectralResult
	if len(mag) == 0 {
		return res
	}
	freqs := FFTFrequencies(sampleRate, stft.FFTSize)

	var centroidSum, rolloffSum float64
	for _, frame := range mag {
		centroidSum += centroid(frame, freqs)
		rolloffSum += rolloff(frame, freqs, RolloffPercent)
	}
	res.Centroid = centroidSum / float64(len(mag))
	res.Rolloff = rolloffSum / float64(len(mag))
	res.ZeroCrossingRate, _ = MeanStd(ZeroCrossingRate(samples, frames))
	return res
}

// centroid is the magnitude-weighted mean frequency, 0 for a silent frame.
func centroid(frame, freqs []float64) float64 {
	total := floats.Sum(frame)
	if total <= 1e-10 {
		return 0
	}
	return floats.Dot(frame, freqs) / total
}

// rolloff is the lowest frequency at which the cumulative magnitude
// reaches pct of the total.
func rolloff(frame, freqs []float64, pct float64) float64 {
	threshold := pct * floats.Sum(frame)
	var cum float64
	for i, m := range frame {
		cum += m
		if cum >= threshold {
			return freqs[i]
		}
	}
	return freqs[len(freqs)-1]
}

// ZeroCrossingRate returns, per centered frame, the fraction of adjacent
// sample pairs whose signs differ. Edge frames repeat the boundary sample
// and values within 1e-10 of zero count as zero.
func ZeroCrossingRate(samples []float64, cfg FrameConfig) []float64 {
	var out []float64
	edge := func(k int) float64 {
		if k < 0 {
			return samples[0]
		}
		return samples[len(samples)-1]
	}
	cfg.frames(samples, edge, func(frame []float64) {
		crossings := 0
		for j := 1; j < len(frame); j++ {
			if signbit(frame[j]) != signbit(frame[j-1]) {
				crossings++
			}
		}
		out = append(out, float64(crossings)/float64(len(frame)))
	})
	return out
}

func signbit(v float64) bool {
	if math.Abs(v) <= 1e-10 {
		return false
	}
	return v < 0
}
