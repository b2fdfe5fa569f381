package analysis

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// FrameConfig describes time-domain framing.
type FrameConfig struct {
	FrameLength int
	HopLength   int
}

// DefaultFrameConfig matches the STFT framing: 2048 samples every 512.
func DefaultFrameConfig() FrameConfig {
	return FrameConfig{FrameLength: 2048, HopLength: 512}
}

// frames calls fn with each centered frame of samples. Samples outside the
// signal are supplied by pad.
func (cfg FrameConfig) frames(samples []float64, pad func(i int) float64, fn func(frame []float64)) {
	if len(samples) == 0 {
		return
	}
	half := cfg.FrameLength / 2
	numFrames := 1 + len(samples)/cfg.HopLength
	frame := make([]float64, cfg.FrameLength)
	for t := 0; t < numFrames; t++ {
		start := t*cfg.HopLength - half
		for j := range frame {
			k := start + j
			if k >= 0 && k < len(samples) {
				frame[j] = samples[k]
			} else {
				frame[j] = pad(k)
			}
		}
		fn(frame)
	}
}

// RMS returns the root-mean-square energy of each centered, zero-padded frame.
func RMS(samples []float64, cfg FrameConfig) []float64 {
	var out []float64
	zero := func(int) float64 { return 0 }
	cfg.frames(samples, zero, func(frame []float64) {
		var sum float64
		for _, v := range frame {
			sum += v * v
		}
		out = append(out, math.Sqrt(sum/float64(len(frame))))
	})
	return out
}

// MeanStd returns the population mean and standard deviation, or zeros
// for an empty series.
func MeanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	return stat.PopMeanStdDev(values, nil)
}
