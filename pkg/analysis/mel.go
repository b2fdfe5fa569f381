package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// MelConfig describes a mel filterbank.
type MelConfig struct {
	NumMels int
	FMin    float64
	FMax    float64 // 0 means Nyquist
}

// DefaultMelConfig returns 128 bands spanning 0 Hz to Nyquist.
func DefaultMelConfig() MelConfig {
	return MelConfig{NumMels: 128}
}

// Slaney mel scale: linear below 1 kHz, logarithmic above.
const (
	melFSp      = 200.0 / 3
	melMinLogHz = 1000.0
	melMinLog   = melMinLogHz / melFSp
)

var melLogStep = math.Log(6.4) / 27.0

func hzToMel(hz float64) float64 {
	if hz < melMinLogHz {
		return hz / melFSp
	}
	return melMinLog + math.Log(hz/melMinLogHz)/melLogStep
}

func melToHz(mel float64) float64 {
	if mel < melMinLog {
		return mel * melFSp
	}
	return melMinLogHz * math.Exp(melLogStep*(mel-melMinLog))
}

// MelFilterbank builds [mels][bins] triangular filters with Slaney area
// normalization.
func MelFilterbank(sampleRate, fftSize int, cfg MelConfig) [][]float64 {
	fmax := cfg.FMax
	if fmax <= 0 {
		fmax = float64(sampleRate) / 2
	}
	fftFreqs := FFTFrequencies(sampleRate, fftSize)

	melPoints := make([]float64, cfg.NumMels+2)
	floats.Span(melPoints, hzToMel(cfg.FMin), hzToMel(fmax))
	hz := make([]float64, len(melPoints))
	for i, m := range melPoints {
		hz[i] = melToHz(m)
	}

	weights := make([][]float64, cfg.NumMels)
	for i := range weights {
		weights[i] = make([]float64, len(fftFreqs))
		lowDiff := hz[i+1] - hz[i]
		highDiff := hz[i+2] - hz[i+1]
		enorm := 2.0 / (hz[i+2] - hz[i])
		for j, f := range fftFreqs {
			lower := (f - hz[i]) / lowDiff
			upper := (hz[i+2] - f) / highDiff
			w := math.Max(0, math.Min(lower, upper))
			weights[i][j] = w * enorm
		}
	}
	return weights
}

// MelSpectrogram projects a [frames][bins] power spectrogram onto the
// filterbank, giving [frames][mels].
func MelSpectrogram(power [][]float64, filterbank [][]float64) [][]float64 {
	out := make([][]float64, len(power))
	for t, frame := range power {
		out[t] = make([]float64, len(filterbank))
		for m, filter := range filterbank {
			out[t][m] = floats.Dot(filter, frame)
		}
	}
	return out
}

// PowerToDB converts power to decibels relative to ref, flooring inputs at
// amin and clipping everything more than topDB below the peak. A topDB <= 0
// disables clipping.
func PowerToDB(power [][]float64, ref, amin, topDB float64) [][]float64 {
	refDB := 10 * math.Log10(math.Max(amin, ref))
	peak := math.Inf(-1)
	out := make([][]float64, len(power))
	for t, frame := range power {
		out[t] = make([]float64, len(frame))
		for i, p := range frame {
			db := 10*math.Log10(math.Max(amin, p)) - refDB
			out[t][i] = db
			peak = math.Max(peak, db)
		}
	}
	if topDB > 0 {
		floor := peak - topDB
		for _, frame := range out {
			for i, db := range frame {
				if db < floor {
					frame[i] = floor
				}
			}
		}
	}
	return out
}
