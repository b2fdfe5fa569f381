package analysis

import (
	"math"
	"slices"
)

// HPSSConfig controls median-filtering harmonic/percussive separation.
type HPSSConfig struct {
	STFT          STFTConfig
	HarmonicWidth int     // median filter length across time, in frames
	PercussWidth  int     // median filter length across frequency, in bins
	MaskPower     float64 // exponent of the soft masks
}

// DefaultHPSSConfig uses 31-wide filters and Wiener (power 2) masks.
func DefaultHPSSConfig() HPSSConfig {
	return HPSSConfig{
		STFT:          DefaultSTFTConfig(),
		HarmonicWidth: 31,
		PercussWidth:  31,
		MaskPower:     2,
	}
}

// HPSSResult holds the mean squared energy of each separated component.
type HPSSResult struct {
	HarmonicEnergy   float64
	PercussiveEnergy float64
	Ratio            float64 // harmonic / (percussive + 1e-10)
}

// HPSS separates spec into harmonic and percussive parts, resynthesizes
// both to length samples and measures their energy. spec must be the STFT
// of the signal with cfg.STFT.
func HPSS(spec Spectrogram, length int, cfg HPSSConfig) HPSSResult {
	if len(spec) == 0 || length == 0 {
		return HPSSResult{}
	}
	mag := spec.Magnitude()

	harm := medianFilterTime(mag, cfg.HarmonicWidth)
	perc := medianFilterFreq(mag, cfg.PercussWidth)

	harmSpec := make(Spectrogram, len(spec))
	percSpec := make(Spectrogram, len(spec))
	for t, frame := range spec {
		harmSpec[t] = make([]complex128, len(frame))
		percSpec[t] = make([]complex128, len(frame))
		for f, c := range frame {
			mh := softMask(harm[t][f], perc[t][f], cfg.MaskPower)
			mp := softMask(perc[t][f], harm[t][f], cfg.MaskPower)
			harmSpec[t][f] = c * complex(mh, 0)
			percSpec[t][f] = c * complex(mp, 0)
		}
	}

	h := meanSquare(ISTFT(harmSpec, cfg.STFT, length))
	p := meanSquare(ISTFT(percSpec, cfg.STFT, length))
	return HPSSResult{
		HarmonicEnergy:   h,
		PercussiveEnergy: p,
		Ratio:            h / (p + 1e-10),
	}
}

// softMask returns x^p / (x^p + ref^p), or 0 where both are zero.
func softMask(x, ref, power float64) float64 {
	z := max(x, ref)
	if z < 1e-30 {
		return 0
	}
	xp := pow(x/z, power)
	return xp / (xp + pow(ref/z, power))
}

func pow(x, p float64) float64 {
	if p == 2 {
		return x * x
	}
	return math.Pow(x, p)
}

func meanSquare(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		sum += v * v
	}
	return sum / float64(len(samples))
}

// reflect maps an out-of-range index back into [0, n) by mirroring about
// the edges, repeating the edge sample.
func reflect(i, n int) int {
	for i < 0 || i >= n {
		if i < 0 {
			i = -i - 1
		}
		if i >= n {
			i = 2*n - i - 1
		}
	}
	return i
}

// medianFilterTime filters each frequency bin along the time axis.
func medianFilterTime(mag [][]float64, width int) [][]float64 {
	frames := len(mag)
	bins := len(mag[0])
	out := make([][]float64, frames)
	for t := range out {
		out[t] = make([]float64, bins)
	}
	row := make([]float64, frames)
	filtered := make([]float64, frames)
	for f := 0; f < bins; f++ {
		for t := 0; t < frames; t++ {
			row[t] = mag[t][f]
		}
		slidingMedian(row, width, filtered)
		for t := 0; t < frames; t++ {
			out[t][f] = filtered[t]
		}
	}
	return out
}

// medianFilterFreq filters each frame along the frequency axis.
func medianFilterFreq(mag [][]float64, width int) [][]float64 {
	out := make([][]float64, len(mag))
	for t, frame := range mag {
		out[t] = make([]float64, len(frame))
		slidingMedian(frame, width, out[t])
	}
	return out
}

// slidingMedian writes the width-point running median of x into dst,
// reflecting at the boundaries. A sorted window is kept so each step costs
// one removal and one insertion.
func slidingMedian(x []float64, width int, dst []float64) {
	n := len(x)
	half := width / 2
	window := make([]float64, 0, width)
	for k := -half; k <= half; k++ {
		window = append(window, x[reflect(k, n)])
	}
	slices.Sort(window)

	for i := 0; i < n; i++ {
		dst[i] = window[half]
		if i == n-1 {
			break
		}
		out := x[reflect(i-half, n)]
		in := x[reflect(i+half+1, n)]
		idx, _ := slices.BinarySearch(window, out)
		window = slices.Delete(window, idx, idx+1)
		idx, _ = slices.BinarySearch(window, in)
		window = slices.Insert(window, idx, in)
	}
}
