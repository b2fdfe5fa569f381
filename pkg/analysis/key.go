package analysis

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// PitchClasses names the 12 chroma bins, starting from C.
var PitchClasses = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Mode is a key's tonality.
type Mode string

const (
	Major Mode = "major"
	Minor Mode = "minor"
)

// Key is an estimated tonic and mode.
type Key struct {
	Tonic string `json:"tonic"`
	Mode  Mode   `json:"mode"`
}

// Full returns the combined label, e.g. "A Minor".
func (k Key) Full() string {
	m := string(k.Mode)
	if m == "" {
		return k.Tonic
	}
	return k.Tonic + " " + strings.ToUpper(m[:1]) + m[1:]
}

// ToneProfile holds the expected pitch-class weights of each mode with
// the tonic at index 0.
type ToneProfile struct {
	Major [12]float64
	Minor [12]float64
}

// KrumhanslProfile returns the Krumhansl-Kessler probe-tone profiles.
func KrumhanslProfile() ToneProfile {
	return ToneProfile{
		Major: [12]float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88},
		Minor: [12]float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17},
	}
}

// ChromaConfig controls the STFT chroma.
type ChromaConfig struct {
	STFT   STFTConfig
	FMin   float64 // lowest frequency folded into chroma
	FMax   float64 // highest frequency folded into chroma
	Tuning float64 // reference frequency of A4
}

// DefaultChromaConfig covers C2 to C7 with a 4096-point transform, fine
// enough to separate semitones from about 65 Hz upward.
func DefaultChromaConfig() ChromaConfig {
	return ChromaConfig{
		STFT:   STFTConfig{FFTSize: 4096, HopSize: 512, WindowSize: 4096},
		FMin:   65.41,
		FMax:   2093.0,
		Tuning: 440,
	}
}

// Chroma folds STFT power onto the 12 pitch classes, normalizes each
// frame by its loudest class and averages over time.
func Chroma(samples []float64, sampleRate int, cfg ChromaConfig) [12]float64 {
	var mean [12]float64
	spec := STFT(samples, cfg.STFT)
	if len(spec) == 0 {
		return mean
	}

	freqs := FFTFrequencies(sampleRate, cfg.STFT.FFTSize)
	classOf := make([]int, len(freqs))
	for i, f := range freqs {
		classOf[i] = -1
		if f < cfg.FMin || f > cfg.FMax {
			continue
		}
		// A is pitch class 9.
		semis := int(math.Round(12 * math.Log2(f/cfg.Tuning)))
		classOf[i] = ((semis+9)%12 + 12) % 12
	}

	for _, frame := range spec.Power() {
		var bins [12]float64
		for i, p := range frame {
			if c := classOf[i]; c >= 0 {
				bins[c] += p
			}
		}
		peak := 0.0
		for _, v := range bins {
			peak = math.Max(peak, v)
		}
		if peak <= 1e-10 {
			continue
		}
		for c := range bins {
			mean[c] += bins[c] / peak
		}
	}
	for c := range mean {
		mean[c] /= float64(len(spec))
	}
	return mean
}

// EstimateKey correlates every rotation of the chroma vector against both
// profiles. The first strictly greater correlation wins, checking major
// before minor at each tonic. If no rotation has a defined correlation the
// loudest pitch class is reported as major.
func EstimateKey(chroma [12]float64, profile ToneProfile) Key {
	best := -1.0
	key := Key{Tonic: PitchClasses[argmax(chroma[:])], Mode: Major}

	rotated := make([]float64, 12)
	for i := range 12 {
		for j := range 12 {
			rotated[j] = chroma[(j+i)%12]
		}
		if r := stat.Correlation(rotated, profile.Major[:], nil); r > best {
			best = r
			key = Key{Tonic: PitchClasses[i], Mode: Major}
		}
		if r := stat.Correlation(rotated, profile.Minor[:], nil); r > best {
			best = r
			key = Key{Tonic: PitchClasses[i], Mode: Minor}
		}
	}
	return key
}

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
