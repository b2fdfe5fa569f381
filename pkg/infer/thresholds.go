// Package infer maps numeric audio features onto categorical labels with
// fixed thresholds and ordered rules.
package infer

// Thresholds holds every numeric boundary used for classification.
type Thresholds struct {
	Energy           [4]float64 // RMS mean upper bounds for low, medium-low, medium, medium-high
	DynamicRangeCV   float64    // RMS coefficient of variation above which range is wide
	TextureBounds    [2]float64 // harmonic/percussive ratio above which texture is balanced, melodic
	BrightnessBounds [3]float64 // centroid (Hz) upper bounds for dark, balanced, bright
	Density          [2]float64 // onset mean upper bounds for sparse, moderate

	MeterMinIntervals int     // fewer beat intervals than this default to 4/4
	MeterCV           float64 // interval variation below which the meter is 4/4

	SlowBPM       float64 // moods below this tempo are the reflective set
	MelodicHP     float64 // hp ratio above which a track is melodic
	RhythmicOnset float64 // onset mean above which a track is rhythmic

	ElectronicBPM [2]float64 // inclusive tempo range
	BalladBPM     [2]float64
	BalladHP      float64
	HipHopBPM     [2]float64
	HipHopOnset   float64
}

// DefaultThresholds returns the fixed classification table.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Energy:           [4]float64{0.05, 0.12, 0.20, 0.30},
		DynamicRangeCV:   0.4,
		TextureBounds:    [2]float64{1.0, 3.0},
		BrightnessBounds: [3]float64{1500, 2500, 4000},
		Density:          [2]float64{0.3, 0.6},

		MeterMinIntervals: 5,
		MeterCV:           0.3,

		SlowBPM:       90,
		MelodicHP:     2.0,
		RhythmicOnset: 0.5,

		ElectronicBPM: [2]float64{120, 140},
		BalladBPM:     [2]float64{60, 100},
		BalladHP:      2.0,
		HipHopBPM:     [2]float64{80, 100},
		HipHopOnset:   0.4,
	}
}

// below returns the index of the first bound v is under, or len(bounds).
func below(v float64, bounds []float64) int {
	for i, b := range bounds {
		if v < b {
			return i
		}
	}
	return len(bounds)
}

// above returns how many bounds v strictly exceeds, for ascending bounds.
func above(v float64, bounds []float64) int {
	n := 0
	for _, b := range bounds {
		if v > b {
			n++
		}
	}
	return n
}

func within(v float64, r [2]float64) bool {
	return v >= r[0] && v <= r[1]
}
