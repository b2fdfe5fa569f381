package infer

import (
	"math"

	"github.com/nzoschke/audiodesc/pkg/analysis"
)

// EnergyLevel is a loudness band; higher values are louder.
type EnergyLevel int

const (
	EnergyLow EnergyLevel = iota
	EnergyMediumLow
	EnergyMedium
	EnergyMediumHigh
	EnergyHigh
)

// DynamicRange says whether loudness varies a lot over the window.
type DynamicRange int

const (
	RangeNarrow DynamicRange = iota
	RangeWide
)

// Texture orders tracks from percussive to melodic.
type Texture int

const (
	TextureRhythmic Texture = iota
	TextureBalanced
	TextureMelodic
)

// Brightness is a spectral centroid band; higher values are brighter.
type Brightness int

const (
	BrightnessDark Brightness = iota
	BrightnessBalanced
	BrightnessBright
	BrightnessVeryBright
)

// RhythmDensity is an onset strength band.
type RhythmDensity int

const (
	DensitySparse RhythmDensity = iota
	DensityModerate
	DensityDense
)

// TimeSignature is a coarse meter guess.
type TimeSignature string

const (
	CommonTime TimeSignature = "4/4"
	Irregular  TimeSignature = "3/4 or irregular"
)

// EnergyLevel classifies an RMS mean.
func (th Thresholds) EnergyLevel(rmsMean float64) EnergyLevel {
	return EnergyLevel(below(rmsMean, th.Energy[:]))
}

// DynamicRange classifies the RMS coefficient of variation.
func (th Thresholds) DynamicRange(rmsVariation float64) DynamicRange {
	if rmsVariation > th.DynamicRangeCV {
		return RangeWide
	}
	return RangeNarrow
}

// Texture classifies a harmonic/percussive energy ratio.
func (th Thresholds) Texture(hpRatio float64) Texture {
	return Texture(above(hpRatio, th.TextureBounds[:]))
}

// Brightness classifies a mean spectral centroid in Hz.
func (th Thresholds) Brightness(centroid float64) Brightness {
	return Brightness(below(centroid, th.BrightnessBounds[:]))
}

// RhythmDensity classifies a mean onset strength.
func (th Thresholds) RhythmDensity(onsetMean float64) RhythmDensity {
	return RhythmDensity(below(onsetMean, th.Density[:]))
}

// TimeSignature guesses the meter from beat-interval regularity. Too few
// intervals default to 4/4.
func (th Thresholds) TimeSignature(intervals []float64) TimeSignature {
	if len(intervals) < th.MeterMinIntervals {
		return CommonTime
	}
	mean, std := analysis.MeanStd(intervals)
	cv := std / (mean + 1e-10)
	if math.IsNaN(cv) || cv >= th.MeterCV {
		return Irregular
	}
	return CommonTime
}
