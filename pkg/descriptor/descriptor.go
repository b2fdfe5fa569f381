// Package descriptor assembles the final labeled record for one audio file
// and writes it, or an error record, in a transport format.
package descriptor

import (
	"fmt"
	"math"

	"github.com/nzoschke/audiodesc/pkg/analysis"
	"github.com/nzoschke/audiodesc/pkg/infer"
)

// AudioDescriptor is the labeled summary of one recording.
type AudioDescriptor struct {
	BPM           float64 `json:"bpm" yaml:"bpm"`
	Key           string  `json:"key" yaml:"key"`
	Mode          string  `json:"mode" yaml:"mode"`
	KeyFull       string  `json:"key_full" yaml:"key_full"`
	TimeSignature string  `json:"time_signature" yaml:"time_signature"`
	Duration      string  `json:"duration" yaml:"duration"`
	DurationSec   float64 `json:"duration_sec" yaml:"duration_sec"`
	SampleRate    int     `json:"sample_rate" yaml:"sample_rate"`

	EnergyLevel   string `json:"energy_level" yaml:"energy_level"`
	DynamicRange  string `json:"dynamic_range" yaml:"dynamic_range"`
	Brightness    string `json:"brightness" yaml:"brightness"`
	Texture       string `json:"texture" yaml:"texture"`
	RhythmDensity string `json:"rhythm_density" yaml:"rhythm_density"`

	MoodTags   []string `json:"mood_tags" yaml:"mood_tags"`
	GenreHints []string `json:"genre_hints" yaml:"genre_hints"`

	SpectralCentroidHz float64   `json:"spectral_centroid_hz" yaml:"spectral_centroid_hz"`
	HPRatio            float64   `json:"hp_ratio" yaml:"hp_ratio"`
	RMSMean            float64   `json:"rms_mean" yaml:"rms_mean"`
	OnsetMean          float64   `json:"onset_mean" yaml:"onset_mean"`
	MFCCMeans          []float64 `json:"mfcc_means" yaml:"mfcc_means"`
}

// Assemble merges features, labels and the total duration into a
// descriptor. It does no analysis of its own.
func Assemble(fs *analysis.FeatureSet, labels infer.Labels, durationSec float64, ls LabelSet) *AudioDescriptor {
	mfcc := make([]float64, len(fs.MFCCMeans))
	for i, v := range fs.MFCCMeans {
		mfcc[i] = Round(v, 2)
	}

	return &AudioDescriptor{
		BPM:           Round(fs.BPM, 1),
		Key:           fs.Key.Tonic,
		Mode:          string(fs.Key.Mode),
		KeyFull:       fs.Key.Full(),
		TimeSignature: string(labels.TimeSignature),
		Duration:      FormatDuration(durationSec),
		DurationSec:   Round(durationSec, 1),
		SampleRate:    fs.SampleRate,

		EnergyLevel:   ls.Energy[labels.Energy],
		DynamicRange:  ls.DynamicRange[labels.DynamicRange],
		Brightness:    ls.Brightness[labels.Brightness],
		Texture:       ls.Texture[labels.Texture],
		RhythmDensity: ls.Density[labels.RhythmDensity],

		MoodTags:   ls.moods(labels.Moods),
		GenreHints: genres(labels.Genres),

		SpectralCentroidHz: Round(fs.SpectralCentroid, 0),
		HPRatio:            Round(fs.HPRatio, 3),
		RMSMean:            Round(fs.RMSMean, 5),
		OnsetMean:          Round(fs.OnsetMean, 4),
		MFCCMeans:          mfcc,
	}
}

// FormatDuration renders whole seconds as M:SS. Minutes are not wrapped
// into hours.
func FormatDuration(sec float64) string {
	if sec < 0 || math.IsNaN(sec) || math.IsInf(sec, 0) {
		sec = 0
	}
	minutes := int(sec / 60)
	seconds := int(math.Mod(sec, 60))
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// Round rounds v to the given number of decimal places, halves to even.
func Round(v float64, places int) float64 {
	p := math.Pow10(places)
	r := math.RoundToEven(v*p) / p
	if r == 0 {
		return 0 // no negative zero
	}
	return r
}
