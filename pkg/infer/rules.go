package infer

import (
	"github.com/nzoschke/audiodesc/pkg/analysis"
)

// Mood is a descriptive tag.
type Mood int

const (
	MoodLyrical Mood = iota
	MoodEmotional
	MoodWarm
	MoodUplifting
	MoodEnergetic
	MoodMelancholic
	MoodDark
	MoodMysterious
	MoodIntense
	MoodDramatic
	MoodMelodic
	MoodRhythmic
	MoodDynamic
)

// Genre is a coarse style hint.
type Genre string

const (
	GenreElectronic Genre = "Electronic / Dance"
	GenreBallad     Genre = "Ballad / Pop"
	GenreHipHop     Genre = "Hip-Hop / R&B"
	GenreDefault    Genre = "Pop / Contemporary"
)

// Evidence is the subset of features the rules look at.
type Evidence struct {
	BPM              float64
	Mode             analysis.Mode
	HPRatio          float64
	OnsetMean        float64
	RMSVariation     float64
	HarmonicEnergy   float64
	PercussiveEnergy float64
}

// NewEvidence collects rule inputs from a feature set.
func NewEvidence(fs *analysis.FeatureSet) Evidence {
	return Evidence{
		BPM:              fs.BPM,
		Mode:             fs.Key.Mode,
		HPRatio:          fs.HPRatio,
		OnsetMean:        fs.OnsetMean,
		RMSVariation:     fs.RMSVariation(),
		HarmonicEnergy:   fs.HarmonicEnergy,
		PercussiveEnergy: fs.PercussiveEnergy,
	}
}

// MoodRule appends Then when When holds.
type MoodRule struct {
	Name string
	When func(Evidence, Thresholds) bool
	Then []Mood
}

// GenreRule appends Then when When holds.
type GenreRule struct {
	Name string
	When func(Evidence, Thresholds) bool
	Then Genre
}

// DefaultMoodRules returns the mood rules in evaluation order: one of four
// mode and tempo combinations, then the texture, rhythm and dynamics tags.
func DefaultMoodRules() []MoodRule {
	return []MoodRule{
		{
			Name: "major-slow",
			When: func(e Evidence, th Thresholds) bool { return e.Mode == analysis.Major && e.BPM < th.SlowBPM },
			Then: []Mood{MoodLyrical, MoodEmotional, MoodWarm},
		},
		{
			Name: "major-fast",
			When: func(e Evidence, th Thresholds) bool { return e.Mode == analysis.Major && e.BPM >= th.SlowBPM },
			Then: []Mood{MoodUplifting, MoodEnergetic},
		},
		{
			Name: "minor-slow",
			When: func(e Evidence, th Thresholds) bool { return e.Mode != analysis.Major && e.BPM < th.SlowBPM },
			Then: []Mood{MoodMelancholic, MoodDark, MoodMysterious},
		},
		{
			Name: "minor-fast",
			When: func(e Evidence, th Thresholds) bool { return e.Mode != analysis.Major && e.BPM >= th.SlowBPM },
			Then: []Mood{MoodIntense, MoodDramatic},
		},
		{
			Name: "melodic",
			When: func(e Evidence, th Thresholds) bool { return e.HPRatio > th.MelodicHP },
			Then: []Mood{MoodMelodic},
		},
		{
			Name: "rhythmic",
			When: func(e Evidence, th Thresholds) bool { return e.OnsetMean > th.RhythmicOnset },
			Then: []Mood{MoodRhythmic},
		},
		{
			Name: "dynamic",
			When: func(e Evidence, th Thresholds) bool { return e.RMSVariation > th.DynamicRangeCV },
			Then: []Mood{MoodDynamic},
		},
	}
}

// DefaultGenreRules returns the genre rules in evaluation order.
func DefaultGenreRules() []GenreRule {
	return []GenreRule{
		{
			Name: "electronic",
			When: func(e Evidence, th Thresholds) bool {
				return within(e.BPM, th.ElectronicBPM) && e.PercussiveEnergy > e.HarmonicEnergy
			},
			Then: GenreElectronic,
		},
		{
			Name: "ballad",
			When: func(e Evidence, th Thresholds) bool {
				return within(e.BPM, th.BalladBPM) && e.HPRatio > th.BalladHP
			},
			Then: GenreBallad,
		},
		{
			Name: "hiphop",
			When: func(e Evidence, th Thresholds) bool {
				return within(e.BPM, th.HipHopBPM) && e.OnsetMean > th.HipHopOnset
			},
			Then: GenreHipHop,
		},
	}
}
