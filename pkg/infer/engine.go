package infer

import (
	"math"

	"github.com/nzoschke/audiodesc/pkg/analysis"
)

// Labels is the categorical interpretation of one feature set.
type Labels struct {
	Energy        EnergyLevel
	DynamicRange  DynamicRange
	Texture       Texture
	Brightness    Brightness
	RhythmDensity RhythmDensity
	TimeSignature TimeSignature
	Moods         []Mood
	Genres        []Genre
}

// Engine applies thresholds and ordered rules to features.
type Engine struct {
	Thresholds Thresholds
	MoodRules  []MoodRule
	GenreRules []GenreRule
	MaxMoods   int
}

// DefaultEngine returns an engine with the default table and rules, keeping
// at most four moods.
func DefaultEngine() *Engine {
	return &Engine{
		Thresholds: DefaultThresholds(),
		MoodRules:  DefaultMoodRules(),
		GenreRules: DefaultGenreRules(),
		MaxMoods:   4,
	}
}

// Classify labels a feature set. Rules see the tempo rounded to one decimal
// place, the same value a descriptor reports.
func (e *Engine) Classify(fs *analysis.FeatureSet) Labels {
	ev := NewEvidence(fs)
	ev.BPM = math.Round(ev.BPM*10) / 10

	th := e.Thresholds
	return Labels{
		Energy:        th.EnergyLevel(fs.RMSMean),
		DynamicRange:  th.DynamicRange(ev.RMSVariation),
		Texture:       th.Texture(fs.HPRatio),
		Brightness:    th.Brightness(fs.SpectralCentroid),
		RhythmDensity: th.RhythmDensity(fs.OnsetMean),
		TimeSignature: th.TimeSignature(fs.BeatIntervals),
		Moods:         e.Moods(ev),
		Genres:        e.Genres(ev),
	}
}

// Moods evaluates every mood rule in order, concatenating tags and keeping
// the first MaxMoods. Duplicates are kept.
func (e *Engine) Moods(ev Evidence) []Mood {
	moods := []Mood{}
	for _, r := range e.MoodRules {
		if r.When(ev, e.Thresholds) {
			moods = append(moods, r.Then...)
		}
	}
	if e.MaxMoods > 0 && len(moods) > e.MaxMoods {
		moods = moods[:e.MaxMoods]
	}
	return moods
}

// Genres evaluates every genre rule in order. When nothing matches the
// default genre is returned.
func (e *Engine) Genres(ev Evidence) []Genre {
	genres := []Genre{}
	for _, r := range e.GenreRules {
		if r.When(ev, e.Thresholds) {
			genres = append(genres, r.Then)
		}
	}
	if len(genres) == 0 {
		genres = append(genres, GenreDefault)
	}
	return genres
}
