// Package analysis extracts tempo, tonal, energy, texture, spectral and
// timbre features from a mono waveform.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime/debug"
	"sync"

	"github.com/nzoschke/audiodesc/pkg/audio"
	"golang.org/x/sync/errgroup"
)

// FeatureSet holds every numeric feature of one analysis window.
type FeatureSet struct {
	SampleRate int `json:"sample_rate"`

	BPM           float64   `json:"bpm"`            // rounded to 0.1
	Beats         []float64 `json:"beats"`          // seconds
	BeatIntervals []float64 `json:"beat_intervals"` // seconds between consecutive beats

	Chroma [12]float64 `json:"chroma"` // mean per-frame normalized pitch-class energy
	Key    Key         `json:"key"`

	RMSMean float64 `json:"rms_mean"`
	RMSStd  float64 `json:"rms_std"`

	HarmonicEnergy   float64 `json:"harmonic_energy"`
	PercussiveEnergy float64 `json:"percussive_energy"`
	HPRatio          float64 `json:"hp_ratio"`

	SpectralCentroid float64 `json:"spectral_centroid"`
	SpectralRolloff  float64 `json:"spectral_rolloff"`
	ZeroCrossingRate float64 `json:"zero_crossing_rate"`

	OnsetMean float64 `json:"onset_mean"`
	OnsetStd  float64 `json:"onset_std"`

	MFCCMeans []float64 `json:"mfcc_means"`
}

// RMSVariation is the coefficient of variation of frame energy.
func (fs *FeatureSet) RMSVariation() float64 {
	return fs.RMSStd / (fs.RMSMean + 1e-10)
}

// Config bundles the parameters of every stage.
type Config struct {
	STFT   STFTConfig
	Mel    MelConfig
	Frames FrameConfig
	Tempo  TempoConfig
	Chroma ChromaConfig
	HPSS   HPSSConfig
	Tones  ToneProfile
	Lag    int // onset flux lag in frames
}

// DefaultConfig returns the parameters used for descriptor generation.
func DefaultConfig() Config {
	return Config{
		STFT:   DefaultSTFTConfig(),
		Mel:    DefaultMelConfig(),
		Frames: DefaultFrameConfig(),
		Tempo:  DefaultTempoConfig(),
		Chroma: DefaultChromaConfig(),
		HPSS:   DefaultHPSSConfig(),
		Tones:  KrumhanslProfile(),
		Lag:    1,
	}
}

// AnalysisError reports a failure inside one feature stage.
type AnalysisError struct {
	Stage string
	Err   error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analyze %s: %v", e.Stage, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// ErrEmptyWindow is returned when there are no samples to analyze.
var ErrEmptyWindow = errors.New("empty analysis window")

// intermediates are computed at most once and shared by the stages.
type intermediates struct {
	spec  func() Spectrogram
	mag   func() [][]float64
	melDB func() [][]float64
	onset func() []float64
}

func newIntermediates(w *audio.Waveform, cfg Config) *intermediates {
	im := &intermediates{}
	im.spec = sync.OnceValue(func() Spectrogram {
		return STFT(w.Samples, cfg.STFT)
	})
	im.mag = sync.OnceValue(func() [][]float64 {
		return im.spec().Magnitude()
	})
	im.melDB = sync.OnceValue(func() [][]float64 {
		fb := MelFilterbank(w.SampleRate, cfg.STFT.FFTSize, cfg.Mel)
		mel := MelSpectrogram(im.spec().Power(), fb)
		return PowerToDB(mel, 1.0, 1e-10, 80)
	})
	im.onset = sync.OnceValue(func() []float64 {
		return OnsetEnvelope(im.melDB(), cfg.Lag, cfg.STFT)
	})
	return im
}

// Extract runs every feature stage over w. Stages run concurrently and
// the first failure cancels the rest.
func Extract(ctx context.Context, w *audio.Waveform, cfg Config) (*FeatureSet, error) {
	if w == nil || len(w.Samples) == 0 {
		return nil, &AnalysisError{Stage: "load", Err: ErrEmptyWindow}
	}

	fs := &FeatureSet{SampleRate: w.SampleRate}
	im := newIntermediates(w, cfg)
	frameRate := float64(w.SampleRate) / float64(cfg.STFT.HopSize)

	g, ctx := errgroup.WithContext(ctx)
	stage := func(name string, fn func()) {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					slog.Debug("stage panicked", "stage", name, "panic", r, "stack", string(debug.Stack()))
					err = &AnalysisError{Stage: name, Err: fmt.Errorf("panic: %v", r)}
				}
			}()
			if err := ctx.Err(); err != nil {
				return &AnalysisError{Stage: name, Err: err}
			}
			fn()
			return nil
		})
	}

	stage("tempo", func() {
		res := TrackBeats(im.onset(), frameRate, cfg.Tempo)
		fs.BPM = res.BPM
		fs.Beats = res.Beats
	})
	stage("key", func() {
		fs.Chroma = Chroma(w.Samples, w.SampleRate, cfg.Chroma)
		fs.Key = EstimateKey(fs.Chroma, cfg.Tones)
	})
	stage("energy", func() {
		fs.RMSMean, fs.RMSStd = MeanStd(RMS(w.Samples, cfg.Frames))
	})
	stage("hpss", func() {
		res := HPSS(im.spec(), len(w.Samples), cfg.HPSS)
		fs.HarmonicEnergy = res.HarmonicEnergy
		fs.PercussiveEnergy = res.PercussiveEnergy
		fs.HPRatio = res.Ratio
	})
	stage("spectral", func() {
		res := SpectralShape(w.Samples, im.mag(), w.SampleRate, cfg.STFT, cfg.Frames)
		fs.SpectralCentroid = res.Centroid
		fs.SpectralRolloff = res.Rolloff
		fs.ZeroCrossingRate = res.ZeroCrossingRate
	})
	stage("onset", func() {
		fs.OnsetMean, fs.OnsetStd = MeanStd(im.onset())
	})
	stage("timbre", func() {
		fs.MFCCMeans = MFCC(im.melDB(), NumMFCC)
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	fs.BeatIntervals = BeatIntervals(fs.Beats)
	if err := fs.validate(); err != nil {
		return nil, err
	}
	return fs, nil
}

// validate rejects non-finite features so no NaN reaches the labels.
func (fs *FeatureSet) validate() error {
	var timbre float64
	for _, v := range fs.MFCCMeans {
		timbre += v
	}
	checks := []struct {
		stage string
		value float64
	}{
		{"tempo", fs.BPM},
		{"energy", fs.RMSMean + fs.RMSStd},
		{"hpss", fs.HPRatio},
		{"spectral", fs.SpectralCentroid + fs.SpectralRolloff + fs.ZeroCrossingRate},
		{"onset", fs.OnsetMean + fs.OnsetStd},
		{"timbre", timbre},
	}
	for _, c := range checks {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) {
			return &AnalysisError{Stage: c.stage, Err: errors.New("non-finite feature value")}
		}
	}
	return nil
}
