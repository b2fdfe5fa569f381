package analysis

import (
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFrameRate = 22050.0 / 512

// pulseEnvelope builds an onset envelope with a unit pulse every period
// frames (fractional periods accumulate).
func pulseEnvelope(frames int, period float64) []float64 {
	env := make([]float64, frames)
	for t := 0.0; int(t) < frames; t += period {
		env[int(t)] = 1
	}
	return env
}

func TestEstimateTempo(t *testing.T) {
	for _, bpm := range []float64{90, 100, 120, 128, 140} {
		period := 60 * testFrameRate / bpm
		got := EstimateTempo(pulseEnvelope(2000, period), testFrameRate, DefaultTempoConfig())
		t.Logf("target %.0f BPM, estimated %.2f", bpm, got)
		assert.InDelta(t, bpm, got, 2, "target %.0f", bpm)
	}
}

func TestEstimateTempo_StaysInRange(t *testing.T) {
	cfg := DefaultTempoConfig()
	for _, period := range []float64{6, 8, 9, 100, 120} {
		got := EstimateTempo(pulseEnvelope(3000, period), testFrameRate, cfg)
		t.Logf("period %.0f frames, estimated %.2f", period, got)
		if got != 0 {
			assert.GreaterOrEqual(t, got, cfg.MinBPM)
			assert.LessOrEqual(t, got, cfg.MaxBPM)
		}
	}

	// A constant envelope has no periodicity at all.
	env := make([]float64, 200)
	for i := range env {
		env[i] = 0.3
	}
	assert.Zero(t, EstimateTempo(env, testFrameRate, cfg))
}

func TestFitPeriod(t *testing.T) {
	period := 60 * testFrameRate / 120
	env := pulseEnvelope(4000, period)
	var frames []int
	for i, v := range env {
		if v > 0 {
			frames = append(frames, i)
		}
	}

	assert.InDelta(t, period, fitPeriod(env, frames, period), 0.02)

	skipped := slices.Delete(slices.Clone(frames), 10, 11)
	assert.InDelta(t, period, fitPeriod(env, skipped, period), 0.02)

	assert.Zero(t, fitPeriod(env, frames[:3], period))
	assert.Zero(t, fitPeriod(env, nil, period))
}

func TestTrackBeats_Pulses(t *testing.T) {
	period := 60 * testFrameRate / 120
	res := TrackBeats(pulseEnvelope(1000, period), testFrameRate, DefaultTempoConfig())

	t.Logf("BPM=%.1f, %d beats", res.BPM, len(res.Beats))
	assert.InDelta(t, 120, res.BPM, 0.3)
	require.Greater(t, len(res.Beats), 30)
	assert.True(t, res.BPM == math.Round(res.BPM*10)/10)

	for _, iv := range BeatIntervals(res.Beats) {
		assert.InDelta(t, 0.5, iv, 0.05)
	}
}

func TestTrackBeats_Silent(t *testing.T) {
	res := TrackBeats(make([]float64, 500), testFrameRate, DefaultTempoConfig())
	assert.Zero(t, res.BPM)
	assert.NotNil(t, res.Beats)
	assert.Empty(t, res.Beats)

	res = TrackBeats(nil, testFrameRate, DefaultTempoConfig())
	assert.Zero(t, res.BPM)
	assert.Empty(t, res.Beats)
}

func TestBeatIntervals(t *testing.T) {
	assert.Empty(t, BeatIntervals(nil))
	assert.Empty(t, BeatIntervals([]float64{1.0}))
	assert.InDeltaSlice(t, []float64{0.5, 0.25}, BeatIntervals([]float64{1, 1.5, 1.75}), 1e-12)
}

func TestConvolveSame(t *testing.T) {
	out := convolveSame([]float64{0, 0, 1, 0, 0}, []float64{1, 2, 3})
	assert.Equal(t, []float64{0, 1, 2, 3, 0}, out)
}

func TestMedianFloat64(t *testing.T) {
	values := []float64{3, 1, 2}
	assert.Equal(t, 2.0, medianFloat64(values))
	assert.Equal(t, []float64{3, 1, 2}, values)
	assert.Equal(t, 2.5, medianFloat64([]float64{4, 1, 3, 2}))
	assert.Zero(t, medianFloat64(nil))
}
