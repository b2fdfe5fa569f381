package analysis

import (
	"context"
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/nzoschke/audiodesc/pkg/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRate = 22050

func tone(freqs []float64, amp, seconds float64) []float64 {
	samples := make([]float64, int(seconds*testRate))
	for i := range samples {
		for _, f := range freqs {
			samples[i] += amp * math.Sin(2*math.Pi*f*float64(i)/testRate)
		}
	}
	return samples
}

// groove mixes decaying noise bursts on every beat with a quiet C major
// chord underneath, weighted toward the root.
func groove(bpm, seconds float64) []float64 {
	r := rand.New(rand.NewSource(7))
	samples := make([]float64, int(seconds*testRate))
	chord := []struct{ freq, amp float64 }{
		{130.81, 0.03},  // C3
		{261.63, 0.04},  // C4
		{329.63, 0.03},  // E4
		{392.00, 0.035}, // G4
	}
	for i := range samples {
		for _, n := range chord {
			samples[i] += n.amp * math.Sin(2*math.Pi*n.freq*float64(i)/testRate)
		}
	}

	period := 60 / bpm
	rate := float64(testRate)
	burst := int(0.15 * rate)
	for beat := 0.0; beat < seconds; beat += period {
		start := int(beat * testRate)
		for j := 0; j < burst && start+j < len(samples); j++ {
			env := math.Exp(-float64(j) / (0.03 * testRate))
			samples[start+j] += env * (r.Float64()*2 - 1)
		}
	}
	return samples
}

func TestExtract_SyntheticGroove(t *testing.T) {
	w := &audio.Waveform{Samples: groove(120, 20), SampleRate: testRate}

	fs, err := Extract(context.Background(), w, DefaultConfig())
	require.NoError(t, err)

	t.Logf("BPM=%.1f beats=%d key=%s", fs.BPM, len(fs.Beats), fs.Key.Full())
	t.Logf("H=%.5f P=%.5f ratio=%.3f", fs.HarmonicEnergy, fs.PercussiveEnergy, fs.HPRatio)
	t.Logf("centroid=%.0f rolloff=%.0f zcr=%.4f", fs.SpectralCentroid, fs.SpectralRolloff, fs.ZeroCrossingRate)
	t.Logf("onset mean=%.4f std=%.4f mfcc=%v", fs.OnsetMean, fs.OnsetStd, fs.MFCCMeans)

	assert.InDelta(t, 120, fs.BPM, 2)
	assert.Equal(t, Major, fs.Key.Mode)
	assert.Greater(t, fs.PercussiveEnergy, fs.HarmonicEnergy)
	assert.Greater(t, len(fs.Beats), 30)
	assert.Len(t, fs.BeatIntervals, len(fs.Beats)-1)
	for _, iv := range fs.BeatIntervals {
		assert.InDelta(t, 0.5, iv, 0.05)
	}
	assert.Len(t, fs.MFCCMeans, NumMFCC)
}

func TestExtract_Silence(t *testing.T) {
	w := &audio.Waveform{Samples: make([]float64, 5*testRate), SampleRate: testRate}

	fs, err := Extract(context.Background(), w, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 0.0, fs.BPM)
	assert.Empty(t, fs.Beats)
	assert.Empty(t, fs.BeatIntervals)
	assert.Equal(t, 0.0, fs.RMSMean)
	assert.Equal(t, 0.0, fs.RMSStd)
	assert.Equal(t, 0.0, fs.RMSVariation())
	assert.Equal(t, 0.0, fs.HPRatio)
	assert.Equal(t, 0.0, fs.SpectralCentroid)
	assert.Equal(t, 0.0, fs.OnsetMean)
	assert.Equal(t, Key{Tonic: "C", Mode: Major}, fs.Key)
}

func TestExtract_ConstantSignalTempoInRange(t *testing.T) {
	samples := make([]float64, 5000)
	for i := range samples {
		samples[i] = 0.3
	}
	w := &audio.Waveform{Samples: samples, SampleRate: testRate}

	fs, err := Extract(context.Background(), w, DefaultConfig())
	require.NoError(t, err)

	t.Logf("BPM=%.1f", fs.BPM)
	assert.GreaterOrEqual(t, fs.BPM, 0.0)
	assert.LessOrEqual(t, fs.BPM, DefaultTempoConfig().MaxBPM)
}

func TestExtract_EmptyWindow(t *testing.T) {
	_, err := Extract(context.Background(), &audio.Waveform{SampleRate: testRate}, DefaultConfig())
	var ae *AnalysisError
	require.ErrorAs(t, err, &ae)
	assert.ErrorIs(t, err, ErrEmptyWindow)
}

func TestExtract_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := &audio.Waveform{Samples: tone([]float64{440}, 0.5, 1), SampleRate: testRate}
	_, err := Extract(ctx, w, DefaultConfig())
	var ae *AnalysisError
	require.ErrorAs(t, err, &ae)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtract_PanicBecomesAnalysisError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Frames.HopLength = 0 // division by zero inside RMS framing

	w := &audio.Waveform{Samples: tone([]float64{440}, 0.5, 1), SampleRate: testRate}
	_, err := Extract(context.Background(), w, cfg)
	var ae *AnalysisError
	require.ErrorAs(t, err, &ae)
	t.Logf("error: %v", err)
	assert.Contains(t, []string{"energy", "spectral"}, ae.Stage)
}

func TestRMS(t *testing.T) {
	samples := make([]float64, 10*512)
	for i := range samples {
		samples[i] = 0.5
	}
	rms := RMS(samples, DefaultFrameConfig())
	assert.Len(t, rms, 11)
	// Interior frames see only the constant signal.
	assert.InDelta(t, 0.5, rms[5], 1e-12)
	// The first frame is half zero padding.
	assert.InDelta(t, 0.5*math.Sqrt(0.5), rms[0], 1e-12)

	mean, std := MeanStd(nil)
	assert.Zero(t, mean)
	assert.Zero(t, std)

	mean, std = MeanStd([]float64{1, 3})
	assert.Equal(t, 2.0, mean)
	assert.Equal(t, 1.0, std)
}

func TestSpectralShape_Sine(t *testing.T) {
	samples := tone([]float64{1000}, 0.5, 2)
	cfg := DefaultConfig()
	mag := STFT(samples, cfg.STFT).Magnitude()

	res := SpectralShape(samples, mag, testRate, cfg.STFT, cfg.Frames)
	t.Logf("centroid=%.1f rolloff=%.1f zcr=%.5f", res.Centroid, res.Rolloff, res.ZeroCrossingRate)

	assert.InDelta(t, 1000, res.Centroid, 50)
	assert.InDelta(t, 1000, res.Rolloff, 30)
	// Two crossings per cycle.
	assert.InDelta(t, 2*1000.0/testRate, res.ZeroCrossingRate, 0.01)

	silent := make([]float64, testRate)
	res = SpectralShape(silent, STFT(silent, cfg.STFT).Magnitude(), testRate, cfg.STFT, cfg.Frames)
	assert.Zero(t, res.Centroid)
	assert.Zero(t, res.Rolloff)
	assert.Zero(t, res.ZeroCrossingRate)
}

func TestHPSS_ToneVersusClicks(t *testing.T) {
	cfg := DefaultHPSSConfig()

	sine := tone([]float64{440}, 0.5, 3)
	res := HPSS(STFT(sine, cfg.STFT), len(sine), cfg)
	t.Logf("sine: H=%.5f P=%.5f ratio=%.2f", res.HarmonicEnergy, res.PercussiveEnergy, res.Ratio)
	assert.Greater(t, res.Ratio, 3.0)

	clicks := make([]float64, 3*testRate)
	for i := 0; i < len(clicks); i += testRate / 4 {
		clicks[i] = 1
	}
	res = HPSS(STFT(clicks, cfg.STFT), len(clicks), cfg)
	t.Logf("clicks: H=%.5f P=%.5f ratio=%.2f", res.HarmonicEnergy, res.PercussiveEnergy, res.Ratio)
	assert.Less(t, res.Ratio, 1.0)

	// Masks split energy; they never add it.
	total := meanSquare(clicks)
	assert.LessOrEqual(t, res.HarmonicEnergy+res.PercussiveEnergy, total*1.05)
}

func TestSlidingMedian(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	x := make([]float64, 200)
	for i := range x {
		x[i] = r.Float64()
	}

	width := 31
	got := make([]float64, len(x))
	slidingMedian(x, width, got)

	for i := range x {
		window := make([]float64, 0, width)
		for k := i - width/2; k <= i+width/2; k++ {
			window = append(window, x[reflect(k, len(x))])
		}
		slices.Sort(window)
		assert.Equal(t, window[width/2], got[i], "index %d", i)
	}
}

func TestReflect(t *testing.T) {
	assert.Equal(t, 0, reflect(-1, 5))
	assert.Equal(t, 1, reflect(-2, 5))
	assert.Equal(t, 4, reflect(5, 5))
	assert.Equal(t, 3, reflect(6, 5))
	assert.Equal(t, 0, reflect(3, 1))
}

func TestMFCC(t *testing.T) {
	// A flat dB spectrum has energy only in the 0th coefficient.
	frames := make([][]float64, 4)
	for i := range frames {
		frames[i] = make([]float64, 128)
		for j := range frames[i] {
			frames[i][j] = -20
		}
	}
	coeffs := MFCC(frames, NumMFCC)
	require.Len(t, coeffs, NumMFCC)
	assert.InDelta(t, -20*math.Sqrt(128), coeffs[0], 1e-9)
	for _, c := range coeffs[1:] {
		assert.InDelta(t, 0, c, 1e-9)
	}

	assert.Equal(t, make([]float64, NumMFCC), MFCC(nil, NumMFCC))
}

func TestMelFilterbank(t *testing.T) {
	fb := MelFilterbank(testRate, 2048, DefaultMelConfig())
	require.Len(t, fb, 128)
	require.Len(t, fb[0], 1025)

	for m, filter := range fb {
		var sum float64
		for _, w := range filter {
			assert.GreaterOrEqual(t, w, 0.0)
			sum += w
		}
		assert.Greater(t, sum, 0.0, "mel band %d is empty", m)
	}

	assert.InDelta(t, 1000, melToHz(hzToMel(1000)), 1e-9)
	assert.InDelta(t, 4000, melToHz(hzToMel(4000)), 1e-9)
	assert.InDelta(t, 15, hzToMel(1000), 1e-9)
}

func TestPowerToDB(t *testing.T) {
	db := PowerToDB([][]float64{{1, 0.1, 0}}, 1.0, 1e-10, 80)
	assert.InDelta(t, 0, db[0][0], 1e-9)
	assert.InDelta(t, -10, db[0][1], 1e-9)
	// Clipped to 80 dB below the peak.
	assert.InDelta(t, -80, db[0][2], 1e-9)

	db = PowerToDB([][]float64{{0, 0}}, 1.0, 1e-10, 80)
	assert.InDelta(t, -100, db[0][0], 1e-9)
}

func TestOnsetEnvelope(t *testing.T) {
	cfg := DefaultSTFTConfig()
	melDB := make([][]float64, 10)
	for i := range melDB {
		level := -60.0
		if i >= 4 {
			level = -20
		}
		melDB[i] = []float64{level, level}
	}

	env := OnsetEnvelope(melDB, 1, cfg)
	require.Len(t, env, 10)
	// The jump at frame 4 lands at 4 - 1 + (1 + 2048/1024) = 6.
	for i, v := range env {
		if i == 6 {
			assert.Equal(t, 40.0, v)
		} else {
			assert.Zero(t, v, "frame %d", i)
		}
	}
}
