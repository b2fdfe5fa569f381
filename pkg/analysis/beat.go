package analysis

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// TempoConfig holds the tempo prior and beat tracker parameters.
type TempoConfig struct {
	StartBPM  float64 // center of the log-normal tempo prior
	StdBPM    float64 // prior width in octaves
	MinBPM    float64
	MaxBPM    float64
	Tightness float64 // how strictly beats follow the global tempo
}

// DefaultTempoConfig returns a 120 BPM prior, one octave wide, searching 30-300 BPM.
func DefaultTempoConfig() TempoConfig {
	return TempoConfig{
		StartBPM:  120,
		StdBPM:    1,
		MinBPM:    30,
		MaxBPM:    300,
		Tightness: 100,
	}
}

// TempoResult is the global tempo and the tracked beat positions.
type TempoResult struct {
	BPM   float64   // rounded to 0.1
	Beats []float64 // beat times in seconds
}

// TrackBeats estimates a global tempo from the onset envelope and then
// places beats by dynamic programming. The tempo is refined by a line fit
// through the tracked beats when they agree with the estimate. frameRate
// is envelope frames per second. A silent envelope yields zero BPM and no
// beats.
func TrackBeats(onset []float64, frameRate float64, cfg TempoConfig) TempoResult {
	if len(onset) == 0 || floats.Max(onset) <= 0 {
		return TempoResult{Beats: []float64{}}
	}

	bpm := EstimateTempo(onset, frameRate, cfg)
	if bpm <= 0 {
		return TempoResult{Beats: []float64{}}
	}

	frames := beatFrames(onset, frameRate, bpm, cfg.Tightness)
	period := 60 * frameRate / bpm
	if fit := fitPeriod(onset, frames, period); fit > 0 && math.Abs(fit-period) < maxFitDrift {
		bpm = min(max(60*frameRate/fit, cfg.MinBPM), cfg.MaxBPM)
	}

	beats := make([]float64, len(frames))
	for i, f := range frames {
		beats[i] = float64(f) / frameRate
	}
	return TempoResult{BPM: math.Round(bpm*10) / 10, Beats: beats}
}

const (
	minFitBeats = 8
	maxFitDrift = 0.25 // frames per beat
)

// fitPeriod returns the least-squares beat period in frames through the
// tracked beats, each placed at the onset centroid around its frame.
// Beats are numbered against period so a skipped beat keeps its slot.
// It returns 0 when there are too few beats.
func fitPeriod(onset []float64, frames []int, period float64) float64 {
	if len(frames) < minFitBeats || period <= 0 {
		return 0
	}

	index := make([]float64, len(frames))
	pos := make([]float64, len(frames))
	for i, f := range frames {
		if i > 0 {
			index[i] = index[i-1] + max(1, math.Round(float64(f-frames[i-1])/period))
		}
		pos[i] = onsetCentroid(onset, f, 2)
	}
	if index[len(index)-1] < minFitBeats-1 {
		return 0
	}

	_, slope := stat.LinearRegression(index, pos, nil, false)
	if math.IsNaN(slope) || slope <= 0 {
		return 0
	}
	return slope
}

// onsetCentroid is the onset-weighted mean frame within radius of f.
func onsetCentroid(onset []float64, f, radius int) float64 {
	var sum, weight float64
	for j := max(0, f-radius); j <= min(len(onset)-1, f+radius); j++ {
		sum += float64(j) * onset[j]
		weight += onset[j]
	}
	if weight <= 0 {
		return float64(f)
	}
	return sum / weight
}

// EstimateTempo picks the autocorrelation lag of the onset envelope that
// best agrees with a log-normal prior around cfg.StartBPM, refined to a
// fractional lag by parabolic interpolation of the unweighted
// autocorrelation. The result stays within [cfg.MinBPM, cfg.MaxBPM].
func EstimateTempo(onset []float64, frameRate float64, cfg TempoConfig) float64 {
	shortest := 60 * frameRate / cfg.MaxBPM
	longest := 60 * frameRate / cfg.MinBPM
	minLag := max(1, int(math.Ceil(shortest)))
	maxLag := min(len(onset)-2, int(math.Floor(longest)))
	if maxLag <= minLag {
		return 0
	}

	mean := stat.Mean(onset, nil)
	centered := make([]float64, len(onset))
	for i, v := range onset {
		centered[i] = v - mean
	}
	ac0 := floats.Dot(centered, centered)
	if ac0 <= 1e-10 {
		return 0
	}

	// Autocorrelation two lags beyond each end, so the smoothed and
	// interpolated values at the edges are defined.
	ac := make([]float64, maxLag+3)
	for lag := minLag - 2; lag <= maxLag+2; lag++ {
		if lag < 1 || lag >= len(onset) {
			continue
		}
		ac[lag] = max(0, floats.Dot(centered[:len(centered)-lag], centered[lag:])/ac0)
	}

	// A period that falls between two integer lags splits its peak, so
	// neighbouring lags are pooled before the prior is applied.
	smoothed := make([]float64, maxLag+2)
	score := make([]float64, maxLag+2)
	for lag := max(1, minLag-1); lag <= maxLag+1; lag++ {
		smoothed[lag] = 0.25*ac[lag-1] + 0.5*ac[lag] + 0.25*ac[lag+1]
		bpm := 60 * frameRate / float64(lag)
		z := (math.Log2(bpm) - math.Log2(cfg.StartBPM)) / cfg.StdBPM
		score[lag] = smoothed[lag] * math.Exp(-0.5*z*z)
	}

	best := minLag
	for lag := minLag; lag <= maxLag; lag++ {
		if score[lag] > score[best] {
			best = lag
		}
	}
	if score[best] <= 0 {
		return 0
	}

	period := float64(best)
	if best > 1 {
		a, b, c := smoothed[best-1], smoothed[best], smoothed[best+1]
		if denom := a - 2*b + c; denom < 0 {
			delta := 0.5 * (a - c) / denom
			if delta > -0.5 && delta < 0.5 {
				period += delta
			}
		}
	}
	period = min(max(period, shortest), longest)
	return 60 * frameRate / period
}

// beatFrames runs the Ellis dynamic programming beat tracker.
func beatFrames(onset []float64, frameRate, bpm, tightness float64) []int {
	period := math.Round(60 * frameRate / bpm)
	if period < 1 {
		return []int{}
	}
	local := localScore(onset, period)
	n := len(local)

	cumscore := make([]float64, n)
	backlink := make([]int, n)
	threshold := 0.01 * floats.Max(local)
	lo := int(2 * period)
	hi := int(math.Round(period / 2))

	firstBeat := true
	for i, score := range local {
		best := math.Inf(-1)
		loc := -1
		for prev := i - lo; prev <= i-hi; prev++ {
			if prev < 0 {
				continue
			}
			l := math.Log(float64(i-prev) / period)
			cand := cumscore[prev] - tightness*l*l
			if cand > best {
				best = cand
				loc = prev
			}
		}
		if loc >= 0 {
			cumscore[i] = score + best
		} else {
			cumscore[i] = score
		}

		if firstBeat && score < threshold {
			backlink[i] = -1
		} else {
			backlink[i] = loc
			firstBeat = false
		}
	}

	beats := []int{lastBeat(cumscore)}
	for backlink[beats[len(beats)-1]] >= 0 {
		beats = append(beats, backlink[beats[len(beats)-1]])
	}
	slices.Reverse(beats)

	return trimBeats(local, beats)
}

// localScore normalizes the onset envelope and smooths it with a Gaussian
// whose width follows the beat period.
func localScore(onset []float64, period float64) []float64 {
	std := stat.StdDev(onset, nil)
	norm := make([]float64, len(onset))
	for i, v := range onset {
		norm[i] = v / (std + 1e-10)
	}

	p := int(period)
	kernel := make([]float64, 2*p+1)
	for k := range kernel {
		x := float64(k-p) * 32 / period
		kernel[k] = math.Exp(-0.5 * x * x)
	}
	return convolveSame(norm, kernel)
}

// lastBeat picks the final local maximum of the cumulative score that
// reaches half the median local-maximum score.
func lastBeat(cumscore []float64) int {
	n := len(cumscore)
	isMax := func(i int) bool {
		left := i > 0 && cumscore[i] > cumscore[i-1]
		right := i == n-1 || cumscore[i] >= cumscore[i+1]
		return left && right
	}

	var peaks []float64
	for i := range cumscore {
		if isMax(i) {
			peaks = append(peaks, cumscore[i])
		}
	}
	if len(peaks) == 0 {
		return n - 1
	}
	med := medianFloat64(peaks)

	for i := n - 1; i >= 0; i-- {
		if isMax(i) && 2*cumscore[i] > med {
			return i
		}
	}
	return n - 1
}

// trimBeats drops weak beats at the start and end, where the smoothed
// local score stays under half its RMS.
func trimBeats(local []float64, beats []int) []int {
	if len(beats) == 0 {
		return beats
	}
	strengths := make([]float64, len(beats))
	for i, b := range beats {
		strengths[i] = local[b]
	}
	smooth := convolveSame(strengths, []float64{0, 0.5, 1, 0.5, 0})

	var sumSq float64
	for _, v := range smooth {
		sumSq += v * v
	}
	threshold := 0.5 * math.Sqrt(sumSq/float64(len(smooth)))

	start, end := 0, len(beats)
	for start < end && smooth[start] <= threshold {
		start++
	}
	for end > start && smooth[end-1] <= threshold {
		end--
	}
	return beats[start:end]
}

// convolveSame returns the centered part of the full convolution, with the
// same length as x.
func convolveSame(x, kernel []float64) []float64 {
	out := make([]float64, len(x))
	half := (len(kernel) - 1) / 2
	for i := range x {
		var sum float64
		for k, w := range kernel {
			j := i + half - k
			if j >= 0 && j < len(x) {
				sum += x[j] * w
			}
		}
		out[i] = sum
	}
	return out
}

// BeatIntervals returns the gaps between consecutive beat times.
func BeatIntervals(beats []float64) []float64 {
	if len(beats) < 2 {
		return []float64{}
	}
	intervals := make([]float64, len(beats)-1)
	for i := 1; i < len(beats); i++ {
		intervals[i-1] = beats[i] - beats[i-1]
	}
	return intervals
}

// medianFloat64 returns the median without modifying values.
func medianFloat64(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
