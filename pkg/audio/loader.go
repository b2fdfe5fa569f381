package audio

import (
	"context"
	"log/slog"
)

// AnalysisSampleRate is the rate every analysis window is resampled to.
const AnalysisSampleRate = 22050

// Loader reads the bounded analysis window of a file and measures its
// full duration.
type Loader struct {
	Decoder     Decoder
	Offset      float64 // seconds skipped at the start of the file
	MaxDuration float64 // longest window analyzed, in seconds
	SampleRate  int     // rate of the returned window
}

// DefaultLoader skips the first 5 seconds and analyzes up to 90 seconds at 22050 Hz.
func DefaultLoader() *Loader {
	return &Loader{
		Decoder:     DefaultRegistry(),
		Offset:      5,
		MaxDuration: 90,
		SampleRate:  AnalysisSampleRate,
	}
}

// LoadWindow decodes the analysis window and resamples it to l.SampleRate.
// A file shorter than the offset yields an empty waveform.
func (l *Loader) LoadWindow(ctx context.Context, path string) (*Waveform, error) {
	w, err := l.Decoder.Load(ctx, path, l.Offset, l.MaxDuration)
	if err != nil {
		return nil, asDecodeError(path, err)
	}
	if l.SampleRate > 0 && w.SampleRate != l.SampleRate {
		w = &Waveform{
			Samples:    Resample(w.Samples, w.SampleRate, l.SampleRate),
			SampleRate: l.SampleRate,
		}
	}
	return w, nil
}

// Duration returns the total length of the file in seconds. It probes
// metadata first and falls back to decoding the whole file.
func (l *Loader) Duration(ctx context.Context, path string) (float64, error) {
	sec, err := l.Decoder.Probe(ctx, path)
	if err == nil && sec > 0 {
		return sec, nil
	}
	slog.Debug("duration probe failed, decoding full file", "path", path, "err", err)

	w, err := l.Decoder.Load(ctx, path, 0, 0)
	if err != nil {
		return 0, asDecodeError(path, err)
	}
	return w.Duration(), nil
}

// Resample converts samples from srcRate to dstRate by linear interpolation.
func Resample(samples []float64, srcRate, dstRate int) []float64 {
	if srcRate == dstRate || srcRate <= 0 || dstRate <= 0 {
		return samples
	}

	ratio := float64(srcRate) / float64(dstRate)
	newLen := int(float64(len(samples)) / ratio)
	result := make([]float64, newLen)

	for i := 0; i < newLen; i++ {
		srcIdx := float64(i) * ratio
		srcIdxInt := int(srcIdx)
		frac := srcIdx - float64(srcIdxInt)

		if srcIdxInt+1 < len(samples) {
			result[i] = samples[srcIdxInt]*(1-frac) + samples[srcIdxInt+1]*frac
		} else if srcIdxInt < len(samples) {
			result[i] = samples[srcIdxInt]
		}
	}

	return result
}
