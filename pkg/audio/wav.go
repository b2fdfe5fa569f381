package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVDecoder decodes PCM WAV files with go-audio/wav.
type WAVDecoder struct{}

const wavChunkFrames = 8192

// Load implements Decoder.
func (d *WAVDecoder) Load(ctx context.Context, path string, offset, duration float64) (*Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("seek PCM chunk: %w", err)
	}

	sampleRate := int(dec.SampleRate)
	channels := int(dec.NumChans)
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid WAV format: %d Hz, %d channels", sampleRate, channels)
	}
	scale, bias := pcmScale(int(dec.BitDepth))

	skip := int(offset * float64(sampleRate))
	limit := -1
	if duration > 0 {
		limit = int(duration * float64(sampleRate))
	}

	buf := &goaudio.IntBuffer{
		Format: dec.Format(),
		Data:   make([]int, wavChunkFrames*channels),
	}
	var samples []float64
	frame := 0
	for limit < 0 || len(samples) < limit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := dec.PCMBuffer(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode WAV: %w", err)
		}
		if n == 0 {
			break
		}
		for i := 0; i+channels <= n; i += channels {
			if frame >= skip {
				var sum float64
				for c := 0; c < channels; c++ {
					sum += float64(buf.Data[i+c]-bias) / scale
				}
				samples = append(samples, sum/float64(channels))
				if limit >= 0 && len(samples) >= limit {
					break
				}
			}
			frame++
		}
	}

	return &Waveform{Samples: samples, SampleRate: sampleRate}, nil
}

// Probe implements Decoder from the RIFF header.
func (d *WAVDecoder) Probe(ctx context.Context, path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, errors.New("invalid WAV file")
	}
	dur, err := dec.Duration()
	if err != nil {
		return 0, fmt.Errorf("read WAV duration: %w", err)
	}
	return dur.Seconds(), nil
}

// pcmScale returns the full-scale divisor and the zero offset for integer
// PCM of the given bit depth. 8-bit WAV is unsigned.
func pcmScale(bitDepth int) (float64, int) {
	switch bitDepth {
	case 8:
		return 128, 128
	case 0:
		return 32768, 0
	default:
		return float64(int64(1) << (bitDepth - 1)), 0
	}
}

// WriteWAV encodes w as 16-bit mono PCM.
func WriteWAV(path string, w *Waveform) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, w.SampleRate, 16, 1, 1)
	data := make([]int, len(w.Samples))
	for i, s := range w.Samples {
		s = math.Max(-1, math.Min(1, s))
		data[i] = int(math.Round(s * 32767))
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: w.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode WAV: %w", err)
	}
	return enc.Close()
}
