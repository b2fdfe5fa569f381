package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"
)

// Additional samples that go-mp3 produces compared to a browser's decoder.
// Measured: browser first transient at 48446, go-mp3 at 50735.
// LAME header said 1365, so go-mp3 adds: 50735 - 48446 - 1365 = 924 samples
const goMP3DecoderDelay = 924

// Default encoder delay if we can't read it from the LAME header
const defaultEncoderDelay = 576

// go-mp3 always emits 16-bit stereo.
const mp3BytesPerFrame = 4

// MP3Decoder decodes MP3 files with go-mp3, compensating for encoder and
// decoder delay so that offsets line up with what a player would show.
type MP3Decoder struct{}

// readMP3Delay reads the total delay to skip for an MP3 file.
// Combines LAME encoder delay (from header) + go-mp3 decoder delay.
func readMP3Delay(path string) int {
	return readLAMEEncoderDelay(path) + goMP3DecoderDelay
}

// readLAMEEncoderDelay reads the encoder delay from LAME/Xing header if present.
func readLAMEEncoderDelay(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return defaultEncoderDelay
	}
	defer f.Close()

	// Read first 4KB which should contain any Xing/LAME header
	buf := make([]byte, 4096)
	n, err := f.Read(buf)
	if err != nil || n < 200 {
		return defaultEncoderDelay
	}
	return parseLAMEDelay(buf[:n])
}

// parseLAMEDelay extracts the 12-bit encoder delay stored 21 bytes after
// the "LAME" marker.
func parseLAMEDelay(buf []byte) int {
	lameIdx := bytes.Index(buf, []byte("LAME"))
	if lameIdx == -1 {
		return defaultEncoderDelay
	}

	delayOffset := lameIdx + 21
	if delayOffset+3 > len(buf) {
		return defaultEncoderDelay
	}

	// Encoder delay is in the upper 12 bits of the 24-bit value
	b := buf[delayOffset : delayOffset+3]
	delay := (int(b[0]) << 4) | (int(b[1]) >> 4)

	// Sanity check - delay should be reasonable (typically 576-1152)
	if delay < 0 || delay > 4096 {
		return defaultEncoderDelay
	}

	return delay
}

// Load implements Decoder.
func (d *MP3Decoder) Load(ctx context.Context, path string, offset, duration float64) (*Waveform, error) {
	totalDelay := readMP3Delay(path)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("create MP3 decoder: %w", err)
	}

	sampleRate := decoder.SampleRate()
	startFrame := int64(totalDelay) + int64(offset*float64(sampleRate))
	if length := decoder.Length(); length >= 0 && startFrame*mp3BytesPerFrame >= length {
		return &Waveform{SampleRate: sampleRate}, nil
	}
	if _, err := decoder.Seek(startFrame*mp3BytesPerFrame, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to %.1fs: %w", offset, err)
	}

	var r io.Reader = decoder
	if duration > 0 {
		r = io.LimitReader(decoder, int64(duration*float64(sampleRate))*mp3BytesPerFrame)
	}
	pcmData, err := readAllContext(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("decode MP3: %w", err)
	}

	return &Waveform{Samples: stereo16ToMono(pcmData), SampleRate: sampleRate}, nil
}

// Probe implements Decoder using the decoded stream length, which go-mp3
// computes from frame headers without synthesizing PCM.
func (d *MP3Decoder) Probe(ctx context.Context, path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return 0, fmt.Errorf("create MP3 decoder: %w", err)
	}
	length := decoder.Length()
	if length < 0 {
		return 0, errors.New("unknown MP3 length")
	}
	frames := length/mp3BytesPerFrame - int64(readMP3Delay(path))
	if frames < 0 {
		frames = 0
	}
	return float64(frames) / float64(decoder.SampleRate()), nil
}

// stereo16ToMono mixes interleaved signed 16-bit stereo to mono in [-1, 1].
func stereo16ToMono(pcmData []byte) []float64 {
	numSamplePairs := len(pcmData) / mp3BytesPerFrame
	samples := make([]float64, numSamplePairs)

	for i := range numSamplePairs {
		offset := i * mp3BytesPerFrame
		left := int16(binary.LittleEndian.Uint16(pcmData[offset:]))
		right := int16(binary.LittleEndian.Uint16(pcmData[offset+2:]))
		samples[i] = (float64(left) + float64(right)) / 2.0 / 32768.0
	}

	return samples
}

// readAllContext is io.ReadAll that stops early when ctx is cancelled.
func readAllContext(ctx context.Context, r io.Reader) ([]byte, error) {
	var out bytes.Buffer
	buf := make([]byte, 64*1024)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := r.Read(buf)
		out.Write(buf[:n])
		if errors.Is(err, io.EOF) {
			return out.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
	}
}
