// Package audio decodes audio files into mono waveforms for analysis.
package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Waveform is a mono signal and the rate it was sampled at.
type Waveform struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the length of the waveform in seconds.
func (w *Waveform) Duration() float64 {
	if w == nil || w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// Decoder turns an audio file into a mono waveform.
type Decoder interface {
	// Load decodes at most duration seconds starting offset seconds into
	// the file. A duration <= 0 reads to the end.
	Load(ctx context.Context, path string, offset, duration float64) (*Waveform, error)
	// Probe returns the total duration in seconds without decoding samples
	// where the format allows it.
	Probe(ctx context.Context, path string) (float64, error)
}

// DecodeError reports a file that is missing, unreadable or in an
// unsupported format.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", filepath.Base(e.Path), e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ErrUnsupportedFormat is returned for extensions no decoder handles.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Registry dispatches to a Decoder by file extension.
type Registry struct {
	byExt    map[string]Decoder
	fallback Decoder
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byExt: map[string]Decoder{}}
}

// DefaultRegistry decodes MP3 and WAV natively and everything else through
// ffmpeg when it is installed.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(".mp3", &MP3Decoder{})
	r.Register(".wav", &WAVDecoder{})
	if _, err := exec.LookPath("ffmpeg"); err == nil {
		r.SetFallback(DefaultFFmpegDecoder())
	}
	return r
}

// Register binds a decoder to an extension such as ".mp3".
func (r *Registry) Register(ext string, d Decoder) {
	r.byExt[strings.ToLower(ext)] = d
}

// SetFallback sets the decoder used for unregistered extensions.
func (r *Registry) SetFallback(d Decoder) {
	r.fallback = d
}

func (r *Registry) decoderFor(path string) (Decoder, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	ext := strings.ToLower(filepath.Ext(path))
	if d, ok := r.byExt[ext]; ok {
		return d, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, &DecodeError{Path: path, Err: fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)}
}

// Load implements Decoder.
func (r *Registry) Load(ctx context.Context, path string, offset, duration float64) (*Waveform, error) {
	d, err := r.decoderFor(path)
	if err != nil {
		return nil, err
	}
	w, err := d.Load(ctx, path, offset, duration)
	if err != nil {
		return nil, asDecodeError(path, err)
	}
	return w, nil
}

// Probe implements Decoder.
func (r *Registry) Probe(ctx context.Context, path string) (float64, error) {
	d, err := r.decoderFor(path)
	if err != nil {
		return 0, err
	}
	sec, err := d.Probe(ctx, path)
	if err != nil {
		return 0, asDecodeError(path, err)
	}
	return sec, nil
}

// IsSupported reports whether ext names a format the pipeline will try to decode.
func IsSupported(ext string) bool {
	switch strings.ToLower(ext) {
	case ".mp3", ".m4a", ".aac", ".wav", ".flac", ".ogg", ".aiff":
		return true
	default:
		return false
	}
}

func asDecodeError(path string, err error) error {
	var de *DecodeError
	if errors.As(err, &de) {
		return err
	}
	return &DecodeError{Path: path, Err: err}
}
