package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// FFmpegDecoder decodes any format ffmpeg understands by piping mono
// float32 PCM from an ffmpeg subprocess.
type FFmpegDecoder struct {
	FFmpegBin  string
	FFprobeBin string
	SampleRate int // output rate requested from ffmpeg
}

// DefaultFFmpegDecoder uses ffmpeg and ffprobe from PATH and decodes
// straight to the analysis rate.
func DefaultFFmpegDecoder() *FFmpegDecoder {
	return &FFmpegDecoder{
		FFmpegBin:  "ffmpeg",
		FFprobeBin: "ffprobe",
		SampleRate: AnalysisSampleRate,
	}
}

// Load implements Decoder.
func (d *FFmpegDecoder) Load(ctx context.Context, path string, offset, duration float64) (*Waveform, error) {
	args := []string{"-nostdin", "-loglevel", "error"}
	if offset > 0 {
		args = append(args, "-ss", formatSeconds(offset))
	}
	args = append(args, "-i", path)
	if duration > 0 {
		args = append(args, "-t", formatSeconds(duration))
	}
	args = append(args,
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ac", "1",
		"-ar", strconv.Itoa(d.SampleRate),
		"pipe:1",
	)

	out, err := runCmd(ctx, d.FFmpegBin, args...)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode: %w", err)
	}

	samples := make([]float64, len(out)/4)
	for i := range samples {
		samples[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(out[i*4:])))
	}

	return &Waveform{Samples: samples, SampleRate: d.SampleRate}, nil
}

// Probe implements Decoder with ffprobe's container duration.
func (d *FFmpegDecoder) Probe(ctx context.Context, path string) (float64, error) {
	out, err := runCmd(ctx, d.FFprobeBin, "-v", "error", "-show_format", "-of", "json", path)
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	var ff struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &ff); err != nil {
		return 0, fmt.Errorf("parse ffprobe output: %w", err)
	}
	sec, err := strconv.ParseFloat(strings.TrimSpace(ff.Format.Duration), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", ff.Format.Duration, err)
	}
	return sec, nil
}

func runCmd(ctx context.Context, bin string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

func formatSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

// Tool is an optional external program used for decoding.
type Tool struct {
	Name        string
	Description string
	Path        string // empty when not on PATH
}

// Available reports whether the tool was found.
func (t Tool) Available() bool { return t.Path != "" }

// Tools looks up the ffmpeg binaries the fallback decoder needs.
func Tools() []Tool {
	tools := []Tool{
		{Name: "ffmpeg", Description: "Decodes formats other than MP3 and WAV"},
		{Name: "ffprobe", Description: "Reads container duration without decoding"},
	}
	for i := range tools {
		if p, err := exec.LookPath(tools[i].Name); err == nil {
			tools[i].Path = p
		}
	}
	return tools
}
