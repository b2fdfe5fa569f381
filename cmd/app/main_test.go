package main

import (
	"bytes"
	"encoding/json"
	"math"
	"path/filepath"
	"testing"

	"github.com/nzoschke/audiodesc/pkg/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func fixture(t *testing.T, dir string) string {
	t.Helper()
	const rate = 22050
	samples := make([]float64, 8*rate)
	for i := range samples {
		for _, f := range []float64{220, 277.18, 329.63} {
			samples[i] += 0.2 * math.Sin(2*math.Pi*f*float64(i)/rate)
		}
	}
	path := filepath.Join(dir, "chord.wav")
	require.NoError(t, audio.WriteWAV(path, &audio.Waveform{Samples: samples, SampleRate: rate}))
	return path
}

func TestNoPath(t *testing.T) {
	for _, args := range [][]string{nil, {"analyze"}} {
		out, err := execute(t, args...)
		require.Error(t, err)
		assert.ErrorIs(t, err, errReported)
		assert.JSONEq(t, `{"error": "No audio file path provided"}`, out)
	}
}

func TestMissingFile(t *testing.T) {
	out, err := execute(t, filepath.Join(t.TempDir(), "nope.mp3"))
	require.ErrorIs(t, err, errReported)

	var m map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.Len(t, m, 1)
	assert.Contains(t, m["error"], "nope.mp3")
}

func TestTooManyArgs(t *testing.T) {
	for _, args := range [][]string{{"a.wav", "b.wav"}, {"analyze", "a.wav", "b.wav"}} {
		out, err := execute(t, args...)
		require.ErrorIs(t, err, errReported)

		var m map[string]string
		require.NoError(t, json.Unmarshal([]byte(out), &m))
		assert.Len(t, m, 1)
		assert.Contains(t, m["error"], "got 2")
	}
}

func TestUnknownFlag(t *testing.T) {
	for _, args := range [][]string{{"--bogus", "x.wav"}, {"analyze", "--bogus", "x.wav"}} {
		out, err := execute(t, args...)
		require.ErrorIs(t, err, errReported)

		var m map[string]string
		require.NoError(t, json.Unmarshal([]byte(out), &m))
		assert.Len(t, m, 1)
		assert.Contains(t, m["error"], "unknown flag: --bogus")
	}

	out, err := execute(t, "--format", "yaml", "--bogus", "x.wav")
	require.ErrorIs(t, err, errReported)
	var m map[string]string
	require.NoError(t, yaml.Unmarshal([]byte(out), &m))
	assert.Contains(t, m["error"], "unknown flag")

	out, err = execute(t, "batch", "--bogus", t.TempDir())
	require.Error(t, err)
	assert.NotErrorIs(t, err, errReported)
	assert.Empty(t, out)
}

func TestAnalyzeJSON(t *testing.T) {
	path := fixture(t, t.TempDir())

	out, err := execute(t, "analyze", path)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.NotContains(t, m, "error")
	assert.Equal(t, "0:08", m["duration"])
	assert.Equal(t, "A", m["key"])
	assert.Len(t, m, 20)
}

func TestAnalyzeYAMLBilingual(t *testing.T) {
	path := fixture(t, t.TempDir())

	out, err := execute(t, path, "--format", "yaml", "--labels", "bilingual")
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &m))
	assert.Equal(t, "0:08", m["duration"])
	assert.Contains(t, m["energy_level"], "(")
}

func TestBadFlags(t *testing.T) {
	path := fixture(t, t.TempDir())

	out, err := execute(t, path, "--format", "xml")
	require.ErrorIs(t, err, errReported)
	assert.Contains(t, out, `"error"`)

	out, err = execute(t, path, "--labels", "fr")
	require.ErrorIs(t, err, errReported)
	assert.Contains(t, out, "unknown label locale")
}

func TestBatch(t *testing.T) {
	dir := t.TempDir()
	fixture(t, dir)

	out, err := execute(t, "batch", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Analyzing chord.wav...")
	assert.FileExists(t, filepath.Join(dir, "chord.json"))

	out, err = execute(t, "batch", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Skipping chord.wav (already analyzed)")

	out, err = execute(t, "batch", "-f", "-w", "2", "--progress", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Analyzing chord.wav...")
}

func TestDescribe(t *testing.T) {
	dir := t.TempDir()
	path := fixture(t, dir)
	missing := filepath.Join(dir, "missing.wav")

	out, err := execute(t, "describe", path, missing)
	require.Error(t, err)
	assert.Contains(t, out, "chord.wav")
	assert.Contains(t, out, "A Major")
	assert.Contains(t, out, "✗ missing.wav")
	assert.EqualError(t, err, "1 of 2 files failed")
}

func TestDeps(t *testing.T) {
	out, err := execute(t, "deps")
	require.NoError(t, err)
	assert.Contains(t, out, "ffmpeg")
	assert.Contains(t, out, "ffprobe")
}
