package server

import (
	"bytes"
	"encoding/json"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/nzoschke/audiodesc/pkg/audio"
	"github.com/nzoschke/audiodesc/pkg/descriptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chord(seconds float64) *audio.Waveform {
	const rate = 22050
	samples := make([]float64, int(seconds*rate))
	for i := range samples {
		for _, f := range []float64{220, 277.18, 329.63} {
			samples[i] += 0.2 * math.Sin(2*math.Pi*f*float64(i)/rate)
		}
	}
	return &audio.Waveform{Samples: samples, SampleRate: rate}
}

func setupLibrary(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "album"), 0755))
	require.NoError(t, audio.WriteWAV(filepath.Join(dir, "album", "one.wav"), chord(1)))
	require.NoError(t, audio.WriteWAV(filepath.Join(dir, "two.wav"), chord(1)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "two.json"), []byte(`{"bpm": 120, "key": "A", "genre_hints": ["Pop / Contemporary"]}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	return dir
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func upload(t *testing.T, target, filename string, body []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(body)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Len(t, m, 1)
	msg, _ := m["error"].(string)
	return msg
}

func TestHealth(t *testing.T) {
	rec := do(t, New(t.TempDir()), httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestListMusic(t *testing.T) {
	s := New(setupLibrary(t))
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/music", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var tracks []Track
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tracks))
	require.Len(t, tracks, 2)

	assert.Equal(t, Track{Name: "one", Path: "album/one.wav"}, tracks[0])
	assert.Equal(t, Track{Name: "two", Path: "two.wav", HasJSON: true, JSONPath: "two.json"}, tracks[1])
}

func TestListMusic_Empty(t *testing.T) {
	rec := do(t, New(t.TempDir()), httptest.NewRequest(http.MethodGet, "/api/music", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestServeMusic(t *testing.T) {
	s := New(setupLibrary(t))

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/music/album/one.wav", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "RIFF", rec.Body.String()[:4])

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/music/two.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var d descriptor.AudioDescriptor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, 120.0, d.BPM)
	assert.Equal(t, []string{"Pop / Contemporary"}, d.GenreHints)

	tests := []struct {
		path string
		code int
	}{
		{"/api/music/missing.wav", http.StatusNotFound},
		{"/api/music/album", http.StatusForbidden},
		{"/api/music/notes.txt", http.StatusForbidden},
		{"/api/music/..%2Fsecret.wav", http.StatusForbidden},
	}
	for _, tt := range tests {
		rec := do(t, s, httptest.NewRequest(http.MethodGet, tt.path, nil))
		assert.Equal(t, tt.code, rec.Code, tt.path)
		assert.NotEmpty(t, decodeError(t, rec), tt.path)
	}
}

func TestAnalyze_Errors(t *testing.T) {
	s := New(t.TempDir())

	rec := do(t, s, upload(t, "/api/analyze", "", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No audio file path provided", decodeError(t, rec))

	rec = do(t, s, upload(t, "/api/analyze", "doc.pdf", []byte("%PDF")))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = do(t, s, upload(t, "/api/analyze", "junk.wav", []byte("junk")))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decodeError(t, rec), "decode")

	rec = do(t, s, upload(t, "/api/analyze?labels=klingon", "x.wav", []byte("junk")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyze(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chord.wav")
	require.NoError(t, audio.WriteWAV(path, chord(8)))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	s := New(t.TempDir())
	rec := do(t, s, upload(t, "/api/analyze?labels=bilingual", "chord.wav", data))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	_, err = uuid.Parse(rec.Header().Get("X-Upload-ID"))
	assert.NoError(t, err)

	var d descriptor.AudioDescriptor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, "0:08", d.Duration)
	assert.Equal(t, "A", d.Key)
	assert.Equal(t, "major", d.Mode)
	energy := descriptor.BilingualLabels().Energy
	assert.Contains(t, energy[:], d.EnergyLevel)
	assert.NotEmpty(t, d.GenreHints)
	assert.LessOrEqual(t, len(d.MoodTags), 4)
}
