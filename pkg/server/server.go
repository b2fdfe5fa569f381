// Package server provides the Echo web server for on-demand descriptor
// generation and the music library.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nzoschke/audiodesc/pkg/analysis"
	"github.com/nzoschke/audiodesc/pkg/audio"
	"github.com/nzoschke/audiodesc/pkg/descriptor"
	"github.com/nzoschke/audiodesc/pkg/pipeline"
)

// maxUploadBytes caps the multipart body of an analyze request.
const maxUploadBytes = 200 << 20

// Track represents a track in the music library.
type Track struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	HasJSON  bool   `json:"has_json"`
	JSONPath string `json:"json_path,omitempty"`
}

// Server holds the analyzer and the library directory.
type Server struct {
	Analyzer *pipeline.Analyzer
	MusicDir string
}

// New creates a Server over musicDir with a default analyzer.
func New(musicDir string) *Server {
	return &Server{
		Analyzer: pipeline.New(),
		MusicDir: musicDir,
	}
}

// Run starts the web server on addr.
func Run(addr, musicDir string) error {
	return New(musicDir).Echo().Start(addr)
}

// Echo builds the router.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = errorHandler

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit("200M"))

	// Routes
	e.GET("/api/health", health)
	e.POST("/api/analyze", s.analyze)
	e.GET("/api/music", s.listMusic)
	e.GET("/api/music/*", s.serveMusic)

	return e
}

// errorHandler writes every failure as a single-field error record.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		msg = http.StatusText(code)
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}

	if err := c.JSON(code, descriptor.ErrorRecord{Error: msg}); err != nil {
		slog.Error("write error response", "err", err)
	}
}

func health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// analyze decodes an uploaded file and returns its descriptor. The optional
// labels query selects the label locale.
func (s *Server) analyze(c echo.Context) error {
	locale, err := descriptor.ParseLocale(c.QueryParam("labels"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, descriptor.ErrNoPath.Error())
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !audio.IsSupported(ext) {
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, audio.ErrUnsupportedFormat.Error())
	}
	if fh.Size > maxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large")
	}

	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer src.Close()

	id := uuid.NewString()
	c.Response().Header().Set("X-Upload-ID", id)
	slog.Info("analyze upload", "id", id, "file", fh.Filename, "size", fh.Size)

	tmp, err := os.OpenFile(filepath.Join(os.TempDir(), "upload-"+id+ext), os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	a := *s.Analyzer
	a.Labels = locale.Labels()
	d, err := a.AnalyzeFile(c.Request().Context(), tmp.Name())
	if err != nil {
		return echo.NewHTTPError(statusFor(err), err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

// statusFor maps pipeline errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		de *audio.DecodeError
		ae *analysis.AnalysisError
	)
	switch {
	case errors.Is(err, descriptor.ErrNoPath):
		return http.StatusBadRequest
	case errors.As(err, &de), errors.As(err, &ae):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// listMusic returns a list of all tracks in the music directory.
func (s *Server) listMusic(c echo.Context) error {
	tracks := []Track{}

	err := filepath.WalkDir(s.MusicDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !audio.IsSupported(ext) {
			return nil
		}

		relPath, err := filepath.Rel(s.MusicDir, path)
		if err != nil {
			return err
		}
		jsonPath := pipeline.SidecarPath(path)

		track := Track{
			Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			Path: filepath.ToSlash(relPath),
		}

		// Check if JSON sidecar exists
		if _, err := os.Stat(jsonPath); err == nil {
			track.HasJSON = true
			track.JSONPath = filepath.ToSlash(pipeline.SidecarPath(relPath))
		}

		tracks = append(tracks, track)
		return nil
	})

	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, tracks)
}

// serveMusic serves audio files and JSON descriptor sidecars from the
// music directory.
func (s *Server) serveMusic(c echo.Context) error {
	decodedPath, err := url.PathUnescape(c.Param("*"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid path encoding")
	}

	// Security: prevent directory traversal
	if strings.Contains(decodedPath, "..") {
		return echo.NewHTTPError(http.StatusForbidden, "invalid path")
	}
	fullPath := filepath.Join(s.MusicDir, decodedPath)

	info, err := os.Stat(fullPath)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "file not found")
	}
	if info.IsDir() {
		return echo.NewHTTPError(http.StatusForbidden, "cannot serve directory")
	}

	ext := strings.ToLower(filepath.Ext(decodedPath))
	if audio.IsSupported(ext) {
		return c.File(fullPath)
	}
	if ext == ".json" {
		data, err := os.ReadFile(fullPath)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		var d descriptor.AudioDescriptor
		if err := json.Unmarshal(data, &d); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "invalid JSON")
		}
		return c.JSON(http.StatusOK, d)
	}
	return echo.NewHTTPError(http.StatusForbidden, "file type not allowed")
}
