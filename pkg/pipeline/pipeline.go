// Package pipeline runs the full load, analyze, classify and assemble chain
// for single files and directories.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nzoschke/audiodesc/pkg/analysis"
	"github.com/nzoschke/audiodesc/pkg/audio"
	"github.com/nzoschke/audiodesc/pkg/descriptor"
	"github.com/nzoschke/audiodesc/pkg/infer"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/sync/errgroup"
)

// Analyzer turns audio files into descriptors.
type Analyzer struct {
	Loader *audio.Loader
	Config analysis.Config
	Engine *infer.Engine
	Labels descriptor.LabelSet
	Out    io.Writer // batch log lines
}

// New creates an Analyzer with the default window, stages, rules and
// English labels.
func New() *Analyzer {
	return &Analyzer{
		Loader: audio.DefaultLoader(),
		Config: analysis.DefaultConfig(),
		Engine: infer.DefaultEngine(),
		Labels: descriptor.EnglishLabels(),
		Out:    os.Stdout,
	}
}

// AnalyzeFile produces the descriptor for one file. The analysis window
// and the total duration are read concurrently.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) (*descriptor.AudioDescriptor, error) {
	if path == "" {
		return nil, descriptor.ErrNoPath
	}

	var (
		window   *audio.Waveform
		duration float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		window, err = a.Loader.LoadWindow(gctx, path)
		return err
	})
	g.Go(func() error {
		var err error
		duration, err = a.Loader.Duration(gctx, path)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fs, err := analysis.Extract(ctx, window, a.Config)
	if err != nil {
		return nil, err
	}
	labels := a.Engine.Classify(fs)
	return descriptor.Assemble(fs, labels, duration, a.Labels), nil
}

// SidecarPath returns the descriptor path written next to an audio file.
func SidecarPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".json"
}

// CollectAudio returns every supported audio file under dir in walk order.
func CollectAudio(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if audio.IsSupported(filepath.Ext(path)) {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}

// BatchOptions controls AnalyzeDir.
type BatchOptions struct {
	Force    bool      // re-analyze files that already have a sidecar
	Workers  int       // files analyzed at once; values below 1 mean 1
	Progress io.Writer // progress bar output; nil disables the bar
}

// AnalyzeDir writes a JSON descriptor sidecar for every supported audio
// file under dir. Existing sidecars are kept unless opts.Force is set. A
// file that fails to analyze is reported and skipped.
func (a *Analyzer) AnalyzeDir(ctx context.Context, dir string, opts BatchOptions) error {
	paths, err := CollectAudio(dir)
	if err != nil {
		return err
	}

	out := a.Out
	if out == nil {
		out = io.Discard
	}
	var mu sync.Mutex
	printf := func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(out, format, args...)
	}

	var (
		p   *mpb.Progress
		bar *mpb.Bar
	)
	if opts.Progress != nil && len(paths) > 0 {
		p = mpb.NewWithContext(ctx, mpb.WithOutput(opts.Progress), mpb.WithWidth(64))
		bar = p.AddBar(int64(len(paths)),
			mpb.PrependDecorators(
				decor.Name("Analyzing: "),
				decor.CountersNoUnit("%d / %d"),
			),
			mpb.AppendDecorators(
				decor.Percentage(),
				decor.EwmaETA(decor.ET_STYLE_GO, 60),
			),
		)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, opts.Workers))
	for _, path := range paths {
		g.Go(func() error {
			start := time.Now()
			defer func() {
				if bar != nil {
					bar.EwmaIncrement(time.Since(start))
				}
			}()
			return a.analyzeSidecar(gctx, path, opts.Force, printf)
		})
	}
	err = g.Wait()

	if p != nil {
		if err != nil {
			bar.Abort(false)
		}
		p.Wait()
	}
	return err
}

func (a *Analyzer) analyzeSidecar(ctx context.Context, path string, force bool, printf func(string, ...any)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	jsonPath := SidecarPath(path)
	if !force {
		if _, err := os.Stat(jsonPath); err == nil {
			printf("Skipping %s (already analyzed)\n", filepath.Base(path))
			return nil
		}
	}

	printf("Analyzing %s...\n", filepath.Base(path))

	desc, err := a.AnalyzeFile(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		printf("  %s: Error: %v\n", filepath.Base(path), err)
		return nil // Continue with other files
	}

	f, err := os.Create(jsonPath)
	if err != nil {
		return fmt.Errorf("create JSON: %w", err)
	}
	if err := (descriptor.JSON{Indent: "  "}).Encode(f, desc); err != nil {
		f.Close()
		return fmt.Errorf("write JSON: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write JSON: %w", err)
	}

	printf("  %s: Duration=%s, BPM=%.1f, Key=%s, Genre=%s\n", filepath.Base(path),
		desc.Duration, desc.BPM, desc.KeyFull, strings.Join(desc.GenreHints, ", "))
	return nil
}
