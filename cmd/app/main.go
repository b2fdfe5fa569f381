// CLI for audio descriptor generation, batch sidecars and the web server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/nzoschke/audiodesc/pkg/audio"
	"github.com/nzoschke/audiodesc/pkg/descriptor"
	"github.com/nzoschke/audiodesc/pkg/pipeline"
	"github.com/nzoschke/audiodesc/pkg/report"
	"github.com/nzoschke/audiodesc/pkg/server"
	"github.com/spf13/cobra"
)

// errReported marks failures already written to stdout as an error record.
var errReported = errors.New("reported")

type options struct {
	format  string
	labels  string
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "app [audio file]",
		Short:         "Musical descriptors from audio files",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(cmd.ErrOrStderr(), opts.verbose)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDescribe(cmd, opts, args)
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.format, "format", "json", "Output format (json or yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.labels, "labels", "en", "Label language (en or bilingual)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging on stderr")

	analyzeCmd := &cobra.Command{
		Use:   "analyze <audio file>",
		Short: "Print the descriptor of one audio file",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDescribe(cmd, opts, args)
		},
	}

	batchCmd := &cobra.Command{
		Use:   "batch <directory>",
		Short: "Analyze audio files and create JSON sidecars",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			workers, _ := cmd.Flags().GetInt("workers")
			progress, _ := cmd.Flags().GetBool("progress")
			batch := pipeline.BatchOptions{Force: force, Workers: workers}
			if progress {
				batch.Progress = cmd.ErrOrStderr()
			}
			return runBatch(cmd, opts, args[0], batch)
		},
	}
	batchCmd.Flags().BoolP("force", "f", false, "Force re-analysis even if JSON exists")
	batchCmd.Flags().IntP("workers", "w", 1, "Files analyzed in parallel")
	batchCmd.Flags().Bool("progress", false, "Show a progress bar on stderr")

	describeCmd := &cobra.Command{
		Use:   "describe <audio file>...",
		Short: "Show a readable summary card for each audio file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCards(cmd, opts, args)
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			music, _ := cmd.Flags().GetString("music")
			return server.Run(addr, music)
		},
	}
	serveCmd.Flags().String("addr", ":8080", "Listen address")
	serveCmd.Flags().String("music", "music", "Music library directory")

	depsCmd := &cobra.Command{
		Use:   "deps",
		Short: "Check for optional decoding programs",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), report.RenderTools(audio.Tools()))
		},
	}

	// Descriptor commands report flag errors as an error record too.
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		if cmd != rootCmd && cmd != analyzeCmd {
			return err
		}
		writeErrorRecord(cmd.OutOrStdout(), opts.format, err)
		return fmt.Errorf("%w: %w", errReported, err)
	})

	rootCmd.AddCommand(analyzeCmd, batchCmd, describeCmd, serveCmd, depsCmd)
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, err)
		}
		stop()
		os.Exit(1)
	}
}

func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

func newAnalyzer(opts *options) (*pipeline.Analyzer, error) {
	locale, err := descriptor.ParseLocale(opts.labels)
	if err != nil {
		return nil, err
	}
	a := pipeline.New()
	a.Labels = locale.Labels()
	return a, nil
}

// runDescribe writes exactly one record to stdout: the descriptor, or an
// error record when anything fails.
func runDescribe(cmd *cobra.Command, opts *options, args []string) error {
	out := cmd.OutOrStdout()

	s, err := descriptor.SerializerFor(opts.format)
	if err != nil {
		writeErrorRecord(out, "", err)
		return fmt.Errorf("%w: %w", errReported, err)
	}
	if len(args) > 1 {
		err := fmt.Errorf("expected one audio file path, got %d", len(args))
		writeErrorRecord(out, opts.format, err)
		return fmt.Errorf("%w: %w", errReported, err)
	}

	var path string
	if len(args) > 0 {
		path = args[0]
	}

	d, err := analyzeOne(cmd.Context(), opts, path)
	if err != nil {
		slog.Debug("analysis failed", "path", path, "err", err)
	}
	if err := descriptor.WriteResult(out, s, d, err); err != nil {
		return fmt.Errorf("%w: %w", errReported, err)
	}
	return nil
}

// writeErrorRecord writes err as an error record in format, or in JSON
// when format is not usable.
func writeErrorRecord(w io.Writer, format string, err error) {
	s, ferr := descriptor.SerializerFor(format)
	if ferr != nil {
		s = descriptor.JSON{}
	}
	_ = descriptor.WriteResult(w, s, nil, err)
}

func analyzeOne(ctx context.Context, opts *options, path string) (*descriptor.AudioDescriptor, error) {
	a, err := newAnalyzer(opts)
	if err != nil {
		return nil, err
	}
	return a.AnalyzeFile(ctx, path)
}

func runBatch(cmd *cobra.Command, opts *options, dir string, batch pipeline.BatchOptions) error {
	a, err := newAnalyzer(opts)
	if err != nil {
		return err
	}
	a.Out = cmd.OutOrStdout()
	return a.AnalyzeDir(cmd.Context(), dir, batch)
}

func runCards(cmd *cobra.Command, opts *options, paths []string) error {
	a, err := newAnalyzer(opts)
	if err != nil {
		return err
	}

	failed := 0
	for _, path := range paths {
		name := filepath.Base(path)
		d, err := a.AnalyzeFile(cmd.Context(), path)
		if err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), report.RenderError(name, err))
			failed++
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout(), report.Render(name, d))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(paths))
	}
	return nil
}
