package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/jtn0123/megabonk-vision/internal/config"
	"github.com/jtn0123/megabonk-vision/internal/detection"
	"github.com/jtn0123/megabonk-vision/internal/ensemble"
	"github.com/jtn0123/megabonk-vision/internal/imaging"
	"github.com/jtn0123/megabonk-vision/internal/metrics"
	"github.com/jtn0123/megabonk-vision/internal/ocr"
	"github.com/jtn0123/megabonk-vision/internal/pipeline"
	"github.com/jtn0123/megabonk-vision/internal/server"
	"github.com/spf13/pflag"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const usage = `hotbar-detect - find the icons in a Megabonk hotbar screenshot

Usage:
  hotbar-detect [options] <screenshot>   detect once, JSON report on stdout
  hotbar-detect --mcp [options]          serve MCP over stdin/stdout

Environment variables use the MEGABONK_VISION_ prefix, e.g.
MEGABONK_VISION_DETECTION_WORKERS=4. A .env file is read if present.

Options:
`

// cliFlags are the flags that do not map to settings.
type cliFlags struct {
	configPath string
	envFile    string
	overlay    string
	mcp        bool
	readCounts bool
	quiet      bool
	version    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run is main without the process globals. It returns the exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("hotbar-detect", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	config.RegisterFlags(fs)

	var cli cliFlags
	fs.StringVar(&cli.configPath, "config", "", "settings file (YAML, JSON or TOML)")
	fs.StringVar(&cli.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	fs.StringVarP(&cli.overlay, "overlay", "o", "", "write an annotated PNG to this path")
	fs.BoolVar(&cli.mcp, "mcp", false, "serve the MCP protocol on stdin/stdout")
	fs.BoolVar(&cli.readCounts, "read-counts", false, "read stack counts with OCR")
	fs.BoolVarP(&cli.quiet, "quiet", "q", false, "no summary on stderr")
	fs.BoolVarP(&cli.version, "version", "v", false, "print version information")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if cli.version {
		fmt.Fprintf(stdout, "hotbar-detect %s\n", Version)
		fmt.Fprintf(stdout, "  Build time: %s\n", BuildTime)
		fmt.Fprintf(stdout, "  Git commit: %s\n", GitCommit)
		return 0
	}
	if !cli.mcp && fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	if err := execute(ctx, &cli, fs, stdin, stdout, stderr); err != nil {
		fmt.Fprintf(stderr, "hotbar-detect: %v\n", err)
		return 1
	}
	return 0
}

func execute(ctx context.Context, cli *cliFlags, fs *pflag.FlagSet, stdin io.Reader, stdout, stderr io.Writer) error {
	if cli.envFile != "" {
		if err := godotenv.Load(cli.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", cli.envFile, err)
		}
	}

	v := config.NewViper()
	if err := config.BindFlags(v, fs); err != nil {
		return err
	}
	settings, err := config.Load(v, cli.configPath)
	if err != nil {
		return err
	}

	logger := newLogger(stderr, settings.LogLevel, settings.LogJSON)
	logger.Debug("starting", "version", Version, "commit", GitCommit, "built", BuildTime)

	profile, err := config.LoadProfile(settings.Profile)
	if err != nil {
		return err
	}
	entities, err := loadEntities(settings, logger)
	if err != nil {
		return err
	}

	var sinks []metrics.Sink
	if settings.DebugAddr != "" {
		dbg, err := startDebugServer(ctx, settings.DebugAddr, logger)
		if err != nil {
			return err
		}
		defer dbg.Close()
		sinks = append(sinks, dbg.Sinks()...)
	}

	detector, err := config.NewDetector(settings, profile, logger, sinks...)
	if err != nil {
		return err
	}

	var counts ocr.CountReader
	if cli.readCounts {
		r, err := ocr.NewTesseractReader("eng")
		if err != nil {
			return fmt.Errorf("--read-counts: %w", err)
		}
		counts = r
	}

	if cli.mcp {
		opts := []server.Option{server.WithLogger(logger)}
		if counts != nil {
			opts = append(opts, server.WithCountReader(counts))
		}
		logger.Info("serving MCP on stdio", "entities", len(entities))
		return server.New(detector, entities, opts...).Run(ctx, stdin, stdout)
	}

	return detectOnce(ctx, detector, entities, counts, fs.Arg(0), cli, logger, stdout, stderr)
}

func detectOnce(ctx context.Context, d *pipeline.Detector, entities []detection.Entity, counts ocr.CountReader, path string, cli *cliFlags, logger *slog.Logger, stdout, stderr io.Writer) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	img, err := imaging.LoadFile(ctx, path, d.DecodeTimeout())
	if err != nil {
		return err
	}

	start := time.Now()
	report, err := d.Detect(ctx, imaging.NewBuffer(img), entities, func(u ensemble.Update) {
		if u.Err != nil {
			logger.Warn("strategy failed", "strategy", u.Strategy, "err", u.Err)
			return
		}
		logger.Debug("strategy done", "strategy", u.Strategy, "done", u.Completed, "of", u.Total)
	})
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	result := &server.DetectResult{Report: report}
	if counts != nil && len(report.CountRegions) > 0 {
		result.Counts, err = ocr.ReadCounts(ctx, counts, img, report.CountRegions)
		if err != nil {
			return fmt.Errorf("read counts: %w", err)
		}
	}

	if cli.overlay != "" {
		if err := writeOverlay(cli.overlay, d, img, report); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if !cli.quiet {
		fmt.Fprintln(stderr, summary(path, uint64(info.Size()), report, elapsed))
	}
	return nil
}

func loadEntities(s config.Settings, logger *slog.Logger) ([]detection.Entity, error) {
	if s.Catalogue == "" {
		logger.Warn("no catalogue configured; only hotbar geometry will be reported")
		return nil, nil
	}
	cat, err := config.LoadCatalogue(s.Catalogue)
	if err != nil {
		return nil, err
	}
	entities, err := cat.Resolve(s.TemplateDir, imaging.NewImageCache(s.Detection.DecodeTimeout))
	if err != nil {
		return nil, err
	}
	logger.Debug("catalogue loaded", "path", s.Catalogue, "entities", len(entities))
	return entities, nil
}

func writeOverlay(path string, d *pipeline.Detector, img image.Image, r *pipeline.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create overlay: %w", err)
	}
	if err := png.Encode(f, d.Overlay(img, r)); err != nil {
		f.Close()
		return fmt.Errorf("encode overlay: %w", err)
	}
	return f.Close()
}

func newLogger(w io.Writer, level string, asJSON bool) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if asJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// summary is the one-line human report printed after a run.
func summary(path string, size uint64, r *pipeline.Report, elapsed time.Duration) string {
	uncertain := 0
	for _, d := range r.Detections {
		if d.NeedsConfirmation {
			uncertain++
		}
	}
	return fmt.Sprintf("%s (%s, %dx%d): %s found, %d uncertain, %d rejected, icon %dpx via %s, confidence %.0f%%, %s",
		path, humanize.Bytes(size), r.Width, r.Height,
		humanize.Comma(int64(len(r.Detections)))+" "+plural(len(r.Detections), "icon", "icons"),
		uncertain, len(r.Rejected), r.Scale.IconSize, r.Scale.Method,
		r.Confidence*100, elapsed.Round(time.Millisecond))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
