// Command analyze runs the density and overlap analysis of a manifest once,
// without the HTTP service. Reports are written to stdout as JSON and each
// day's bin grid is written as CSV to the grid directory.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/thomjeff/run-density/internal/adapters/loader"
	"github.com/thomjeff/run-density/internal/config"
	"github.com/thomjeff/run-density/internal/domain/aggregate"
	"github.com/thomjeff/run-density/internal/domain/engine"
	"github.com/thomjeff/run-density/pkg/logger"
)

// dayOutput is the JSON shape of one analysed day.
type dayOutput struct {
	Day    string            `json:"day"`
	Error  string            `json:"error,omitempty"`
	Grid   string            `json:"grid,omitempty"`
	Report *aggregate.Report `json:"report,omitempty"`
}

type output struct {
	Manifest   string      `json:"manifest"`
	DurationMs int64       `json:"duration_ms"`
	Days       []dayOutput `json:"days"`
}

func main() {
	var (
		manifest = flag.String("manifest", "", "Path to the run manifest (YAML)")
		gridDir  = flag.String("grid", "", "Directory for per-day grid CSV files (skipped when empty)")
		verbose  = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	if err := logger.Init(logger.WithOutput(os.Stderr)); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}
	if *manifest == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Get().Error(ctx, "failed to load config", logger.Error(err))
		os.Exit(1)
	}
	if !*verbose {
		_ = logger.SetLevelString(cfg.LogLevel)
	}

	failed, err := analyze(ctx, cfg, *manifest, *gridDir, os.Stdout)
	if err != nil {
		logger.Get().Error(ctx, "analysis failed", logger.Error(err))
		os.Exit(1)
	}
	if failed > 0 {
		os.Exit(3)
	}
}

// analyze loads the manifest, runs every day and writes the results. It
// returns the number of failed days; the error is non-nil only when nothing
// could be analysed or written.
func analyze(ctx context.Context, cfg *config.Config, manifest, gridDir string, out io.Writer) (int, error) {
	log := logger.Get().Named("analyze")

	sc, err := loader.Load(ctx, manifest, cfg.Resolution())
	if err != nil {
		return 0, err
	}
	eng, err := engine.New(
		engine.WithThresholds(cfg.Thresholds()),
		engine.WithPeakBasis(aggregate.Basis(cfg.PeakBasis)),
		engine.WithStackedRows(cfg.StackedDensity),
		engine.WithSegmentConcurrency(cfg.SegmentConcurrency),
		engine.WithStartWindow(cfg.StartMinMinutes, cfg.StartMaxMinutes),
		engine.WithMaxDuration(cfg.MaxEventDurationMinutes),
		engine.WithLogger(log),
	)
	if err != nil {
		return 0, err
	}
	res, err := eng.Run(ctx, sc)
	if err != nil {
		return 0, err
	}

	if gridDir != "" {
		if err := os.MkdirAll(gridDir, 0o755); err != nil {
			return 0, fmt.Errorf("create grid dir: %w", err)
		}
	}

	failed := res.Failed()
	doc := output{Manifest: manifest, DurationMs: res.Duration.Milliseconds()}
	for _, d := range res.Days {
		entry := dayOutput{Day: d.Day, Error: d.Message(), Report: d.Report}
		if d.Report != nil && gridDir != "" {
			path, err := gridPath(gridDir, d.Day)
			if err != nil {
				entry.Error = err.Error()
				failed++
				log.Error(ctx, "grid not written", logger.String("day", d.Day), logger.Error(err))
				doc.Days = append(doc.Days, entry)
				continue
			}
			if err := writeGrid(path, d.Report.Grid); err != nil {
				return 0, err
			}
			entry.Grid = path
			log.Info(ctx, "grid written", logger.String("day", d.Day), logger.String("path", path))
		}
		doc.Days = append(doc.Days, entry)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return 0, fmt.Errorf("encode results: %w", err)
	}
	return failed, nil
}

// gridPath names the grid file of day inside dir. Day names that would
// leave dir are refused.
func gridPath(dir, day string) (string, error) {
	if day == "" || day == "." || day == ".." || strings.ContainsAny(day, `/\`) || filepath.Base(day) != day {
		return "", fmt.Errorf("day %q cannot name a grid file", day)
	}
	return filepath.Join(dir, day+".csv"), nil
}

func writeGrid(path string, g *aggregate.Grid) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create grid: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return g.WriteCSV(f)
}
