package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/thomjeff/run-density/internal/loadgen"
)

// Default configuration constants.
const (
	defaultScenarios    = 20
	defaultDuplicates   = 5
	defaultRunners      = 500
	defaultTimeout      = 30 * time.Second
	defaultPollInterval = 250 * time.Millisecond
	defaultRunTimeout   = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		scenarios  = flag.Int("scenarios", defaultScenarios, "Number of distinct scenarios to submit")
		duplicates = flag.Int("duplicates", defaultDuplicates, "Extra submissions repeating earlier scenarios")
		runners    = flag.Int("runners", defaultRunners, "Runners per event")
		workers    = flag.Int("workers", runtime.NumCPU(), "Number of concurrent workers")
		seed       = flag.Uint64("seed", 1, "Generator seed")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		poll       = flag.Duration("poll", defaultPollInterval, "Delay between status polls")
		outputFile = flag.String("output", "", "Write generated scenarios to this JSON file")
		logFile    = flag.String("log", "", "Log file (default: loadgen_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadgen.ShowHelp()
		return
	}

	closer, err := loadgen.SetupLogging(*logFile, *verbose)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer closer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	config := &loadgen.Config{
		BaseURL:      *baseURL,
		Scenarios:    *scenarios,
		Duplicates:   *duplicates,
		Runners:      *runners,
		Workers:      *workers,
		Timeout:      *timeout,
		PollInterval: *poll,
		Seed:         *seed,
		OutputFile:   *outputFile,
		Verbose:      *verbose,
	}
	if _, err := loadgen.Run(ctx, config); err != nil {
		_, _ = os.Stderr.WriteString("load run failed: " + err.Error() + "\n")
		cancel()
		_ = closer.Close()
		os.Exit(1)
	}
}
