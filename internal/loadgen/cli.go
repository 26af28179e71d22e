package loadgen

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/thomjeff/run-density/pkg/logger"
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string, verbose bool) (io.Closer, error) {
	if logFile == "" {
		logFile = "loadgen_" + time.Now().Format("20060102_150405") + ".log"
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	if err := logger.Init(logger.WithOutput(io.MultiWriter(os.Stdout, file))); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return file, nil
}

// ShowHelp prints usage information for the load generator.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Run Density Load Generator
==========================

Submits generated course scenarios to a running service, waits for every
run to finish and verifies each day's density grid can be downloaded.

Usage:
  go run ./cmd/loadgen [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -scenarios int
        Number of distinct scenarios to submit (default 20)
  -duplicates int
        Extra submissions repeating earlier scenarios (default 5)
  -runners int
        Runners per event (default 500)
  -workers int
        Number of concurrent workers (default CPU cores)
  -seed uint
        Generator seed (default 1)
  -timeout duration
        HTTP request timeout (default 30s)
  -poll duration
        Delay between status polls (default 250ms)
  -output string
        Write generated scenarios to this JSON file
  -log string
        Log file (default: loadgen_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  go run ./cmd/loadgen -scenarios 100 -runners 2000 -workers 8
  go run ./cmd/loadgen -seed 42 -output scenarios.json
`)
}
