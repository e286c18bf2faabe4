package simulate

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/asamblea/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string, verbose bool) error {
	if logFile == "" {
		logFile = "simulate_" + time.Now().Format("20060102_150405") + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	if err := logger.Init(logger.WithOutput(io.MultiWriter(os.Stdout, file))); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		if err := logger.SetLevelString("debug"); err != nil {
			return err
		}
	}
	return nil
}

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	os.Stdout.WriteString(`Asamblea Session Simulator
==========================

Drives a running service through a full assembly session and checks that the
reported tallies reconcile with what was submitted.

Usage:
  go run ./cmd/simulate [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -people int
        Number of attendees to register (default 40)
  -interventions int
        Number of interventions to submit (default 5000)
  -duplicates float
        Share of interventions retried with the same id (default 0.1)
  -decrements float
        Share of interventions undone afterwards (default 0.05)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -settle duration
        How long to wait for queued commands to apply (default 1m)
  -seed uint
        Seed for the session generator (default: clock)
  -log string
        Log file (default: simulate_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Simulate with default settings
  go run ./cmd/simulate

  # A larger, reproducible session
  go run ./cmd/simulate -interventions 50000 -workers 16 -seed 42
`)
}
