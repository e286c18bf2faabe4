package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/asamblea/internal/simulate"
)

// Default configuration constants.
const (
	defaultPeople        = 40
	defaultInterventions = 5000
	defaultDuplicateRate = 0.1
	defaultDecrementRate = 0.05
	defaultWorkers       = 2 // multiplier for runtime.NumCPU()
	defaultTimeout       = 30 * time.Second
	defaultSettle        = time.Minute
	defaultRunTimeout    = 10 * time.Minute
)

func main() {
	var (
		baseURL       = flag.String("url", "http://localhost:9080", "Base URL of the service")
		people        = flag.Int("people", defaultPeople, "Number of attendees to register")
		interventions = flag.Int("interventions", defaultInterventions, "Number of interventions to submit")
		duplicates    = flag.Float64("duplicates", defaultDuplicateRate, "Share of interventions retried with the same id")
		decrements    = flag.Float64("decrements", defaultDecrementRate, "Share of interventions undone afterwards")
		workers       = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout       = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		settle        = flag.Duration("settle", defaultSettle, "How long to wait for queued commands to apply")
		seed          = flag.Uint64("seed", 0, "Seed for the session generator (default: clock)")
		logFile       = flag.String("log", "", "Log file (default: simulate_TIMESTAMP.log)")
		verbose       = flag.Bool("verbose", false, "Enable verbose logging")
		help          = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	if err := simulate.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := &simulate.Config{
		BaseURL:       *baseURL,
		People:        *people,
		Interventions: *interventions,
		DuplicateRate: *duplicates,
		DecrementRate: *decrements,
		Workers:       *workers,
		Timeout:       *timeout,
		SettleTimeout: *settle,
		Seed:          *seed,
		Verbose:       *verbose,
	}

	if _, err := simulate.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}
