package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/callscore/internal/seedcalls"
	"github.com/okian/callscore/pkg/logger"
)

// Default configuration constants.
const (
	defaultNumCalls   = 200
	defaultWorkers    = 2 // multiplier for runtime.NumCPU()
	defaultTimeout    = 30 * time.Second
	defaultRunTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numCalls = flag.Int("calls", defaultNumCalls, "Number of call submissions to generate")
		workers  = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		verbose  = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	config := &seedcalls.Config{
		BaseURL:  *baseURL,
		NumCalls: *numCalls,
		Workers:  *workers,
		Timeout:  *timeout,
		Verbose:  *verbose,
	}

	if err := seedcalls.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Seeding run failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
