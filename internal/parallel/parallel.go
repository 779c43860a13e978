// Package parallel provides bounded fan-out for independent benchmark runs.
package parallel

import (
	"context"
	"runtime"
	"sync"

	"github.com/pkg/errors"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Upper bound on concurrent goroutines.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns defaults based on CPU count.
//
// MinChunkSize is 1: each item is a whole training run, so even two items
// are worth splitting.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 1,
	}
}

// WithWorkers returns cfg bounded to workers goroutines. Zero keeps cfg
// unchanged; one disables parallelism.
func (cfg Config) WithWorkers(workers int) Config {
	if workers <= 0 {
		return cfg
	}
	cfg.NumWorkers = workers
	cfg.Enabled = workers > 1
	return cfg
}

// For executes f(i) for i in [0, n), splitting the range into at most
// NumWorkers contiguous chunks. Falls back to sequential execution if
// parallelism is disabled or n is too small.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || cfg.NumWorkers <= 1 || n < 2*max(cfg.MinChunkSize, 1) {
		// Sequential fallback.
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize, 1)

	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// ForErr is For for fallible work. The first failure cancels the context
// passed to items that have not started yet; those items are skipped.
//
// Returns the lowest-index error that is not a cancellation, or the
// lowest-index cancellation if every failure is one.
func ForErr(ctx context.Context, n int, f func(ctx context.Context, i int) error, cfg Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make([]error, n)
	For(n, func(i int) {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			return
		}
		if errs[i] = f(ctx, i); errs[i] != nil {
			cancel()
		}
	}, cfg)

	var first error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if first == nil || (errors.Is(first, context.Canceled) && !errors.Is(err, context.Canceled)) {
			first = err
		}
	}
	return first
}
