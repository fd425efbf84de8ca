// Package parallel provides bounded fan-out for CPU kernels.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Maximum number of concurrent goroutines.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 1,
	}
}

// WithWorkers returns cfg limited to n workers. n <= 0 keeps cfg unchanged,
// n == 1 disables parallelism.
func (cfg Config) WithWorkers(n int) Config {
	if n <= 0 {
		return cfg
	}
	cfg.NumWorkers = n
	cfg.Enabled = n > 1
	return cfg
}

// For executes f(i) for i in [0, n), split into contiguous chunks that run
// on at most cfg.NumWorkers goroutines. Falls back to a plain loop when
// parallelism is disabled or n is too small to split.
func For(n int, f func(i int), cfg Config) {
	if n <= 0 {
		return
	}
	if !cfg.Enabled || cfg.NumWorkers <= 1 || n < 2*max(cfg.MinChunkSize, 1) {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize, 1)

	var g errgroup.Group
	g.SetLimit(cfg.NumWorkers)
	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		g.Go(func() error {
			for i := start; i < end; i++ {
				f(i)
			}
			return nil
		})
	}
	_ = g.Wait() // workers never return errors
}

// ForBatch iterates the batch*channels grid common to CNN kernels.
func ForBatch(batch, channels int, f func(b, c int), cfg Config) {
	For(batch*channels, func(k int) {
		f(k/channels, k%channels)
	}, cfg)
}
