// Package parallel runs independent decoder passes on a bounded number of
// goroutines.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Config controls parallel execution behavior.
type Config struct {
	Workers int // Maximum concurrent calls; 0 or less selects runtime.NumCPU().
}

// DefaultConfig returns one worker per CPU.
func DefaultConfig() Config {
	return Config{Workers: runtime.NumCPU()}
}

func (c Config) workers() int {
	if c.Workers <= 0 {
		return runtime.NumCPU()
	}
	return c.Workers
}

// For executes f(ctx, i) for i in [0, n) with at most cfg.Workers calls in
// flight. The first error cancels ctx for the calls that have not started and
// is returned.
func For(ctx context.Context, n int, f func(ctx context.Context, i int) error, cfg Config) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.workers())

	for i := range n {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return f(ctx, i)
		})
	}
	return g.Wait()
}
