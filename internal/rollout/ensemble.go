package rollout

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/cartpole/internal/dynamo"
)

// EnvFactory builds the environment owned by one worker.
type EnvFactory func(worker int) (Environment, error)

// PolicyFactory builds the policy for one episode. e is the environment
// the episode will run on.
type PolicyFactory func(episode int, e Environment) (dynamo.Controller, error)

// Ensemble runs independent episodes in parallel.
type Ensemble struct {
	NewEnv     EnvFactory
	NewPolicy  PolicyFactory
	NewMetrics func() []dynamo.Metric
	Workers    int
	MaxSteps   int
	ExtraSteps int
	Logger     *zap.Logger
}

// Run executes n episodes and returns them ordered by episode index. The
// first failing episode cancels the rest.
func (en *Ensemble) Run(ctx context.Context, n int) ([]*Episode, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: episode count must be positive, got %d", dynamo.ErrParameterBounds, n)
	}
	workers := en.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	logger := en.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	episodes := make([]*Episode, n)
	jobs := make(chan int)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for i := 0; i < n; i++ {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			e, err := en.NewEnv(w)
			if err != nil {
				return fmt.Errorf("worker %d: %w", w, err)
			}
			for idx := range jobs {
				policy, err := en.NewPolicy(idx, e)
				if err != nil {
					return fmt.Errorf("episode %d: %w", idx, err)
				}
				opts := []Option{WithExtraSteps(en.ExtraSteps), WithLogger(logger)}
				if en.NewMetrics != nil {
					opts = append(opts, WithMetrics(en.NewMetrics()...))
				}
				ep, err := NewRunner(policy, opts...).Run(ctx, e, en.MaxSteps)
				if err != nil {
					return fmt.Errorf("episode %d: %w", idx, err)
				}
				ep.Index = idx
				episodes[idx] = ep
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return episodes, nil
}
