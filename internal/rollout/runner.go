package rollout

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/san-kum/cartpole/internal/dynamo"
	"github.com/san-kum/cartpole/internal/env"
)

// Environment is the part of [env.Env] a rollout needs.
type Environment interface {
	Reset() dynamo.State
	Step(action float64) (env.StepResult, error)
	Dt() float64
}

// Episode is a recorded trajectory. States holds the reset state followed
// by one state per step, so len(States) == Length+1 and Times lines up
// with States.
type Episode struct {
	Index      int
	States     []dynamo.State
	Actions    []float64
	Rewards    []float64
	Dones      []bool
	Times      []float64
	Return     float64
	Length     int
	Terminated bool
	Metrics    map[string]float64
}

type Runner struct {
	policy     dynamo.Controller
	metrics    []dynamo.Metric
	observers  []dynamo.Observer
	extraSteps int
	logger     *zap.Logger
}

type Option func(*Runner)

func WithMetrics(m ...dynamo.Metric) Option {
	return func(r *Runner) { r.metrics = append(r.metrics, m...) }
}

func WithObservers(o ...dynamo.Observer) Option {
	return func(r *Runner) { r.observers = append(r.observers, o...) }
}

// WithExtraSteps keeps stepping n times after the episode terminates.
func WithExtraSteps(n int) Option {
	return func(r *Runner) { r.extraSteps = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewRunner(policy dynamo.Controller, opts ...Option) *Runner {
	r := &Runner{
		policy: policy,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run resets e and steps it with the runner's policy until the episode
// terminates (plus any extra steps) or maxSteps is reached. On
// cancellation the partial episode is returned with ctx.Err().
func (r *Runner) Run(ctx context.Context, e Environment, maxSteps int) (*Episode, error) {
	if maxSteps <= 0 {
		return nil, fmt.Errorf("%w: max steps must be positive, got %d", dynamo.ErrParameterBounds, maxSteps)
	}

	if rs, ok := r.policy.(dynamo.Resetter); ok {
		rs.Reset()
	}
	for _, m := range r.metrics {
		m.Reset()
	}

	x := e.Reset()
	t := 0.0
	dt := e.Dt()

	ep := &Episode{
		States:  make([]dynamo.State, 0, maxSteps+1),
		Actions: make([]float64, 0, maxSteps),
		Rewards: make([]float64, 0, maxSteps),
		Dones:   make([]bool, 0, maxSteps),
		Times:   make([]float64, 0, maxSteps+1),
		Metrics: make(map[string]float64),
	}
	ep.States = append(ep.States, x.Clone())
	ep.Times = append(ep.Times, t)

	extra := 0
	for i := 0; i < maxSteps; i++ {
		select {
		case <-ctx.Done():
			r.finish(ep)
			return ep, ctx.Err()
		default:
		}

		u := r.policy.Compute(x, t)
		for _, m := range r.metrics {
			m.Observe(x, u, t)
		}
		for _, obs := range r.observers {
			obs.OnStep(x, u, t)
		}

		action := u.Scalar()
		res, err := e.Step(action)
		if err != nil {
			r.finish(ep)
			return ep, &dynamo.SimulationError{Step: i, Time: t, State: x.Clone(), Wrapped: err}
		}

		x = res.State
		t += dt

		ep.States = append(ep.States, x.Clone())
		ep.Actions = append(ep.Actions, action)
		ep.Rewards = append(ep.Rewards, res.Reward)
		ep.Dones = append(ep.Dones, res.Done)
		ep.Times = append(ep.Times, t)
		ep.Return += res.Reward
		ep.Length++

		if res.Done {
			ep.Terminated = true
			if extra >= r.extraSteps {
				break
			}
			extra++
		}
	}

	r.finish(ep)
	r.logger.Debug("rollout.episode",
		zap.Int("episode", ep.Index),
		zap.Int("steps", ep.Length),
		zap.Float64("return", ep.Return),
		zap.Bool("terminated", ep.Terminated),
	)
	return ep, nil
}

func (r *Runner) finish(ep *Episode) {
	for _, m := range r.metrics {
		ep.Metrics[m.Name()] = m.Value()
	}
}
