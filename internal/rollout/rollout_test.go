package rollout_test

import (
	"context"
	"errors"
	"math"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/cartpole/internal/config"
	"github.com/san-kum/cartpole/internal/control"
	"github.com/san-kum/cartpole/internal/dynamo"
	"github.com/san-kum/cartpole/internal/env"
	"github.com/san-kum/cartpole/internal/metrics"
	"github.com/san-kum/cartpole/internal/physics"
	"github.com/san-kum/cartpole/internal/rollout"
)

var thetaThreshold = 12 * 2 * math.Pi / 360

func newEnv(opts ...env.Option) *env.Env {
	e, err := env.New(physics.NewCartPole(), opts...)
	Expect(err).NotTo(HaveOccurred())
	return e
}

func upright() *env.Env {
	return newEnv(env.WithInitialState(dynamo.State{0, 0, 0, 0}))
}

type countingPolicy struct {
	resets int
	calls  int
}

func (p *countingPolicy) Compute(x dynamo.State, t float64) dynamo.Control {
	p.calls++
	return dynamo.Control{0}
}

func (p *countingPolicy) Reset() { p.resets++ }

type stepCounter struct{ n int }

func (s *stepCounter) OnStep(x dynamo.State, u dynamo.Control, t float64) { s.n++ }

var _ = Describe("Runner", func() {
	ctx := context.Background()

	It("stops on the terminating step from the reference start", func() {
		ep, err := rollout.NewRunner(control.NewZero()).Run(ctx, newEnv(), 100)
		Expect(err).NotTo(HaveOccurred())
		Expect(ep.Length).To(Equal(1))
		Expect(ep.Terminated).To(BeTrue())
		Expect(ep.Rewards).To(Equal([]float64{1}))
		Expect(ep.Dones).To(Equal([]bool{true}))
		Expect(ep.States).To(HaveLen(2))
		Expect(ep.States[0]).To(Equal(dynamo.State{-5.0, 0.0, 0.3 * math.Pi, 0.0}))
	})

	It("balances the upright preset for the whole episode", func() {
		cfg := config.GetPreset("upright")
		e, err := env.FromConfig(cfg)
		Expect(err).NotTo(HaveOccurred())
		policy, err := control.ByName(cfg.Rollout.Policy, control.Params{Gains: cfg.Rollout.Gains})
		Expect(err).NotTo(HaveOccurred())

		ep, err := rollout.NewRunner(policy).Run(ctx, e, cfg.Rollout.MaxSteps)
		Expect(err).NotTo(HaveOccurred())
		Expect(ep.Terminated).To(BeFalse())
		Expect(ep.Length).To(Equal(cfg.Rollout.MaxSteps))
		Expect(ep.Return).To(Equal(float64(cfg.Rollout.MaxSteps)))
	})

	It("keeps stepping past termination when asked", func() {
		ep, err := rollout.NewRunner(control.NewZero(), rollout.WithExtraSteps(3)).Run(ctx, newEnv(), 100)
		Expect(err).NotTo(HaveOccurred())
		Expect(ep.Length).To(Equal(4))
		Expect(ep.Rewards).To(Equal([]float64{1, 0, 0, 0}))
		Expect(ep.Return).To(Equal(1.0))
	})

	It("runs to the step limit at the upright equilibrium", func() {
		ep, err := rollout.NewRunner(control.NewZero(),
			rollout.WithMetrics(metrics.Standard(2.4, thetaThreshold)...),
		).Run(ctx, upright(), 100)
		Expect(err).NotTo(HaveOccurred())
		Expect(ep.Length).To(Equal(100))
		Expect(ep.Terminated).To(BeFalse())
		Expect(ep.Return).To(Equal(100.0))
		Expect(ep.Times).To(HaveLen(101))
		Expect(ep.Times[100]).To(BeNumerically("~", 0.5, 1e-9))
		Expect(ep.Metrics).To(HaveKeyWithValue("balance_fraction", 1.0))
		Expect(ep.Metrics).To(HaveKeyWithValue("control_effort", 0.0))
	})

	It("resets stateful policies and notifies observers", func() {
		p := &countingPolicy{}
		obs := &stepCounter{}
		r := rollout.NewRunner(p, rollout.WithObservers(obs))

		_, err := r.Run(ctx, upright(), 10)
		Expect(err).NotTo(HaveOccurred())
		_, err = r.Run(ctx, upright(), 10)
		Expect(err).NotTo(HaveOccurred())

		Expect(p.resets).To(Equal(2))
		Expect(p.calls).To(Equal(20))
		Expect(obs.n).To(Equal(20))
	})

	It("rejects a non-positive step limit", func() {
		_, err := rollout.NewRunner(control.NewZero()).Run(ctx, upright(), 0)
		Expect(errors.Is(err, dynamo.ErrParameterBounds)).To(BeTrue())
	})

	It("returns the partial episode on cancellation", func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		ep, err := rollout.NewRunner(control.NewZero()).Run(cctx, upright(), 10)
		Expect(err).To(MatchError(context.Canceled))
		Expect(ep.Length).To(Equal(0))
		Expect(ep.States).To(HaveLen(1))
	})

	It("wraps environment errors with the step that failed", func() {
		e := newEnv(env.WithStrict(true))
		ep, err := rollout.NewRunner(control.NewZero(), rollout.WithExtraSteps(1)).Run(ctx, e, 10)
		Expect(errors.Is(err, dynamo.ErrStepAfterDone)).To(BeTrue())

		var simErr *dynamo.SimulationError
		Expect(errors.As(err, &simErr)).To(BeTrue())
		Expect(simErr.Step).To(Equal(1))
		Expect(ep.Length).To(Equal(1))
	})
})

var _ = Describe("Ensemble", func() {
	ctx := context.Background()

	It("runs every episode with one environment per worker", func() {
		var built atomic.Int32
		en := &rollout.Ensemble{
			NewEnv: func(worker int) (rollout.Environment, error) {
				built.Add(1)
				return newEnv(), nil
			},
			NewPolicy: func(int, rollout.Environment) (dynamo.Controller, error) {
				return control.NewZero(), nil
			},
			NewMetrics: func() []dynamo.Metric { return metrics.Standard(2.4, thetaThreshold) },
			Workers:    3,
			MaxSteps:   50,
			ExtraSteps: 2,
		}

		eps, err := en.Run(ctx, 8)
		Expect(err).NotTo(HaveOccurred())
		Expect(eps).To(HaveLen(8))
		Expect(built.Load()).To(BeNumerically("<=", 3))
		for i, ep := range eps {
			Expect(ep.Index).To(Equal(i))
			Expect(ep.Length).To(Equal(3))
			Expect(ep.Return).To(Equal(1.0))
			Expect(ep.Metrics).To(HaveKey("max_abs_theta"))
		}

		s := rollout.Summarize(eps)
		Expect(s.Episodes).To(Equal(8))
		Expect(s.Terminated).To(Equal(8))
		Expect(s.MeanReturn).To(Equal(1.0))
		Expect(s.StdReturn).To(Equal(0.0))
		Expect(s.MeanLength).To(Equal(3.0))
	})

	It("fails when an environment cannot be built", func() {
		boom := errors.New("boom")
		en := &rollout.Ensemble{
			NewEnv: func(int) (rollout.Environment, error) { return nil, boom },
			NewPolicy: func(int, rollout.Environment) (dynamo.Controller, error) {
				return control.NewZero(), nil
			},
			Workers:  2,
			MaxSteps: 10,
		}
		_, err := en.Run(ctx, 4)
		Expect(err).To(MatchError(boom))
	})

	It("rejects a non-positive episode count", func() {
		_, err := (&rollout.Ensemble{}).Run(ctx, 0)
		Expect(errors.Is(err, dynamo.ErrParameterBounds)).To(BeTrue())
	})
})

var _ = Describe("Summarize", func() {
	It("computes mean and sample deviation of returns", func() {
		s := rollout.Summarize([]*rollout.Episode{
			{Return: 1, Length: 1, Metrics: map[string]float64{"m": 2}},
			{Return: 3, Length: 5, Terminated: true, Metrics: map[string]float64{"m": 4}},
		})
		Expect(s.MeanReturn).To(Equal(2.0))
		Expect(s.StdReturn).To(BeNumerically("~", math.Sqrt2, 1e-12))
		Expect(s.MeanLength).To(Equal(3.0))
		Expect(s.Terminated).To(Equal(1))
		Expect(s.Metrics["m"]).To(Equal(3.0))
		Expect(s.MetricNames()).To(Equal([]string{"m"}))
	})

	It("handles an empty batch", func() {
		Expect(rollout.Summarize(nil).Episodes).To(Equal(0))
	})
})
