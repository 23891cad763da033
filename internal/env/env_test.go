package env_test

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/san-kum/cartpole/internal/config"
	"github.com/san-kum/cartpole/internal/dynamo"
	"github.com/san-kum/cartpole/internal/env"
	"github.com/san-kum/cartpole/internal/integrators"
	"github.com/san-kum/cartpole/internal/physics"
	"github.com/san-kum/cartpole/internal/render"
)

var thetaThreshold = 12 * 2 * math.Pi / 360

func newEnv(opts ...env.Option) *env.Env {
	e, err := env.New(physics.NewCartPole(), opts...)
	Expect(err).NotTo(HaveOccurred())
	return e
}

var _ = Describe("Env", func() {
	Describe("Step before Reset", func() {
		It("fails with ErrInvalidState", func() {
			e := newEnv()
			_, err := e.Step(0)
			Expect(errors.Is(err, dynamo.ErrInvalidState)).To(BeTrue())
			Expect(e.Snapshot()).To(BeNil())
		})
	})

	Describe("Reset", func() {
		It("returns the fixed tilted start", func() {
			e := newEnv()
			s := e.Reset()
			Expect(s).To(Equal(dynamo.State{-5.0, 0.0, 0.3 * math.Pi, 0.0}))
			_, set := e.StepsBeyondDone()
			Expect(set).To(BeFalse())
		})

		It("returns a copy of the state", func() {
			e := newEnv()
			s := e.Reset()
			s[0] = 100
			Expect(e.Snapshot()[0]).To(Equal(-5.0))
		})

		It("clears the termination counter regardless of history", func() {
			e := newEnv()
			e.Reset()
			for i := 0; i < 5; i++ {
				_, err := e.Step(3.0)
				Expect(err).NotTo(HaveOccurred())
			}
			n, set := e.StepsBeyondDone()
			Expect(set).To(BeTrue())
			Expect(n).To(Equal(4))

			Expect(e.Reset()).To(Equal(dynamo.State{-5.0, 0.0, 0.3 * math.Pi, 0.0}))
			_, set = e.StepsBeyondDone()
			Expect(set).To(BeFalse())
		})

		It("does not depend on the seed", func() {
			a := newEnv(env.WithSeed(1))
			b := newEnv(env.WithSeed(2))
			Expect(a.Reset()).To(Equal(b.Reset()))
		})
	})

	Describe("reward sequencing", func() {
		var (
			e    *env.Env
			logs *observer.ObservedLogs
		)

		BeforeEach(func() {
			core, observed := observer.New(zap.WarnLevel)
			logs = observed
			e = newEnv(env.WithLogger(zap.New(core)))
			e.Reset()
		})

		It("rewards the terminating step and zeroes later ones", func() {
			first, err := e.Step(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Done).To(BeTrue())
			Expect(first.Reward).To(Equal(1.0))
			Expect(first.Info.StepsBeyondDone).To(Equal(0))
			Expect(first.Info.Advisory).To(BeEmpty())

			prev := first.Info.StepsBeyondDone
			for i := 0; i < 5; i++ {
				res, err := e.Step(0)
				Expect(err).NotTo(HaveOccurred())
				Expect(res.Done).To(BeTrue())
				Expect(res.Reward).To(Equal(0.0))
				Expect(res.Info.StepsBeyondDone).To(BeNumerically(">", prev))
				prev = res.Info.StepsBeyondDone
			}
		})

		It("advises exactly once per episode", func() {
			_, _ = e.Step(0)

			second, _ := e.Step(0)
			Expect(second.Info.Advisory).To(Equal(env.AdvisoryStepAfterDone))

			third, _ := e.Step(0)
			Expect(third.Info.Advisory).To(BeEmpty())
			Expect(logs.FilterMessage("env.step_after_done").Len()).To(Equal(1))

			e.Reset()
			_, _ = e.Step(0)
			again, _ := e.Step(0)
			Expect(again.Info.Advisory).To(Equal(env.AdvisoryStepAfterDone))
			Expect(logs.FilterMessage("env.step_after_done").Len()).To(Equal(2))
		})

		It("rewards the first step again after Reset", func() {
			_, _ = e.Step(0)
			_, _ = e.Step(0)
			e.Reset()
			res, err := e.Step(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Reward).To(Equal(1.0))
			Expect(res.Info.StepsBeyondDone).To(Equal(0))
		})
	})

	Describe("strict mode", func() {
		It("rejects steps after termination and keeps the state", func() {
			e := newEnv(env.WithStrict(true))
			e.Reset()

			res, err := e.Step(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Done).To(BeTrue())

			before := e.Snapshot()
			_, err = e.Step(0)
			Expect(errors.Is(err, dynamo.ErrStepAfterDone)).To(BeTrue())
			Expect(e.Snapshot()).To(Equal(before))

			e.Reset()
			_, err = e.Step(0)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	DescribeTable("states inside the balanced region",
		func(s dynamo.State, action float64) {
			e := newEnv(env.WithInitialState(s))
			e.Reset()
			res, err := e.Step(action)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Done).To(BeFalse())
			Expect(res.Reward).To(Equal(1.0))
			Expect(res.Info.StepsBeyondDone).To(Equal(-1))
		},
		Entry("upright at rest", dynamo.State{0, 0, 0, 0}, 0.0),
		Entry("off center", dynamo.State{2.0, 0.5, 0.1, -0.2}, 5.0),
		Entry("negative side", dynamo.State{-2.3, -1.0, -0.2, 0.3}, -20.0),
		Entry("out of range action", dynamo.State{0, 0, 0.05, 0}, 500.0),
	)

	DescribeTable("leaving the balanced region",
		func(s dynamo.State) {
			e := newEnv(env.WithInitialState(s))
			e.Reset()
			res, err := e.Step(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Done).To(BeTrue())
		},
		Entry("right edge", dynamo.State{2.39, 10, 0, 0}),
		Entry("left edge", dynamo.State{-2.39, -10, 0, 0}),
		Entry("pole right", dynamo.State{0, 0, thetaThreshold - 0.001, 2}),
		Entry("pole left", dynamo.State{0, 0, -thetaThreshold + 0.001, -2}),
		Entry("far outside", dynamo.State{-5, 0, 0.3 * math.Pi, 0}),
	)

	DescribeTable("threshold boundaries are not terminal",
		func(s dynamo.State) {
			e := newEnv(env.WithInitialState(s))
			e.Reset()
			res, err := e.Step(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.State[0]).To(Equal(s[0]))
			Expect(res.State[2]).To(Equal(s[2]))
			Expect(res.Done).To(BeFalse())
			Expect(res.Reward).To(Equal(1.0))
		},
		Entry("x at +threshold", dynamo.State{2.4, 0, 0, 0}),
		Entry("x at -threshold", dynamo.State{-2.4, 0, 0, 0}),
		Entry("theta at +threshold", dynamo.State{0, 0, thetaThreshold, 0}),
		Entry("theta at -threshold", dynamo.State{0, 0, -thetaThreshold, 0}),
	)

	Describe("angle wrapping", func() {
		It("keeps theta within one revolution", func() {
			e := newEnv(env.WithInitialState(dynamo.State{0, 0, math.Pi - 0.001, 1.0}))
			e.Reset()
			res, err := e.Step(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.State[2]).To(BeNumerically(">", -math.Pi))
			Expect(res.State[2]).To(BeNumerically("<", -math.Pi+0.01))
		})

		It("wraps with a non-default integrator", func() {
			e := newEnv(
				env.WithIntegrator(integrators.NewRK4()),
				env.WithInitialState(dynamo.State{0, 0, -math.Pi + 0.001, -1.0}),
			)
			e.Reset()
			res, err := e.Step(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.State[2]).To(BeNumerically(">", math.Pi-0.01))
			Expect(res.State[2]).To(BeNumerically("<=", math.Pi))
		})
	})

	Describe("determinism", func() {
		It("reproduces trajectories bit for bit", func() {
			actions := []float64{0, 1.5, -20, 7.25, 3, -0.5}
			a, b := newEnv(env.WithSeed(1)), newEnv(env.WithSeed(99))
			a.Reset()
			b.Reset()
			for _, u := range actions {
				ra, _ := a.Step(u)
				rb, _ := b.Step(u)
				for i := range ra.State {
					Expect(math.Float64bits(ra.State[i])).To(Equal(math.Float64bits(rb.State[i])))
				}
			}
		})

		It("matches the pure transition", func() {
			e := newEnv()
			s := e.Reset()
			res, _ := e.Step(2.0)
			Expect(res.State).To(Equal(physics.NewCartPole().Advance(s, 2.0)))
		})
	})

	Describe("spaces", func() {
		It("declares the action and observation bounds", func() {
			e := newEnv()
			Expect(e.ActionSpace().Low()).To(Equal([]float64{-20}))
			Expect(e.ActionSpace().High()).To(Equal([]float64{20}))

			high := e.ObservationSpace().High()
			Expect(high[0]).To(Equal(4.8))
			Expect(high[1]).To(Equal(float64(math.MaxFloat32)))
			Expect(high[2]).To(BeNumerically("~", 2*thetaThreshold, 1e-15))
			Expect(high[3]).To(Equal(float64(math.MaxFloat32)))
		})
	})

	Describe("seeding", func() {
		It("returns the effective seed", func() {
			e := newEnv()
			seed := int64(42)
			Expect(e.Seed(&seed)).To(Equal([]int64{42}))
			Expect(e.Seed(nil)).To(HaveLen(1))
		})

		It("makes sampled actions reproducible", func() {
			e := newEnv()
			seed := int64(7)
			e.Seed(&seed)
			first := []float64{e.SampleAction(), e.SampleAction()}
			e.Seed(&seed)
			second := []float64{e.SampleAction(), e.SampleAction()}
			Expect(first).To(Equal(second))
			Expect(e.ActionSpace().Contains(first[:1])).To(BeTrue())
		})
	})

	Describe("rendering", func() {
		It("returns nothing before Reset", func() {
			e := newEnv()
			img, err := e.Render(render.RGBArray)
			Expect(err).NotTo(HaveOccurred())
			Expect(img).To(BeNil())
			Expect(e.Close()).To(Succeed())
		})

		It("produces pixel arrays and terminal frames", func() {
			var buf bytes.Buffer
			e := newEnv(env.WithRenderOutput(&buf))
			e.Reset()

			img, err := e.Render(render.RGBArray)
			Expect(err).NotTo(HaveOccurred())
			Expect(img.Bounds().Dx()).To(Equal(render.ScreenWidth))
			Expect(img.Bounds().Dy()).To(Equal(render.ScreenHeight))

			_, err = e.Render(render.Human)
			Expect(err).NotTo(HaveOccurred())
			Expect(buf.String()).To(ContainSubstring("theta=+0.942"))

			Expect(e.Close()).To(Succeed())
			Expect(e.Close()).To(Succeed())

			_, err = e.Render(render.RGBArray)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("construction", func() {
		It("rejects a malformed initial state", func() {
			_, err := env.New(physics.NewCartPole(), env.WithInitialState(dynamo.State{0, 0}))
			Expect(errors.Is(err, dynamo.ErrDimensionMismatch)).To(BeTrue())

			_, err = env.New(physics.NewCartPole(), env.WithInitialState(dynamo.State{0, math.NaN(), 0, 0}))
			Expect(errors.Is(err, dynamo.ErrInvalidState)).To(BeTrue())
		})

		It("rejects invalid physics", func() {
			cp := physics.NewCartPole()
			cp.Tau = 0
			_, err := env.New(cp)
			Expect(errors.Is(err, dynamo.ErrParameterBounds)).To(BeTrue())
		})
	})

	Describe("FromConfig", func() {
		var dir string

		BeforeEach(func() {
			dir = GinkgoT().TempDir()
		})

		write := func(name, content string) string {
			path := filepath.Join(dir, name)
			Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())
			return path
		}

		It("loads the linear model without changing the dynamics", func() {
			cfg := config.DefaultConfig()
			cfg.Model.GPath = write("G.txt", "1 0 0 0\n0 1 0 0\n0 0 1 0\n0 0 0 1\n")
			cfg.Model.HPath = write("H.txt", "0 1 0 1\n")

			withModel, err := env.FromConfig(cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(withModel.LinearModel()).NotTo(BeNil())

			plain := newEnv()
			withModel.Reset()
			plain.Reset()
			a, _ := withModel.Step(1.0)
			b, _ := plain.Step(1.0)
			Expect(a).To(Equal(b))
		})

		It("loads the shipped model for the reference preset", func() {
			cfg := config.GetPreset("reference")
			Expect(cfg.Model.GPath).To(Equal(config.DefaultGPath))
			cfg.Model.GPath = filepath.Join("..", "..", cfg.Model.GPath)
			cfg.Model.HPath = filepath.Join("..", "..", cfg.Model.HPath)

			e, err := env.FromConfig(cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(e.LinearModel()).NotTo(BeNil())
			Expect(e.Reset()).To(Equal(dynamo.State{-5.0, 0.0, 0.3 * math.Pi, 0.0}))
		})

		It("fails the reference preset when the model files are absent", func() {
			cfg := config.GetPreset("reference")
			cfg.Model.GPath = filepath.Join(dir, cfg.Model.GPath)
			cfg.Model.HPath = filepath.Join(dir, cfg.Model.HPath)

			_, err := env.FromConfig(cfg)
			var cle *dynamo.ConfigLoadError
			Expect(errors.As(err, &cle)).To(BeTrue())
			Expect(cle.Path).To(Equal(cfg.Model.GPath))
		})

		It("surfaces a ConfigLoadError for a missing matrix file", func() {
			cfg := config.DefaultConfig()
			cfg.Model.GPath = filepath.Join(dir, "missing.txt")
			cfg.Model.HPath = write("H.txt", "0 1 0 1\n")

			_, err := env.FromConfig(cfg)
			var cle *dynamo.ConfigLoadError
			Expect(errors.As(err, &cle)).To(BeTrue())
			Expect(cle.Path).To(Equal(cfg.Model.GPath))
		})

		It("surfaces a ConfigLoadError for a malformed matrix file", func() {
			cfg := config.DefaultConfig()
			cfg.Model.GPath = write("G.txt", "1 0 0\n")
			cfg.Model.HPath = write("H.txt", "0 1 0 1\n")

			_, err := env.FromConfig(cfg)
			var cle *dynamo.ConfigLoadError
			Expect(errors.As(err, &cle)).To(BeTrue())
		})

		It("applies strict mode, integrator and seed", func() {
			cfg := config.GetPreset("strict")
			cfg.Env.Integrator = "rk4"
			seed := int64(5)
			cfg.Rollout.Seed = &seed

			e, err := env.FromConfig(cfg)
			Expect(err).NotTo(HaveOccurred())
			e.Reset()
			_, err = e.Step(0)
			Expect(err).NotTo(HaveOccurred())
			_, err = e.Step(0)
			Expect(errors.Is(err, dynamo.ErrStepAfterDone)).To(BeTrue())
		})

		It("rejects an unknown integrator", func() {
			cfg := config.DefaultConfig()
			cfg.Env.Integrator = "leapfrog"
			_, err := env.FromConfig(cfg)
			Expect(err).To(HaveOccurred())
		})
	})
})
