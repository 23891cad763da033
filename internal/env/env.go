package env

import (
	"fmt"
	"image"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/san-kum/cartpole/internal/config"
	"github.com/san-kum/cartpole/internal/dynamo"
	"github.com/san-kum/cartpole/internal/integrators"
	"github.com/san-kum/cartpole/internal/linmodel"
	"github.com/san-kum/cartpole/internal/physics"
	"github.com/san-kum/cartpole/internal/render"
	"github.com/san-kum/cartpole/internal/space"
)

// AdvisoryStepAfterDone is reported once per episode when Step is called
// after the episode already terminated.
const AdvisoryStepAfterDone = "step called after the environment returned done; " +
	"call Reset once done is reported, further steps are undefined"

// Info carries per-step diagnostics.
type Info struct {
	// StepsBeyondDone is -1 until the episode terminates, 0 on the
	// terminating step and counts further steps after that.
	StepsBeyondDone int
	// Advisory is non-empty only on the first step after termination.
	Advisory string
}

type StepResult struct {
	State  dynamo.State
	Reward float64
	Done   bool
	Info   Info
}

// Env is the continuous-action cart-pole environment. An Env is not safe
// for concurrent use; run one Env per goroutine.
type Env struct {
	dyn   *physics.CartPole
	integ dynamo.Integrator
	model *linmodel.Model

	xThreshold     float64
	thetaThreshold float64
	initState      dynamo.State
	strict         bool

	state           dynamo.State
	stepsBeyondDone *int
	elapsed         float64

	actionSpace      *space.Box
	observationSpace *space.Box

	rng  *rand.Rand
	seed int64

	renderOut io.Writer
	viewer    *render.Viewer

	logger *zap.Logger
}

type Option func(*Env)

func WithLogger(l *zap.Logger) Option {
	return func(e *Env) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithStrict makes Step return dynamo.ErrStepAfterDone instead of
// advising once and continuing.
func WithStrict(strict bool) Option {
	return func(e *Env) { e.strict = strict }
}

// WithIntegrator replaces the reference Euler step. The angle is wrapped
// after every step regardless of the integrator.
func WithIntegrator(integ dynamo.Integrator) Option {
	return func(e *Env) { e.integ = integ }
}

func WithLinearModel(m *linmodel.Model) Option {
	return func(e *Env) { e.model = m }
}

func WithThresholds(x, theta float64) Option {
	return func(e *Env) {
		e.xThreshold = x
		e.thetaThreshold = theta
	}
}

func WithInitialState(s dynamo.State) Option {
	return func(e *Env) { e.initState = s.Clone() }
}

func WithSeed(seed int64) Option {
	return func(e *Env) { e.Seed(&seed) }
}

// WithRenderOutput sets where human mode frames are written. Defaults to
// os.Stdout.
func WithRenderOutput(w io.Writer) Option {
	return func(e *Env) { e.renderOut = w }
}

// New builds an environment around dyn. The environment must be Reset
// before the first Step.
func New(dyn *physics.CartPole, opts ...Option) (*Env, error) {
	if err := dyn.Validate(); err != nil {
		return nil, err
	}

	e := &Env{
		dyn:            dyn,
		xThreshold:     config.DefaultXThreshold,
		thetaThreshold: config.DefaultThetaThreshold,
		initState:      dynamo.State(config.DefaultInitState).Clone(),
		renderOut:      os.Stdout,
		logger:         zap.NewNop(),
	}
	e.Seed(nil)

	for _, opt := range opts {
		opt(e)
	}

	if len(e.initState) != dyn.StateDim() {
		return nil, fmt.Errorf("%w: initial state has %d components, want %d",
			dynamo.ErrDimensionMismatch, len(e.initState), dyn.StateDim())
	}
	if !e.initState.IsValid() {
		return nil, fmt.Errorf("%w: initial state %v", dynamo.ErrInvalidState, e.initState)
	}
	if !(e.xThreshold > 0) || !(e.thetaThreshold > 0) {
		return nil, fmt.Errorf("%w: thresholds must be positive", dynamo.ErrParameterBounds)
	}

	// Observation bounds are twice the failure thresholds so the failing
	// observation is still inside the space.
	e.actionSpace = space.Symmetric(dyn.MaxForce)
	e.observationSpace = space.Symmetric(
		e.xThreshold*2,
		math.MaxFloat32,
		e.thetaThreshold*2,
		math.MaxFloat32,
	)

	return e, nil
}

// FromConfig builds an environment from cfg, loading the linear model when
// configured. A bad model file yields a *dynamo.ConfigLoadError.
func FromConfig(cfg *config.Config, opts ...Option) (*Env, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	integ, err := integrators.ByName(cfg.Env.Integrator)
	if err != nil {
		return nil, err
	}

	base := []Option{
		WithThresholds(cfg.Env.XThreshold, cfg.Env.ThetaThreshold),
		WithInitialState(cfg.Env.InitState),
		WithStrict(cfg.Env.Strict),
	}
	if cfg.Env.Integrator != "" && cfg.Env.Integrator != "euler" {
		base = append(base, WithIntegrator(integ))
	}
	if cfg.Model.GPath != "" {
		m, err := linmodel.Load(cfg.Model.GPath, cfg.Model.HPath)
		if err != nil {
			return nil, err
		}
		base = append(base, WithLinearModel(m))
	}
	if cfg.Rollout.Seed != nil {
		base = append(base, WithSeed(*cfg.Rollout.Seed))
	}

	return New(cfg.CartPole(), append(base, opts...)...)
}

// Seed reseeds the environment's random source and returns the seed that
// was used. A nil seed picks one from the clock and the runtime source.
// Reset is deterministic and does not depend on the seed.
func (e *Env) Seed(seed *int64) []int64 {
	var s int64
	if seed != nil {
		s = *seed
	} else {
		s = time.Now().UnixNano() ^ rand.Int64()
	}
	e.seed = s
	e.rng = rand.New(rand.NewPCG(uint64(s), uint64(s)>>32|1))
	return []int64{s}
}

// Reset restores the configured initial state and clears the termination
// counter. The returned state is a copy.
func (e *Env) Reset() dynamo.State {
	e.state = e.initState.Clone()
	e.stepsBeyondDone = nil
	e.elapsed = 0
	return e.state.Clone()
}

// Step advances the environment by one timestep with the given force
// command. The action is not clipped to the action space.
func (e *Env) Step(action float64) (StepResult, error) {
	if e.state == nil {
		return StepResult{}, fmt.Errorf("%w: step before reset", dynamo.ErrInvalidState)
	}
	if e.strict && e.stepsBeyondDone != nil {
		return StepResult{}, fmt.Errorf("%w (steps beyond done: %d)", dynamo.ErrStepAfterDone, *e.stepsBeyondDone)
	}

	e.state = e.advance(e.state, action)
	e.elapsed += e.dyn.Tau

	done := e.terminated(e.state)

	var (
		reward float64
		info   Info
	)
	switch {
	case !done:
		reward = 1.0
	case e.stepsBeyondDone == nil:
		// Pole just fell.
		n := 0
		e.stepsBeyondDone = &n
		reward = 1.0
	default:
		if *e.stepsBeyondDone == 0 {
			info.Advisory = AdvisoryStepAfterDone
			e.logger.Warn("env.step_after_done",
				zap.String("advice", "call Reset after done"),
				zap.Float64("t", e.elapsed),
				zap.Float64s("state", e.state),
			)
		}
		*e.stepsBeyondDone++
		reward = 0.0
	}

	info.StepsBeyondDone = -1
	if e.stepsBeyondDone != nil {
		info.StepsBeyondDone = *e.stepsBeyondDone
	}

	return StepResult{
		State:  e.state.Clone(),
		Reward: reward,
		Done:   done,
		Info:   info,
	}, nil
}

func (e *Env) advance(x dynamo.State, action float64) dynamo.State {
	if e.integ == nil {
		return e.dyn.Advance(x, action)
	}
	next := e.integ.Step(e.dyn, x, dynamo.Control{action}, e.elapsed, e.dyn.Tau)
	next[2] = physics.WrapAngle(x[2], next[2])
	return next
}

// terminated reports whether s has left the balanced region. Values exactly
// on a threshold are still balanced.
func (e *Env) terminated(s dynamo.State) bool {
	x, theta := s[0], s[2]
	return x < -e.xThreshold ||
		x > e.xThreshold ||
		theta < -e.thetaThreshold ||
		theta > e.thetaThreshold
}

// Snapshot returns a copy of the current state, or nil before Reset.
func (e *Env) Snapshot() dynamo.State {
	return e.state.Clone()
}

// StepsBeyondDone returns the termination counter and whether it is set.
func (e *Env) StepsBeyondDone() (int, bool) {
	if e.stepsBeyondDone == nil {
		return 0, false
	}
	return *e.stepsBeyondDone, true
}

func (e *Env) ActionSpace() *space.Box      { return e.actionSpace }
func (e *Env) ObservationSpace() *space.Box { return e.observationSpace }

// SampleAction draws a uniformly random action from the seeded source.
func (e *Env) SampleAction() float64 {
	return e.actionSpace.Sample(e.rng)[0]
}

func (e *Env) Rand() *rand.Rand { return e.rng }

func (e *Env) Dynamics() *physics.CartPole { return e.dyn }

func (e *Env) Dt() float64 { return e.dyn.Tau }

func (e *Env) Elapsed() float64 { return e.elapsed }

func (e *Env) Thresholds() (float64, float64) {
	return e.xThreshold, e.thetaThreshold
}

// LinearModel returns the loaded (G, H) model or nil. It is never used to
// advance the state.
func (e *Env) LinearModel() *linmodel.Model { return e.model }

// Render draws the current state. The viewer is created on the first call
// and kept until Close. Before Reset there is nothing to draw and Render
// returns a nil image.
func (e *Env) Render(mode render.Mode) (image.Image, error) {
	if e.viewer == nil {
		e.viewer = render.NewViewer(render.NewTransform(e.xThreshold), e.renderOut)
	}
	if e.state == nil {
		return nil, nil
	}

	f := render.NewTransform(e.xThreshold).Frame(e.state[0], e.state[2])
	f.Caption = fmt.Sprintf("t=%.3fs  x=%+.3f  x_dot=%+.3f  theta=%+.3f  theta_dot=%+.3f",
		e.elapsed, e.state[0], e.state[1], e.state[2], e.state[3])
	return e.viewer.Render(f, mode)
}

// Close tears down the viewer if one was created.
func (e *Env) Close() error {
	if e.viewer == nil {
		return nil
	}
	err := e.viewer.Close()
	e.viewer = nil
	return err
}

func (e *Env) String() string {
	if e.state == nil {
		return "CartPoleContinuous(unset)"
	}
	return fmt.Sprintf("CartPoleContinuous(x=%v, x_dot=%v, theta=%v, theta_dot=%v)",
		e.state[0], e.state[1], e.state[2], e.state[3])
}
