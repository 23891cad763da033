package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/cartpole/internal/dynamo"
	"github.com/san-kum/cartpole/internal/physics"
)

const (
	DefaultXThreshold = 2.4
	DefaultMaxSteps   = 1000
	DefaultEpisodes   = 1
	DefaultWorkers    = 4
	DefaultFPS        = 30

	DefaultGPath = "G.txt"
	DefaultHPath = "H.txt"
)

// DefaultThetaThreshold is the angle at which an episode fails, 12 degrees.
var DefaultThetaThreshold = 12 * 2 * math.Pi / 360

// DefaultInitState is the off-center, tilted start used by Reset.
var DefaultInitState = []float64{-5.0, 0.0, 0.3 * math.Pi, 0.0}

type Config struct {
	Physics PhysicsConfig `yaml:"physics"`
	Env     EnvConfig     `yaml:"env"`
	Model   ModelConfig   `yaml:"model"`
	Rollout RolloutConfig `yaml:"rollout"`
	Render  RenderConfig  `yaml:"render"`
}

type PhysicsConfig struct {
	Gravity  float64 `yaml:"gravity"`
	CartMass float64 `yaml:"cart_mass"`
	PoleMass float64 `yaml:"pole_mass"`
	Length   float64 `yaml:"length"`
	MaxForce float64 `yaml:"max_force"`
	Tau      float64 `yaml:"tau"`
	Friction float64 `yaml:"friction"`
	Inertia  float64 `yaml:"inertia"`
}

type EnvConfig struct {
	XThreshold     float64   `yaml:"x_threshold"`
	ThetaThreshold float64   `yaml:"theta_threshold"`
	InitState      []float64 `yaml:"init_state"`
	Strict         bool      `yaml:"strict"`
	Integrator     string    `yaml:"integrator"`
}

// ModelConfig points at the G and H matrix files. Both empty means no
// linear model is loaded.
type ModelConfig struct {
	GPath string `yaml:"g_path"`
	HPath string `yaml:"h_path"`
}

type RolloutConfig struct {
	Episodes   int       `yaml:"episodes"`
	Workers    int       `yaml:"workers"`
	MaxSteps   int       `yaml:"max_steps"`
	ExtraSteps int       `yaml:"extra_steps"`
	Policy     string    `yaml:"policy"`
	Seed       *int64    `yaml:"seed,omitempty"`
	Gains      []float64 `yaml:"gains,omitempty"`
	Kp         float64   `yaml:"kp"`
	Ki         float64   `yaml:"ki"`
	Kd         float64   `yaml:"kd"`
}

type RenderConfig struct {
	Mode string `yaml:"mode"`
	FPS  int    `yaml:"fps"`
}

func DefaultConfig() *Config {
	return &Config{
		Physics: PhysicsConfig{
			Gravity:  physics.DefaultGravity,
			CartMass: physics.DefaultCartMass,
			PoleMass: physics.DefaultPoleMass,
			Length:   physics.DefaultLength,
			MaxForce: physics.DefaultMaxForce,
			Tau:      physics.DefaultTau,
			Friction: physics.DefaultFriction,
			Inertia:  physics.DefaultInertia,
		},
		Env: EnvConfig{
			XThreshold:     DefaultXThreshold,
			ThetaThreshold: DefaultThetaThreshold,
			InitState:      append([]float64(nil), DefaultInitState...),
			Integrator:     "euler",
		},
		Rollout: RolloutConfig{
			Episodes: DefaultEpisodes,
			Workers:  DefaultWorkers,
			MaxSteps: DefaultMaxSteps,
			Policy:   "zero",
			Kp:       60.0,
			Ki:       0.0,
			Kd:       6.0,
		},
		Render: RenderConfig{
			Mode: "human",
			FPS:  DefaultFPS,
		},
	}
}

func Load(path string) (*Config, error) {
	return LoadOnto(path, DefaultConfig())
}

// LoadOnto overlays the YAML file at path on base. Keys missing from the
// file keep the value they have in base.
func LoadOnto(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := base
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// CartPole builds the physical model described by the config.
func (c *Config) CartPole() *physics.CartPole {
	p := c.Physics
	return &physics.CartPole{
		Gravity:  p.Gravity,
		CartMass: p.CartMass,
		PoleMass: p.PoleMass,
		Length:   p.Length,
		MaxForce: p.MaxForce,
		Tau:      p.Tau,
		Friction: p.Friction,
		Inertia:  p.Inertia,
	}
}

func (c *Config) Validate() error {
	if err := c.CartPole().Validate(); err != nil {
		return err
	}
	if !(c.Env.XThreshold > 0) || !(c.Env.ThetaThreshold > 0) {
		return fmt.Errorf("%w: thresholds must be positive", dynamo.ErrParameterBounds)
	}
	if len(c.Env.InitState) != 4 {
		return fmt.Errorf("%w: init_state needs 4 values, got %d", dynamo.ErrDimensionMismatch, len(c.Env.InitState))
	}
	if !dynamo.State(c.Env.InitState).IsValid() {
		return fmt.Errorf("%w: init_state contains NaN or Inf", dynamo.ErrInvalidState)
	}
	if (c.Model.GPath == "") != (c.Model.HPath == "") {
		return fmt.Errorf("model: g_path and h_path must be set together")
	}
	if c.Rollout.Episodes < 1 || c.Rollout.MaxSteps < 1 {
		return fmt.Errorf("%w: episodes and max_steps must be at least 1", dynamo.ErrParameterBounds)
	}
	if c.Rollout.ExtraSteps < 0 {
		return fmt.Errorf("%w: extra_steps must be non-negative", dynamo.ErrParameterBounds)
	}
	return nil
}
