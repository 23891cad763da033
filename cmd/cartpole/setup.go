package main

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/cartpole/internal/config"
	"github.com/san-kum/cartpole/internal/control"
	"github.com/san-kum/cartpole/internal/dynamo"
	"github.com/san-kum/cartpole/internal/env"
	"github.com/san-kum/cartpole/internal/rollout"
)

// resolveConfig layers defaults, preset, config file and explicitly set
// flags, in that order.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.LoadOnto(configFile, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("integrator") {
		cfg.Env.Integrator = integrator
	}
	if flags.Changed("strict") {
		cfg.Env.Strict = strict
	}
	if flags.Changed("policy") {
		cfg.Rollout.Policy = policy
	}
	if flags.Changed("seed") {
		s := seed
		cfg.Rollout.Seed = &s
	}
	if flags.Changed("max-steps") {
		cfg.Rollout.MaxSteps = maxSteps
	}
	if flags.Changed("episodes") {
		cfg.Rollout.Episodes = episodes
	}
	if flags.Changed("workers") {
		cfg.Rollout.Workers = workers
	}
	if flags.Changed("extra-steps") {
		cfg.Rollout.ExtraSteps = extraSteps
	}
	if flags.Changed("kp") {
		cfg.Rollout.Kp = kp
	}
	if flags.Changed("ki") {
		cfg.Rollout.Ki = ki
	}
	if flags.Changed("kd") {
		cfg.Rollout.Kd = kd
	}
	if flags.Changed("g") {
		cfg.Model.GPath = gPath
	}
	if flags.Changed("h") {
		cfg.Model.HPath = hPath
	}

	if cfg.Rollout.Seed == nil {
		s := time.Now().UnixNano()
		cfg.Rollout.Seed = &s
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envFactory seeds each worker's environment from the run seed so the
// worker streams differ.
func envFactory(cfg *config.Config, log *zap.Logger) rollout.EnvFactory {
	base := *cfg.Rollout.Seed
	return func(worker int) (rollout.Environment, error) {
		return env.FromConfig(cfg,
			env.WithLogger(log.With(zap.Int("worker", worker))),
			env.WithSeed(base+int64(worker)),
		)
	}
}

// policyFactory gives every episode its own random stream derived from the
// run seed and the episode index, so results do not depend on scheduling.
func policyFactory(cfg *config.Config) rollout.PolicyFactory {
	base := uint64(*cfg.Rollout.Seed)
	return func(episode int, e rollout.Environment) (dynamo.Controller, error) {
		p := control.Params{
			Gains: cfg.Rollout.Gains,
			Kp:    cfg.Rollout.Kp,
			Ki:    cfg.Rollout.Ki,
			Kd:    cfg.Rollout.Kd,
			Src:   rand.NewPCG(base, uint64(episode)),
		}
		if ce, ok := e.(*env.Env); ok {
			p.Action = ce.ActionSpace()
		}
		return control.ByName(cfg.Rollout.Policy, p)
	}
}
