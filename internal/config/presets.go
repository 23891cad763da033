package config

import "sort"

var Presets = map[string]func() *Config{
	// reference also loads the linear model shipped next to the binary,
	// resolved against the working directory.
	"reference": func() *Config {
		cfg := DefaultConfig()
		cfg.Model.GPath = DefaultGPath
		cfg.Model.HPath = DefaultHPath
		return cfg
	},
	"upright": func() *Config {
		cfg := DefaultConfig()
		cfg.Env.InitState = []float64{0.0, 0.0, 0.05, 0.0}
		cfg.Rollout.Policy = "lqr"
		return cfg
	},
	"strict": func() *Config {
		cfg := DefaultConfig()
		cfg.Env.Strict = true
		return cfg
	},
	"frictionless": func() *Config {
		cfg := DefaultConfig()
		cfg.Physics.Friction = 0
		cfg.Physics.Inertia = 0
		return cfg
	},
	"random": func() *Config {
		cfg := DefaultConfig()
		cfg.Env.InitState = []float64{0.0, 0.0, 0.0, 0.0}
		cfg.Rollout.Policy = "random"
		cfg.Rollout.Episodes = 16
		return cfg
	},
}

// GetPreset returns a fresh copy of the named preset, or nil.
func GetPreset(name string) *Config {
	fn, ok := Presets[name]
	if !ok {
		return nil
	}
	return fn()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
