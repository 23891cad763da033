package control

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/san-kum/cartpole/internal/dynamo"
	"github.com/san-kum/cartpole/internal/space"
)

// Params carries everything a policy constructor may need.
type Params struct {
	Gains  []float64
	Kp     float64
	Ki     float64
	Kd     float64
	Action *space.Box
	Src    rand.Source
}

var registry = map[string]func(Params) (dynamo.Controller, error){
	"zero": func(Params) (dynamo.Controller, error) { return NewZero(), nil },
	"random": func(p Params) (dynamo.Controller, error) {
		if p.Action == nil || p.Src == nil {
			return nil, fmt.Errorf("random policy needs an action space and a random source")
		}
		return NewRandom(p.Action, p.Src), nil
	},
	"lqr": func(p Params) (dynamo.Controller, error) {
		if len(p.Gains) != 0 && len(p.Gains) != 4 {
			return nil, fmt.Errorf("%w: lqr needs 4 gains, got %d", dynamo.ErrDimensionMismatch, len(p.Gains))
		}
		return NewCartPoleLQR(p.Gains), nil
	},
	"pid": func(p Params) (dynamo.Controller, error) {
		return NewPID(p.Kp, p.Ki, p.Kd, 0), nil
	},
}

// ByName builds the named policy.
func ByName(name string, p Params) (dynamo.Controller, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown policy: %s (available: %v)", name, Names())
	}
	return fn(p)
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
