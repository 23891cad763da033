package control

import "github.com/san-kum/cartpole/internal/dynamo"

// LQR applies u = -K(x - target).
type LQR struct {
	K      [][]float64
	Target dynamo.State
}

func NewLQR(k [][]float64, target dynamo.State) *LQR {
	return &LQR{K: k, Target: target}
}

func (l *LQR) Compute(x dynamo.State, t float64) dynamo.Control {
	u := make(dynamo.Control, len(l.K))
	for i := range u {
		for j := range x {
			target := 0.0
			if j < len(l.Target) {
				target = l.Target[j]
			}
			if j < len(l.K[i]) {
				u[i] -= l.K[i][j] * (x[j] - target)
			}
		}
	}
	return u
}

// Gains are expressed in action units, which push the cart opposite to
// the force, so every gain is positive.
var cartpoleGains = []float64{1.0, 1.73, 35.36, 8.94}

// NewCartPoleLQR returns state feedback around the upright equilibrium.
// A nil gains slice selects the built-in gains.
func NewCartPoleLQR(gains []float64) *LQR {
	if len(gains) == 0 {
		gains = cartpoleGains
	}
	k := [][]float64{append([]float64(nil), gains...)}
	return NewLQR(k, dynamo.State{0, 0, 0, 0})
}
