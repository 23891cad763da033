package integrators

import "github.com/san-kum/cartpole/internal/dynamo"

// RK4 is the classical fourth-order Runge-Kutta method. Stage buffers are
// reused between calls, so an RK4 value must not be shared across
// goroutines.
type RK4 struct {
	stages  [4]dynamo.State
	scratch dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

var (
	rk4Nodes   = [4]float64{0, 0.5, 0.5, 1}
	rk4Weights = [4]float64{1, 2, 2, 1}
)

func (r *RK4) ensureScratch(n int) {
	if len(r.scratch) == n {
		return
	}
	for i := range r.stages {
		r.stages[i] = make(dynamo.State, n)
	}
	r.scratch = make(dynamo.State, n)
}

func (r *RK4) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	n := len(x)
	r.ensureScratch(n)

	for s := 0; s < 4; s++ {
		probe := x
		if s > 0 {
			c := rk4Nodes[s] * dt
			for i := 0; i < n; i++ {
				r.scratch[i] = x[i] + c*r.stages[s-1][i]
			}
			probe = r.scratch
		}
		copy(r.stages[s], dyn.Derive(probe, u, t+rk4Nodes[s]*dt))
	}

	result := make(dynamo.State, n)
	dt6 := dt / 6.0
	for i := 0; i < n; i++ {
		sum := 0.0
		for s := 0; s < 4; s++ {
			sum += rk4Weights[s] * r.stages[s][i]
		}
		result[i] = x[i] + dt6*sum
	}
	return result
}
