package analysis

import (
	"math"

	"github.com/san-kum/cartpole/internal/dynamo"
)

// DivergenceRate estimates how fast a perturbation of size eps along
// component axis grows under zero action. Both trajectories are
// integrated for steps steps of dt; after each step the separation is
// measured and the perturbed state is pulled back to distance eps
// (Benettin renormalization). The result is the mean log growth per
// second.
func DivergenceRate(
	dyn dynamo.System,
	integ dynamo.Integrator,
	x0 dynamo.State,
	axis int,
	eps, dt float64,
	steps int,
) float64 {
	if axis < 0 || axis >= len(x0) || eps <= 0 || steps <= 0 {
		return 0
	}

	x := x0.Clone()
	xp := x0.Clone()
	xp[axis] += eps

	u := make(dynamo.Control, dyn.ControlDim())
	t := 0.0
	sumLog := 0.0

	for i := 0; i < steps; i++ {
		x = integ.Step(dyn, x, u, t, dt)
		xp = integ.Step(dyn, xp, u, t, dt)
		t += dt

		sep := xp.Sub(x).Norm()
		if sep == 0 || math.IsNaN(sep) || math.IsInf(sep, 0) {
			return sumLog / t
		}
		sumLog += math.Log(sep / eps)

		scale := eps / sep
		for j := range xp {
			xp[j] = x[j] + (xp[j]-x[j])*scale
		}
	}

	return sumLog / t
}
