// Package physics holds the continuous-action cart-pole model.
//
// [CartPole] implements [dynamo.System] so it can be driven by any
// integrator, and [CartPole.Advance] performs the reference explicit Euler
// step with angle wrapping:
//
//	cp := physics.NewCartPole()
//	next := cp.Advance(dynamo.State{-5, 0, 0.3 * math.Pi, 0}, 0)
package physics
