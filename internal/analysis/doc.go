// Package analysis inspects cart-pole trajectories.
//
//   - [PowerSpectrum] and [DominantFrequency]: oscillation content of one
//     state component
//   - [NewPhasePortrait] and [PhasePortrait.ASCII]: 2D phase space plots
//   - [DivergenceRate]: finite-time growth rate of a small perturbation,
//     positive around the unstable upright equilibrium
//
// Typical use on a stored run:
//
//	ep, _ := store.LoadTrajectory(id)
//	freq, _ := analysis.DominantFrequency(analysis.Column(ep.States, 2), dt)
package analysis
