// Package dynamo provides the core primitives shared by the cart-pole
// environment and its tooling.
//
//   - [State]: flat state vector
//   - [System]: ODE right-hand side (dX/dt = f(X, u, t))
//   - [Integrator]: numerical stepper
//   - [Controller]: policy mapping a state to a control
//   - [Metric], [Observer]: per-step hooks used by rollouts
//
// Errors are exposed as sentinels ([ErrInvalidState], [ErrStepAfterDone])
// and wrapper types ([ConfigLoadError], [SimulationError]); match them with
// errors.Is and errors.As.
package dynamo
