// Package control provides cart-pole policies.
//
// Policies implement [dynamo.Controller]; the first control component is
// used as the environment action. The environment negates the action
// before applying it as a force, so a policy that wants to push the cart
// right returns a negative action.
//
//   - [Zero]: no action
//   - [Random]: uniform samples from the action space
//   - [LQR]: linear state feedback
//   - [PID]: PID on a single state component (the pole angle by default)
//   - [Manual]: externally set action, used by the live view
package control
