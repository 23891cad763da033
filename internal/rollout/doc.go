// Package rollout runs policies against cart-pole environments.
//
// A [Runner] drives one environment through one episode and records the
// trajectory as an [Episode]. An [Ensemble] runs many episodes in
// parallel with one environment per worker, since environments are not
// safe for concurrent use.
package rollout
