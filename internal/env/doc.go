// Package env exposes the continuous-action cart-pole as a reinforcement
// learning environment.
//
// # Episode lifecycle
//
//	e, _ := env.New(physics.NewCartPole())
//	obs := e.Reset()
//	res, err := e.Step(0.0)
//
// Reward is 1 for every step until the episode terminates, including the
// terminating step. Further steps return reward 0 and, on the first one,
// an advisory in [Info] plus a warning on the configured zap logger. With
// [WithStrict] those steps fail with dynamo.ErrStepAfterDone instead.
//
// # Rendering
//
// [Env.Render] lazily creates a viewer scoped to the environment;
// [Env.Close] releases it.
package env
