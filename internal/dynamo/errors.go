package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for environment operations.
var (
	// ErrInvalidState indicates a missing state (step before reset) or a
	// state vector with invalid dimensions or values.
	ErrInvalidState = errors.New("dynamo: invalid state")

	// ErrStepAfterDone indicates a step after termination without an
	// intervening reset. Only returned in strict mode.
	ErrStepAfterDone = errors.New("dynamo: step called after episode terminated")

	// ErrParameterBounds indicates a parameter value is outside valid range.
	ErrParameterBounds = errors.New("dynamo: parameter out of valid bounds")

	// ErrDimensionMismatch indicates mismatched state/control dimensions.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")
)

// ConfigLoadError reports a missing or malformed dynamics-matrix file.
type ConfigLoadError struct {
	Path string
	Err  error
}

func (e *ConfigLoadError) Error() string {
	return fmt.Sprintf("dynamo: load %s: %v", e.Path, e.Err)
}

func (e *ConfigLoadError) Unwrap() error {
	return e.Err
}

// SimulationError wraps an error with rollout context.
type SimulationError struct {
	Step    int
	Time    float64
	State   State
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
