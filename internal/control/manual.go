package control

import "github.com/san-kum/cartpole/internal/dynamo"

// Manual returns an externally set action, clamped to ±Limit. The live view
// drives it from the keyboard.
type Manual struct {
	Limit  float64
	action float64
}

func NewManual(limit float64) *Manual {
	return &Manual{Limit: limit}
}

func (m *Manual) Set(action float64) {
	switch {
	case action > m.Limit:
		action = m.Limit
	case action < -m.Limit:
		action = -m.Limit
	}
	m.action = action
}

// Nudge adds delta to the current action.
func (m *Manual) Nudge(delta float64) {
	m.Set(m.action + delta)
}

func (m *Manual) Action() float64 {
	return m.action
}

func (m *Manual) Compute(x dynamo.State, t float64) dynamo.Control {
	return dynamo.Control{m.action}
}
