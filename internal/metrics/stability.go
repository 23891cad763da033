package metrics

import (
	"math"

	"github.com/san-kum/cartpole/internal/dynamo"
)

// BalanceFraction is the fraction of observed states inside the balanced
// region |x| <= xThreshold and |theta| <= thetaThreshold.
type BalanceFraction struct {
	xThreshold     float64
	thetaThreshold float64
	violations     int
	samples        int
}

func NewBalanceFraction(xThreshold, thetaThreshold float64) *BalanceFraction {
	return &BalanceFraction{
		xThreshold:     xThreshold,
		thetaThreshold: thetaThreshold,
	}
}

func (b *BalanceFraction) Name() string {
	return "balance_fraction"
}

func (b *BalanceFraction) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if len(x) < 3 {
		return
	}
	b.samples++
	if math.Abs(x[0]) > b.xThreshold || math.Abs(x[2]) > b.thetaThreshold {
		b.violations++
	}
}

func (b *BalanceFraction) Value() float64 {
	if b.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(b.violations)/float64(b.samples)
}

func (b *BalanceFraction) Reset() {
	b.violations = 0
	b.samples = 0
}

// MaxAngle is the largest |theta| seen.
type MaxAngle struct {
	max float64
}

func NewMaxAngle() *MaxAngle {
	return &MaxAngle{}
}

func (m *MaxAngle) Name() string { return "max_abs_theta" }

func (m *MaxAngle) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if len(x) < 3 {
		return
	}
	m.max = math.Max(m.max, math.Abs(x[2]))
}

func (m *MaxAngle) Value() float64 { return m.max }

func (m *MaxAngle) Reset() { m.max = 0 }

// Standard returns the metrics recorded for every rollout.
func Standard(xThreshold, thetaThreshold float64) []dynamo.Metric {
	return []dynamo.Metric{
		NewControlEffort(),
		NewBalanceFraction(xThreshold, thetaThreshold),
		NewMaxAngle(),
	}
}
