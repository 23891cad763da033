package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/cartpole/internal/dynamo"
)

const (
	DefaultGravity  = 9.8
	DefaultCartMass = 0.5
	DefaultPoleMass = 0.1
	DefaultLength   = 0.3 // half the pole's length
	DefaultMaxForce = 20.0
	DefaultTau      = 0.005 // seconds between state updates
	DefaultFriction = 0.1
	DefaultInertia  = 0.012
)

// CartPole is a cart-pole with viscous cart friction and a pole with its own
// moment of inertia. The applied action is negated before it acts as a force
// on the cart.
type CartPole struct {
	Gravity  float64
	CartMass float64
	PoleMass float64
	Length   float64
	MaxForce float64
	Tau      float64
	Friction float64
	Inertia  float64
}

func NewCartPole() *CartPole {
	return &CartPole{
		Gravity:  DefaultGravity,
		CartMass: DefaultCartMass,
		PoleMass: DefaultPoleMass,
		Length:   DefaultLength,
		MaxForce: DefaultMaxForce,
		Tau:      DefaultTau,
		Friction: DefaultFriction,
		Inertia:  DefaultInertia,
	}
}

func (c *CartPole) TotalMass() float64 {
	return c.PoleMass + c.CartMass
}

func (c *CartPole) PoleMassLength() float64 {
	return c.PoleMass * c.Length
}

func (c *CartPole) StateDim() int {
	return 4
}

func (c *CartPole) ControlDim() int {
	return 1
}

// Validate rejects parameters that make the dynamics meaningless. The
// angular-acceleration denominator is assumed to stay away from zero for
// any parameters accepted here.
func (c *CartPole) Validate() error {
	checks := []struct {
		name  string
		value float64
	}{
		{"cart_mass", c.CartMass},
		{"pole_mass", c.PoleMass},
		{"length", c.Length},
		{"tau", c.Tau},
		{"max_force", c.MaxForce},
	}
	for _, ck := range checks {
		if !(ck.value > 0) || math.IsInf(ck.value, 0) {
			return fmt.Errorf("%w: %s must be positive, got %v", dynamo.ErrParameterBounds, ck.name, ck.value)
		}
	}
	if c.Friction < 0 || c.Inertia < 0 {
		return fmt.Errorf("%w: friction and inertia must be non-negative", dynamo.ErrParameterBounds)
	}
	return nil
}

// accelerations returns (xacc, thetaacc) for the given state and action.
func (c *CartPole) accelerations(xDot, theta, thetaDot, action float64) (float64, float64) {
	force := -action
	totalMass := c.TotalMass()
	pml := c.PoleMassLength()

	cost := math.Cos(theta)
	sint := math.Sin(theta)

	temp := (force + pml*thetaDot*thetaDot*sint - c.Friction*xDot) / totalMass
	thetaacc := (c.Gravity*sint - cost*temp) /
		(c.Inertia/c.PoleMass + c.Length - c.PoleMass*cost*cost/totalMass)
	xacc := temp - pml*thetaacc*cost/totalMass

	return xacc, thetaacc
}

// Derive implements dynamo.System. The first control component is the
// action; an empty control means no action.
func (c *CartPole) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	xDot := x[1]
	theta := x[2]
	thetaDot := x[3]

	xacc, thetaacc := c.accelerations(xDot, theta, thetaDot, u.Scalar())

	return dynamo.State{xDot, xacc, thetaDot, thetaacc}
}

// Advance performs one explicit Euler step of length Tau and wraps the
// pole angle. It does not modify x.
func (c *CartPole) Advance(x dynamo.State, action float64) dynamo.State {
	pos, xDot, theta, thetaDot := x[0], x[1], x[2], x[3]

	xacc, thetaacc := c.accelerations(xDot, theta, thetaDot, action)

	next := dynamo.State{
		pos + c.Tau*xDot,
		xDot + c.Tau*xacc,
		theta + c.Tau*thetaDot,
		thetaDot + c.Tau*thetaacc,
	}
	next[2] = WrapAngle(theta, next[2])
	return next
}

// WrapAngle corrects a single crossing of ±π between the angle before (pre)
// and after (post) a step. Larger jumps are not folded further.
func WrapAngle(pre, post float64) float64 {
	if pre < math.Pi && post >= math.Pi {
		return post - 2*math.Pi
	}
	if pre > -math.Pi && post <= -math.Pi {
		return post + 2*math.Pi
	}
	return post
}
