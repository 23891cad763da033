package render

import "math"

const (
	ScreenWidth  = 1200
	ScreenHeight = 400

	CartY       = 100.0 // top of cart
	PoleWidth   = 10.0
	CartWidth   = 50.0
	CartHeight  = 30.0
	AxleOffset  = CartHeight / 4.0
	worldFactor = 3.0
)

// Frame is the screen-space description of one state. Coordinates use a
// y-up origin at the bottom-left corner of the screen.
type Frame struct {
	CartX    float64
	CartY    float64
	Rotation float64 // pole rotation, -theta
	PoleLen  float64
	Scale    float64
	Caption  string
}

// Transform maps world coordinates to screen coordinates.
type Transform struct {
	Width, Height int
	Scale         float64
}

// NewTransform sizes the world so that the track spans 2*xThreshold and
// leaves room for the off-center reset position.
func NewTransform(xThreshold float64) Transform {
	worldWidth := xThreshold * 2
	return Transform{
		Width:  ScreenWidth,
		Height: ScreenHeight,
		Scale:  ScreenWidth / worldWidth / worldFactor,
	}
}

// Frame returns the screen layout for cart position x and pole angle theta.
func (t Transform) Frame(x, theta float64) Frame {
	return Frame{
		CartX:    x*t.Scale + float64(t.Width)/2.0,
		CartY:    CartY,
		Rotation: -theta,
		PoleLen:  t.Scale * 1.0,
		Scale:    t.Scale,
	}
}

// PoleTip returns the y-up screen position of the free end of the pole.
func (f Frame) PoleTip() (float64, float64) {
	ax, ay := f.Axle()
	return ax - f.PoleLen*math.Sin(f.Rotation), ay + f.PoleLen*math.Cos(f.Rotation)
}

// Axle returns the y-up screen position of the pole pivot.
func (f Frame) Axle() (float64, float64) {
	return f.CartX, f.CartY + AxleOffset
}
