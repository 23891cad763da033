package control

import (
	"math/rand/v2"

	"github.com/san-kum/cartpole/internal/dynamo"
	"github.com/san-kum/cartpole/internal/space"
)

// Random samples actions uniformly from an action space.
type Random struct {
	box *space.Box
	src rand.Source
}

func NewRandom(box *space.Box, src rand.Source) *Random {
	return &Random{box: box, src: src}
}

func (r *Random) Compute(x dynamo.State, t float64) dynamo.Control {
	return dynamo.Control(r.box.Sample(r.src))
}
