package control

import "github.com/san-kum/cartpole/internal/dynamo"

type Zero struct{}

func NewZero() *Zero {
	return &Zero{}
}

func (z *Zero) Compute(x dynamo.State, t float64) dynamo.Control {
	return dynamo.Control{0}
}
