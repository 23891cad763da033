// Package space describes bounded continuous action and observation spaces.
package space

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/stat/distuv"
)

// Box is an axis-aligned box in R^n. Bounds are declared for agents; the
// environment does not enforce them.
type Box struct {
	bounds []r1.Interval
}

func NewBox(low, high []float64) (*Box, error) {
	if len(low) != len(high) {
		return nil, fmt.Errorf("space: low has %d dims, high has %d", len(low), len(high))
	}
	bounds := make([]r1.Interval, len(low))
	for i := range low {
		if math.IsNaN(low[i]) || math.IsNaN(high[i]) || low[i] > high[i] {
			return nil, fmt.Errorf("space: invalid bound [%v, %v] at dim %d", low[i], high[i], i)
		}
		bounds[i] = r1.Interval{Min: low[i], Max: high[i]}
	}
	return &Box{bounds: bounds}, nil
}

// Symmetric returns the box [-high, high].
func Symmetric(high ...float64) *Box {
	low := make([]float64, len(high))
	for i, h := range high {
		low[i] = -h
	}
	b, err := NewBox(low, high)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Box) Shape() int {
	return len(b.bounds)
}

func (b *Box) Bounds() []r1.Interval {
	out := make([]r1.Interval, len(b.bounds))
	copy(out, b.bounds)
	return out
}

func (b *Box) Low() []float64 {
	out := make([]float64, len(b.bounds))
	for i, iv := range b.bounds {
		out[i] = iv.Min
	}
	return out
}

func (b *Box) High() []float64 {
	out := make([]float64, len(b.bounds))
	for i, iv := range b.bounds {
		out[i] = iv.Max
	}
	return out
}

func (b *Box) Contains(x []float64) bool {
	if len(x) != len(b.bounds) {
		return false
	}
	for i, iv := range b.bounds {
		if !(x[i] >= iv.Min && x[i] <= iv.Max) {
			return false
		}
	}
	return true
}

// Sample draws a point uniformly from the box.
func (b *Box) Sample(src rand.Source) []float64 {
	out := make([]float64, len(b.bounds))
	for i, iv := range b.bounds {
		if iv.Min == iv.Max {
			out[i] = iv.Min
			continue
		}
		out[i] = distuv.Uniform{Min: iv.Min, Max: iv.Max, Src: src}.Rand()
	}
	return out
}

func (b *Box) String() string {
	return fmt.Sprintf("Box(%v, %v)", b.Low(), b.High())
}
