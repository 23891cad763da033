package export

import (
	"fmt"
	"strings"

	"github.com/san-kum/cartpole/internal/analysis"
	"github.com/san-kum/cartpole/internal/render"
)

const svgHeader = `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#ffffff"/>
`

// FrameSVG draws one cart-pole frame as an SVG document in screen
// coordinates. SVG y grows downwards, so screen y is flipped.
func FrameSVG(f render.Frame) string {
	w, h := render.ScreenWidth, render.ScreenHeight
	flip := func(y float64) float64 { return float64(h) - y }

	var sb strings.Builder
	fmt.Fprintf(&sb, svgHeader, w, h, w, h)

	fmt.Fprintf(&sb, `<line x1="0" y1="%.1f" x2="%d" y2="%.1f" stroke="#000000"/>
`, flip(render.CartY), w, flip(render.CartY))

	fmt.Fprintf(&sb, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="#000000"/>
`, f.CartX-render.CartWidth/2, flip(f.CartY+render.CartHeight/2), float64(render.CartWidth), float64(render.CartHeight))

	ax, ay := f.Axle()
	tx, ty := f.PoleTip()
	fmt.Fprintf(&sb, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#cc9966" stroke-width="%.0f" stroke-linecap="butt"/>
`, ax, flip(ay), tx, flip(ty), float64(render.PoleWidth))

	fmt.Fprintf(&sb, `<circle cx="%.1f" cy="%.1f" r="%.1f" fill="#8080cc"/>
`, ax, flip(ay), float64(render.PoleWidth)/2)

	sb.WriteString("</svg>")
	return sb.String()
}

// TrajectorySVG draws points as a polyline scaled to fill width×height
// with 10% padding.
func TrajectorySVG(points []analysis.Point, width, height int, strokeColor string) string {
	if len(points) < 2 {
		return ""
	}

	minX, maxX := points[0].X, points[0].X
	minY, maxY := points[0].Y, points[0].Y
	for _, p := range points[1:] {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	minY -= rangeY * 0.1
	rangeX *= 1.2
	rangeY *= 1.2

	var sb strings.Builder
	fmt.Fprintf(&sb, svgHeader, width, height, width, height)
	fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="M`, strokeColor)

	for i, p := range points {
		x := (p.X - minX) / rangeX * float64(width)
		y := float64(height) - (p.Y-minY)/rangeY*float64(height)
		if i == 0 {
			fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
		}
	}

	sb.WriteString(`"/>
</svg>`)
	return sb.String()
}
