// Package render draws cart-pole frames either to a terminal (human mode)
// or to an in-memory RGBA image (rgb_array mode).
package render

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/fogleman/gg"
)

type Mode string

const (
	Human    Mode = "human"
	RGBArray Mode = "rgb_array"
)

var ErrClosed = errors.New("render: viewer closed")

const (
	clearScreen = "\033[2J\033[H"
	hideCursor  = "\033[?25l"
	showCursor  = "\033[?25h"

	termWidth  = 80
	termHeight = 14
)

var captionStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#00ccff"))

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case Human, RGBArray:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown render mode: %s (want %s or %s)", s, Human, RGBArray)
	}
}

// Viewer owns the drawing surfaces for one environment. Surfaces are
// allocated on first use and released by Close.
type Viewer struct {
	t      Transform
	out    io.Writer
	dc     *gg.Context
	canvas *Canvas
	shown  bool
	closed bool
}

func NewViewer(t Transform, out io.Writer) *Viewer {
	return &Viewer{t: t, out: out}
}

// Render draws f. In RGBArray mode the returned image is a copy owned by
// the caller; in Human mode the frame is written to the terminal and the
// image is nil.
func (v *Viewer) Render(f Frame, mode Mode) (image.Image, error) {
	if v.closed {
		return nil, ErrClosed
	}
	switch mode {
	case RGBArray:
		return v.raster(f), nil
	case Human:
		return nil, v.terminal(f)
	default:
		return nil, fmt.Errorf("unknown render mode: %s", mode)
	}
}

func (v *Viewer) raster(f Frame) image.Image {
	if v.dc == nil {
		v.dc = gg.NewContext(v.t.Width, v.t.Height)
	}
	dc := v.dc
	h := float64(v.t.Height)

	dc.SetRGB(1, 1, 1)
	dc.Clear()

	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(1)
	dc.DrawLine(0, h-CartY, float64(v.t.Width), h-CartY)
	dc.Stroke()

	dc.DrawRectangle(f.CartX-CartWidth/2, h-f.CartY-CartHeight/2, CartWidth, CartHeight)
	dc.Fill()

	ax, ay := f.Axle()
	dc.Push()
	dc.Translate(ax, h-ay)
	dc.Rotate(-f.Rotation)
	dc.SetRGB(0.8, 0.6, 0.4)
	dc.DrawRectangle(-PoleWidth/2, -(f.PoleLen - PoleWidth/2), PoleWidth, f.PoleLen)
	dc.Fill()
	dc.Pop()

	dc.SetRGB(0.5, 0.5, 0.8)
	dc.DrawCircle(ax, h-ay, PoleWidth/2)
	dc.Fill()

	src := dc.Image()
	img := image.NewRGBA(src.Bounds())
	draw.Draw(img, img.Bounds(), src, src.Bounds().Min, draw.Src)
	return img
}

func (v *Viewer) terminal(f Frame) error {
	if v.out == nil {
		return errors.New("render: no output for human mode")
	}
	if v.canvas == nil {
		v.canvas = NewCanvas(termWidth, termHeight)
	}
	v.canvas.Clear()
	v.canvas.DrawFrame(f, v.t.Width, v.t.Height)

	prefix := clearScreen
	if !v.shown {
		prefix = hideCursor + clearScreen
		v.shown = true
	}
	text := prefix + v.canvas.String()
	if f.Caption != "" {
		text += captionStyle.Render(f.Caption) + "\n"
	}
	_, err := io.WriteString(v.out, text)
	return err
}

// Close releases the drawing surfaces. It is safe to call more than once.
func (v *Viewer) Close() error {
	if v.closed {
		return nil
	}
	v.closed = true
	v.dc = nil
	v.canvas = nil
	if v.shown && v.out != nil {
		_, err := io.WriteString(v.out, showCursor)
		return err
	}
	return nil
}
