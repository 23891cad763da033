// Package linmodel loads the linear state-transition model F_t = [G | H]
// that accompanies the cart-pole environment.
//
// The model is validated and kept for inspection only; the environment
// dynamics never read it.
package linmodel

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/cartpole/internal/dynamo"
)

const stateDim = 4

var (
	errEmpty = errors.New("no numeric data")
	errShape = errors.New("unexpected shape")
)

// Model is the pair (G, H) and their concatenation F_t.
type Model struct {
	g  *mat.Dense
	h  *mat.VecDense
	ft *mat.Dense
}

// Load reads G and H from numpy loadtxt style text files. Every failure is
// reported as a *dynamo.ConfigLoadError naming the offending file.
func Load(gPath, hPath string) (*Model, error) {
	g, err := readFile(gPath)
	if err != nil {
		return nil, err
	}
	hRaw, err := readFile(hPath)
	if err != nil {
		return nil, err
	}

	r, c := hRaw.Dims()
	if r*c != stateDim {
		return nil, &dynamo.ConfigLoadError{
			Path: hPath,
			Err:  fmt.Errorf("%w: H has %d values, want %d", errShape, r*c, stateDim),
		}
	}
	h := mat.NewVecDense(stateDim, mat.Col(nil, 0, reshapeColumn(hRaw)))

	m, err := New(g, h)
	if err != nil {
		return nil, &dynamo.ConfigLoadError{Path: gPath, Err: err}
	}
	return m, nil
}

// New builds a model from in-memory matrices. G must be 4x4 and H of
// length 4 so that F_t maps [state; action] to a state.
func New(g *mat.Dense, h *mat.VecDense) (*Model, error) {
	r, c := g.Dims()
	if r != stateDim || c != stateDim {
		return nil, fmt.Errorf("%w: G is %dx%d, want %dx%d", errShape, r, c, stateDim, stateDim)
	}
	if h.Len() != stateDim {
		return nil, fmt.Errorf("%w: H has length %d, want %d", errShape, h.Len(), stateDim)
	}

	ft := mat.NewDense(stateDim, stateDim+1, nil)
	ft.Augment(g, h)

	return &Model{
		g:  mat.DenseCopyOf(g),
		h:  mat.VecDenseCopyOf(h),
		ft: ft,
	}, nil
}

func (m *Model) G() mat.Matrix          { return m.g }
func (m *Model) H() mat.Vector          { return m.h }
func (m *Model) Transition() mat.Matrix { return m.ft }

// Predict evaluates F_t·[x; action]. It is a diagnostic and has no effect
// on the environment.
func (m *Model) Predict(x dynamo.State, action float64) (dynamo.State, error) {
	if len(x) != stateDim {
		return nil, fmt.Errorf("%w: state has %d components", dynamo.ErrDimensionMismatch, len(x))
	}
	in := make([]float64, 0, stateDim+1)
	in = append(in, x...)
	in = append(in, action)

	var out mat.VecDense
	out.MulVec(m.ft, mat.NewVecDense(stateDim+1, in))
	return dynamo.State(mat.Col(nil, 0, &out)), nil
}

// Format renders F_t for display.
func (m *Model) Format() string {
	return fmt.Sprintf("%v", mat.Formatted(m.ft, mat.Prefix(""), mat.Squeeze()))
}

func readFile(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &dynamo.ConfigLoadError{Path: path, Err: err}
	}
	defer f.Close()

	d, err := Parse(f)
	if err != nil {
		return nil, &dynamo.ConfigLoadError{Path: path, Err: err}
	}
	return d, nil
}

// Parse reads whitespace separated rows of floats. Text after '#' is a
// comment and blank lines are skipped. All rows must have the same width.
func Parse(r io.Reader) (*mat.Dense, error) {
	var (
		data []float64
		cols int
		rows int
	)

	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		if rows > 0 && len(fields) != cols {
			return nil, fmt.Errorf("line %d: %w: got %d columns, want %d", line, errShape, len(fields), cols)
		}
		cols = len(fields)
		for _, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			data = append(data, v)
		}
		rows++
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, errEmpty
	}
	return mat.NewDense(rows, cols, data), nil
}

// reshapeColumn turns a 1xN or Nx1 matrix into an Nx1 column.
func reshapeColumn(d *mat.Dense) *mat.Dense {
	r, c := d.Dims()
	if c == 1 {
		return d
	}
	return mat.NewDense(r*c, 1, d.RawMatrix().Data)
}
