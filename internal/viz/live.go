package viz

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/cartpole/internal/control"
	"github.com/san-kum/cartpole/internal/dynamo"
	"github.com/san-kum/cartpole/internal/env"
	"github.com/san-kum/cartpole/internal/render"
)

const (
	width           = 80
	height          = 20
	historyCapacity = 300
	pushFraction    = 0.25
)

type TickMsg time.Time

// Model is the Bubble Tea model of the live view.
type Model struct {
	env       *env.Env
	policy    dynamo.Controller
	manual    *control.Manual
	useManual bool

	transform render.Transform
	canvas    *render.Canvas
	fps       int
	perTick   int

	state     dynamo.State
	action    float64
	ret       float64
	steps     int
	done      bool
	info      env.Info
	thetaHist []float64
	err       error

	running  bool
	showHelp bool
}

// NewModel builds a live view for e. A nil policy starts in manual mode.
// The environment is reset immediately.
func NewModel(e *env.Env, policy dynamo.Controller, fps int) Model {
	if fps <= 0 {
		fps = 30
	}
	xThreshold, _ := e.Thresholds()
	perTick := int(math.Round(1 / (float64(fps) * e.Dt())))
	if perTick < 1 {
		perTick = 1
	}

	m := Model{
		env:       e,
		policy:    policy,
		manual:    control.NewManual(e.Dynamics().MaxForce),
		useManual: policy == nil,
		transform: render.NewTransform(xThreshold),
		canvas:    render.NewCanvas(width, height),
		fps:       fps,
		perTick:   perTick,
		running:   true,
		thetaHist: make([]float64, 0, historyCapacity),
	}
	m.reset()
	return m
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.fps), func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		push := m.manual.Limit * pushFraction
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			m.reset()
		case "n":
			// Single step, allowed past termination.
			if m.err == nil {
				m.step()
			}
		case "left", "h":
			// The environment applies -action as force.
			m.manual.Nudge(push)
		case "right", "l":
			m.manual.Nudge(-push)
		case "0":
			m.manual.Set(0)
		case "m":
			if m.policy != nil {
				m.useManual = !m.useManual
			}
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running && !m.done {
			for i := 0; i < m.perTick && !m.done; i++ {
				m.step()
			}
		}
		return m, m.tick()
	}
	return m, nil
}

func (m *Model) controller() dynamo.Controller {
	if m.useManual || m.policy == nil {
		return m.manual
	}
	return m.policy
}

func (m *Model) step() {
	m.action = m.controller().Compute(m.state, m.env.Elapsed()).Scalar()
	res, err := m.env.Step(m.action)
	if err != nil {
		m.err = err
		m.running = false
		return
	}
	m.state = res.State
	m.ret += res.Reward
	m.steps++
	m.done = res.Done
	m.info = res.Info

	m.thetaHist = append(m.thetaHist, res.State[2]*180/math.Pi)
	if len(m.thetaHist) > historyCapacity {
		m.thetaHist = m.thetaHist[1:]
	}
}

func (m *Model) reset() {
	m.state = m.env.Reset()
	if r, ok := m.policy.(dynamo.Resetter); ok {
		r.Reset()
	}
	m.manual.Set(0)
	m.action = 0
	m.ret = 0
	m.steps = 0
	m.done = false
	m.info = env.Info{StepsBeyondDone: -1}
	m.thetaHist = m.thetaHist[:0]
	m.err = nil
	m.running = true
}

func (m *Model) draw() {
	m.canvas.Clear()
	if len(m.state) < 4 {
		return
	}
	f := m.transform.Frame(m.state[0], m.state[2])
	m.canvas.DrawFrame(f, render.ScreenWidth, render.ScreenHeight)
}

func (m Model) status() string {
	switch {
	case m.err != nil:
		return statusDone.Render("ERROR: " + m.err.Error())
	case m.done:
		return statusDone.Render(fmt.Sprintf("DONE after %d steps (R to reset)", m.steps))
	case !m.running:
		return statusPaused.Render("PAUSED")
	}
	return statusRunning.Render("RUNNING")
}

func (m Model) View() string {
	m.draw()
	canvasView := canvasStyle.Render(m.canvas.String())

	mode := "policy"
	if m.useManual || m.policy == nil {
		mode = "manual"
	}

	var s strings.Builder
	s.WriteString(headerStyle.Render("CART-POLE") + "\n")
	s.WriteString(m.status() + "\n\n")

	if len(m.thetaHist) > 1 {
		chart := asciigraph.Plot(m.thetaHist, asciigraph.Height(5), asciigraph.Width(30), asciigraph.Caption("theta (deg)"))
		s.WriteString(graphStyle.Render(chart) + "\n\n")
	}

	row := func(label, value string) {
		s.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}
	row("Time", fmt.Sprintf("%.2fs", m.env.Elapsed()))
	row("x", fmt.Sprintf("%+.3f", m.state[0]))
	row("x_dot", fmt.Sprintf("%+.3f", m.state[1]))
	row("theta", fmt.Sprintf("%+.2f°", m.state[2]*180/math.Pi))
	row("theta_dot", fmt.Sprintf("%+.3f", m.state[3]))
	row("Action", fmt.Sprintf("%+.2f %s", m.action, ProgressBar((m.action/m.manual.Limit+1)/2, 10)))
	row("Return", fmt.Sprintf("%.0f", m.ret))
	row("Control", mode)
	if m.info.Advisory != "" {
		s.WriteString("\n" + statusPaused.Render(m.info.Advisory) + "\n")
	}

	s.WriteString(helpStyle.Render("SP:Pause R:Reset N:Step Q:Quit\n←→:Push 0:Release M:Mode ?:Help"))
	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsStyle.Render(s.String()))

	if m.showHelp {
		return `
╔══════════════════════════════════════╗
║           KEYBOARD SHORTCUTS         ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume             ║
║  R        - Reset episode            ║
║  N        - Single step              ║
║  Left/H   - Push cart left           ║
║  Right/L  - Push cart right          ║
║  0        - Release push             ║
║  M        - Toggle manual/policy     ║
║  Q        - Quit                     ║
║  ?        - Toggle this help         ║
╚══════════════════════════════════════╝
` + "\n\n" + mainView
	}
	return mainView
}
