package viz

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/cartpole/internal/control"
	"github.com/san-kum/cartpole/internal/dynamo"
	"github.com/san-kum/cartpole/internal/env"
	"github.com/san-kum/cartpole/internal/physics"
)

func newEnv(t *testing.T, init dynamo.State) *env.Env {
	t.Helper()
	e, err := env.New(physics.NewCartPole(), env.WithInitialState(init))
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func key(s string) tea.KeyMsg {
	switch s {
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestTickSteps(t *testing.T) {
	m := NewModel(newEnv(t, dynamo.State{0, 0, 0, 0}), control.NewZero(), 40)
	if m.perTick != 5 {
		t.Fatalf("expected 5 steps per tick at 40 fps, got %d", m.perTick)
	}

	m = update(m, TickMsg{})
	if m.steps != 5 || m.ret != 5 {
		t.Errorf("expected 5 steps and return 5, got %d and %f", m.steps, m.ret)
	}
	if len(m.thetaHist) != 5 {
		t.Errorf("expected 5 history samples, got %d", len(m.thetaHist))
	}
}

func TestStopsAtDone(t *testing.T) {
	m := NewModel(newEnv(t, dynamo.State{-5, 0, 0.3 * 3.141592653589793, 0}), control.NewZero(), 30)
	m = update(m, TickMsg{})
	if !m.done || m.steps != 1 {
		t.Errorf("expected done after one step, got done=%v steps=%d", m.done, m.steps)
	}
	m = update(m, TickMsg{})
	if m.steps != 1 {
		t.Errorf("expected no steps after done, got %d", m.steps)
	}
	if !strings.Contains(m.View(), "DONE") {
		t.Error("view should report done")
	}

	m = update(m, key("r"))
	if m.done || m.steps != 0 {
		t.Error("reset should clear the episode")
	}
}

func TestStepPastDone(t *testing.T) {
	m := NewModel(newEnv(t, dynamo.State{-5, 0, 0.3 * 3.141592653589793, 0}), control.NewZero(), 30)
	m = update(m, TickMsg{})
	if !m.done {
		t.Fatal("expected done after the first tick")
	}

	m = update(m, key("n"))
	if m.steps != 2 {
		t.Fatalf("n should step past termination, got %d steps", m.steps)
	}
	if m.info.Advisory != env.AdvisoryStepAfterDone {
		t.Errorf("expected advisory, got %q", m.info.Advisory)
	}
	if !strings.Contains(m.View(), "step called") {
		t.Error("view should show the advisory")
	}
	if m.ret != 1 {
		t.Errorf("steps past done should earn nothing, got return %f", m.ret)
	}

	m = update(m, key("n"))
	if m.info.Advisory != "" {
		t.Errorf("advisory should be reported once, got %q", m.info.Advisory)
	}
}

func TestManualPush(t *testing.T) {
	m := NewModel(newEnv(t, dynamo.State{0, 0, 0, 0}), nil, 30)
	if !m.useManual {
		t.Fatal("nil policy should start in manual mode")
	}

	m = update(m, key("right"))
	m = update(m, TickMsg{})
	if m.action >= 0 {
		t.Errorf("pushing right should give a negative action, got %f", m.action)
	}
	if m.state[1] <= 0 {
		t.Errorf("cart should accelerate right, x_dot = %f", m.state[1])
	}

	m = update(m, key("0"))
	if m.manual.Action() != 0 {
		t.Error("0 should release the push")
	}
}

func TestKeys(t *testing.T) {
	m := NewModel(newEnv(t, dynamo.State{0, 0, 0, 0}), control.NewZero(), 30)

	m = update(m, key(" "))
	if m.running {
		t.Error("space should pause")
	}
	m = update(m, TickMsg{})
	if m.steps != 0 {
		t.Error("paused model should not step")
	}

	m = update(m, key("m"))
	if !m.useManual {
		t.Error("m should switch to manual")
	}

	if _, cmd := m.Update(key("q")); cmd == nil {
		t.Error("q should quit")
	}
}

func TestProgressBar(t *testing.T) {
	if got := ProgressBar(0.5, 4); got != "[==--]" {
		t.Errorf("unexpected bar %q", got)
	}
	if got := ProgressBar(2, 2); got != "[==]" {
		t.Errorf("unexpected clamped bar %q", got)
	}
}
