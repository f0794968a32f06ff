package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/splitsync/internal/reconcile"
)

type confirmModel struct {
	pending  int
	accepted bool
	aborted  bool
	done     bool
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch strings.ToLower(key.String()) {
	case "y":
		m.accepted, m.done = true, true
		return m, tea.Quit
	case "n", "esc", "enter":
		m.done = true
		return m, tea.Quit
	case "ctrl+c":
		m.aborted, m.done = true, true
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.done {
		return ""
	}
	return focusStyle.Render(fmt.Sprintf("Create %d mirrors? ", m.pending)) + dimStyle.Render("[y/N]") + "\n"
}

// Confirm asks the operator to accept the plan. Anything but y declines.
func (p *Prompter) Confirm(ctx context.Context, plans []reconcile.Plan) (bool, error) {
	pending := 0
	for _, plan := range plans {
		pending += len(plan.Mirrors)
	}
	final, err := p.run(ctx, confirmModel{pending: pending})
	if err != nil {
		return false, err
	}
	m := final.(confirmModel)
	if m.aborted {
		return false, ErrAborted
	}
	return m.accepted, nil
}

// AutoConfirm accepts every plan, for --yes.
type AutoConfirm struct{}

func (AutoConfirm) Confirm(context.Context, []reconcile.Plan) (bool, error) { return true, nil }
