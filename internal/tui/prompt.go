package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/splitsync/internal/reconcile"
)

// ErrAborted is returned when the operator quits a prompt with ctrl+c.
var ErrAborted = errors.New("prompt aborted")

const (
	maxSuggestions = 5
	pageSize       = 15
)

// Suggest returns up to n candidates ordered by edit distance to query,
// ties kept in candidate order. It only hints; matching stays first-match.
func Suggest(query string, candidates []reconcile.Named, n int) []reconcile.Named {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || n <= 0 {
		return nil
	}
	type scored struct {
		named reconcile.Named
		dist  int
	}
	all := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		all = append(all, scored{named: c, dist: levenshtein.ComputeDistance(q, strings.ToLower(c.Name))})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].dist < all[j].dist })
	if len(all) > n {
		all = all[:n]
	}
	out := make([]reconcile.Named, 0, len(all))
	for _, s := range all {
		out = append(out, s.named)
	}
	return out
}

type candidateModel struct {
	question    reconcile.Question
	input       textinput.Model
	suggestions []reconcile.Named
	cursor      int
	page        int
	answer      reconcile.Answer
	aborted     bool
	done        bool
}

func newCandidateModel(q reconcile.Question) candidateModel {
	inp := textinput.New()
	inp.Placeholder = "search " + string(q.Kind) + "s, or s to skip"
	inp.Prompt = "> "
	inp.Focus()
	return candidateModel{question: q, input: inp, suggestions: Suggest(q.Name, q.Candidates, maxSuggestions), cursor: -1}
}

func (m candidateModel) Init() tea.Cmd { return textinput.Blink }

func (m candidateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "ctrl+c":
			m.aborted, m.done = true, true
			return m, tea.Quit
		case "esc":
			m.answer, m.done = reconcile.Answer{Skip: true}, true
			return m, tea.Quit
		case "enter":
			m.answer, m.done = reconcile.Answer{Query: m.input.Value()}, true
			return m, tea.Quit
		case "tab", "down":
			if len(m.suggestions) > 0 {
				m.cursor = (m.cursor + 1) % len(m.suggestions)
				m.input.SetValue(m.suggestions[m.cursor].Name)
				m.input.CursorEnd()
			}
			return m, nil
		case "shift+tab", "up":
			if len(m.suggestions) > 0 {
				m.cursor = (m.cursor - 1 + len(m.suggestions)) % len(m.suggestions)
				m.input.SetValue(m.suggestions[m.cursor].Name)
				m.input.CursorEnd()
			}
			return m, nil
		case "pgdown":
			if m.page < m.pages()-1 {
				m.page++
			}
			return m, nil
		case "pgup":
			if m.page > 0 {
				m.page--
			}
			return m, nil
		}
	}
	var cmd tea.Cmd
	before := m.input.Value()
	m.input, cmd = m.input.Update(msg)
	if v := m.input.Value(); v != before {
		query := v
		if strings.TrimSpace(query) == "" {
			query = m.question.Name
		}
		m.suggestions = Suggest(query, m.question.Candidates, maxSuggestions)
		m.cursor = -1
	}
	return m, cmd
}

func (m candidateModel) pages() int {
	n := len(m.question.Candidates)
	if n == 0 {
		return 1
	}
	return (n + pageSize - 1) / pageSize
}

// View lists every candidate in list order, a page at a time. The closest
// ones by edit distance are marked and reachable with tab.
func (m candidateModel) View() string {
	if m.done {
		return ""
	}
	q := m.question
	var b strings.Builder
	header := fmt.Sprintf("No %s matches %q", q.Kind, q.Name)
	if q.Attempt > 1 {
		header += fmt.Sprintf(" (attempt %d)", q.Attempt)
	}
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n")

	closest := make(map[string]bool, len(m.suggestions))
	for _, s := range m.suggestions {
		closest[s.ID] = true
	}
	var selected string
	if m.cursor >= 0 && m.cursor < len(m.suggestions) {
		selected = m.suggestions[m.cursor].ID
	}

	if len(q.Candidates) == 0 {
		b.WriteString(dimStyle.Render("no " + string(q.Kind) + "s in the target budget"))
		b.WriteString("\n")
	} else {
		label := fmt.Sprintf("%ss (%d)", q.Kind, len(q.Candidates))
		if m.pages() > 1 {
			label += fmt.Sprintf(" page %d/%d", m.page+1, m.pages())
		}
		b.WriteString(dimStyle.Render(label))
		b.WriteString("\n")
		start := m.page * pageSize
		end := min(start+pageSize, len(q.Candidates))
		for i, c := range q.Candidates[start:end] {
			prefix, style := "  ", textStyle
			switch {
			case c.ID == selected:
				prefix, style = focusStyle.Render("> "), focusStyle
			case closest[c.ID]:
				prefix, style = infoStyle.Render("* "), infoStyle
			}
			fmt.Fprintf(&b, "%s%s %s\n", prefix, metaStyle.Render(fmt.Sprintf("%3d", start+i+1)), style.Render(c.Name))
		}
	}

	b.WriteString(m.input.View())
	b.WriteString("\n")
	help := "enter search  tab next closest (*)  esc skip"
	if m.pages() > 1 {
		help += "  pgup/pgdn page"
	}
	b.WriteString(dimStyle.Render(help))
	b.WriteString("\n")
	return b.String()
}

// Prompter asks the operator on a terminal for another search term when a
// payee or category has no match.
type Prompter struct {
	In  io.Reader
	Out io.Writer
}

func (p *Prompter) Ask(ctx context.Context, q reconcile.Question) (reconcile.Answer, error) {
	final, err := p.run(ctx, newCandidateModel(q))
	if err != nil {
		return reconcile.Answer{}, err
	}
	m := final.(candidateModel)
	if m.aborted {
		return reconcile.Answer{}, ErrAborted
	}
	return m.answer, nil
}

func (p *Prompter) run(ctx context.Context, model tea.Model) (tea.Model, error) {
	return tea.NewProgram(model, tea.WithContext(ctx), tea.WithInput(p.In), tea.WithOutput(p.Out)).Run()
}
