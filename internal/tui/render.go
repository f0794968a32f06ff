package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/jask/splitsync/internal/database/repository"
	"github.com/jask/splitsync/internal/ledger"
	"github.com/jask/splitsync/internal/reconcile"
	"github.com/jask/splitsync/internal/service"
)

// FormatAmount renders milliunits as a signed amount with two decimals.
func FormatAmount(m ledger.Milliunits) string {
	return decimal.New(int64(m), -3).StringFixed(2)
}

// PlanView writes the pending plan to Out.
type PlanView struct {
	Out io.Writer
}

func (v *PlanView) Present(_ context.Context, plans []reconcile.Plan) error {
	_, err := io.WriteString(v.Out, RenderPlan(plans)+"\n")
	return err
}

// RenderPlan lists every pending mirror of every direction.
func RenderPlan(plans []reconcile.Plan) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Pending mirrors"))
	b.WriteString("\n")
	total := 0
	for _, p := range plans {
		total += len(p.Mirrors)
		b.WriteString("\n")
		b.WriteString(headerStyle.Render(p.Direction.String()))
		b.WriteString(" ")
		b.WriteString(dimStyle.Render(fmt.Sprintf("(payer share %d%%)", int(p.PayerRatio))))
		b.WriteString("\n")
		if p.Empty() {
			b.WriteString(sectionStyle.Render(dimStyle.Render("nothing to mirror")))
			b.WriteString("\n")
		}
		for _, m := range p.Mirrors {
			b.WriteString(sectionStyle.Render(renderMirror(m)))
			b.WriteString("\n")
		}
		if n := len(p.AlreadyMirrored); n > 0 {
			b.WriteString(sectionStyle.Render(metaStyle.Render(fmt.Sprintf("%d already mirrored", n))))
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	if total == 0 {
		b.WriteString(okStyle.Render("Everything is in sync."))
	} else {
		b.WriteString(infoStyle.Render(fmt.Sprintf("%d mirrors to create", total)))
	}
	return b.String()
}

func renderMirror(m reconcile.Mirror) string {
	reimb := m.Payload.Subtransactions[0].Amount
	line := lipgloss.JoinHorizontal(lipgloss.Top,
		textStyle.Render(m.Source.Date.String()),
		"  ",
		amountStyle.Width(10).Align(lipgloss.Right).Render(FormatAmount(m.Source.Amount)),
		"  ",
		textStyle.Render(describe(m.Payee, m.Main.PayeeName)),
		dimStyle.Render(" / "),
		textStyle.Render(describe(m.Category, m.Main.CategoryName)),
		"  ",
		okStyle.Render("mirror "+FormatAmount(reimb)),
	)
	if memo := ledger.Deref(m.Source.Memo); memo != "" {
		line += dimStyle.Render("  " + memo)
	}
	return line
}

func describe(r reconcile.Resolution, source *string) string {
	name := ledger.Deref(source)
	switch {
	case r.Resolved() && strings.EqualFold(r.Matched, name):
		return r.Matched
	case r.Resolved():
		return name + " -> " + r.Matched
	case name == "":
		return dimStyle.Render("(none)")
	default:
		return warnStyle.Render(name + " (unresolved)")
	}
}

// RenderReport shows the write outcome of a run.
func RenderReport(r service.Report) string {
	var b strings.Builder
	for _, res := range r.Results {
		if res.OK() {
			b.WriteString(okStyle.Render(fmt.Sprintf("✓ %s: %d of %d created", res.Direction, len(res.Created), res.Planned)))
		} else {
			b.WriteString(errStyle.Render(fmt.Sprintf("✗ %s: failed", res.Direction)))
		}
		b.WriteString("\n")
	}
	for _, w := range r.Warnings() {
		b.WriteString(warnStyle.Render("! " + w))
		b.WriteString("\n")
	}
	b.WriteString(metaStyle.Render(r.Summary()))
	return b.String()
}

// RenderRuns lists stored runs, newest first.
func RenderRuns(runs []repository.Run) string {
	if len(runs) == 0 {
		return dimStyle.Render("no runs recorded")
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Sync history"))
	for _, run := range runs {
		b.WriteString("\n")
		status := runStatusStyle(run.Status).Width(10).Render(run.Status)
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			dimStyle.Render(run.StartedAt.Local().Format("2006-01-02 15:04")),
			"  ",
			status,
			"  ",
			metaStyle.Width(12).Render(run.Mode),
			textStyle.Render(run.Summary),
			"  ",
			dimStyle.Render(run.ID),
		))
	}
	return b.String()
}

// RenderEntries lists a run's audit entries.
func RenderEntries(entries []repository.Entry) string {
	if len(entries) == 0 {
		return dimStyle.Render("no entries")
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s %s %s %s",
			dimStyle.Render(fmt.Sprintf("#%d", e.Seq)),
			headerStyle.Width(8).Render(e.Kind),
			textStyle.Render(e.Payload),
			dimStyle.Render(e.Hash[:min(12, len(e.Hash))]),
		))
	}
	return strings.Join(lines, "\n")
}

func runStatusStyle(status string) lipgloss.Style {
	switch status {
	case repository.RunCompleted:
		return okStyle
	case repository.RunFailed:
		return errStyle
	case repository.RunPartial, repository.RunRejected:
		return warnStyle
	default:
		return infoStyle
	}
}
