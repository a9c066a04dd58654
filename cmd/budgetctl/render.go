package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"budget/internal/core"
	"budget/internal/session"

	"github.com/charmbracelet/lipgloss"
)

// printer renders to one writer. Colors are dropped when the writer is
// not a terminal.
type printer struct {
	w       io.Writer
	loc     *time.Location
	heading lipgloss.Style
	label   lipgloss.Style
	status  map[core.CategoryStatus]lipgloss.Style
}

func newPrinter(w io.Writer, loc *time.Location) *printer {
	r := lipgloss.NewRenderer(w)
	return &printer{
		w:       w,
		loc:     loc,
		heading: r.NewStyle().Foreground(lipgloss.Color("#87CEEB")).Bold(true),
		label:   r.NewStyle().Foreground(lipgloss.Color("#9CA3AF")),
		status: map[core.CategoryStatus]lipgloss.Style{
			core.StatusNormal:  r.NewStyle().Foreground(lipgloss.Color("#22C55E")),
			core.StatusWarning: r.NewStyle().Foreground(lipgloss.Color("#FFD54A")),
			core.StatusDanger:  r.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true),
		},
	}
}

func (p *printer) line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) title(m core.Month, u core.User) {
	p.line("%s", p.heading.Render(fmt.Sprintf("%s · %s", m, u.Name)))
}

func (p *printer) group(g session.Group) {
	p.line("")
	p.line("%s", p.heading.Render(string(g.Bucket)))
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	for _, e := range g.Expenses {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.In(p.loc).Format(time.DateOnly), e.Activity, e.Category, e.Amount, e.ID)
	}
	_ = tw.Flush()
}

func (p *printer) summary(s core.Summary) {
	savings := "n/a"
	if s.SavingsDefined {
		savings = fmt.Sprintf("%.2f%%", s.SavingsPercentage)
	}

	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	for _, row := range [][2]string{
		{"Income", s.Income.String()},
		{"Total expenses", s.TotalExpenses.String()},
		{"Remaining", s.RemainingAmount.String()},
		{"Savings", savings},
	} {
		fmt.Fprintf(tw, "%s\t%s\n", p.label.Render(row[0]), row[1])
	}
	_ = tw.Flush()

	if len(s.Categories) > 0 {
		p.line("")
		p.line("%s", p.heading.Render("Categories"))
		tw = tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
		for _, c := range s.Categories {
			fmt.Fprintf(tw, "  %s\t%s / %s\t%s\t%.1f%%\t%s\n",
				c.Category, c.Spent, c.Budget, bar(c.Percent), c.Percent, p.status[c.Status].Render(string(c.Status)))
		}
		_ = tw.Flush()
	}
	if len(s.Unbudgeted) > 0 {
		p.line("")
		p.line("%s", p.heading.Render("Unbudgeted"))
		tw = tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
		for _, c := range s.Unbudgeted {
			fmt.Fprintf(tw, "  %s\t%s\n", c.Category, c.Amount)
		}
		_ = tw.Flush()
	}
}

// bar draws a ten-cell progress bar, capped when over budget.
func bar(percent float64) string {
	filled := int(percent / 10)
	filled = max(0, min(filled, 10))
	return strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
}
