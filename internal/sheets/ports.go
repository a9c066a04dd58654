// Package sheets renders month snapshots for spreadsheet export.
package sheets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"budget/internal/core"
)

// SnapshotWriter replaces the exported view of one user's month.
type SnapshotWriter interface {
	WriteMonth(ctx context.Context, s Snapshot) (ref string, err error)
}

// Snapshot is everything exported for one user and month.
type Snapshot struct {
	OwnerID     string
	OwnerName   string
	Month       core.Month
	Expenses    []core.Expense
	Summary     core.Summary
	GeneratedAt time.Time
}

// Title names the tab holding the snapshot, e.g. "2024-03 Ann (1a2b3c4d)".
// Tab titles are capped at 100 characters by the Sheets API.
func (s Snapshot) Title() string {
	short := s.OwnerID
	if len(short) > 8 {
		short = short[:8]
	}
	name := strings.TrimSpace(s.OwnerName)
	title := fmt.Sprintf("%s %s", s.Month, short)
	if name != "" {
		title = fmt.Sprintf("%s %s (%s)", s.Month, name, short)
	}
	if r := []rune(title); len(r) > 100 {
		title = string(r[:100])
	}
	return title
}

// Rows lays the snapshot out as a grid: totals block, expense list, then
// per-category progress. Amounts are plain decimals so the sheet parses
// them as numbers.
func (s Snapshot) Rows() [][]any {
	sum := s.Summary
	savings := ""
	if sum.SavingsDefined {
		savings = fmt.Sprintf("%.2f", sum.SavingsPercentage)
	}

	rows := [][]any{
		{"Month", s.Month.String()},
		{"Generated", s.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Income", sum.Income.String()},
		{"Total expenses", sum.TotalExpenses.String()},
		{"Remaining", sum.RemainingAmount.String()},
		{"Savings %", savings},
		{},
		{"Date", "Activity", "Category", "Amount"},
	}
	for _, e := range s.Expenses {
		rows = append(rows, []any{
			e.CreatedAt.UTC().Format(time.DateOnly),
			e.Activity,
			e.Category,
			e.Amount.String(),
		})
	}

	rows = append(rows, []any{}, []any{"Category", "Budget", "Spent", "Remaining", "Percent", "Status"})
	for _, c := range sum.Categories {
		rows = append(rows, []any{
			c.Category,
			c.Budget.String(),
			c.Spent.String(),
			c.Remaining.String(),
			fmt.Sprintf("%.2f", c.Percent),
			string(c.Status),
		})
	}
	for _, u := range sum.Unbudgeted {
		rows = append(rows, []any{u.Category, "", u.Amount.String(), "", "", ""})
	}
	return rows
}
