package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CategoryStatus classifies spend against a category budget.
type CategoryStatus string

const (
	StatusNormal  CategoryStatus = "normal"
	StatusWarning CategoryStatus = "warning"
	StatusDanger  CategoryStatus = "danger"
)

const (
	warningPercent = 80
	dangerPercent  = 100
)

// CategoryProgress is one row of the budget versus spend breakdown.
type CategoryProgress struct {
	BudgetID  string         `json:"budgetId"`
	Category  string         `json:"category"`
	Budget    Money          `json:"budget"`
	Spent     Money          `json:"spent"`
	Remaining Money          `json:"remaining"`
	Percent   float64        `json:"percent"`
	Status    CategoryStatus `json:"status"`
}

// CategoryAmount is one slice of the spending distribution.
type CategoryAmount struct {
	Category string  `json:"category"`
	Amount   Money   `json:"amount"`
	Share    float64 `json:"share"`
}

// Summary is the derived view of one user's month.
type Summary struct {
	Income            Money              `json:"income"`
	TotalExpenses     Money              `json:"totalExpenses"`
	RemainingAmount   Money              `json:"remainingAmount"`
	SavingsPercentage float64            `json:"savingsPercentage"`
	SavingsDefined    bool               `json:"savingsDefined"`
	Categories        []CategoryProgress `json:"categories"`
	Distribution      []CategoryAmount   `json:"distribution"`
	Unbudgeted        []CategoryAmount   `json:"unbudgeted"`
}

// TotalExpenses sums all amounts; the empty set yields zero.
func TotalExpenses(expenses []Expense) Money {
	var total Money
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// RemainingAmount is income minus total. It is not clamped.
func RemainingAmount(income, total Money) Money {
	return income.Sub(total)
}

// SavingsPercentage returns remaining/income*100 rounded to two decimals.
// With zero income the percentage is undefined and reported as (0, false).
func SavingsPercentage(income, total Money) (float64, bool) {
	if income.Cents == 0 {
		return 0, false
	}
	return percentOf(RemainingAmount(income, total).Cents, income.Cents), true
}

// CategoryTotal sums expenses whose label equals category exactly.
func CategoryTotal(expenses []Expense, category string) Money {
	var total Money
	for _, e := range expenses {
		if e.Category == category {
			total = total.Add(e.Amount)
		}
	}
	return total
}

// CategoryTotals groups spend by exact label.
func CategoryTotals(expenses []Expense) map[string]Money {
	totals := make(map[string]Money)
	for _, e := range expenses {
		totals[e.Category] = totals[e.Category].Add(e.Amount)
	}
	return totals
}

// CategoryStatusFor compares exact decimals so that 80% and 100% hold at
// the boundary and summed amounts cannot overflow.
func CategoryStatusFor(spent, budget Money) CategoryStatus {
	if budget.Cents <= 0 {
		return StatusNormal
	}
	scaled := decimal.NewFromInt(spent.Cents).Mul(hundred)
	limit := func(percent int64) decimal.Decimal {
		return decimal.NewFromInt(budget.Cents).Mul(decimal.NewFromInt(percent))
	}
	switch {
	case scaled.GreaterThanOrEqual(limit(dangerPercent)):
		return StatusDanger
	case scaled.GreaterThanOrEqual(limit(warningPercent)):
		return StatusWarning
	default:
		return StatusNormal
	}
}

// CurrentIncome picks the most recently updated record; none yields zero.
func CurrentIncome(incomes []Income) Money {
	current, _ := CurrentIncomeRecord(incomes)
	return current.Amount
}

// CurrentIncomeRecord returns the income that counts for the month.
func CurrentIncomeRecord(incomes []Income) (Income, bool) {
	var (
		current Income
		found   bool
	)
	for _, in := range incomes {
		if !found || newerIncome(in, current) {
			current, found = in, true
		}
	}
	return current, found
}

func newerIncome(a, b Income) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// Summarize reduces one user's month into totals and per-category figures.
func Summarize(expenses []Expense, budgets []CategoryBudget, income Money) Summary {
	total := TotalExpenses(expenses)
	savings, defined := SavingsPercentage(income, total)
	totals := CategoryTotals(expenses)

	s := Summary{
		Income:            income,
		TotalExpenses:     total,
		RemainingAmount:   RemainingAmount(income, total),
		SavingsPercentage: savings,
		SavingsDefined:    defined,
		Categories:        make([]CategoryProgress, 0, len(budgets)),
		Distribution:      make([]CategoryAmount, 0, len(totals)),
		Unbudgeted:        []CategoryAmount{},
	}

	budgeted := make(map[string]bool, len(budgets))
	for _, b := range budgets {
		budgeted[b.Category] = true
		spent := totals[b.Category]
		row := CategoryProgress{
			BudgetID:  b.ID,
			Category:  b.Category,
			Budget:    b.Budget,
			Spent:     spent,
			Remaining: b.Budget.Sub(spent),
			Status:    CategoryStatusFor(spent, b.Budget),
		}
		if b.Budget.Cents > 0 {
			row.Percent = percentOf(spent.Cents, b.Budget.Cents)
		}
		s.Categories = append(s.Categories, row)
	}

	for label, amount := range totals {
		if amount.IsZero() {
			continue
		}
		slice := CategoryAmount{Category: label, Amount: amount}
		if total.Cents > 0 {
			slice.Share = percentOf(amount.Cents, total.Cents)
		}
		s.Distribution = append(s.Distribution, slice)
		if !budgeted[label] {
			s.Unbudgeted = append(s.Unbudgeted, slice)
		}
	}
	sortAmounts(s.Distribution)
	sortAmounts(s.Unbudgeted)
	return s
}

func sortAmounts(items []CategoryAmount) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Amount.Cents != items[j].Amount.Cents {
			return items[i].Amount.Cents > items[j].Amount.Cents
		}
		return items[i].Category < items[j].Category
	})
}
