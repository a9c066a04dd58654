// Package storage defines the record store ports and the SQL repository
// backing them.
package storage

import (
	"context"
	"errors"
	"sort"
	"time"

	"budget/internal/core"
)

// ErrDuplicate is returned when a unique key (user email) already exists.
var ErrDuplicate = errors.New("duplicate record")

// Record kinds, used in NotFound errors and change events.
const (
	KindExpense = "expense"
	KindBudget  = "categoryBudget"
	KindIncome  = "income"
	KindUser    = "user"
)

// DistinctMonths returns the months containing ts, oldest first.
func DistinctMonths(ts []time.Time) []core.Month {
	seen := make(map[core.Month]bool, len(ts))
	var out []core.Month
	for _, t := range ts {
		m := core.MonthOf(t)
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Start().Before(out[j].Start())
	})
	return out
}

// ExpenseStore persists expenses. Timestamps are always supplied by the caller.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	DeleteExpense(ctx context.Context, id string) error
	GetExpense(ctx context.Context, id string) (core.Expense, error)
	// ListExpenses returns the owner's expenses with start <= CreatedAt < end.
	ListExpenses(ctx context.Context, ownerID string, start, end time.Time) ([]core.Expense, error)
	// RelabelExpenses rewrites the label of every expense linked to categoryID
	// and returns the months holding the relabelled expenses, oldest first.
	RelabelExpenses(ctx context.Context, ownerID, categoryID, label string) ([]core.Month, error)
}

type BudgetStore interface {
	CreateBudget(ctx context.Context, b core.CategoryBudget) (core.CategoryBudget, error)
	UpdateBudget(ctx context.Context, b core.CategoryBudget) (core.CategoryBudget, error)
	DeleteBudget(ctx context.Context, id string) error
	GetBudget(ctx context.Context, id string) (core.CategoryBudget, error)
	ListBudgets(ctx context.Context, ownerID string, start, end time.Time) ([]core.CategoryBudget, error)
}

type IncomeStore interface {
	CreateIncome(ctx context.Context, in core.Income) (core.Income, error)
	UpdateIncome(ctx context.Context, in core.Income) (core.Income, error)
	DeleteIncome(ctx context.Context, id string) error
	GetIncome(ctx context.Context, id string) (core.Income, error)
	ListIncomes(ctx context.Context, ownerID string, start, end time.Time) ([]core.Income, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, u core.User) (core.User, error)
	GetUser(ctx context.Context, id string) (core.User, error)
	GetUserByEmail(ctx context.Context, email string) (core.User, error)
}

// Store is the full record store used by the service layer.
type Store interface {
	ExpenseStore
	BudgetStore
	IncomeStore
	UserStore
	Ping(ctx context.Context) error
	Close() error
}
