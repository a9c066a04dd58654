// Package storagetest holds the contract suite every storage.Store
// implementation must pass.
package storagetest

import (
	"context"
	"time"

	"budget/internal/core"
	"budget/internal/storage"

	"github.com/stretchr/testify/suite"
)

// Suite runs the store contract. New is called before each test.
type Suite struct {
	suite.Suite
	New   func() storage.Store
	store storage.Store
	ctx   context.Context
}

func (s *Suite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.New()
}

func (s *Suite) TearDownTest() {
	if s.store != nil {
		s.store.Close()
	}
}

// Millisecond precision, as persisted by the SQL repository.
var base = time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)

func (s *Suite) march() (time.Time, time.Time) {
	return core.Month{Year: 2024, Month: time.March}.Window()
}

func (s *Suite) expense(owner, category string, cents int64, at time.Time) core.Expense {
	return core.Expense{
		OwnerID:   owner,
		Activity:  "Groceries",
		Amount:    core.Money{Cents: cents},
		Category:  category,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func (s *Suite) TestExpenseRoundTrip() {
	created, err := s.store.CreateExpense(s.ctx, s.expense("u1", "Food", 1234, base))
	s.Require().NoError(err)
	s.NotEmpty(created.ID)

	start, end := s.march()
	list, err := s.store.ListExpenses(s.ctx, "u1", start, end)
	s.Require().NoError(err)
	s.Require().Len(list, 1)

	got := list[0]
	s.Equal(created.ID, got.ID)
	s.Equal("u1", got.OwnerID)
	s.Equal("Groceries", got.Activity)
	s.Equal(core.Money{Cents: 1234}, got.Amount)
	s.Equal("Food", got.Category)
	s.True(base.Equal(got.CreatedAt))
	s.True(base.Equal(got.UpdatedAt))
}

func (s *Suite) TestListIsHalfOpenAndOwnerScoped() {
	start, end := s.march()
	for _, e := range []core.Expense{
		s.expense("u1", "Food", 100, start),
		s.expense("u1", "Food", 200, end.Add(-time.Millisecond)),
		s.expense("u1", "Food", 300, end),
		s.expense("u1", "Food", 400, start.Add(-time.Millisecond)),
		s.expense("u2", "Food", 500, base),
	} {
		_, err := s.store.CreateExpense(s.ctx, e)
		s.Require().NoError(err)
	}

	list, err := s.store.ListExpenses(s.ctx, "u1", start, end)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(int64(100), list[0].Amount.Cents)
	s.Equal(int64(200), list[1].Amount.Cents)

	empty, err := s.store.ListExpenses(s.ctx, "nobody", start, end)
	s.Require().NoError(err)
	s.NotNil(empty)
	s.Empty(empty)
}

func (s *Suite) TestUpdateRefreshesFields() {
	created, err := s.store.CreateExpense(s.ctx, s.expense("u1", "Food", 100, base))
	s.Require().NoError(err)

	later := base.Add(time.Hour)
	created.Activity = "Dinner"
	created.Amount = core.Money{Cents: 999}
	created.Category = "Eating out"
	created.UpdatedAt = later

	updated, err := s.store.UpdateExpense(s.ctx, created)
	s.Require().NoError(err)
	s.Equal("Dinner", updated.Activity)
	s.Equal(int64(999), updated.Amount.Cents)
	s.True(later.Equal(updated.UpdatedAt))

	got, err := s.store.GetExpense(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal("Eating out", got.Category)
}

func (s *Suite) TestMissingIDsReportNotFound() {
	_, err := s.store.UpdateExpense(s.ctx, core.Expense{ID: "missing", CreatedAt: base, UpdatedAt: base})
	s.ErrorIs(err, core.ErrNotFound)
	s.ErrorIs(s.store.DeleteExpense(s.ctx, "missing"), core.ErrNotFound)
	_, err = s.store.GetExpense(s.ctx, "missing")
	s.ErrorIs(err, core.ErrNotFound)

	_, err = s.store.UpdateBudget(s.ctx, core.CategoryBudget{ID: "missing", CreatedAt: base, UpdatedAt: base})
	s.ErrorIs(err, core.ErrNotFound)
	s.ErrorIs(s.store.DeleteBudget(s.ctx, "missing"), core.ErrNotFound)

	_, err = s.store.UpdateIncome(s.ctx, core.Income{ID: "missing", CreatedAt: base, UpdatedAt: base})
	s.ErrorIs(err, core.ErrNotFound)
	s.ErrorIs(s.store.DeleteIncome(s.ctx, "missing"), core.ErrNotFound)

	_, err = s.store.GetUserByEmail(s.ctx, "nobody@example.com")
	s.ErrorIs(err, core.ErrNotFound)
}

func (s *Suite) TestDeleteBudgetDoesNotCascade() {
	budget, err := s.store.CreateBudget(s.ctx, core.CategoryBudget{
		OwnerID: "u1", Category: "Food", Budget: core.Units(100), CreatedAt: base, UpdatedAt: base,
	})
	s.Require().NoError(err)

	e := s.expense("u1", "Food", 4200, base)
	e.CategoryID = budget.ID
	created, err := s.store.CreateExpense(s.ctx, e)
	s.Require().NoError(err)

	s.Require().NoError(s.store.DeleteBudget(s.ctx, budget.ID))

	got, err := s.store.GetExpense(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(created, got)

	start, end := s.march()
	budgets, err := s.store.ListBudgets(s.ctx, "u1", start, end)
	s.Require().NoError(err)
	s.Empty(budgets)
}

func (s *Suite) TestRelabelExpenses() {
	linked := s.expense("u1", "Food", 100, base)
	linked.CategoryID = "b1"
	loose := s.expense("u1", "Food", 200, base.Add(time.Minute))
	other := s.expense("u2", "Food", 300, base)
	other.CategoryID = "b1"
	older := s.expense("u1", "Food", 50, base.AddDate(0, -2, 0))
	older.CategoryID = "b1"

	for _, e := range []core.Expense{linked, loose, other, older} {
		_, err := s.store.CreateExpense(s.ctx, e)
		s.Require().NoError(err)
	}

	months, err := s.store.RelabelExpenses(s.ctx, "u1", "b1", "Groceries")
	s.Require().NoError(err)
	s.Equal([]core.Month{core.MonthOf(older.CreatedAt), core.MonthOf(base)}, months)

	none, err := s.store.RelabelExpenses(s.ctx, "u1", "missing", "Groceries")
	s.Require().NoError(err)
	s.Empty(none)

	start, end := s.march()
	list, err := s.store.ListExpenses(s.ctx, "u1", start, end)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal("Groceries", list[0].Category)
	s.Equal("Food", list[1].Category)
}

func (s *Suite) TestIncomeLifecycle() {
	in, err := s.store.CreateIncome(s.ctx, core.Income{OwnerID: "u1", Amount: core.Units(2500), CreatedAt: base, UpdatedAt: base})
	s.Require().NoError(err)

	in.Amount = core.Units(2700)
	in.UpdatedAt = base.Add(time.Hour)
	_, err = s.store.UpdateIncome(s.ctx, in)
	s.Require().NoError(err)

	start, end := s.march()
	list, err := s.store.ListIncomes(s.ctx, "u1", start, end)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(core.Units(2700), core.CurrentIncome(list))

	s.Require().NoError(s.store.DeleteIncome(s.ctx, in.ID))
	_, err = s.store.GetIncome(s.ctx, in.ID)
	s.ErrorIs(err, core.ErrNotFound)
}

func (s *Suite) TestUsers() {
	u, err := s.store.CreateUser(s.ctx, core.User{Name: "Ann", Email: "ann@example.com", SecretHash: "hash", CreatedAt: base})
	s.Require().NoError(err)
	s.NotEmpty(u.ID)

	byEmail, err := s.store.GetUserByEmail(s.ctx, "ann@example.com")
	s.Require().NoError(err)
	s.Equal(u.ID, byEmail.ID)
	s.Equal("hash", byEmail.SecretHash)

	byID, err := s.store.GetUser(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal("Ann", byID.Name)

	_, err = s.store.CreateUser(s.ctx, core.User{Name: "Other", Email: "ann@example.com", SecretHash: "x", CreatedAt: base})
	s.ErrorIs(err, storage.ErrDuplicate)
}
