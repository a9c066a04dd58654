package session

import (
	"context"
	"fmt"
	"time"

	"budget/internal/core"
	applog "budget/internal/log"
	"budget/internal/storage"
)

// Each mutation patches the local list right away and marks the record
// pending. When the call returns the patch is either committed with the
// server's copy or undone.

type mutation[T any] struct {
	kind    string
	list    func(*Session) *collection[T]
	inMonth func(T, core.Month) bool
}

var (
	expenseMutation = mutation[core.Expense]{
		kind:    storage.KindExpense,
		list:    func(s *Session) *collection[core.Expense] { return &s.expenses },
		inMonth: func(e core.Expense, m core.Month) bool { return m.Contains(e.CreatedAt) },
	}
	budgetMutation = mutation[core.CategoryBudget]{
		kind:    storage.KindBudget,
		list:    func(s *Session) *collection[core.CategoryBudget] { return &s.budgets },
		inMonth: func(b core.CategoryBudget, m core.Month) bool { return m.Contains(b.CreatedAt) },
	}
	incomeMutation = mutation[core.Income]{
		kind:    storage.KindIncome,
		list:    func(s *Session) *collection[core.Income] { return &s.incomes },
		inMonth: func(i core.Income, m core.Month) bool { return m.Contains(i.CreatedAt) },
	}
)

func (mu mutation[T]) create(ctx context.Context, s *Session, draft func(tempID string) (T, error), call func(context.Context, *Client) (T, error)) (T, error) {
	var zero T

	s.mu.Lock()
	if s.state != Loaded {
		s.mu.Unlock()
		return zero, ErrNotLoaded
	}
	s.tempSeq++
	tempID := fmt.Sprintf("pending-%d", s.tempSeq)
	item, err := draft(tempID)
	if err != nil {
		s.mu.Unlock()
		return zero, err
	}
	c := mu.list(s)
	c.put(item)
	s.markPendingLocked(tempID)
	epoch, api := s.epoch, s.api
	s.mu.Unlock()

	rec, err := call(ctx, api)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.unmarkPendingLocked(tempID)
	if s.epoch != epoch {
		return rec, err
	}
	if err != nil {
		c.remove(tempID)
		s.logReverted(ctx, mu.kind, applog.OpCreate, tempID, err)
		return zero, err
	}
	if mu.inMonth(rec, s.month) {
		commit(c, tempID, rec)
	} else {
		c.remove(tempID)
	}
	return rec, nil
}

func (mu mutation[T]) update(ctx context.Context, s *Session, id string, patch func(T) (T, error), call func(context.Context, *Client) (T, error)) (T, error) {
	var zero T

	release, ok := s.ops.enter(ctx.Done(), id)
	if !ok {
		return zero, ctx.Err()
	}
	defer release()

	s.mu.Lock()
	if s.state != Loaded {
		s.mu.Unlock()
		return zero, ErrNotLoaded
	}
	c := mu.list(s)
	prev, found := c.get(id)
	if !found {
		s.mu.Unlock()
		return zero, core.NewNotFound(mu.kind, id)
	}
	next, err := patch(prev)
	if err != nil {
		s.mu.Unlock()
		return zero, err
	}
	c.replace(id, next)
	s.markPendingLocked(id)
	epoch, api := s.epoch, s.api
	s.mu.Unlock()

	rec, err := call(ctx, api)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.unmarkPendingLocked(id)
	if s.epoch != epoch {
		return rec, err
	}
	if err != nil {
		if c.index(id) >= 0 {
			c.replace(id, prev)
		}
		s.logReverted(ctx, mu.kind, applog.OpUpdate, id, err)
		return zero, err
	}
	if mu.inMonth(rec, s.month) {
		commit(c, id, rec)
	} else {
		c.remove(id)
	}
	return rec, nil
}

func (mu mutation[T]) delete(ctx context.Context, s *Session, id string, call func(context.Context, *Client) error) error {
	release, ok := s.ops.enter(ctx.Done(), id)
	if !ok {
		return ctx.Err()
	}
	defer release()

	s.mu.Lock()
	if s.state != Loaded {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	c := mu.list(s)
	prev, at, found := c.remove(id)
	if !found {
		s.mu.Unlock()
		return core.NewNotFound(mu.kind, id)
	}
	s.markPendingLocked(id)
	epoch, api := s.epoch, s.api
	s.mu.Unlock()

	err := call(ctx, api)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.unmarkPendingLocked(id)
	if s.epoch != epoch {
		return err
	}
	if err != nil {
		if c.index(id) < 0 {
			c.insert(at, prev)
		}
		s.logReverted(ctx, mu.kind, applog.OpDelete, id, err)
		return err
	}
	return nil
}

// commit stores the server's record in place of the optimistic one. A copy
// that already arrived through a concurrent fetch wins the position.
func commit[T any](c *collection[T], localID string, rec T) {
	if c.index(c.idOf(rec)) >= 0 && c.idOf(rec) != localID {
		c.remove(localID)
		c.put(rec)
		return
	}
	c.replace(localID, rec)
}

func (s *Session) logReverted(ctx context.Context, kind, op, id string, err error) {
	s.logger.WarnContext(ctx, "Change reverted",
		applog.NewFields().
			WithRecord(kind, id, s.user.ID).
			WithOperation(op).
			WithError(err).
			ToSlice()...)
}

// AddExpense records a new expense in the selected session. Without a
// CreatedAt the expense is dated now.
func (s *Session) AddExpense(ctx context.Context, f ExpenseFields) (core.Expense, error) {
	return expenseMutation.create(ctx, s,
		func(tempID string) (core.Expense, error) {
			if f.Amount == nil {
				return core.Expense{}, core.NewValidationError("amount", "is required")
			}
			now := s.now().UTC()
			e := core.Expense{ID: tempID, OwnerID: s.user.ID, CreatedAt: now, UpdatedAt: now}
			e, err := s.patchExpenseLocked(e, f)
			if err != nil {
				return e, err
			}
			return e, e.Validate()
		},
		func(ctx context.Context, api *Client) (core.Expense, error) { return api.CreateExpense(ctx, f) })
}

func (s *Session) EditExpense(ctx context.Context, id string, f ExpenseFields) (core.Expense, error) {
	return expenseMutation.update(ctx, s, id,
		func(prev core.Expense) (core.Expense, error) {
			e, err := s.patchExpenseLocked(prev, f)
			if err != nil {
				return e, err
			}
			e.UpdatedAt = s.now().UTC()
			return e, e.Validate()
		},
		func(ctx context.Context, api *Client) (core.Expense, error) { return api.UpdateExpense(ctx, id, f) })
}

func (s *Session) DeleteExpense(ctx context.Context, id string) error {
	return expenseMutation.delete(ctx, s, id,
		func(ctx context.Context, api *Client) error { return api.DeleteExpense(ctx, id) })
}

// patchExpenseLocked applies f the way the server does. A CategoryID must
// name one of the loaded budgets; its label replaces Category.
func (s *Session) patchExpenseLocked(e core.Expense, f ExpenseFields) (core.Expense, error) {
	if f.Activity != nil {
		e.Activity = *f.Activity
	}
	if f.Amount != nil {
		e.Amount = *f.Amount
	}
	if f.CreatedAt != nil && !f.CreatedAt.IsZero() {
		e.CreatedAt = f.CreatedAt.UTC().Truncate(time.Millisecond)
	}
	switch {
	case f.CategoryID != nil && *f.CategoryID != "":
		b, ok := s.budgets.get(*f.CategoryID)
		if !ok {
			return e, core.NewValidationError("categoryId", "does not reference one of your category budgets")
		}
		e.CategoryID, e.Category = b.ID, b.Category
	case f.CategoryID != nil:
		e.CategoryID = ""
		if f.Category != nil {
			e.Category = *f.Category
		}
	case f.Category != nil:
		if *f.Category != e.Category {
			e.CategoryID = ""
		}
		e.Category = *f.Category
	}
	return e, nil
}

func (s *Session) AddBudget(ctx context.Context, f BudgetFields) (core.CategoryBudget, error) {
	return budgetMutation.create(ctx, s,
		func(tempID string) (core.CategoryBudget, error) {
			if f.Budget == nil {
				return core.CategoryBudget{}, core.NewValidationError("budget", "is required")
			}
			now := s.now().UTC()
			b := patchBudget(core.CategoryBudget{ID: tempID, OwnerID: s.user.ID, CreatedAt: now, UpdatedAt: now}, f)
			return b, b.Validate()
		},
		func(ctx context.Context, api *Client) (core.CategoryBudget, error) { return api.CreateBudget(ctx, f) })
}

// EditBudget updates a budget. A label change reloads the month's expenses
// because the server may have relabeled the linked ones.
func (s *Session) EditBudget(ctx context.Context, id string, f BudgetFields) (core.CategoryBudget, error) {
	var renamed bool
	b, err := budgetMutation.update(ctx, s, id,
		func(prev core.CategoryBudget) (core.CategoryBudget, error) {
			next := patchBudget(prev, f)
			next.UpdatedAt = s.now().UTC()
			renamed = next.Category != prev.Category
			return next, next.Validate()
		},
		func(ctx context.Context, api *Client) (core.CategoryBudget, error) { return api.UpdateBudget(ctx, id, f) })
	if err != nil || !renamed {
		return b, err
	}
	if err := s.reloadExpenses(ctx); err != nil {
		s.logger.WarnContext(ctx, "Expense reload after rename failed", applog.FieldError, err)
	}
	return b, nil
}

// DeleteBudget removes a budget. Expenses that used its label keep it.
func (s *Session) DeleteBudget(ctx context.Context, id string) error {
	return budgetMutation.delete(ctx, s, id,
		func(ctx context.Context, api *Client) error { return api.DeleteBudget(ctx, id) })
}

func patchBudget(b core.CategoryBudget, f BudgetFields) core.CategoryBudget {
	if f.Category != nil {
		b.Category = *f.Category
	}
	if f.Budget != nil {
		b.Budget = *f.Budget
	}
	if f.CreatedAt != nil && !f.CreatedAt.IsZero() {
		b.CreatedAt = f.CreatedAt.UTC().Truncate(time.Millisecond)
	}
	return b
}

// SetIncome updates the month's current income record, or creates one when
// the month has none.
func (s *Session) SetIncome(ctx context.Context, amount core.Money) (core.Income, error) {
	s.mu.Lock()
	if s.state != Loaded {
		s.mu.Unlock()
		return core.Income{}, ErrNotLoaded
	}
	current, found := core.CurrentIncomeRecord(s.incomes.items)
	s.mu.Unlock()

	f := IncomeFields{Amount: &amount}
	if !found {
		return incomeMutation.create(ctx, s,
			func(tempID string) (core.Income, error) {
				now := s.now().UTC()
				in := core.Income{ID: tempID, OwnerID: s.user.ID, Amount: amount, CreatedAt: now, UpdatedAt: now}
				return in, in.Validate()
			},
			func(ctx context.Context, api *Client) (core.Income, error) { return api.CreateIncome(ctx, f) })
	}
	return incomeMutation.update(ctx, s, current.ID,
		func(prev core.Income) (core.Income, error) {
			prev.Amount = amount
			prev.UpdatedAt = s.now().UTC()
			return prev, prev.Validate()
		},
		func(ctx context.Context, api *Client) (core.Income, error) { return api.UpdateIncome(ctx, current.ID, f) })
}

func (s *Session) DeleteIncome(ctx context.Context, id string) error {
	return incomeMutation.delete(ctx, s, id,
		func(ctx context.Context, api *Client) error { return api.DeleteIncome(ctx, id) })
}

func (s *Session) reloadExpenses(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Loaded {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	epoch, month, api := s.epoch, s.month, s.api
	s.mu.Unlock()

	items, err := api.ListExpenses(ctx, month)
	if err != nil {
		return err
	}
	s.applyFetch(epoch, storage.KindExpense, func() { s.expenses.reset(items) })
	return nil
}
