package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/storage"
)

// ExpenseInput carries the writable expense fields. Nil pointers are left
// unchanged on update.
type ExpenseInput struct {
	Activity   *string
	Amount     *core.Money
	Category   *string
	CategoryID *string
	CreatedAt  *time.Time
}

var errUnknownCategory = core.NewValidationError("categoryId", "does not reference one of your category budgets")

// resolveCategory loads the referenced budget and returns its label.
func (s *RecordService) resolveCategory(ctx context.Context, ownerID, categoryID string) (string, error) {
	b, err := s.store.GetBudget(ctx, categoryID)
	if errors.Is(err, core.ErrNotFound) {
		return "", errUnknownCategory
	}
	if err != nil {
		return "", err
	}
	if b.OwnerID != ownerID {
		return "", errUnknownCategory
	}
	return b.Category, nil
}

func (s *RecordService) applyExpense(ctx context.Context, e *core.Expense, in ExpenseInput) error {
	if in.Activity != nil {
		e.Activity = *in.Activity
	}
	if in.Amount != nil {
		e.Amount = *in.Amount
	}
	if in.CreatedAt != nil && !in.CreatedAt.IsZero() {
		e.CreatedAt = in.CreatedAt.UTC().Truncate(time.Millisecond)
	}
	switch {
	case in.CategoryID != nil && *in.CategoryID != "":
		label, err := s.resolveCategory(ctx, e.OwnerID, *in.CategoryID)
		if err != nil {
			return err
		}
		e.CategoryID, e.Category = *in.CategoryID, label
	case in.CategoryID != nil:
		e.CategoryID = ""
		if in.Category != nil {
			e.Category = *in.Category
		}
	case in.Category != nil:
		// A free-text label breaks the link to the budget.
		if *in.Category != e.Category {
			e.CategoryID = ""
		}
		e.Category = *in.Category
	}
	return nil
}

func (s *RecordService) ListExpenses(ctx context.Context, ownerID string, m core.Month) ([]core.Expense, error) {
	start, end := m.Window()
	return s.store.ListExpenses(ctx, ownerID, start, end)
}

func (s *RecordService) CreateExpense(ctx context.Context, ownerID string, in ExpenseInput) (core.Expense, error) {
	if in.Amount == nil {
		return core.Expense{}, errAmountRequired
	}
	now := s.timestamp()
	e := core.Expense{OwnerID: ownerID, CreatedAt: s.createdAt(in.CreatedAt), UpdatedAt: now}
	in.CreatedAt = nil
	if err := s.applyExpense(ctx, &e, in); err != nil {
		return core.Expense{}, err
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	created, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	s.changed(ctx, storage.KindExpense, amqp.ActionCreated, created.ID, ownerID, core.MonthOf(created.CreatedAt))
	return created, nil
}

func (s *RecordService) UpdateExpense(ctx context.Context, ownerID, id string, in ExpenseInput) (core.Expense, error) {
	current, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}
	if err := checkOwner(ownerID, current.OwnerID); err != nil {
		return core.Expense{}, err
	}

	next := current
	if err := s.applyExpense(ctx, &next, in); err != nil {
		return core.Expense{}, err
	}
	next.UpdatedAt = s.timestamp()
	if err := next.Validate(); err != nil {
		return core.Expense{}, err
	}

	updated, err := s.store.UpdateExpense(ctx, next)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	s.changed(ctx, storage.KindExpense, amqp.ActionUpdated, id, ownerID,
		core.MonthOf(current.CreatedAt), core.MonthOf(updated.CreatedAt))
	return updated, nil
}

func (s *RecordService) DeleteExpense(ctx context.Context, ownerID, id string) error {
	current, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return err
	}
	if err := checkOwner(ownerID, current.OwnerID); err != nil {
		return err
	}
	if err := s.store.DeleteExpense(ctx, id); err != nil {
		return err
	}
	s.changed(ctx, storage.KindExpense, amqp.ActionDeleted, id, ownerID, core.MonthOf(current.CreatedAt))
	return nil
}
