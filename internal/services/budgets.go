package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/storage"
)

type BudgetInput struct {
	Category  *string
	Budget    *core.Money
	CreatedAt *time.Time
}

func applyBudget(b *core.CategoryBudget, in BudgetInput) {
	if in.Category != nil {
		b.Category = *in.Category
	}
	if in.Budget != nil {
		b.Budget = *in.Budget
	}
	if in.CreatedAt != nil && !in.CreatedAt.IsZero() {
		b.CreatedAt = in.CreatedAt.UTC().Truncate(time.Millisecond)
	}
}

func (s *RecordService) ListBudgets(ctx context.Context, ownerID string, m core.Month) ([]core.CategoryBudget, error) {
	start, end := m.Window()
	return s.store.ListBudgets(ctx, ownerID, start, end)
}

func (s *RecordService) CreateBudget(ctx context.Context, ownerID string, in BudgetInput) (core.CategoryBudget, error) {
	if in.Budget == nil {
		return core.CategoryBudget{}, errBudgetRequired
	}
	b := core.CategoryBudget{OwnerID: ownerID, CreatedAt: s.createdAt(in.CreatedAt), UpdatedAt: s.timestamp()}
	in.CreatedAt = nil
	applyBudget(&b, in)
	if err := b.Validate(); err != nil {
		return core.CategoryBudget{}, err
	}

	created, err := s.store.CreateBudget(ctx, b)
	if err != nil {
		return core.CategoryBudget{}, fmt.Errorf("save budget: %w", err)
	}
	s.changed(ctx, storage.KindBudget, amqp.ActionCreated, created.ID, ownerID, core.MonthOf(created.CreatedAt))
	return created, nil
}

// UpdateBudget applies the rename policy when the label changes: cascade
// relabels every expense linked by CategoryID, detach leaves them alone.
func (s *RecordService) UpdateBudget(ctx context.Context, ownerID, id string, in BudgetInput) (core.CategoryBudget, error) {
	current, err := s.store.GetBudget(ctx, id)
	if err != nil {
		return core.CategoryBudget{}, err
	}
	if err := checkOwner(ownerID, current.OwnerID); err != nil {
		return core.CategoryBudget{}, err
	}

	next := current
	applyBudget(&next, in)
	next.UpdatedAt = s.timestamp()
	if err := next.Validate(); err != nil {
		return core.CategoryBudget{}, err
	}

	updated, err := s.store.UpdateBudget(ctx, next)
	if err != nil {
		return core.CategoryBudget{}, fmt.Errorf("update budget: %w", err)
	}

	months := []core.Month{core.MonthOf(current.CreatedAt), core.MonthOf(updated.CreatedAt)}
	if updated.Category != current.Category && s.policy == RenameCascade {
		// Linked expenses may live in any month.
		relabelled, err := s.store.RelabelExpenses(ctx, ownerID, id, updated.Category)
		if err != nil {
			return core.CategoryBudget{}, fmt.Errorf("cascade rename: %w", err)
		}
		slog.InfoContext(ctx, "Category renamed",
			"budget_id", id,
			"from", current.Category,
			"to", updated.Category,
			"months", len(relabelled))
		months = append(months, relabelled...)
	}
	s.changed(ctx, storage.KindBudget, amqp.ActionUpdated, id, ownerID, months...)
	return updated, nil
}

// DeleteBudget never touches expenses referencing the budget.
func (s *RecordService) DeleteBudget(ctx context.Context, ownerID, id string) error {
	current, err := s.store.GetBudget(ctx, id)
	if err != nil {
		return err
	}
	if err := checkOwner(ownerID, current.OwnerID); err != nil {
		return err
	}
	if err := s.store.DeleteBudget(ctx, id); err != nil {
		return err
	}
	s.changed(ctx, storage.KindBudget, amqp.ActionDeleted, id, ownerID, core.MonthOf(current.CreatedAt))
	return nil
}
