package services

import (
	"context"
	"fmt"
	"time"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/storage"
)

type IncomeInput struct {
	Amount    *core.Money
	CreatedAt *time.Time
}

func (s *RecordService) ListIncomes(ctx context.Context, ownerID string, m core.Month) ([]core.Income, error) {
	start, end := m.Window()
	return s.store.ListIncomes(ctx, ownerID, start, end)
}

func (s *RecordService) CreateIncome(ctx context.Context, ownerID string, in IncomeInput) (core.Income, error) {
	if in.Amount == nil {
		return core.Income{}, errAmountRequired
	}
	income := core.Income{OwnerID: ownerID, Amount: *in.Amount, CreatedAt: s.createdAt(in.CreatedAt), UpdatedAt: s.timestamp()}
	if err := income.Validate(); err != nil {
		return core.Income{}, err
	}

	created, err := s.store.CreateIncome(ctx, income)
	if err != nil {
		return core.Income{}, fmt.Errorf("save income: %w", err)
	}
	s.changed(ctx, storage.KindIncome, amqp.ActionCreated, created.ID, ownerID, core.MonthOf(created.CreatedAt))
	return created, nil
}

func (s *RecordService) UpdateIncome(ctx context.Context, ownerID, id string, in IncomeInput) (core.Income, error) {
	current, err := s.store.GetIncome(ctx, id)
	if err != nil {
		return core.Income{}, err
	}
	if err := checkOwner(ownerID, current.OwnerID); err != nil {
		return core.Income{}, err
	}

	next := current
	if in.Amount != nil {
		next.Amount = *in.Amount
	}
	if in.CreatedAt != nil && !in.CreatedAt.IsZero() {
		next.CreatedAt = in.CreatedAt.UTC().Truncate(time.Millisecond)
	}
	next.UpdatedAt = s.timestamp()
	if err := next.Validate(); err != nil {
		return core.Income{}, err
	}

	updated, err := s.store.UpdateIncome(ctx, next)
	if err != nil {
		return core.Income{}, fmt.Errorf("update income: %w", err)
	}
	s.changed(ctx, storage.KindIncome, amqp.ActionUpdated, id, ownerID,
		core.MonthOf(current.CreatedAt), core.MonthOf(updated.CreatedAt))
	return updated, nil
}

func (s *RecordService) DeleteIncome(ctx context.Context, ownerID, id string) error {
	current, err := s.store.GetIncome(ctx, id)
	if err != nil {
		return err
	}
	if err := checkOwner(ownerID, current.OwnerID); err != nil {
		return err
	}
	if err := s.store.DeleteIncome(ctx, id); err != nil {
		return err
	}
	s.changed(ctx, storage.KindIncome, amqp.ActionDeleted, id, ownerID, core.MonthOf(current.CreatedAt))
	return nil
}
