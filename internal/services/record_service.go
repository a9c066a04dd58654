// Package services orchestrates record mutations across the store and the
// event bus.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/storage"
)

// ErrForbidden is returned when a record belongs to another user.
var ErrForbidden = errors.New("record belongs to another user")

// Amounts have no usable default, so creates must carry them.
var (
	errAmountRequired = core.NewValidationError("amount", "is required")
	errBudgetRequired = core.NewValidationError("budget", "is required")
)

// RenamePolicy decides whether renaming a category budget relabels the
// expenses linked to it.
type RenamePolicy string

const (
	RenameCascade RenamePolicy = "cascade"
	RenameDetach  RenamePolicy = "detach"
)

func ParseRenamePolicy(s string) (RenamePolicy, error) {
	switch p := RenamePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return RenameCascade, nil
	case RenameCascade, RenameDetach:
		return p, nil
	default:
		return "", fmt.Errorf("unknown category rename policy %q", s)
	}
}

// Publisher is the subset of the AMQP client the service needs.
type Publisher interface {
	PublishRecordChanged(ctx context.Context, msg *amqp.RecordChangedMessage) error
}

// ChangeHook is notified after a successful mutation. A nil months slice
// means every month of the owner may have changed.
type ChangeHook func(ownerID string, months []core.Month)

type RecordService struct {
	store     storage.Store
	publisher Publisher
	policy    RenamePolicy
	now       func() time.Time
	hooks     []ChangeHook
}

type Option func(*RecordService)

func WithPublisher(p Publisher) Option {
	return func(s *RecordService) { s.publisher = p }
}

func WithRenamePolicy(p RenamePolicy) Option {
	return func(s *RecordService) { s.policy = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *RecordService) { s.now = now }
}

func NewRecordService(store storage.Store, opts ...Option) *RecordService {
	s := &RecordService{
		store:  store,
		policy: RenameCascade,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnChange registers a hook, e.g. summary cache invalidation.
func (s *RecordService) OnChange(h ChangeHook) {
	s.hooks = append(s.hooks, h)
}

func (s *RecordService) Policy() RenamePolicy { return s.policy }

// timestamp is the service clock at the precision the SQL store persists.
func (s *RecordService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *RecordService) createdAt(t *time.Time) time.Time {
	if t == nil || t.IsZero() {
		return s.timestamp()
	}
	return t.UTC().Truncate(time.Millisecond)
}

func checkOwner(owner, recordOwner string) error {
	if owner != recordOwner {
		return ErrForbidden
	}
	return nil
}

// changed notifies hooks and publishes one event per affected month.
// Publishing failures are logged only; the record is already persisted.
func (s *RecordService) changed(ctx context.Context, kind string, action amqp.Action, id, ownerID string, months ...core.Month) {
	months = dedupeMonths(months)
	s.notifyHooks(ownerID, months)
	if s.publisher == nil {
		return
	}
	for _, m := range months {
		msg := amqp.NewRecordChangedMessage(kind, action, id, ownerID, m.String())
		if err := s.publisher.PublishRecordChanged(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "Failed to publish record changed message",
				"kind", kind,
				"id", id,
				"month", m.String(),
				"error", err)
		}
	}
}

func (s *RecordService) notifyHooks(ownerID string, months []core.Month) {
	for _, h := range s.hooks {
		h(ownerID, months)
	}
}

func dedupeMonths(months []core.Month) []core.Month {
	out := months[:0:0]
	seen := make(map[core.Month]bool, len(months))
	for _, m := range months {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// Summary reduces the owner's month server-side.
func (s *RecordService) Summary(ctx context.Context, ownerID string, m core.Month) (core.Summary, error) {
	start, end := m.Window()
	expenses, err := s.store.ListExpenses(ctx, ownerID, start, end)
	if err != nil {
		return core.Summary{}, err
	}
	budgets, err := s.store.ListBudgets(ctx, ownerID, start, end)
	if err != nil {
		return core.Summary{}, err
	}
	incomes, err := s.store.ListIncomes(ctx, ownerID, start, end)
	if err != nil {
		return core.Summary{}, err
	}
	return core.Summarize(expenses, budgets, core.CurrentIncome(incomes)), nil
}

func (s *RecordService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Close closes the store and, when it owns one, the publisher.
func (s *RecordService) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	return errors.Join(errs...)
}
