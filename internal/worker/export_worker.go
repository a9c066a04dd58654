// Package worker turns record change events into spreadsheet exports.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"budget/internal/amqp"
	"budget/internal/cache"
	"budget/internal/core"
	applog "budget/internal/log"
	"budget/internal/services"
	"budget/internal/sheets"
	"budget/internal/storage"
)

// ExportWorker rebuilds a user's month from the store and hands it to a
// SnapshotWriter. Events only say which month changed; the store is the
// source of truth, so replays and reordering are harmless.
type ExportWorker struct {
	records *services.RecordService
	users   storage.UserStore
	writer  sheets.SnapshotWriter

	timeout   time.Duration
	retryable func(error) bool
	now       func() time.Time
	logger    *applog.Logger

	// exported remembers when each owner|month snapshot was last built.
	exported *cache.LRUCache[time.Time]
}

type Option func(*ExportWorker)

// WithTimeout bounds a single export, including the writer round trips.
func WithTimeout(d time.Duration) Option {
	return func(w *ExportWorker) { w.timeout = d }
}

// WithRetryable decides which writer errors are redelivered.
func WithRetryable(fn func(error) bool) Option {
	return func(w *ExportWorker) { w.retryable = fn }
}

func WithClock(now func() time.Time) Option {
	return func(w *ExportWorker) { w.now = now }
}

func WithLogger(l *applog.Logger) Option {
	return func(w *ExportWorker) { w.logger = l.WithComponent(applog.ComponentWorker) }
}

func NewExportWorker(records *services.RecordService, users storage.UserStore, writer sheets.SnapshotWriter, opts ...Option) *ExportWorker {
	w := &ExportWorker{
		records:   records,
		users:     users,
		writer:    writer,
		timeout:   30 * time.Second,
		retryable: func(error) bool { return true },
		now:       time.Now,
		logger:    applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentWorker),
		exported:  cache.NewLRUCache[time.Time](1000, time.Hour),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// HandleRecordChanged is the AMQP handler. A non-nil return asks for
// redelivery, so permanent failures are logged and swallowed.
func (w *ExportWorker) HandleRecordChanged(ctx context.Context, msg *amqp.RecordChangedMessage) error {
	fields := applog.NewFields().
		WithRecord(msg.Kind, msg.ID, msg.OwnerID).
		WithMonth(msg.Month).
		WithOperation(applog.OpExport)

	month, err := core.ParseMonth(msg.Month)
	if err != nil {
		w.logger.WarnContext(ctx, "Dropping message with invalid month", fields.WithError(err).ToSlice()...)
		return nil
	}

	if last, ok := w.exported.Get(exportKey(msg.OwnerID, month)); ok && !msg.Timestamp.IsZero() && msg.Timestamp.Before(last) {
		w.logger.DebugContext(ctx, "Snapshot already newer than event", fields.ToSlice()...)
		return nil
	}

	ref, err := w.ExportMonth(ctx, msg.OwnerID, month)
	if err != nil {
		if !w.isRetryable(err) {
			w.logger.ErrorContext(ctx, "Export failed permanently, dropping message", fields.WithError(err).ToSlice()...)
			return nil
		}
		return err
	}

	w.logger.InfoContext(ctx, "Month exported",
		append(fields.ToSlice(), "sheets_ref", ref, "action", string(msg.Action))...)
	return nil
}

// ExportMonth writes one month for one user regardless of pending events.
func (w *ExportWorker) ExportMonth(ctx context.Context, ownerID string, month core.Month) (string, error) {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	generated := w.now().UTC()
	snap, err := w.snapshot(ctx, ownerID, month, generated)
	if err != nil {
		return "", err
	}
	ref, err := w.writer.WriteMonth(ctx, snap)
	if err != nil {
		return "", fmt.Errorf("write %s: %w", snap.Title(), err)
	}
	w.exported.Set(exportKey(ownerID, month), generated)
	return ref, nil
}

func (w *ExportWorker) snapshot(ctx context.Context, ownerID string, month core.Month, generated time.Time) (sheets.Snapshot, error) {
	user, err := w.users.GetUser(ctx, ownerID)
	if err != nil {
		return sheets.Snapshot{}, fmt.Errorf("load user: %w", err)
	}
	expenses, err := w.records.ListExpenses(ctx, ownerID, month)
	if err != nil {
		return sheets.Snapshot{}, fmt.Errorf("list expenses: %w", err)
	}
	summary, err := w.records.Summary(ctx, ownerID, month)
	if err != nil {
		return sheets.Snapshot{}, fmt.Errorf("summarize: %w", err)
	}
	return sheets.Snapshot{
		OwnerID:     ownerID,
		OwnerName:   user.Name,
		Month:       month,
		Expenses:    expenses,
		Summary:     summary,
		GeneratedAt: generated,
	}, nil
}

func (w *ExportWorker) isRetryable(err error) bool {
	if errors.Is(err, core.ErrNotFound) || core.IsValidationError(err) {
		return false
	}
	return w.retryable(err)
}

func exportKey(ownerID string, m core.Month) string {
	return ownerID + "|" + m.String()
}
