package worker

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"budget/internal/amqp"
	"budget/internal/core"
	applog "budget/internal/log"
	"budget/internal/services"
	sheetsmem "budget/internal/sheets/memory"
	"budget/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	now   = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	march = core.Month{Year: 2024, Month: time.March}
)

type fixture struct {
	worker  *ExportWorker
	records *services.RecordService
	writer  *sheetsmem.Writer
	userID  string
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	clock := func() time.Time { return now }
	records := services.NewRecordService(store, services.WithClock(clock))

	user, err := store.CreateUser(ctx, core.User{Name: "Ann", Email: "ann@example.com", SecretHash: "x", CreatedAt: now})
	require.NoError(t, err)

	amount := core.Units(40)
	_, err = records.CreateExpense(ctx, user.ID, services.ExpenseInput{
		Activity: ptr("Groceries"), Amount: &amount, Category: ptr("Food"),
	})
	require.NoError(t, err)
	income := core.Units(100)
	_, err = records.CreateIncome(ctx, user.ID, services.IncomeInput{Amount: &income})
	require.NoError(t, err)

	writer := sheetsmem.New()
	logger := applog.New(applog.Config{Output: &bytes.Buffer{}})
	opts = append([]Option{WithClock(clock), WithLogger(logger)}, opts...)
	return fixture{
		worker:  NewExportWorker(records, store, writer, opts...),
		records: records,
		writer:  writer,
		userID:  user.ID,
	}
}

func ptr[T any](v T) *T { return &v }

func (f fixture) message(month string, ts time.Time) *amqp.RecordChangedMessage {
	return &amqp.RecordChangedMessage{
		Kind: "expense", Action: amqp.ActionCreated, ID: "e1",
		OwnerID: f.userID, Month: month, Timestamp: ts,
	}
}

func (f fixture) title() string {
	short := f.userID
	if len(short) > 8 {
		short = short[:8]
	}
	return "2024-03 Ann (" + short + ")"
}

func TestHandleRecordChangedWritesSnapshot(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.worker.HandleRecordChanged(context.Background(), f.message("2024-03", now)))

	rows, ok := f.writer.Tab(f.title())
	require.True(t, ok)
	assert.Equal(t, []any{"Income", "100.00"}, rows[2])
	assert.Equal(t, []any{"Total expenses", "40.00"}, rows[3])
	assert.Equal(t, []any{"Remaining", "60.00"}, rows[4])
	assert.Equal(t, []any{"2024-03-15", "Groceries", "Food", "40.00"}, rows[8])
}

func TestHandleRecordChangedDropsPermanentFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.NoError(t, f.worker.HandleRecordChanged(ctx, f.message("March", now)))

	unknown := f.message("2024-03", now)
	unknown.OwnerID = "nobody"
	assert.NoError(t, f.worker.HandleRecordChanged(ctx, unknown))

	assert.Equal(t, 0, f.writer.Writes())
}

func TestHandleRecordChangedRetriesWriterErrors(t *testing.T) {
	boom := errors.New("sheets unavailable")

	f := newFixture(t)
	f.writer.FailWith(boom)
	err := f.worker.HandleRecordChanged(context.Background(), f.message("2024-03", now))
	assert.ErrorIs(t, err, boom)

	f = newFixture(t, WithRetryable(func(error) bool { return false }))
	f.writer.FailWith(boom)
	assert.NoError(t, f.worker.HandleRecordChanged(context.Background(), f.message("2024-03", now)))
}

func TestHandleRecordChangedSkipsEventsOlderThanSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.worker.HandleRecordChanged(ctx, f.message("2024-03", now)))
	require.NoError(t, f.worker.HandleRecordChanged(ctx, f.message("2024-03", now.Add(-time.Second))))
	assert.Equal(t, 1, f.writer.Writes())

	require.NoError(t, f.worker.HandleRecordChanged(ctx, f.message("2024-03", now.Add(time.Second))))
	assert.Equal(t, 2, f.writer.Writes())

	// Another month is tracked separately.
	require.NoError(t, f.worker.HandleRecordChanged(ctx, f.message("2024-02", now.Add(-time.Hour))))
	assert.Equal(t, 3, f.writer.Writes())
}

func TestExportMonthEmptyMonth(t *testing.T) {
	f := newFixture(t)

	ref, err := f.worker.ExportMonth(context.Background(), f.userID, march.Prev())
	require.NoError(t, err)
	assert.Contains(t, ref, "2024-02 Ann")
}
