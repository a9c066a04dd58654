package core

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ts = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func TestExpenseValidate(t *testing.T) {
	good := Expense{OwnerID: "u1", Activity: "Groceries", Amount: Units(12), Category: "Food", CreatedAt: ts}
	require.NoError(t, good.Validate())

	zero := good
	zero.Amount = Money{}
	assert.NoError(t, zero.Validate(), "zero amount is allowed")

	cases := map[string]struct {
		mutate func(*Expense)
		want   error
	}{
		"missing owner":    {func(e *Expense) { e.OwnerID = "" }, ErrMissingOwner},
		"blank activity":   {func(e *Expense) { e.Activity = "  " }, ErrEmptyActivity},
		"long activity":    {func(e *Expense) { e.Activity = strings.Repeat("a", 201) }, ErrActivityTooLong},
		"negative amount":  {func(e *Expense) { e.Amount = Money{Cents: -1} }, ErrInvalidAmount},
		"missing category": {func(e *Expense) { e.Category = "" }, ErrEmptyCategory},
		"zero timestamp":   {func(e *Expense) { e.CreatedAt = time.Time{} }, ErrMissingTime},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			e := good
			tc.mutate(&e)
			err := e.Validate()
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestValidationErrorsCollectsAll(t *testing.T) {
	err := Expense{}.Validate()
	require.Error(t, err)

	var ve *ValidationErrors
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Errors, 4)
	assert.Contains(t, ve.Messages(), "userId: is required")
}

func TestBudgetAndIncomeValidate(t *testing.T) {
	b := CategoryBudget{OwnerID: "u1", Category: "Food", Budget: Units(100), CreatedAt: ts}
	assert.NoError(t, b.Validate())
	b.Budget = Money{Cents: -5}
	assert.Error(t, b.Validate())

	in := Income{OwnerID: "u1", Amount: Money{}, CreatedAt: ts}
	assert.NoError(t, in.Validate())
	in.OwnerID = ""
	assert.ErrorIs(t, in.Validate(), ErrMissingOwner)
}

func TestNotFoundError(t *testing.T) {
	err := NewNotFound("expense", "abc")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, `expense "abc" not found`, err.Error())
	assert.False(t, IsValidationError(err))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "ann@example.com", NormalizeEmail("  Ann@Example.COM "))
	assert.Equal(t, "open sesame", NormalizeSecret("\tOpen Sesame\n"))
}
