package core

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expense(category string, cents int64) Expense {
	return Expense{OwnerID: "u1", Activity: "x", Category: category, Amount: Money{Cents: cents}, CreatedAt: ts}
}

func TestTotalExpenses(t *testing.T) {
	assert.Equal(t, Money{}, TotalExpenses(nil))
	assert.Equal(t, Money{Cents: 1050}, TotalExpenses([]Expense{expense("a", 1000), expense("b", 49), expense("a", 1)}))
}

func TestRemainingAmountMayBeNegative(t *testing.T) {
	assert.Equal(t, Units(-500), RemainingAmount(Units(1000), Units(1500)))
}

func TestSavingsPercentage(t *testing.T) {
	pct, ok := SavingsPercentage(Units(1000), Units(250))
	assert.True(t, ok)
	assert.Equal(t, 75.0, pct)

	pct, ok = SavingsPercentage(Units(1000), Units(1500))
	assert.True(t, ok)
	assert.Equal(t, -50.0, pct)

	pct, ok = SavingsPercentage(Money{}, Units(10))
	assert.False(t, ok)
	assert.Equal(t, 0.0, pct)
	assert.False(t, math.IsNaN(pct) || math.IsInf(pct, 0))
}

func TestCategoryTotalExactMatch(t *testing.T) {
	es := []Expense{expense("Food", 100), expense("food", 200), expense("Food ", 400), expense("Food", 800)}
	assert.Equal(t, Money{Cents: 900}, CategoryTotal(es, "Food"))
	assert.Equal(t, Money{}, CategoryTotal(es, "Rent"))
}

func TestCategoryStatusBoundaries(t *testing.T) {
	budget := Units(100)
	cases := []struct {
		name  string
		spent Money
		want  CategoryStatus
	}{
		{"zero", Money{}, StatusNormal},
		{"79.99", Money{Cents: 7999}, StatusNormal},
		{"exactly 80", Units(80), StatusWarning},
		{"99.99", Money{Cents: 9999}, StatusWarning},
		{"exactly 100", Units(100), StatusDanger},
		{"over", Units(250), StatusDanger},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CategoryStatusFor(tc.spent, budget))
		})
	}

	// 79.999% of 1000.00 is 799.99
	assert.Equal(t, StatusNormal, CategoryStatusFor(Money{Cents: 79999}, Units(1000)))
	// budget of 100000.00 with spend 79999.00 is 79.999%
	assert.Equal(t, StatusNormal, CategoryStatusFor(Units(79999), Units(100000)))
	assert.Equal(t, StatusNormal, CategoryStatusFor(Units(50), Money{}))

	// Totals of many maximal expenses exceed what cents*100 can hold.
	huge := make([]Expense, 200)
	for i := range huge {
		huge[i] = Expense{Category: "Food", Amount: Money{Cents: maxCents}}
	}
	assert.Equal(t, StatusDanger, CategoryStatusFor(TotalExpenses(huge), Units(100)))
	assert.Equal(t, StatusNormal, CategoryStatusFor(Units(1), Money{Cents: maxCents * 200}))
}

func TestSummarizeFoodScenario(t *testing.T) {
	budgets := []CategoryBudget{{ID: "b1", OwnerID: "u1", Category: "Food", Budget: Units(10000), CreatedAt: ts}}
	expenses := []Expense{expense("Food", Units(8000).Cents)}

	s := Summarize(expenses, budgets, Units(20000))
	require.Len(t, s.Categories, 1)
	assert.Equal(t, StatusWarning, s.Categories[0].Status)
	assert.Equal(t, 80.0, s.Categories[0].Percent)

	expenses = append(expenses, expense("Food", Units(3000).Cents))
	s = Summarize(expenses, budgets, Units(20000))
	assert.Equal(t, Units(11000), s.TotalExpenses)
	assert.Equal(t, StatusDanger, s.Categories[0].Status)
	assert.Equal(t, 110.0, s.Categories[0].Percent)
	assert.Equal(t, Units(-1000), s.Categories[0].Remaining)
	assert.Equal(t, Units(9000), s.RemainingAmount)
	assert.Equal(t, 45.0, s.SavingsPercentage)
}

func TestSummarizeDistribution(t *testing.T) {
	budgets := []CategoryBudget{
		{ID: "b1", Category: "Food", Budget: Units(100)},
		{ID: "b2", Category: "Rent", Budget: Units(500)},
	}
	expenses := []Expense{
		expense("Food", 3000),
		expense("Fun", 1000),
		expense("Gift", 0),
		expense("Food", 3000),
	}
	s := Summarize(expenses, budgets, Money{})

	require.Len(t, s.Categories, 2)
	assert.Equal(t, "Rent", s.Categories[1].Category)
	assert.Equal(t, Money{}, s.Categories[1].Spent, "budget rows are retained with zero spend")

	require.Len(t, s.Distribution, 2, "zero totals are omitted")
	assert.Equal(t, CategoryAmount{Category: "Food", Amount: Money{Cents: 6000}, Share: 85.71}, s.Distribution[0])
	assert.Equal(t, CategoryAmount{Category: "Fun", Amount: Money{Cents: 1000}, Share: 14.29}, s.Distribution[1])

	require.Len(t, s.Unbudgeted, 1)
	assert.Equal(t, "Fun", s.Unbudgeted[0].Category)

	assert.False(t, s.SavingsDefined)
	assert.Equal(t, 0.0, s.SavingsPercentage)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, nil, Money{})
	assert.Equal(t, Money{}, s.TotalExpenses)
	assert.NotNil(t, s.Categories)
	assert.NotNil(t, s.Distribution)
	assert.NotNil(t, s.Unbudgeted)
}

func TestCurrentIncome(t *testing.T) {
	assert.Equal(t, Money{}, CurrentIncome(nil))

	older := Income{ID: "a", Amount: Units(1000), CreatedAt: ts, UpdatedAt: ts.Add(time.Hour)}
	newer := Income{ID: "b", Amount: Units(2000), CreatedAt: ts, UpdatedAt: ts.Add(2 * time.Hour)}
	assert.Equal(t, Units(2000), CurrentIncome([]Income{newer, older}))
	assert.Equal(t, Units(2000), CurrentIncome([]Income{older, newer}))
}
