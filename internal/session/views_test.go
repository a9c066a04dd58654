package session

import (
	"testing"
	"time"

	"budget/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expense(id, category string, units int64, at time.Time) core.Expense {
	return core.Expense{ID: id, Category: category, Amount: core.Units(units), CreatedAt: at}
}

func ids(expenses []core.Expense) []string {
	out := make([]string, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, e.ID)
	}
	return out
}

func TestBucketOf(t *testing.T) {
	// Friday 15 March 2024; the week started on Monday the 11th.
	tests := []struct {
		name string
		at   time.Time
		want Bucket
	}{
		{"earlier today", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), BucketToday},
		{"later today", time.Date(2024, 3, 15, 23, 0, 0, 0, time.UTC), BucketToday},
		{"yesterday", time.Date(2024, 3, 14, 23, 59, 0, 0, time.UTC), BucketYesterday},
		{"monday", time.Date(2024, 3, 11, 8, 0, 0, 0, time.UTC), BucketThisWeek},
		{"last sunday", time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC), BucketThisMonth},
		{"first of month", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), BucketThisMonth},
		{"last month", time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC), BucketOlder},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BucketOf(tt.at, now))
		})
	}
}

func TestBucketOfUsesNowLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	localNow := time.Date(2024, 3, 15, 1, 0, 0, 0, loc)
	// 23:30 UTC on the 14th is 01:30 on the 15th in UTC+2.
	assert.Equal(t, BucketToday, BucketOf(time.Date(2024, 3, 14, 23, 30, 0, 0, time.UTC), localNow))
}

func TestBucketOfWeekSpanningMonths(t *testing.T) {
	// Tuesday 2 April 2024; Monday 1 April is yesterday and Sunday 31 March is older.
	tuesday := time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, BucketYesterday, BucketOf(time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC), tuesday))
	assert.Equal(t, BucketOlder, BucketOf(time.Date(2024, 3, 31, 9, 0, 0, 0, time.UTC), tuesday))

	// Wednesday 3 April: Monday 1 April is this week.
	wednesday := tuesday.AddDate(0, 0, 1)
	assert.Equal(t, BucketThisWeek, BucketOf(time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC), wednesday))
}

func TestSortExpenses(t *testing.T) {
	list := []core.Expense{
		expense("a", "Food", 30, now.Add(-2*time.Hour)),
		expense("b", "Bills", 100, now.Add(-time.Hour)),
		expense("c", "Food", 5, now.Add(-3*time.Hour)),
		expense("d", "Fun", 30, now),
	}

	tests := []struct {
		key  SortKey
		dir  Direction
		want []string
	}{
		{SortByDate, Ascending, []string{"c", "a", "b", "d"}},
		{SortByDate, Descending, []string{"d", "b", "a", "c"}},
		{SortByAmount, Ascending, []string{"c", "a", "d", "b"}},
		{SortByAmount, Descending, []string{"b", "a", "d", "c"}},
		{SortByCategory, Ascending, []string{"b", "a", "c", "d"}},
		{SortByCategory, Descending, []string{"d", "a", "c", "b"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.key)+"_"+string(tt.dir), func(t *testing.T) {
			assert.Equal(t, tt.want, ids(SortExpenses(list, tt.key, tt.dir)))
		})
	}
	assert.Equal(t, "a", list[0].ID, "input is not reordered")
}

func TestFilter(t *testing.T) {
	list := []core.Expense{
		expense("a", "Food", 1, now),
		expense("b", "food", 1, now),
		expense("c", "Fun", 1, now),
	}
	assert.Equal(t, []string{"a"}, ids(Filter(list, "Food")))
	assert.Equal(t, []string{"a", "b", "c"}, ids(Filter(list, "")))
	assert.Empty(t, Filter(list, "Rent"))
}

func TestGroupExpenses(t *testing.T) {
	list := []core.Expense{
		expense("old", "Food", 9, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)),
		expense("t1", "Food", 5, now.Add(-time.Hour)),
		expense("t2", "Fun", 50, now.Add(-2*time.Hour)),
		expense("y", "Food", 7, now.AddDate(0, 0, -1)),
		expense("m", "Food", 3, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)),
	}

	groups := GroupExpenses(list, now, ViewOptions{Sort: SortByAmount, Direction: Ascending})
	require.Len(t, groups, 4)
	assert.Equal(t, BucketToday, groups[0].Bucket)
	assert.Equal(t, []string{"t1", "t2"}, ids(groups[0].Expenses))
	assert.Equal(t, BucketYesterday, groups[1].Bucket)
	assert.Equal(t, BucketThisMonth, groups[2].Bucket)
	assert.Equal(t, BucketOlder, groups[3].Bucket)

	food := GroupExpenses(list, now, ViewOptions{Category: "Food", Sort: SortByAmount, Direction: Descending})
	assert.Equal(t, []string{"t1"}, ids(food[0].Expenses))
}

func TestParseSortOptions(t *testing.T) {
	k, err := ParseSortKey(" Amount ")
	require.NoError(t, err)
	assert.Equal(t, SortByAmount, k)
	k, err = ParseSortKey("")
	require.NoError(t, err)
	assert.Equal(t, SortByDate, k)
	_, err = ParseSortKey("size")
	assert.True(t, core.IsValidationError(err))

	d, err := ParseDirection("")
	require.NoError(t, err)
	assert.Equal(t, Descending, d)
	assert.Equal(t, Ascending, d.Toggle())
	_, err = ParseDirection("up")
	assert.Error(t, err)
}

func TestSessionGroupsUseLocalState(t *testing.T) {
	e := newEnv(t)
	e.seedExpense(t, "Groceries", "Food", 40, now.AddDate(0, 0, -1))
	e.seedExpense(t, "Coffee", "Food", 2, now)
	e.login(t)

	groups := e.session.Groups(now, ViewOptions{})
	require.Len(t, groups, 2)
	assert.Equal(t, BucketToday, groups[0].Bucket)
	assert.Equal(t, "Coffee", groups[0].Expenses[0].Activity)

	view := e.session.View(ViewOptions{Sort: SortByAmount, Direction: Descending})
	assert.Equal(t, "Groceries", view[0].Activity)
}

func TestSerializerOrdersWaiters(t *testing.T) {
	q := newSerializer()
	never := make(chan struct{})

	r1, ok := q.enter(never, "x")
	require.True(t, ok)

	order := make(chan int, 2)
	go func() {
		r2, ok := q.enter(never, "x")
		if ok {
			order <- 2
			r2()
		}
	}()

	cancelled := make(chan struct{})
	close(cancelled)
	_, ok = q.enter(cancelled, "x")
	assert.False(t, ok)

	order <- 1
	r1()
	assert.Equal(t, 1, <-order)
	assert.Equal(t, 2, <-order)

	r3, ok := q.enter(never, "y")
	require.True(t, ok)
	r3()
}
