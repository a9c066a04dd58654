package session

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"budget/internal/core"
)

// Bucket is a recency group of the expense list.
type Bucket string

const (
	BucketToday     Bucket = "Today"
	BucketYesterday Bucket = "Yesterday"
	BucketThisWeek  Bucket = "This Week"
	BucketThisMonth Bucket = "This Month"
	BucketOlder     Bucket = "Older"
)

var bucketOrder = []Bucket{BucketToday, BucketYesterday, BucketThisWeek, BucketThisMonth, BucketOlder}

type SortKey string

const (
	SortByDate     SortKey = "date"
	SortByAmount   SortKey = "amount"
	SortByCategory SortKey = "category"
)

type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// ParseSortKey accepts date, amount or category; empty means date.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return SortByDate, nil
	case SortByDate, SortByAmount, SortByCategory:
		return k, nil
	default:
		return "", core.NewValidationError("sort", fmt.Sprintf("unknown sort key %q", s))
	}
}

// ParseDirection accepts asc or desc; empty means desc.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return Descending, nil
	case Ascending, Descending:
		return d, nil
	default:
		return "", core.NewValidationError("direction", fmt.Sprintf("unknown direction %q", s))
	}
}

// Toggle flips the direction, the way a column header click does.
func (d Direction) Toggle() Direction {
	if d == Ascending {
		return Descending
	}
	return Ascending
}

// ViewOptions selects what the expense list shows.
type ViewOptions struct {
	// Category limits the list to one label; empty shows every category.
	Category  string
	Sort      SortKey
	Direction Direction
}

type Group struct {
	Bucket   Bucket
	Expenses []core.Expense
}

// Filter keeps the expenses labeled exactly category. Empty keeps all.
func Filter(expenses []core.Expense, category string) []core.Expense {
	out := make([]core.Expense, 0, len(expenses))
	for _, e := range expenses {
		if category == "" || e.Category == category {
			out = append(out, e)
		}
	}
	return out
}

// SortExpenses returns a sorted copy. Ties keep their input order.
func SortExpenses(expenses []core.Expense, key SortKey, dir Direction) []core.Expense {
	out := append([]core.Expense(nil), expenses...)
	less := func(a, b core.Expense) bool {
		switch key {
		case SortByAmount:
			return a.Amount.Cents < b.Amount.Cents
		case SortByCategory:
			return a.Category < b.Category
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if dir == Ascending {
			return less(out[i], out[j])
		}
		return less(out[j], out[i])
	})
	return out
}

// BucketOf places t relative to now, in now's location. Weeks start on
// Monday. Timestamps after now count as today.
func BucketOf(t, now time.Time) Bucket {
	loc := now.Location()
	today := startOfDay(now)
	day := startOfDay(t.In(loc))

	switch {
	case !day.Before(today):
		return BucketToday
	case day.Equal(today.AddDate(0, 0, -1)):
		return BucketYesterday
	}

	offset := (int(today.Weekday()) + 6) % 7
	if !day.Before(today.AddDate(0, 0, -offset)) {
		return BucketThisWeek
	}
	if day.Year() == today.Year() && day.Month() == today.Month() {
		return BucketThisMonth
	}
	return BucketOlder
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// GroupExpenses filters, sorts and buckets expenses. Sorting applies within
// each group; empty groups are left out.
func GroupExpenses(expenses []core.Expense, now time.Time, opts ViewOptions) []Group {
	sorted := SortExpenses(Filter(expenses, opts.Category), opts.Sort, opts.Direction)

	byBucket := make(map[Bucket][]core.Expense, len(bucketOrder))
	for _, e := range sorted {
		b := BucketOf(e.CreatedAt, now)
		byBucket[b] = append(byBucket[b], e)
	}

	groups := make([]Group, 0, len(byBucket))
	for _, b := range bucketOrder {
		if items := byBucket[b]; len(items) > 0 {
			groups = append(groups, Group{Bucket: b, Expenses: items})
		}
	}
	return groups
}

// Groups renders the local expense list.
func (s *Session) Groups(now time.Time, opts ViewOptions) []Group {
	return GroupExpenses(s.Expenses(), now, opts)
}

// View is the filtered and sorted list without bucketing.
func (s *Session) View(opts ViewOptions) []core.Expense {
	return SortExpenses(Filter(s.Expenses(), opts.Category), opts.Sort, opts.Direction)
}
