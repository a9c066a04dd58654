// Package memory provides an in-process record store used for development
// and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"budget/internal/core"
	"budget/internal/storage"

	"github.com/google/uuid"
)

type Store struct {
	mu       sync.RWMutex
	expenses map[string]core.Expense
	budgets  map[string]core.CategoryBudget
	incomes  map[string]core.Income
	users    map[string]core.User
	emails   map[string]string // email -> user id
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		expenses: make(map[string]core.Expense),
		budgets:  make(map[string]core.CategoryBudget),
		incomes:  make(map[string]core.Income),
		users:    make(map[string]core.User),
		emails:   make(map[string]string),
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func assignID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

// listRange returns the owner's records with start <= created < end ordered
// by creation time, then id.
func listRange[T any](m map[string]T, owner string, start, end time.Time, key func(T) (id, owner string, created time.Time)) []T {
	out := []T{}
	for _, v := range m {
		_, o, c := key(v)
		if o == owner && !c.Before(start) && c.Before(end) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ii, _, ci := key(out[i])
		ij, _, cj := key(out[j])
		if !ci.Equal(cj) {
			return ci.Before(cj)
		}
		return ii < ij
	})
	return out
}

// Expenses

func expenseKey(e core.Expense) (string, string, time.Time) { return e.ID, e.OwnerID, e.CreatedAt }

func (s *Store) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = assignID(e.ID)
	if _, ok := s.expenses[e.ID]; ok {
		return core.Expense{}, fmt.Errorf("create expense %s: %w", e.ID, storage.ErrDuplicate)
	}
	s.expenses[e.ID] = e
	return e, nil
}

func (s *Store) UpdateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.expenses[e.ID]
	if !ok {
		return core.Expense{}, core.NewNotFound(storage.KindExpense, e.ID)
	}
	e.OwnerID = cur.OwnerID
	s.expenses[e.ID] = e
	return e, nil
}

func (s *Store) DeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expenses[id]; !ok {
		return core.NewNotFound(storage.KindExpense, id)
	}
	delete(s.expenses, id)
	return nil
}

func (s *Store) GetExpense(_ context.Context, id string) (core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.expenses[id]
	if !ok {
		return core.Expense{}, core.NewNotFound(storage.KindExpense, id)
	}
	return e, nil
}

func (s *Store) ListExpenses(_ context.Context, ownerID string, start, end time.Time) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listRange(s.expenses, ownerID, start, end, expenseKey), nil
}

func (s *Store) RelabelExpenses(_ context.Context, ownerID, categoryID, label string) ([]core.Month, error) {
	if categoryID == "" {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var dates []time.Time
	for id, e := range s.expenses {
		if e.OwnerID == ownerID && e.CategoryID == categoryID {
			e.Category = label
			s.expenses[id] = e
			dates = append(dates, e.CreatedAt)
		}
	}
	return storage.DistinctMonths(dates), nil
}

// Category budgets

func budgetKey(b core.CategoryBudget) (string, string, time.Time) { return b.ID, b.OwnerID, b.CreatedAt }

func (s *Store) CreateBudget(_ context.Context, b core.CategoryBudget) (core.CategoryBudget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = assignID(b.ID)
	if _, ok := s.budgets[b.ID]; ok {
		return core.CategoryBudget{}, fmt.Errorf("create budget %s: %w", b.ID, storage.ErrDuplicate)
	}
	s.budgets[b.ID] = b
	return b, nil
}

func (s *Store) UpdateBudget(_ context.Context, b core.CategoryBudget) (core.CategoryBudget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.budgets[b.ID]
	if !ok {
		return core.CategoryBudget{}, core.NewNotFound(storage.KindBudget, b.ID)
	}
	b.OwnerID = cur.OwnerID
	s.budgets[b.ID] = b
	return b, nil
}

func (s *Store) DeleteBudget(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.budgets[id]; !ok {
		return core.NewNotFound(storage.KindBudget, id)
	}
	delete(s.budgets, id)
	return nil
}

func (s *Store) GetBudget(_ context.Context, id string) (core.CategoryBudget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.budgets[id]
	if !ok {
		return core.CategoryBudget{}, core.NewNotFound(storage.KindBudget, id)
	}
	return b, nil
}

func (s *Store) ListBudgets(_ context.Context, ownerID string, start, end time.Time) ([]core.CategoryBudget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listRange(s.budgets, ownerID, start, end, budgetKey), nil
}

// Incomes

func incomeKey(in core.Income) (string, string, time.Time) { return in.ID, in.OwnerID, in.CreatedAt }

func (s *Store) CreateIncome(_ context.Context, in core.Income) (core.Income, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in.ID = assignID(in.ID)
	if _, ok := s.incomes[in.ID]; ok {
		return core.Income{}, fmt.Errorf("create income %s: %w", in.ID, storage.ErrDuplicate)
	}
	s.incomes[in.ID] = in
	return in, nil
}

func (s *Store) UpdateIncome(_ context.Context, in core.Income) (core.Income, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.incomes[in.ID]
	if !ok {
		return core.Income{}, core.NewNotFound(storage.KindIncome, in.ID)
	}
	in.OwnerID = cur.OwnerID
	s.incomes[in.ID] = in
	return in, nil
}

func (s *Store) DeleteIncome(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.incomes[id]; !ok {
		return core.NewNotFound(storage.KindIncome, id)
	}
	delete(s.incomes, id)
	return nil
}

func (s *Store) GetIncome(_ context.Context, id string) (core.Income, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	in, ok := s.incomes[id]
	if !ok {
		return core.Income{}, core.NewNotFound(storage.KindIncome, id)
	}
	return in, nil
}

func (s *Store) ListIncomes(_ context.Context, ownerID string, start, end time.Time) ([]core.Income, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listRange(s.incomes, ownerID, start, end, incomeKey), nil
}

// Users

func (s *Store) CreateUser(_ context.Context, u core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.emails[u.Email]; ok {
		return core.User{}, fmt.Errorf("create user %s: %w", u.Email, storage.ErrDuplicate)
	}
	u.ID = assignID(u.ID)
	s.users[u.ID] = u
	s.emails[u.Email] = u.ID
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, core.NewNotFound(storage.KindUser, id)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[email]
	if !ok {
		return core.User{}, core.NewNotFound(storage.KindUser, email)
	}
	return s.users[id], nil
}
