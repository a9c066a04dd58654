// Package session is the client side of the budget API: an explicit login
// session holding one month of records, optimistic mutations that roll back
// on failure, and the grouped and sorted views built from local state.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"budget/internal/core"
	applog "budget/internal/log"
	"budget/internal/storage"

	"golang.org/x/sync/errgroup"
)

// State is the session lifecycle: Unauthenticated, Resolving while the
// credentials are checked, Loaded once a user is bound.
type State int

const (
	Unauthenticated State = iota
	Resolving
	Loaded
)

func (s State) String() string {
	switch s {
	case Resolving:
		return "resolving"
	case Loaded:
		return "loaded"
	default:
		return "unauthenticated"
	}
}

var (
	ErrNotLoaded      = errors.New("session is not logged in")
	ErrLoginInFlight  = errors.New("login already in progress")
	ErrSessionChanged = errors.New("session changed while the request was in flight")
)

type Option func(*Session)

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func WithLogger(l *applog.Logger) Option {
	return func(s *Session) { s.logger = l.WithComponent(applog.ComponentSession) }
}

// Session is safe for concurrent use. Every read returns copies.
type Session struct {
	client *Client
	now    func() time.Time
	logger *applog.Logger
	ops    *serializer

	mu        sync.Mutex
	state     State
	user      core.User
	expiresAt time.Time
	api       *Client
	month     core.Month
	// epoch changes on login, logout and month selection; responses from an
	// older epoch are dropped.
	epoch   uint64
	fetched map[string]bool
	pending map[string]int
	tempSeq int

	expenses collection[core.Expense]
	budgets  collection[core.CategoryBudget]
	incomes  collection[core.Income]
}

func New(client *Client, opts ...Option) *Session {
	s := &Session{
		client:   client,
		now:      time.Now,
		logger:   applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentSession),
		ops:      newSerializer(),
		fetched:  make(map[string]bool),
		pending:  make(map[string]int),
		expenses: collection[core.Expense]{idOf: func(e core.Expense) string { return e.ID }},
		budgets:  collection[core.CategoryBudget]{idOf: func(b core.CategoryBudget) string { return b.ID }},
		incomes:  collection[core.Income]{idOf: func(i core.Income) string { return i.ID }},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login resolves the credentials, binds the user and loads the current
// month. A failed login leaves the session Unauthenticated and empty.
func (s *Session) Login(ctx context.Context, email, secret string) error {
	s.mu.Lock()
	if s.state == Resolving {
		s.mu.Unlock()
		return ErrLoginInFlight
	}
	s.resetLocked()
	s.state = Resolving
	epoch := s.epoch
	s.mu.Unlock()

	cred, err := s.client.Login(ctx, core.NormalizeEmail(email), secret)

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return ErrSessionChanged
	}
	if err != nil {
		s.resetLocked()
		s.mu.Unlock()
		s.logger.WarnContext(ctx, "Login failed", applog.FieldOperation, applog.OpLogin, applog.FieldError, err)
		return fmt.Errorf("login: %w", err)
	}
	s.user = cred.User
	s.expiresAt = cred.ExpiresAt
	s.api = s.client.WithToken(cred.Token)
	s.month = core.CurrentMonth(s.now())
	s.state = Loaded
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Logged in", applog.FieldUserID, cred.User.ID, applog.FieldOperation, applog.OpLogin)
	return s.load(ctx)
}

// Logout forgets the user, the token and every local list.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Session) resetLocked() {
	s.epoch++
	s.state = Unauthenticated
	s.user = core.User{}
	s.expiresAt = time.Time{}
	s.api = nil
	s.month = core.Month{}
	s.clearListsLocked()
}

func (s *Session) clearListsLocked() {
	s.expenses.reset(nil)
	s.budgets.reset(nil)
	s.incomes.reset(nil)
	clear(s.fetched)
	clear(s.pending)
}

// SelectMonth drops the current lists and loads m.
func (s *Session) SelectMonth(ctx context.Context, m core.Month) error {
	s.mu.Lock()
	if s.state != Loaded {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	s.month = m
	s.epoch++
	s.clearListsLocked()
	s.mu.Unlock()
	return s.load(ctx)
}

// Refresh reloads the selected month.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Loaded {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	s.mu.Unlock()
	return s.load(ctx)
}

// load runs the three list fetches concurrently. Each list is stored as
// soon as its own fetch returns; one failing does not stop the others.
func (s *Session) load(ctx context.Context) error {
	s.mu.Lock()
	epoch, month, api := s.epoch, s.month, s.api
	s.mu.Unlock()

	var g errgroup.Group
	g.Go(func() error {
		items, err := api.ListExpenses(ctx, month)
		if err != nil {
			return fmt.Errorf("list expenses: %w", err)
		}
		s.applyFetch(epoch, storage.KindExpense, func() { s.expenses.reset(items) })
		return nil
	})
	g.Go(func() error {
		items, err := api.ListBudgets(ctx, month)
		if err != nil {
			return fmt.Errorf("list category budgets: %w", err)
		}
		s.applyFetch(epoch, storage.KindBudget, func() { s.budgets.reset(items) })
		return nil
	})
	g.Go(func() error {
		items, err := api.ListIncomes(ctx, month)
		if err != nil {
			return fmt.Errorf("list income: %w", err)
		}
		s.applyFetch(epoch, storage.KindIncome, func() { s.incomes.reset(items) })
		return nil
	})

	err := g.Wait()
	if err != nil {
		s.logger.WarnContext(ctx, "Month load incomplete", applog.FieldMonth, month.String(), applog.FieldError, err)
	}
	return err
}

func (s *Session) applyFetch(epoch uint64, kind string, apply func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return
	}
	apply()
	s.fetched[kind] = true
}

// State reports where the session is in its lifecycle.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) User() core.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *Session) Month() core.Month {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.month
}

// ExpiresAt is when the current token stops being accepted.
func (s *Session) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt
}

// Fetched reports whether the list of the given record kind has arrived
// for the selected month.
func (s *Session) Fetched(kind string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetched[kind]
}

// IsPending reports whether a mutation of the record is still in flight.
func (s *Session) IsPending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[id] > 0
}

func (s *Session) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.pending {
		n += c
	}
	return n
}

func (s *Session) Expenses() []core.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expenses.snapshot()
}

func (s *Session) Budgets() []core.CategoryBudget {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.budgets.snapshot()
}

func (s *Session) Incomes() []core.Income {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.incomes.snapshot()
}

// Income is the current income of the selected month.
func (s *Session) Income() core.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.CurrentIncome(s.incomes.items)
}

// Summary aggregates the local lists.
func (s *Session) Summary() core.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.Summarize(s.expenses.items, s.budgets.items, core.CurrentIncome(s.incomes.items))
}

// Categories lists the budgeted category labels in display order.
func (s *Session) Categories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.budgets.items))
	for _, b := range s.budgets.items {
		out = append(out, b.Category)
	}
	return out
}

func (s *Session) markPendingLocked(id string) { s.pending[id]++ }

func (s *Session) unmarkPendingLocked(id string) {
	if s.pending[id] <= 1 {
		delete(s.pending, id)
		return
	}
	s.pending[id]--
}
