package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"budget/internal/core"

	"github.com/google/uuid"
)

// SQLRepository implements Store over database/sql for SQLite and Postgres.
// Timestamps are persisted as Unix milliseconds.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
}

var _ Store = (*SQLRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(DialectSQLite, dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLRepository{db: db, dialect: DialectSQLite}, nil
}

func NewPostgresRepository(ctx context.Context, dsn string) (*SQLRepository, error) {
	if err := RunMigrations(DialectPostgres, dsn); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLRepository{db: db, dialect: DialectPostgres}, nil
}

func (r *SQLRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.dialect.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SQLRepository) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.db.QueryContext(ctx, r.dialect.rebind(query), args...)
}

func (r *SQLRepository) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.db.QueryRowContext(ctx, r.dialect.rebind(query), args...)
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func newID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

// affected maps a zero row count to a NotFound error.
func affected(n int64, err error, kind, id string) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return core.NewNotFound(kind, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// Expenses

const expenseColumns = `id, owner_id, activity, amount_cents, category, category_id, created_at, updated_at`

func scanExpense(s scanner) (core.Expense, error) {
	var (
		e                core.Expense
		created, updated int64
	)
	if err := s.Scan(&e.ID, &e.OwnerID, &e.Activity, &e.Amount.Cents, &e.Category, &e.CategoryID, &created, &updated); err != nil {
		return core.Expense{}, err
	}
	e.CreatedAt = fromMillis(created)
	e.UpdatedAt = fromMillis(updated)
	return e, nil
}

func (r *SQLRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	e.ID = newID(e.ID)
	_, err := r.exec(ctx,
		`INSERT INTO expenses (`+expenseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OwnerID, e.Activity, e.Amount.Cents, e.Category, e.CategoryID, millis(e.CreatedAt), millis(e.UpdatedAt))
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	slog.DebugContext(ctx, "Expense saved", "id", e.ID, "owner", e.OwnerID, "amount_cents", e.Amount.Cents)
	return r.GetExpense(ctx, e.ID)
}

func (r *SQLRepository) UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	n, err := r.exec(ctx,
		`UPDATE expenses SET activity = ?, amount_cents = ?, category = ?, category_id = ?, created_at = ?, updated_at = ? WHERE id = ?`,
		e.Activity, e.Amount.Cents, e.Category, e.CategoryID, millis(e.CreatedAt), millis(e.UpdatedAt), e.ID)
	if err := affected(n, err, KindExpense, e.ID); err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	return r.GetExpense(ctx, e.ID)
}

func (r *SQLRepository) DeleteExpense(ctx context.Context, id string) error {
	n, err := r.exec(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err := affected(n, err, KindExpense, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return nil
}

func (r *SQLRepository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	e, err := scanExpense(r.queryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.NewNotFound(KindExpense, id)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

func (r *SQLRepository) ListExpenses(ctx context.Context, ownerID string, start, end time.Time) ([]core.Expense, error) {
	rows, err := r.query(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE owner_id = ? AND created_at >= ? AND created_at < ? ORDER BY created_at, id`,
		ownerID, millis(start), millis(end))
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	out := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLRepository) RelabelExpenses(ctx context.Context, ownerID, categoryID, label string) ([]core.Month, error) {
	if categoryID == "" {
		return nil, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin relabel: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		r.dialect.rebind(`SELECT DISTINCT created_at FROM expenses WHERE owner_id = ? AND category_id = ?`),
		ownerID, categoryID)
	if err != nil {
		return nil, fmt.Errorf("select relabelled expenses: %w", err)
	}
	var dates []time.Time
	for rows.Next() {
		var ms int64
		if err := rows.Scan(&ms); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan created_at: %w", err)
		}
		dates = append(dates, fromMillis(ms))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		r.dialect.rebind(`UPDATE expenses SET category = ? WHERE owner_id = ? AND category_id = ?`),
		label, ownerID, categoryID); err != nil {
		return nil, fmt.Errorf("relabel expenses: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit relabel: %w", err)
	}
	return DistinctMonths(dates), nil
}

// Category budgets

const budgetColumns = `id, owner_id, category, budget_cents, created_at, updated_at`

func scanBudget(s scanner) (core.CategoryBudget, error) {
	var (
		b                core.CategoryBudget
		created, updated int64
	)
	if err := s.Scan(&b.ID, &b.OwnerID, &b.Category, &b.Budget.Cents, &created, &updated); err != nil {
		return core.CategoryBudget{}, err
	}
	b.CreatedAt = fromMillis(created)
	b.UpdatedAt = fromMillis(updated)
	return b, nil
}

func (r *SQLRepository) CreateBudget(ctx context.Context, b core.CategoryBudget) (core.CategoryBudget, error) {
	b.ID = newID(b.ID)
	_, err := r.exec(ctx,
		`INSERT INTO category_budgets (`+budgetColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.OwnerID, b.Category, b.Budget.Cents, millis(b.CreatedAt), millis(b.UpdatedAt))
	if err != nil {
		return core.CategoryBudget{}, fmt.Errorf("create budget: %w", err)
	}
	return r.GetBudget(ctx, b.ID)
}

func (r *SQLRepository) UpdateBudget(ctx context.Context, b core.CategoryBudget) (core.CategoryBudget, error) {
	n, err := r.exec(ctx,
		`UPDATE category_budgets SET category = ?, budget_cents = ?, created_at = ?, updated_at = ? WHERE id = ?`,
		b.Category, b.Budget.Cents, millis(b.CreatedAt), millis(b.UpdatedAt), b.ID)
	if err := affected(n, err, KindBudget, b.ID); err != nil {
		return core.CategoryBudget{}, fmt.Errorf("update budget: %w", err)
	}
	return r.GetBudget(ctx, b.ID)
}

// DeleteBudget removes the budget row only; expenses carrying its label or id
// are left untouched.
func (r *SQLRepository) DeleteBudget(ctx context.Context, id string) error {
	n, err := r.exec(ctx, `DELETE FROM category_budgets WHERE id = ?`, id)
	if err := affected(n, err, KindBudget, id); err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return nil
}

func (r *SQLRepository) GetBudget(ctx context.Context, id string) (core.CategoryBudget, error) {
	b, err := scanBudget(r.queryRow(ctx, `SELECT `+budgetColumns+` FROM category_budgets WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.CategoryBudget{}, core.NewNotFound(KindBudget, id)
	}
	if err != nil {
		return core.CategoryBudget{}, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

func (r *SQLRepository) ListBudgets(ctx context.Context, ownerID string, start, end time.Time) ([]core.CategoryBudget, error) {
	rows, err := r.query(ctx,
		`SELECT `+budgetColumns+` FROM category_budgets WHERE owner_id = ? AND created_at >= ? AND created_at < ? ORDER BY created_at, id`,
		ownerID, millis(start), millis(end))
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	out := []core.CategoryBudget{}
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Incomes

const incomeColumns = `id, owner_id, amount_cents, created_at, updated_at`

func scanIncome(s scanner) (core.Income, error) {
	var (
		in               core.Income
		created, updated int64
	)
	if err := s.Scan(&in.ID, &in.OwnerID, &in.Amount.Cents, &created, &updated); err != nil {
		return core.Income{}, err
	}
	in.CreatedAt = fromMillis(created)
	in.UpdatedAt = fromMillis(updated)
	return in, nil
}

func (r *SQLRepository) CreateIncome(ctx context.Context, in core.Income) (core.Income, error) {
	in.ID = newID(in.ID)
	_, err := r.exec(ctx,
		`INSERT INTO incomes (`+incomeColumns+`) VALUES (?, ?, ?, ?, ?)`,
		in.ID, in.OwnerID, in.Amount.Cents, millis(in.CreatedAt), millis(in.UpdatedAt))
	if err != nil {
		return core.Income{}, fmt.Errorf("create income: %w", err)
	}
	return r.GetIncome(ctx, in.ID)
}

func (r *SQLRepository) UpdateIncome(ctx context.Context, in core.Income) (core.Income, error) {
	n, err := r.exec(ctx,
		`UPDATE incomes SET amount_cents = ?, created_at = ?, updated_at = ? WHERE id = ?`,
		in.Amount.Cents, millis(in.CreatedAt), millis(in.UpdatedAt), in.ID)
	if err := affected(n, err, KindIncome, in.ID); err != nil {
		return core.Income{}, fmt.Errorf("update income: %w", err)
	}
	return r.GetIncome(ctx, in.ID)
}

func (r *SQLRepository) DeleteIncome(ctx context.Context, id string) error {
	n, err := r.exec(ctx, `DELETE FROM incomes WHERE id = ?`, id)
	if err := affected(n, err, KindIncome, id); err != nil {
		return fmt.Errorf("delete income: %w", err)
	}
	return nil
}

func (r *SQLRepository) GetIncome(ctx context.Context, id string) (core.Income, error) {
	in, err := scanIncome(r.queryRow(ctx, `SELECT `+incomeColumns+` FROM incomes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Income{}, core.NewNotFound(KindIncome, id)
	}
	if err != nil {
		return core.Income{}, fmt.Errorf("get income: %w", err)
	}
	return in, nil
}

func (r *SQLRepository) ListIncomes(ctx context.Context, ownerID string, start, end time.Time) ([]core.Income, error) {
	rows, err := r.query(ctx,
		`SELECT `+incomeColumns+` FROM incomes WHERE owner_id = ? AND created_at >= ? AND created_at < ? ORDER BY created_at, id`,
		ownerID, millis(start), millis(end))
	if err != nil {
		return nil, fmt.Errorf("list incomes: %w", err)
	}
	defer rows.Close()

	out := []core.Income{}
	for rows.Next() {
		in, err := scanIncome(rows)
		if err != nil {
			return nil, fmt.Errorf("scan income: %w", err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// Users

const userColumns = `id, name, email, secret_hash, created_at`

func scanUser(s scanner) (core.User, error) {
	var (
		u       core.User
		created int64
	)
	if err := s.Scan(&u.ID, &u.Name, &u.Email, &u.SecretHash, &created); err != nil {
		return core.User{}, err
	}
	u.CreatedAt = fromMillis(created)
	return u, nil
}

func (r *SQLRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	u.ID = newID(u.ID)
	_, err := r.exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.SecretHash, millis(u.CreatedAt))
	if isUniqueViolation(err) {
		return core.User{}, fmt.Errorf("create user %s: %w", u.Email, ErrDuplicate)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	return r.GetUser(ctx, u.ID)
}

func (r *SQLRepository) GetUser(ctx context.Context, id string) (core.User, error) {
	u, err := scanUser(r.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.NewNotFound(KindUser, id)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *SQLRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	u, err := scanUser(r.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.NewNotFound(KindUser, email)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}
