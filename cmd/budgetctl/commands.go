package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"budget/internal/core"
	"budget/internal/session"
)

type cmdEnv struct {
	globals
	client *session.Client
	sess   *session.Session
	out    *printer
	stderr io.Writer
}

type command struct {
	// anonymous commands run without logging in.
	anonymous bool
	run       func(ctx context.Context, env *cmdEnv, args []string) error
}

var commands = map[string]command{
	"register": {anonymous: true, run: runRegister},
	"list":     {run: runList},
	"summary":  {run: runSummary},
	"add":      {run: runAdd},
	"budget":   {run: runBudget},
	"rename":   {run: runRename},
	"income":   {run: runIncome},
	"rm":       {run: runRemove},
}

func (env *cmdEnv) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("budgetctl "+name, flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	return fs
}

func runRegister(ctx context.Context, env *cmdEnv, args []string) error {
	fs := env.flags("register")
	name := fs.String("name", "", "Display name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*name) == "" {
		return errors.New("-name is required")
	}
	user, err := env.client.Register(ctx, *name, env.email, env.secret)
	if err != nil {
		if errors.Is(err, session.ErrConflict) {
			return fmt.Errorf("user %s already exists", core.NormalizeEmail(env.email))
		}
		return err
	}
	env.out.line("Registered %s with ID %s", user.Email, user.ID)
	return nil
}

func runList(_ context.Context, env *cmdEnv, args []string) error {
	fs := env.flags("list")
	sortBy := fs.String("sort", "", "Sort key: date, amount or category")
	dir := fs.String("dir", "", "Direction: asc or desc")
	category := fs.String("category", "", "Only show this category")
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, err := session.ParseSortKey(*sortBy)
	if err != nil {
		return err
	}
	d, err := session.ParseDirection(*dir)
	if err != nil {
		return err
	}

	groups := env.sess.Groups(clock(), session.ViewOptions{Category: *category, Sort: key, Direction: d})
	env.out.title(env.sess.Month(), env.sess.User())
	if len(groups) == 0 {
		env.out.line("No expenses.")
		return nil
	}
	for _, g := range groups {
		env.out.group(g)
	}
	return nil
}

func runSummary(_ context.Context, env *cmdEnv, args []string) error {
	if err := env.flags("summary").Parse(args); err != nil {
		return err
	}
	env.out.title(env.sess.Month(), env.sess.User())
	env.out.summary(env.sess.Summary())
	return nil
}

func runAdd(ctx context.Context, env *cmdEnv, args []string) error {
	fs := env.flags("add")
	activity := fs.String("activity", "", "What the money was spent on")
	amount := fs.String("amount", "", "Amount, e.g. 12.50")
	category := fs.String("category", "", "Category label")
	date := fs.String("date", "", "Date (YYYY-MM-DD, default now)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	money, err := core.NewMoney(*amount)
	if err != nil {
		return err
	}

	f := session.ExpenseFields{Activity: activity, Amount: &money, Category: category}
	// Link the expense to the budget carrying the same label.
	for _, b := range env.sess.Budgets() {
		if b.Category == *category {
			f.CategoryID = &b.ID
			break
		}
	}
	if *date != "" {
		at, err := time.Parse(time.DateOnly, *date)
		if err != nil {
			return fmt.Errorf("invalid -date %q: %w", *date, err)
		}
		f.CreatedAt = &at
	}

	e, err := env.sess.AddExpense(ctx, f)
	if err != nil {
		return err
	}
	env.out.line("Added expense %s: %s %s (%s)", e.ID, e.Activity, e.Amount, e.Category)
	return nil
}

func runBudget(ctx context.Context, env *cmdEnv, args []string) error {
	fs := env.flags("budget")
	category := fs.String("category", "", "Category label")
	amount := fs.String("amount", "", "Monthly ceiling, e.g. 300")
	if err := fs.Parse(args); err != nil {
		return err
	}
	money, err := core.NewMoney(*amount)
	if err != nil {
		return err
	}
	b, err := env.sess.AddBudget(ctx, session.BudgetFields{Category: category, Budget: &money})
	if err != nil {
		return err
	}
	env.out.line("Added budget %s: %s %s", b.ID, b.Category, b.Budget)
	return nil
}

func runRename(ctx context.Context, env *cmdEnv, args []string) error {
	fs := env.flags("rename")
	id := fs.String("id", "", "Category budget ID")
	category := fs.String("category", "", "New label")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("-id is required")
	}
	b, err := env.sess.EditBudget(ctx, *id, session.BudgetFields{Category: category})
	if err != nil {
		return err
	}
	env.out.line("Renamed budget %s to %s", b.ID, b.Category)
	return nil
}

func runIncome(ctx context.Context, env *cmdEnv, args []string) error {
	fs := env.flags("income")
	amount := fs.String("amount", "", "Monthly income, e.g. 2500")
	if err := fs.Parse(args); err != nil {
		return err
	}
	money, err := core.NewMoney(*amount)
	if err != nil {
		return err
	}
	in, err := env.sess.SetIncome(ctx, money)
	if err != nil {
		return err
	}
	env.out.line("Income for %s set to %s", env.sess.Month(), in.Amount)
	return nil
}

func runRemove(ctx context.Context, env *cmdEnv, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: rm expense|budget|income <id>")
	}
	kind, id := args[0], args[1]
	var err error
	switch kind {
	case "expense":
		err = env.sess.DeleteExpense(ctx, id)
	case "budget":
		err = env.sess.DeleteBudget(ctx, id)
	case "income":
		err = env.sess.DeleteIncome(ctx, id)
	default:
		return fmt.Errorf("unknown record kind %q", kind)
	}
	if err != nil {
		return err
	}
	env.out.line("Deleted %s %s", kind, id)
	return nil
}
