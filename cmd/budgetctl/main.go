// Command budgetctl is a terminal client for the budget API. It logs in,
// loads one month and runs a single command against it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"budget/internal/cli"
	"budget/internal/config"
	"budget/internal/core"
	applog "budget/internal/log"
	"budget/internal/session"
)

// clock is replaced in tests.
var clock = time.Now

const usage = `Usage: budgetctl [global flags] <command> [command flags]

Commands:
  register -name <name>                     create the account for -email
  list [-sort date|amount|category] [-dir asc|desc] [-category <label>]
  summary                                   income, totals and category progress
  add -activity <text> -amount <n> -category <label> [-date YYYY-MM-DD]
  budget -category <label> -amount <n>      add a category budget
  rename -id <budget id> -category <label>  relabel a category budget
  income -amount <n>                        set the month's income
  rm expense|budget|income <id>

Global flags:`

func main() {
	cli.LoadEnvFile()
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globals struct {
	api    string
	email  string
	secret string
	month  string
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg := config.Load()

	var g globals
	fs := flag.NewFlagSet("budgetctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, usage)
		fs.PrintDefaults()
	}
	fs.StringVar(&g.api, "api", cfg.APIBaseURL, "Budget API base URL")
	fs.StringVar(&g.email, "email", os.Getenv("BUDGET_EMAIL"), "Account email")
	fs.StringVar(&g.secret, "secret", os.Getenv("BUDGET_SECRET"), "Account secret (prompted when empty)")
	fs.StringVar(&g.month, "month", "", "Month to work on (YYYY-MM, default current)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}
	if g.email == "" {
		return errors.New("-email is required")
	}

	name, rest := fs.Arg(0), fs.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}

	if g.secret == "" {
		secret, err := cli.ReadSecret(stdin, stderr, "Secret: ")
		if err != nil {
			return fmt.Errorf("failed to read secret: %w", err)
		}
		g.secret = secret
	}

	client, err := session.NewClient(g.api, nil)
	if err != nil {
		return err
	}
	logger := applog.New(applog.Config{Output: stderr, Level: slog.LevelWarn, Component: applog.ComponentSession})

	env := &cmdEnv{
		globals: g,
		client:  client,
		out:     newPrinter(stdout, clock().Location()),
		stderr:  stderr,
	}
	if cmd.anonymous {
		return cmd.run(ctx, env, rest)
	}

	env.sess = session.New(client, session.WithClock(clock), session.WithLogger(logger))
	if err := env.sess.Login(ctx, g.email, g.secret); err != nil {
		return err
	}
	if g.month != "" {
		m, err := core.ParseMonth(strings.TrimSpace(g.month))
		if err != nil {
			return err
		}
		if m != env.sess.Month() {
			if err := env.sess.SelectMonth(ctx, m); err != nil {
				return err
			}
		}
	}
	return cmd.run(ctx, env, rest)
}
