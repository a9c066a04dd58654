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

	"budget/internal/auth"
	"budget/internal/backend"
	"budget/internal/cli"
	"budget/internal/config"
	"budget/internal/core"
	applog "budget/internal/log"
	"budget/internal/storage"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	cli.LoadEnvFile()
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg := config.Load()

	fs := flag.NewFlagSet("budget-adduser", flag.ContinueOnError)
	fs.SetOutput(stderr)
	name := fs.String("name", "", "Display name")
	email := fs.String("email", "", "Email address used to log in")
	secret := fs.String("secret", "", "Secret (optional, will prompt if omitted)")
	kind := fs.String("backend", cfg.DataBackend, "Data backend: sqlite or postgres")
	dbPath := fs.String("db", cfg.SQLiteDBPath, "Path to the SQLite database")
	dsn := fs.String("database-url", cfg.DatabaseURL, "Postgres connection URL")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *name == "" || *email == "" {
		fmt.Fprintln(stdout, "Usage: budget-adduser -name <name> -email <email> [-secret <secret>] [-backend sqlite|postgres] [-db <path>] [-database-url <url>]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: name, email")
	}
	if *kind == string(backend.MemoryBackend) {
		return fmt.Errorf("the memory backend does not outlive this command")
	}

	value := *secret
	if value == "" {
		var err error
		value, err = cli.ReadSecret(stdin, stdout, "Secret: ")
		if err != nil {
			return fmt.Errorf("failed to read secret: %w", err)
		}
	}
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("secret cannot be empty")
	}

	ctx := context.Background()
	logger := applog.New(applog.Config{Output: stderr, Level: slog.LevelWarn})
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backend.Config{
		Type:         backend.BackendType(*kind),
		SQLiteDBPath: *dbPath,
		DatabaseURL:  *dsn,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer res.Close()

	users := auth.NewUserService(res.Store, nil, bcrypt.DefaultCost)
	user, err := users.Register(ctx, *name, *email, value)
	if errors.Is(err, storage.ErrDuplicate) {
		return fmt.Errorf("user %s already exists", core.NormalizeEmail(*email))
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(stdout, "User %s created successfully with ID %s\n", user.Email, user.ID)
	return nil
}
