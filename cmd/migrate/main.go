// Command migrate applies the schema under migrations/ with goose.
//
// The subcommand is passed through to goose: up, down, status, version,
// redo, up-to N, down-to N. The target database comes from DATABASE_URL.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

const migrationsDir = "migrations"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		return fmt.Errorf("usage: migrate <up|down|status|version|redo|up-to N|down-to N>")
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	if err := goose.RunContext(ctx, os.Args[1], db, migrationsDir, os.Args[2:]...); err != nil {
		return fmt.Errorf("%s: %w", os.Args[1], err)
	}
	return nil
}
