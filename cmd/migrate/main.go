// Package main is the standalone migration tool. It runs the same
// embedded migrations the bot applies at startup, for deployments that
// migrate from CI instead.
//
// Usage:
//
//	migrate up      apply all pending migrations
//	migrate down    roll back the most recent migration
//	migrate status  print each migration and whether it is applied
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/questline-hub/questline-bot/config"
	"github.com/questline-hub/questline-bot/internal/infrastructure/persistence/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		return fmt.Errorf("usage: migrate <up|down|status>")
	}
	command := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// A small pool is plenty; migrations run one statement stream.
	poolCfg := postgres.Config{
		URL:             cfg.Database.URL,
		MinConns:        1,
		MaxConns:        2,
		AcquireTimeout:  cfg.Database.AcquireTimeout,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		DialTimeout:     cfg.Database.DialTimeout,
	}
	dialer := postgres.NewDialer(cfg.Database.URL, poolCfg.DialTimeout)

	pool, err := postgres.NewPool(ctx, poolCfg, dialer.AsDialFunc(), log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		_ = pool.Close(closeCtx)
	}()

	sessions := postgres.NewSessionManager(pool, postgres.DefaultSessionConfig(), log)
	migrator := postgres.NewMigrator(sessions, log)

	switch command {
	case "up":
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
		fmt.Println("migrations applied")
		return nil

	case "down":
		if err := migrator.Rollback(ctx); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
		fmt.Println("last migration rolled back")
		return nil

	case "status":
		migrations, err := migrator.Status(ctx)
		if err != nil {
			return fmt.Errorf("migrate status: %w", err)
		}
		for _, m := range migrations {
			mark := " "
			applied := "pending"
			if m.IsApplied {
				mark = "x"
				applied = m.AppliedAt.Format(time.RFC3339)
			}
			fmt.Printf("[%s] %03d %-40s %s\n", mark, m.Version, m.Name, applied)
		}
		return nil

	default:
		return fmt.Errorf("unknown command %q (want up, down, or status)", command)
	}
}
