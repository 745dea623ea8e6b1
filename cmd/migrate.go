package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"dealdocs/internal/logger"
)

func newMigrateCommand(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back database migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			log := logger.New(cfg.Log)

			direction := "up"
			if len(args) == 1 {
				direction = args[0]
			}

			if direction == "up" {
				if err := ensureDatabase(cfg.Database, log); err != nil {
					return err
				}
				if err := runMigrations(cfg.Database, log); err != nil {
					return err
				}
				log.Info("migrations applied")
				return nil
			}

			m, err := newMigrator(cfg.Database)
			if err != nil {
				return err
			}
			defer m.Close()

			// down откатывает одну миграцию
			if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("failed to roll back migration: %w", err)
			}
			log.Info("migration rolled back")
			return nil
		},
	}
}

func newReconcileCommand(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Remove abandoned pending versions once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.db.Close()

			removed, err := a.reconciler().ReconcilePending(ctx)
			if err != nil {
				return fmt.Errorf("failed to reconcile pending versions: %w", err)
			}
			a.log.Info("reconcile finished", "removed", removed)
			return nil
		},
	}
}
