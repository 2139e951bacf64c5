package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"classquiz-service/internal/config"
	pgmigrations "classquiz-service/internal/infra/postgres/migrations"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

var errNoPostgres = errors.New("postgres url not configured")

// NewMigrateCmd applies (or rolls back) the quiz and participant tables.
func NewMigrateCmd(configPath *string) *cobra.Command {
	var rollback bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending Postgres migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if rollback {
				return withMigrator(cmd.Context(), cfg, rollbackLastGroup)
			}
			return runMigrationsWithConfig(cmd.Context(), cfg)
		},
	}
	cmd.Flags().BoolVar(&rollback, "rollback", false, "roll back the last applied migration group")
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List applied and pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return withMigrator(cmd.Context(), cfg, printStatus(cmd))
		},
	})
	return cmd
}

// runMigrationsWithConfig is also called by start before serving.
func runMigrationsWithConfig(ctx context.Context, cfg config.Config) error {
	return withMigrator(ctx, cfg, func(ctx context.Context, m *migrate.Migrator) error {
		group, err := m.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		if group.IsZero() {
			slog.Info("schema up to date")
			return nil
		}
		slog.Info("migrations applied", "group", group.ID, "count", len(group.Migrations))
		return nil
	})
}

func withMigrator(ctx context.Context, cfg config.Config, fn func(context.Context, *migrate.Migrator) error) error {
	if cfg.Postgres.URL == "" {
		return errNoPostgres
	}
	if ctx == nil {
		ctx = context.Background()
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	m := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := m.Init(ctx); err != nil {
		return fmt.Errorf("init migration tables: %w", err)
	}
	return fn(ctx, m)
}

func rollbackLastGroup(ctx context.Context, m *migrate.Migrator) error {
	group, err := m.Rollback(ctx)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	if group.IsZero() {
		slog.Info("nothing to roll back")
		return nil
	}
	slog.Info("rolled back", "group", group.ID, "count", len(group.Migrations))
	return nil
}

func printStatus(cmd *cobra.Command) func(context.Context, *migrate.Migrator) error {
	return func(ctx context.Context, m *migrate.Migrator) error {
		ms, err := m.MigrationsWithStatus(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, mig := range ms {
			state := "pending"
			if mig.GroupID > 0 {
				state = fmt.Sprintf("applied (group %d)", mig.GroupID)
			}
			fmt.Fprintf(out, "%s\t%s\n", mig.Name, state)
		}
		return nil
	}
}
