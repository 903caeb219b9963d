// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/cardinalhq/settingsgateway/internal/dbopen"
	"github.com/cardinalhq/settingsgateway/provider/postgres"
	pgmigrations "github.com/cardinalhq/settingsgateway/provider/postgres/migrations"
)

var databaseURL string

func init() {
	MigrateCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "PostgreSQL URL (defaults to providers.postgres.url, then SETTINGSDB_* environment)")

	MigrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		RunE:  migrateUp,
	})

	MigrateCmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrationPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool) error {
				slog.Warn("Rolling back settingsdb migrations")
				return pgmigrations.RunMigrationsDown(ctx, pool)
			})
		},
	})

	MigrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied and latest migration versions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrationPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool) error {
				current, dirty, err := pgmigrations.CurrentVersion(ctx, pool)
				if err != nil {
					return err
				}
				latest, err := pgmigrations.LatestVersion()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "current: %d\nlatest: %d\ndirty: %t\n", current, latest, dirty)
				return nil
			})
		},
	})

	rootCmd.AddCommand(MigrateCmd)
}

var MigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the PostgreSQL provider schema",
	Long:  "Run database migrations for the PostgreSQL settings provider",
	RunE:  migrateUp,
}

func migrateUp(cmd *cobra.Command, _ []string) error {
	return withMigrationPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool) error {
		slog.Info("Running settingsdb migrations")
		if err := pgmigrations.RunMigrationsUp(ctx, pool); err != nil {
			return fmt.Errorf("failed to migrate settingsdb: %w", err)
		}
		slog.Info("settingsdb migrations completed successfully")
		return nil
	})
}

func withMigrationPool(parent context.Context, fn func(context.Context, *pgxpool.Pool) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, 5*time.Minute)
	defer cancel()

	url := databaseURL
	if url == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		url = cfg.Providers.Postgres.URL
	}
	pool, err := postgres.Connect(ctx, url, dbopen.SkipMigrationCheck())
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, pool)
}
