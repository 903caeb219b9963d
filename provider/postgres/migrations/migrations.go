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

// Package migrations embeds the settings database schema and applies or
// checks it with golang-migrate.
package migrations

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/pgx"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/cardinalhq/settingsgateway/migrations"
)

//go:embed *.sql
var migrationFiles embed.FS

const migrationsTable = "gomigrate_settingsdb"

// GetMigrationFiles returns the embedded migration files.
func GetMigrationFiles() embed.FS {
	return migrationFiles
}

func newMigrate(pool *pgxpool.Pool) (*migrate.Migrate, func(), error) {
	sourceDriver, err := iofs.New(migrationFiles, ".")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create iofs driver: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	dbDriver, err := pgx.WithInstance(sqlDB, &pgx.Config{
		MigrationsTable: migrationsTable,
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("failed to create pgx driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		_ = dbDriver.Close()
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	closer := func() {
		_ = dbDriver.Close()
		_ = sqlDB.Close()
	}
	return m, closer, nil
}

// RunMigrationsUp applies all up migrations using embedded migration files.
func RunMigrationsUp(ctx context.Context, pool *pgxpool.Pool) error {
	m, closer, err := newMigrate(pool)
	if err != nil {
		return err
	}
	defer closer()

	_, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get current version: %w", err)
	}
	if dirty {
		return errors.New("migration is dirty, please fix it before proceeding")
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// RunMigrationsDown reverts every migration.
func RunMigrationsDown(ctx context.Context, pool *pgxpool.Pool) error {
	m, closer, err := newMigrate(pool)
	if err != nil {
		return err
	}
	defer closer()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// CurrentVersion reports the applied version and whether it is dirty.
// A database with no migrations reports version 0.
func CurrentVersion(ctx context.Context, pool *pgxpool.Pool) (uint, bool, error) {
	m, closer, err := newMigrate(pool)
	if err != nil {
		return 0, false, err
	}
	defer closer()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, dirty, nil
}

// LatestVersion returns the highest version among the embedded files.
func LatestVersion() (uint, error) {
	entries, err := migrationFiles.ReadDir(".")
	if err != nil {
		return 0, fmt.Errorf("failed to read migration directory: %w", err)
	}

	var maxVersion uint
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		prefix, _, _ := strings.Cut(name, "_")
		version, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			continue
		}
		maxVersion = max(maxVersion, uint(version))
	}

	if maxVersion == 0 {
		return 0, errors.New("no valid migration files found")
	}
	return maxVersion, nil
}

// CheckVersion verifies the database is at the embedded version, waiting
// for a concurrent migrator when the mode asks for it.
func CheckVersion(ctx context.Context, pool *pgxpool.Pool, options ...migrations.CheckOption) error {
	opts := migrations.Resolve(options...)
	if opts.Mode == migrations.CheckModeSkip {
		slog.Debug("Migration version checking skipped for settingsdb")
		return nil
	}

	expected, err := LatestVersion()
	if err != nil {
		return err
	}

	deadline := time.Now().Add(opts.Timeout)
	ticker := time.NewTicker(opts.RetryInterval)
	defer ticker.Stop()

	for {
		current, dirty, err := CurrentVersion(ctx, pool)
		if err != nil {
			return err
		}

		if dirty && !opts.AllowDirty && opts.Mode != migrations.CheckModeWarn {
			return errors.New("settingsdb migration is in dirty state, please fix before proceeding")
		}
		if dirty {
			slog.Warn("Database migration is dirty but allowed to continue", slog.String("database", "settingsdb"))
		}

		switch {
		case current == expected:
			return nil
		case opts.Mode == migrations.CheckModeWarn:
			slog.Warn("Database version differs from expected, but continuing anyway",
				slog.Uint64("current_version", uint64(current)),
				slog.Uint64("expected_version", uint64(expected)))
			return nil
		case current > expected:
			return fmt.Errorf("settingsdb version %d is newer than expected version %d - you may need to update the application",
				current, expected)
		case time.Now().After(deadline):
			return fmt.Errorf("timeout waiting for settingsdb migration to complete: current version %d, expected %d",
				current, expected)
		}

		slog.Info("Waiting for migrations to complete",
			slog.Uint64("current_version", uint64(current)),
			slog.Uint64("expected_version", uint64(expected)),
			slog.Duration("remaining_timeout", time.Until(deadline)))

		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled while waiting for settingsdb migrations: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
