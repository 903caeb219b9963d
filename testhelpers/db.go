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

//go:build integration

package testhelpers

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cardinalhq/settingsgateway/provider/postgres/migrations"
)

// SetupTestSettingsDB creates a clean settings database with migrations
// applied, using the SETTINGSDB_* environment to reach the server.
// Returns a connection pool and registers cleanup with t.Cleanup.
func SetupTestSettingsDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx := context.Background()
	dbName := fmt.Sprintf("test_settingsdb_%d_%d", time.Now().Unix(), rand.IntN(10000))

	basePool, err := pgxpool.New(ctx, connString(getEnvOrDefault("SETTINGSDB_DBNAME", "testing_settingsdb")))
	if err != nil {
		t.Fatalf("Failed to connect to base database: %v", err)
	}

	if _, err := basePool.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", dbName)); err != nil {
		basePool.Close()
		t.Fatalf("Failed to create test database %s: %v", dbName, err)
	}

	testPool, err := pgxpool.New(ctx, connString(dbName))
	if err != nil {
		basePool.Close()
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := migrations.RunMigrationsUp(ctx, testPool); err != nil {
		testPool.Close()
		basePool.Close()
		t.Fatalf("Failed to run settingsdb migrations: %v", err)
	}

	t.Cleanup(func() {
		testPool.Close()

		_, err := basePool.Exec(context.Background(), fmt.Sprintf("DROP DATABASE IF EXISTS %s", dbName))
		if err != nil {
			slog.Error("Failed to drop test database", slog.String("dbName", dbName), slog.Any("error", err))
		}
		basePool.Close()
	})

	return testPool
}

func connString(dbName string) string {
	host := getEnvOrDefault("SETTINGSDB_HOST", "localhost")
	port := getEnvOrDefault("SETTINGSDB_PORT", "5432")
	user := getEnvOrDefault("SETTINGSDB_USER", os.Getenv("USER"))
	if password := os.Getenv("SETTINGSDB_PASSWORD"); password != "" {
		return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, dbName)
	}
	return fmt.Sprintf("postgresql://%s@%s:%s/%s?sslmode=disable", user, host, port, dbName)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
