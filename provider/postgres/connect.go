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

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgx-contrib/pgxotel"

	"github.com/cardinalhq/settingsgateway/internal/dbopen"
	"github.com/cardinalhq/settingsgateway/provider/postgres/migrations"
)

// EnvPrefix names the environment variables the connection URL is read from.
const EnvPrefix = "SETTINGSDB"

// NewConnectionPool creates a pgx pool for url with query tracing.
func NewConnectionPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}

	cfg.ConnConfig.Tracer = &pgxotel.QueryTracer{
		Name: "settingsdb",
	}

	return pgxpool.NewWithConfig(ctx, cfg)
}

// Connect opens a pool for url, or for the SETTINGSDB_* environment when
// url is empty, and checks the schema version.
func Connect(ctx context.Context, url string, opts ...dbopen.Options) (*pgxpool.Pool, error) {
	if url == "" {
		var err error
		if url, err = dbopen.GetDatabaseURLFromEnv(EnvPrefix); err != nil {
			return nil, fmt.Errorf("failed to get %s connection string: %w", EnvPrefix, err)
		}
	}

	pool, err := NewConnectionPool(ctx, url)
	if err != nil {
		return nil, err
	}

	if err := migrations.CheckVersion(ctx, pool, dbopen.CheckOptions(opts)...); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s migration version check failed: %w", EnvPrefix, err)
	}
	return pool, nil
}
