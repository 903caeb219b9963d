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

// Package bootstrap assembles a running settings driver from process
// configuration: storage providers, event sinks, and the gateways declared
// in the schema file. It also seeds and exports stored documents.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cardinalhq/settingsgateway/config"
	"github.com/cardinalhq/settingsgateway/internal/awsclient"
	"github.com/cardinalhq/settingsgateway/internal/dbopen"
	"github.com/cardinalhq/settingsgateway/internal/logctx"
	"github.com/cardinalhq/settingsgateway/migrations"
	"github.com/cardinalhq/settingsgateway/provider"
	"github.com/cardinalhq/settingsgateway/provider/file"
	"github.com/cardinalhq/settingsgateway/provider/memory"
	"github.com/cardinalhq/settingsgateway/provider/postgres"
	s3provider "github.com/cardinalhq/settingsgateway/provider/s3"
)

// NewProviderRegistry opens every enabled provider. On failure the
// providers already opened are closed.
func NewProviderRegistry(ctx context.Context, cfg config.ProvidersConfig) (*provider.Registry, error) {
	ll := logctx.FromContext(ctx)
	reg := provider.NewRegistry()

	register := func(p provider.Provider, err error) error {
		if err != nil {
			return err
		}
		if err := reg.Register(p); err != nil {
			_ = p.Close()
			return err
		}
		ll.Info("Registered settings provider", slog.String("provider", p.Name()))
		return nil
	}

	steps := []struct {
		enabled bool
		name    string
		open    func() (provider.Provider, error)
	}{
		{cfg.Memory.Enabled, cfg.Memory.Name, func() (provider.Provider, error) {
			return memory.New(cfg.Memory.Name), nil
		}},
		{cfg.File.Enabled, cfg.File.Name, func() (provider.Provider, error) {
			return openFile(cfg.File)
		}},
		{cfg.S3.Enabled, cfg.S3.Name, func() (provider.Provider, error) {
			return openS3(ctx, cfg.S3)
		}},
		{cfg.Postgres.Enabled, cfg.Postgres.Name, func() (provider.Provider, error) {
			return openPostgres(ctx, cfg.Postgres)
		}},
	}
	for _, step := range steps {
		if !step.enabled {
			continue
		}
		if err := register(step.open()); err != nil {
			_ = reg.Close()
			return nil, fmt.Errorf("opening provider %s: %w", step.name, err)
		}
	}
	return reg, nil
}

func openFile(cfg config.FileProviderConfig) (provider.Provider, error) {
	codec, err := file.CodecFor(cfg.Format)
	if err != nil {
		return nil, err
	}
	p, err := file.New(cfg.Name, cfg.Dir, codec)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func openS3(ctx context.Context, cfg config.S3ProviderConfig) (provider.Provider, error) {
	mgr, err := awsclient.NewManager(ctx)
	if err != nil {
		return nil, err
	}
	client, err := mgr.ClientFor(ctx, cfg.AWS)
	if err != nil {
		return nil, fmt.Errorf("creating S3 client for bucket %s: %w", cfg.Bucket, err)
	}
	return s3provider.New(cfg.Name, s3provider.NewBucketStore(client, cfg.Bucket), cfg.Prefix), nil
}

func openPostgres(ctx context.Context, cfg config.PostgresProviderConfig) (provider.Provider, error) {
	mode, err := migrations.ParseCheckMode(cfg.MigrationCheck)
	if err != nil {
		return nil, err
	}
	pool, err := postgres.Connect(ctx, cfg.URL, dbopen.ForMode(mode))
	if err != nil {
		return nil, err
	}
	opts := []postgres.Option{postgres.WithName(cfg.Name), postgres.WithOwnedPool()}
	if cfg.ChunkSize > 0 {
		opts = append(opts, postgres.WithChunkSize(cfg.ChunkSize))
	}
	return postgres.New(pool, opts...), nil
}
