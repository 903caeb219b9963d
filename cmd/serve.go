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
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/cardinalhq/settingsgateway/internal/apikeys"
	"github.com/cardinalhq/settingsgateway/internal/bootstrap"
	"github.com/cardinalhq/settingsgateway/internal/debugging"
	"github.com/cardinalhq/settingsgateway/internal/healthcheck"
	"github.com/cardinalhq/settingsgateway/internal/refresh"
	"github.com/cardinalhq/settingsgateway/settingsapi"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "start the settings API server",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, doneFx, err := setupTelemetry("settingsgateway", attribute.String("command", "serve"))
			if err != nil {
				return fmt.Errorf("failed to setup telemetry: %w", err)
			}

			defer func() {
				if err := doneFx(); err != nil {
					slog.Error("Error shutting down telemetry", slog.Any("error", err))
				}
			}()

			// Start pprof server
			go debugging.RunPprof(ctx, cfg.Server.PprofPort)

			// Start health check server
			healthConfig := healthcheck.GetConfigFromEnv()
			if cfg.Server.HealthPort != 0 {
				healthConfig.Port = cfg.Server.HealthPort
			}
			healthServer := healthcheck.NewServer(healthConfig)

			go func() {
				if err := healthServer.Start(ctx); err != nil {
					slog.Error("Health check server stopped", slog.Any("error", err))
				}
			}()

			// Alive from here on; readiness waits for the gateways.
			healthServer.SetStatus(healthcheck.StatusStarting)

			rt, err := bootstrap.Start(ctx, cfg, bootstrap.Options{})
			if err != nil {
				healthServer.SetStatus(healthcheck.StatusUnhealthy)
				slog.Error("Failed to start gateways", slog.Any("error", err))
				return fmt.Errorf("failed to start gateways: %w", err)
			}
			defer func() {
				if err := rt.Close(); err != nil {
					slog.Error("Error closing gateways", slog.Any("error", err))
				}
			}()

			stopRefresh := refresh.New(rt.Driver.Sync, cfg.Gateways.RefreshInterval, slog.Default()).Start(ctx)
			defer stopRefresh()

			for _, name := range rt.Driver.Names() {
				g, _ := rt.Driver.Get(name)
				healthServer.AddProbe("gateway."+name, func(ctx context.Context) error {
					p, err := g.Provider()
					if err != nil {
						return err
					}
					ok, err := p.HasTable(ctx, name)
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("table %s is missing from provider %s", name, p.Name())
					}
					return nil
				})
			}

			keys, err := loadAPIKeys(cfg.Server.APIKeysFile)
			if err != nil {
				return fmt.Errorf("failed to load API keys: %w", err)
			}
			if !keys.Enabled() {
				slog.Warn("No API keys configured, the settings API is open")
			}

			healthServer.SetStatus(healthcheck.StatusHealthy)

			service := settingsapi.NewService(rt.Driver, keys, cfg.Server.Port)
			if err := service.Run(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					slog.Info("shutting down", "error", err)
					return nil
				}
				return err
			}
			return nil
		},
	}

	rootCmd.AddCommand(cmd)
}

func loadAPIKeys(path string) (apikeys.Provider, error) {
	if path != "" {
		return apikeys.NewFileProvider(path)
	}
	return apikeys.Setup()
}
