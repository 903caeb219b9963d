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

package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cardinalhq/settingsgateway/config"
	"github.com/cardinalhq/settingsgateway/events"
	"github.com/cardinalhq/settingsgateway/gateway"
	"github.com/cardinalhq/settingsgateway/internal/fly"
	"github.com/cardinalhq/settingsgateway/internal/logctx"
	"github.com/cardinalhq/settingsgateway/provider"
	"github.com/cardinalhq/settingsgateway/schemafile"
)

// Runtime is an initialized driver together with the resources it owns.
type Runtime struct {
	Driver *gateway.Driver
	// Bus fans events out to in-process subscribers.
	Bus     *events.Bus
	closers []func() error
}

// Options override parts of the configuration for callers that already
// hold the pieces, mostly tests.
type Options struct {
	Providers *provider.Registry
	Schema    *schemafile.File
	Producer  fly.Producer
}

// NewEventSinks builds the configured sinks. A nil logger makes the log sink
// use the logger of each event's context. The returned closer releases the
// Kafka producer when one was created.
func NewEventSinks(cfg config.EventsConfig, producer fly.Producer, logger *slog.Logger) ([]gateway.EventSink, func() error, error) {
	var sinks []gateway.EventSink
	if cfg.Log {
		sinks = append(sinks, events.NewLogSink(logger, slog.LevelInfo))
	}
	if cfg.Metrics {
		sinks = append(sinks, events.NewMetricsSink())
	}
	closer := func() error { return nil }
	if cfg.Kafka.Enabled {
		if producer == nil {
			var err error
			if producer, err = fly.NewProducerFromConfig(&cfg.Kafka); err != nil {
				return nil, nil, fmt.Errorf("creating kafka producer: %w", err)
			}
		}
		sink := events.NewKafkaSink(producer, cfg.Kafka.Topic)
		sinks = append(sinks, sink)
		closer = sink.Close
	}
	return sinks, closer, nil
}

// Start opens providers, registers the declared gateways and initializes
// them. Every gateway must initialize; on failure everything opened is
// released.
func Start(ctx context.Context, cfg *config.Config, opts Options) (rt *Runtime, err error) {
	ll := logctx.FromContext(ctx)
	rt = &Runtime{Bus: events.NewBus()}
	defer func() {
		if err != nil {
			_ = rt.Close()
			rt = nil
		}
	}()

	decl := opts.Schema
	if decl == nil {
		if decl, err = schemafile.Load(cfg.Gateways.SchemaFile); err != nil {
			return rt, err
		}
	}

	providers := opts.Providers
	if providers == nil {
		if providers, err = NewProviderRegistry(ctx, cfg.Providers); err != nil {
			return rt, err
		}
	}

	sinks, closeSinks, err := NewEventSinks(cfg.Events, opts.Producer, nil)
	if err != nil {
		_ = providers.Close()
		return rt, err
	}
	rt.closers = append(rt.closers, closeSinks)
	sinks = append(sinks, rt.Bus)

	rt.Driver = gateway.NewDriver(
		gateway.WithDriverProviders(providers),
		gateway.WithDriverSinks(sinks...),
		gateway.WithDriverIdleTTL(cfg.Gateways.IdleTTL),
	)
	rt.closers = append(rt.closers, rt.Driver.Close)

	if err = decl.Register(rt.Driver); err != nil {
		return rt, err
	}
	if err = rt.Driver.Init(ctx); err != nil {
		return rt, fmt.Errorf("initializing gateways: %w", err)
	}
	ll.Info("Gateways initialized", slog.Any("gateways", rt.Driver.Names()))

	if cfg.Gateways.SyncOnStart {
		if err = rt.Driver.Sync(ctx); err != nil {
			return rt, fmt.Errorf("syncing gateways: %w", err)
		}
	}
	return rt, nil
}

// Close releases the driver, its providers, and the event sinks.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
