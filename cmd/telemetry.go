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
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cardinalhq/oteltools/pkg/telemetry"
	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/instrumentation/host"
	iruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/settingsgateway/internal/helpers"
	"github.com/cardinalhq/settingsgateway/internal/idgen"
)

var instanceID string

// setupTelemetry installs the process logger and, when OTLP export is
// enabled, the OpenTelemetry SDK with runtime and host metrics. The returned
// context is cancelled on SIGINT or SIGTERM. The returned function flushes
// telemetry and releases the signal handler.
func setupTelemetry(servicename string, attrs ...attribute.KeyValue) (context.Context, func() error, error) {
	instanceID = idgen.NewULIDGenerator().Make(time.Now())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	text := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(slog.LevelInfo)})
	if !otlpEnabled() {
		installLogger(text, servicename)
		recordRunning(ctx, attrs)
		return ctx, func() error {
			stop()
			return nil
		}, nil
	}

	installLogger(slogmulti.Fanout(text, otelslog.NewHandler(servicename)), servicename)
	slog.Info("OpenTelemetry exporting enabled")

	shutdown, err := telemetry.SetupOTelSDK(ctx)
	if err != nil {
		stop()
		return ctx, nil, fmt.Errorf("failed to setup OpenTelemetry SDK: %w", err)
	}
	if err := iruntime.Start(iruntime.WithMinimumReadMemStatsInterval(10 * time.Second)); err != nil {
		slog.Warn("Failed to start runtime metrics", slog.Any("error", err))
	}
	if err := host.Start(); err != nil {
		slog.Warn("Failed to start host metrics", slog.Any("error", err))
	}
	recordRunning(ctx, attrs)

	return ctx, func() error {
		defer stop()
		slog.Info("Shutting down OpenTelemetry SDK")
		flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return shutdown(flushCtx)
	}, nil
}

func otlpEnabled() bool {
	return os.Getenv("OTEL_SERVICE_NAME") != "" && helpers.GetBoolEnv("ENABLE_OTLP_TELEMETRY", false)
}

func debugEnabled() bool {
	return helpers.GetBoolEnv("DEBUG", false) || helpers.GetBoolEnv("SETTINGS_DEBUG", false)
}

func logLevel(normal slog.Level) slog.Level {
	if debugEnabled() {
		return slog.LevelDebug
	}
	return normal
}

func installLogger(h slog.Handler, servicename string) {
	slog.SetDefault(slog.New(h).With(
		slog.String("service", servicename),
		slog.String("instanceID", instanceID),
	))
}

// recordRunning sets the settings.exists gauge to 1 for this instance.
func recordRunning(ctx context.Context, attrs []attribute.KeyValue) {
	gauge, err := otel.Meter("github.com/cardinalhq/settingsgateway").Int64Gauge(
		"settings.exists",
		metric.WithDescription("Indicates if the service is running (1) or not (0)"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create settings.exists gauge: %w", err))
	}
	all := append([]attribute.KeyValue{attribute.String("instanceID", instanceID)}, attrs...)
	gauge.Record(ctx, 1, metric.WithAttributeSet(attribute.NewSet(all...)))
}

// setupCLILogging configures plain stderr logging for one-shot commands.
func setupCLILogging() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(slog.LevelWarn)})))
}
