// Copyright (C) 2025 CardinalHQ, Inc
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

// Package refresh runs a sync function on a fixed period.
package refresh

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SyncFunc is called on every tick.
type SyncFunc func(ctx context.Context) error

var (
	refreshCounter  metric.Int64Counter
	refreshDuration metric.Float64Histogram
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/settingsgateway/internal/refresh")

	var err error
	refreshCounter, err = meter.Int64Counter(
		"settings.refresh.runs",
		metric.WithDescription("Number of periodic cache refreshes"),
	)
	if err != nil {
		panic(err)
	}

	refreshDuration, err = meter.Float64Histogram(
		"settings.refresh.duration",
		metric.WithDescription("Duration of periodic cache refreshes"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(err)
	}
}

// Refresher calls a SyncFunc every interval until stopped.
type Refresher struct {
	sync     SyncFunc
	ll       *slog.Logger
	interval time.Duration
}

func New(fn SyncFunc, interval time.Duration, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		sync:     fn,
		ll:       logger.With("component", "refresher"),
		interval: interval,
	}
}

// Start runs the loop in a goroutine. The first sync happens one interval
// after Start. The returned function stops the loop.
func (r *Refresher) Start(ctx context.Context) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)
	if r.interval <= 0 {
		return cancel
	}
	go r.run(ctx)
	return cancel
}

func (r *Refresher) run(ctx context.Context) {
	r.ll.Debug("Starting refresh loop", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.ll.Debug("Context cancelled, stopping refresh loop")
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	start := time.Now()
	err := r.sync(ctx)
	elapsed := time.Since(start)

	if err != nil && ctx.Err() != nil {
		return
	}

	result := "success"
	if err != nil {
		result = "error"
		r.ll.Error("Failed to refresh settings (continuing)", "error", err)
	} else {
		r.ll.Debug("Refreshed settings", "duration", elapsed)
	}

	attrs := metric.WithAttributes(attribute.String("result", result))
	refreshCounter.Add(ctx, 1, attrs)
	refreshDuration.Record(ctx, elapsed.Seconds(), attrs)
}
