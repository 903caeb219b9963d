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

package events

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/settingsgateway/settings"
)

var (
	eventCounter   otelmetric.Int64Counter
	changedCounter otelmetric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/settingsgateway/events")

	var err error
	eventCounter, err = meter.Int64Counter(
		"settings.events",
		otelmetric.WithDescription("Number of settings lifecycle events"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create events counter: %w", err))
	}

	changedCounter, err = meter.Int64Counter(
		"settings.keys.changed",
		otelmetric.WithDescription("Number of settings keys changed by writes"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create keys.changed counter: %w", err))
	}
}

// MetricsSink counts events and changed keys per gateway and event type.
type MetricsSink struct{}

func NewMetricsSink() *MetricsSink { return &MetricsSink{} }

func (MetricsSink) Handle(ctx context.Context, ev settings.Event) error {
	gateway := ""
	if ev.Settings != nil && ev.Settings.Gateway() != nil {
		gateway = ev.Settings.Gateway().Name()
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("gateway", gateway),
		attribute.String("event", string(ev.Type)),
	)
	eventCounter.Add(ctx, 1, attrs)
	if n := len(ev.Changes); n > 0 {
		changedCounter.Add(ctx, int64(n), attrs)
	}
	return nil
}
