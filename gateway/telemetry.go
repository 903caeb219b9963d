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

package gateway

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	fetchCounter        otelmetric.Int64Counter
	fetchErrorCounter   otelmetric.Int64Counter
	sinkErrorCounter    otelmetric.Int64Counter
	cachedSettingsGauge otelmetric.Int64UpDownCounter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/settingsgateway/gateway")

	var err error
	fetchCounter, err = meter.Int64Counter(
		"settings.gateway.fetches",
		otelmetric.WithDescription("Number of provider fetches issued after deduplication"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create fetches counter: %w", err))
	}

	fetchErrorCounter, err = meter.Int64Counter(
		"settings.gateway.fetch.errors",
		otelmetric.WithDescription("Number of provider fetches that failed"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create fetch.errors counter: %w", err))
	}

	sinkErrorCounter, err = meter.Int64Counter(
		"settings.gateway.sink.errors",
		otelmetric.WithDescription("Number of events an event sink failed to handle"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create sink.errors counter: %w", err))
	}

	cachedSettingsGauge, err = meter.Int64UpDownCounter(
		"settings.gateway.cached",
		otelmetric.WithDescription("Number of settings instances held in gateway caches"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create cached counter: %w", err))
	}
}

func gatewayAttrs(name string) otelmetric.MeasurementOption {
	return otelmetric.WithAttributes(attribute.String("gateway", name))
}

func recordFetch(ctx context.Context, gateway string, err error) {
	fetchCounter.Add(ctx, 1, gatewayAttrs(gateway))
	if err != nil {
		fetchErrorCounter.Add(ctx, 1, gatewayAttrs(gateway))
	}
}
