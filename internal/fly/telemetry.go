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

package fly

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	publishCounter otelmetric.Int64Counter
	publishBytes   otelmetric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/settingsgateway/internal/fly")

	var err error
	publishCounter, err = meter.Int64Counter(
		"settings.fly.published",
		otelmetric.WithDescription("Number of settings event messages handed to Kafka, by result"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create settings.fly.published counter: %w", err))
	}

	publishBytes, err = meter.Int64Counter(
		"settings.fly.published.bytes",
		otelmetric.WithDescription("Payload bytes of settings event messages written to Kafka"),
		otelmetric.WithUnit("By"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create settings.fly.published.bytes counter: %w", err))
	}
}

func recordPublish(ctx context.Context, topic string, msgs []Message, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	publishCounter.Add(ctx, int64(len(msgs)), otelmetric.WithAttributes(
		attribute.String("topic", topic),
		attribute.String("result", result),
	))
	if err != nil {
		return
	}
	var n int64
	for _, m := range msgs {
		n += int64(len(m.Value))
	}
	publishBytes.Add(ctx, n, otelmetric.WithAttributes(attribute.String("topic", topic)))
}
