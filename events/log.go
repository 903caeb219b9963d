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
	"log/slog"
	"maps"
	"slices"

	"github.com/cardinalhq/settingsgateway/internal/logctx"
	"github.com/cardinalhq/settingsgateway/settings"
)

// LogSink writes one structured log line per event.
type LogSink struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogSink logs at level through logger, or through the context logger
// when logger is nil.
func NewLogSink(logger *slog.Logger, level slog.Level) *LogSink {
	return &LogSink{logger: logger, level: level}
}

func (l *LogSink) Handle(ctx context.Context, ev settings.Event) error {
	logger := l.logger
	if logger == nil {
		logger = logctx.FromContext(ctx)
	}

	attrs := []slog.Attr{slog.String("event", string(ev.Type))}
	if s := ev.Settings; s != nil {
		attrs = append(attrs,
			slog.String("id", s.ID()),
			slog.String("status", s.ExistenceStatus().String()))
		if gw := s.Gateway(); gw != nil {
			attrs = append(attrs, slog.String("gateway", gw.Name()))
		}
	}
	if len(ev.Changes) > 0 {
		attrs = append(attrs, slog.Any("keys", slices.Sorted(maps.Keys(ev.Changes))))
	}

	logger.LogAttrs(ctx, l.level, "Settings event", attrs...)
	return nil
}
