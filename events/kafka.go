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
	"encoding/json"
	"fmt"
	"time"

	"github.com/cardinalhq/settingsgateway/internal/fly"
	"github.com/cardinalhq/settingsgateway/internal/idgen"
	"github.com/cardinalhq/settingsgateway/settings"
)

// KafkaSink publishes every event as a JSON Record keyed by settings id, so
// all events for one entity land on one partition in order.
type KafkaSink struct {
	producer fly.Producer
	topic    string
	ids      idgen.IDGenerator
	now      func() time.Time
}

func NewKafkaSink(producer fly.Producer, topic string) *KafkaSink {
	return &KafkaSink{
		producer: producer,
		topic:    topic,
		ids:      idgen.NewULIDGenerator(),
		now:      time.Now,
	}
}

func (k *KafkaSink) Handle(ctx context.Context, ev settings.Event) error {
	now := k.now()
	record := NewRecord(k.ids.Make(now), ev, now)
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", ev.Type, err)
	}

	msg := fly.Message{
		Key:   []byte(record.SettingsID),
		Value: value,
		Headers: map[string]string{
			"event":   record.Type,
			"gateway": record.Gateway,
			"id":      record.ID,
		},
	}
	if err := k.producer.Send(ctx, k.topic, msg); err != nil {
		return fmt.Errorf("publishing %s event to %s: %w", ev.Type, k.topic, err)
	}
	return nil
}

// Close closes the underlying producer.
func (k *KafkaSink) Close() error {
	return k.producer.Close()
}
