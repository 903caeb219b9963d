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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/settingsgateway/gateway"
	"github.com/cardinalhq/settingsgateway/internal/fly"
	"github.com/cardinalhq/settingsgateway/provider"
	"github.com/cardinalhq/settingsgateway/provider/memory"
	"github.com/cardinalhq/settingsgateway/schema"
	"github.com/cardinalhq/settingsgateway/settings"
)

type fakeProducer struct {
	mu     sync.Mutex
	sent   map[string][]fly.Message
	err    error
	closed bool
}

func (f *fakeProducer) Send(ctx context.Context, topic string, message fly.Message) error {
	return f.BatchSend(ctx, topic, []fly.Message{message})
}

func (f *fakeProducer) BatchSend(_ context.Context, topic string, messages []fly.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.sent == nil {
		f.sent = make(map[string][]fly.Message)
	}
	f.sent[topic] = append(f.sent[topic], messages...)
	return nil
}

func (f *fakeProducer) Close() error {
	f.closed = true
	return nil
}

func newGateway(t *testing.T, sinks ...gateway.EventSink) *gateway.Gateway {
	t.Helper()
	sch := schema.New()
	require.NoError(t, sch.Add("prefix", "string", schema.WithDefault("!")))
	require.NoError(t, sch.Add("tags", "string", schema.WithArray(true)))

	providers := provider.NewRegistry()
	require.NoError(t, providers.Register(memory.New("")))

	g := gateway.New("guilds", sch, memory.Name, gateway.WithProviders(providers), gateway.WithSinks(sinks...))
	require.NoError(t, g.Init(context.Background()))
	t.Cleanup(g.Close)
	return g
}

func TestKafkaSinkPublishesRecords(t *testing.T) {
	ctx := context.Background()
	producer := &fakeProducer{}
	sink := NewKafkaSink(producer, "settings.events")
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sink.now = func() time.Time { return fixed }

	g := newGateway(t, sink)
	s := g.Acquire("42", nil)
	require.NoError(t, s.Sync(ctx))
	_, err := s.Update(ctx, "prefix", "?")
	require.NoError(t, err)
	require.NoError(t, s.Destroy(ctx))

	msgs := producer.sent["settings.events"]
	require.Len(t, msgs, 3)

	var created Record
	require.NoError(t, json.Unmarshal(msgs[0].Value, &created))
	assert.Equal(t, []byte("42"), msgs[0].Key)
	assert.Equal(t, string(settings.EventCreate), created.Type)
	assert.Equal(t, "guilds", created.Gateway)
	assert.Equal(t, "42", created.SettingsID)
	assert.Equal(t, "?", created.Changes["prefix"])
	assert.Equal(t, map[string]any{"prefix": "!"}, created.Previous)
	assert.True(t, fixed.Equal(created.Time))
	assert.Len(t, created.ID, 26)
	assert.Equal(t, created.ID, msgs[0].Headers["id"])
	assert.Equal(t, "settingsCreate", msgs[0].Headers["event"])

	// Destroy refetches the document before deleting it.
	assert.Equal(t, "settingsSync", msgs[1].Headers["event"])

	var deleted Record
	require.NoError(t, json.Unmarshal(msgs[2].Value, &deleted))
	assert.Equal(t, string(settings.EventDelete), deleted.Type)
	assert.Equal(t, "?", deleted.Previous["prefix"])

	require.NoError(t, sink.Close())
	assert.True(t, producer.closed)
}

func TestKafkaSinkWrapsProducerErrors(t *testing.T) {
	boom := errors.New("broker down")
	sink := NewKafkaSink(&fakeProducer{err: boom}, "topic")
	err := sink.Handle(context.Background(), settings.Event{Type: settings.EventSync})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "topic")
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	g := newGateway(t, NewLogSink(logger, slog.LevelInfo))

	ctx := context.Background()
	s := g.Acquire("7", nil)
	require.NoError(t, s.Sync(ctx))
	_, err := s.UpdateMap(ctx, map[string]any{"prefix": "$", "tags": "a"})
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "Settings event", entry["msg"])
	assert.Equal(t, "settingsCreate", entry["event"])
	assert.Equal(t, "7", entry["id"])
	assert.Equal(t, "guilds", entry["gateway"])
	assert.Equal(t, []any{"prefix", "tags"}, entry["keys"])
}

func TestMetricsSinkNeverFails(t *testing.T) {
	assert.NoError(t, NewMetricsSink().Handle(context.Background(), settings.Event{Type: settings.EventUpdate}))
}

func TestBus(t *testing.T) {
	bus := NewBus()
	g := newGateway(t, bus)
	ctx := context.Background()

	var all, deletes []settings.EventType
	unsubscribe := bus.Subscribe(func(_ context.Context, ev settings.Event) {
		all = append(all, ev.Type)
	})
	bus.Subscribe(func(_ context.Context, ev settings.Event) {
		deletes = append(deletes, ev.Type)
	}, settings.EventDelete)

	s := g.Acquire("1", nil)
	require.NoError(t, s.Sync(ctx))
	_, err := s.Update(ctx, "tags", "x")
	require.NoError(t, err)

	unsubscribe()
	require.NoError(t, s.Destroy(ctx))

	assert.Equal(t, []settings.EventType{settings.EventCreate}, all)
	assert.Equal(t, []settings.EventType{settings.EventDelete}, deletes)
}

func TestBusDeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()

	var order []int
	var unsubscribes []func()
	for i := range 10 {
		unsubscribes = append(unsubscribes, bus.Subscribe(func(context.Context, settings.Event) {
			order = append(order, i)
		}))
	}
	bus.Subscribe(func(context.Context, settings.Event) {
		order = append(order, 100)
	}, settings.EventUpdate, settings.EventCreate)

	require.NoError(t, bus.Handle(ctx, settings.Event{Type: settings.EventUpdate}))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 100}, order)

	order = nil
	unsubscribes[3]()
	unsubscribes[3]()
	require.NoError(t, bus.Handle(ctx, settings.Event{Type: settings.EventDelete}))
	assert.Equal(t, []int{0, 1, 2, 4, 5, 6, 7, 8, 9}, order)
}
