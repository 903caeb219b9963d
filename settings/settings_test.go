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

package settings

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/settingsgateway/provider"
	"github.com/cardinalhq/settingsgateway/provider/memory"
	"github.com/cardinalhq/settingsgateway/schema"
	"github.com/cardinalhq/settingsgateway/serializer"
	"github.com/cardinalhq/settingsgateway/testhelpers"
)

const table = "guilds"

type fakeGateway struct {
	sch      *schema.Schema
	provider *testhelpers.CountingProvider

	mu     sync.Mutex
	events []Event
}

func (g *fakeGateway) Name() string           { return table }
func (g *fakeGateway) Schema() *schema.Schema { return g.sch }

func (g *fakeGateway) Provider() (provider.Provider, error) { return g.provider, nil }

func (g *fakeGateway) Fetch(ctx context.Context, id string) (provider.Document, error) {
	return g.provider.Get(ctx, table, id)
}

func (g *fakeGateway) Emit(_ context.Context, ev Event) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events = append(g.events, ev)
}

func (g *fakeGateway) eventTypes() []EventType {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]EventType, len(g.events))
	for i, ev := range g.events {
		out[i] = ev.Type
	}
	return out
}

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s := schema.New()
	require.NoError(t, s.Add("count", "number"))
	require.NoError(t, s.Add("messages", "string", schema.WithArray(true)))
	require.NoError(t, s.Add("uses", "integer", schema.WithArray(true)))
	require.NoError(t, s.Add("prefix", "string", schema.WithDefault("!"), schema.WithMaximum(3)))
	require.NoError(t, s.Add("enabled", "boolean"))
	require.NoError(t, s.Add("pattern", "regexp"))
	require.NoError(t, s.Add("word", "string", schema.WithFilter(func(_ context.Context, v any, _ *serializer.Context) bool {
		return v == "forbidden"
	})))
	require.NoError(t, s.AddFolder("channels", func(f *schema.Folder) error {
		if err := f.Add("modlog", "string"); err != nil {
			return err
		}
		return f.Add("admin", "string", schema.WithConfigurable(false))
	}))
	s.Attach(serializer.NewDefaultRegistry())
	require.NoError(t, s.Check(s.Registry()))
	s.Lock()
	return s
}

func newTestGateway(t *testing.T) *fakeGateway {
	t.Helper()
	p := memory.New("")
	require.NoError(t, p.CreateTable(context.Background(), table))
	return &fakeGateway{sch: testSchema(t), provider: testhelpers.NewCountingProvider(p)}
}

// synced returns settings for id after a sync against the fake gateway.
func synced(t *testing.T, gw *fakeGateway, id string) *Settings {
	t.Helper()
	s := New(gw.sch, gw, id, nil)
	require.NoError(t, s.Sync(context.Background()))
	return s
}

// seeded returns synced settings whose stored document already holds doc.
func seeded(t *testing.T, gw *fakeGateway, id string, doc map[string]any) *Settings {
	t.Helper()
	require.NoError(t, gw.provider.Provider.Replace(context.Background(), table, id, doc))
	return synced(t, gw, id)
}

func TestFreshSettingsHoldDefaults(t *testing.T) {
	gw := newTestGateway(t)
	s := New(gw.sch, gw, "1", nil)

	assert.Equal(t, Unsynchronized, s.ExistenceStatus())
	assert.Equal(t, "1", s.ID())
	assert.Nil(t, s.Get("count"))
	assert.Equal(t, []any{}, s.Get("messages"))
	assert.Equal(t, "!", s.Get("prefix"))
	assert.Equal(t, false, s.Get("enabled"))
	assert.Nil(t, s.Get("channels.modlog"))
	assert.Nil(t, s.Get("missing"))
	assert.Nil(t, s.Get("count.deeper"))

	v, ok := s.Lookup("channels")
	require.True(t, ok)
	folder, ok := v.(*Folder)
	require.True(t, ok)
	assert.Equal(t, s, folder.Base())
	assert.Equal(t, []string{"modlog", "admin"}, folder.Keys())

	assert.Equal(t, []any{"!", nil, []any{}}, s.Pluck("prefix", "nope", "uses"))
	assert.Equal(t, 0, gw.provider.Calls("Get"))
}

func TestEndToEndFirstWrite(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)
	s := synced(t, gw, "42")
	assert.Equal(t, NotExists, s.ExistenceStatus())

	changes, err := s.Update(ctx, "count", 2)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Nil(t, changes[0].Previous)
	assert.Equal(t, 2.0, changes[0].Next)
	assert.Equal(t, "count", changes[0].Path())

	assert.Equal(t, Exists, s.ExistenceStatus())
	assert.Equal(t, 2.0, s.Get("count"))
	assert.Equal(t, 1, gw.provider.Calls("Create"))

	doc, err := gw.provider.Get(ctx, table, "42")
	require.NoError(t, err)
	assert.Equal(t, provider.Document{"id": "42", "count": 2.0}, doc)

	assert.Equal(t, []EventType{EventCreate}, gw.eventTypes())
	ev := gw.events[0]
	assert.Equal(t, map[string]any{"count": 2.0}, ev.Changes)
	require.NotNil(t, ev.Context)
	assert.Len(t, ev.Context.Changes, 1)

	_, err = s.Update(ctx, "enabled", "yes")
	require.NoError(t, err)
	assert.Equal(t, 1, gw.provider.Calls("Update"))
	assert.Equal(t, []EventType{EventCreate, EventUpdate}, gw.eventTypes())
}

func TestWritesRequireSync(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)
	s := New(gw.sch, gw, "1", nil)

	_, err := s.Update(ctx, "count", 1)
	assert.ErrorIs(t, err, ErrUnsynchronized)
	_, err = s.Reset(ctx, nil)
	assert.ErrorIs(t, err, ErrUnsynchronized)
	assert.Zero(t, gw.provider.Writes())
}

func TestDetachedSettings(t *testing.T) {
	ctx := context.Background()
	s := New(testSchema(t), nil, "1", nil)

	assert.Equal(t, "!", s.Get("prefix"))
	_, err := s.Resolve(ctx, "prefix")
	assert.ErrorIs(t, err, ErrNotReady)
	assert.ErrorIs(t, s.Sync(ctx), ErrNotReady)
	_, err = s.Update(ctx, "prefix", "?")
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestArrayToggle(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)
	s := seeded(t, gw, "1", map[string]any{"messages": []any{"1", "2", "4"}})

	changes, err := s.Update(ctx, "messages", []string{"1", "2", "4"})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, []any{}, s.Get("messages"))

	_, err = s.Update(ctx, "messages", []any{"a", "b"})
	require.NoError(t, err)
	_, err = s.Update(ctx, "messages", "a")
	require.NoError(t, err)
	assert.Equal(t, []any{"b"}, s.Get("messages"))
}

func TestArrayIndexWrites(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		index   int
		action  ArrayAction
		want    []any
		wantErr error
	}{
		{"nil values delete", []any{nil, nil}, 1, ArrayRemove, []any{1.0, 4.0}, nil},
		{"nil values delete without remove", []any{nil}, 0, ArrayAuto, []any{2.0, 3.0, 4.0}, nil},
		{"remove", []any{9, 9}, 2, ArrayRemove, []any{1.0, 2.0}, nil},
		{"add inserts", []any{7, 8}, 1, ArrayAdd, []any{1.0, int64(7), int64(8), 2.0, 3.0, 4.0}, nil},
		{"add at end", 5, 4, ArrayAdd, []any{1.0, 2.0, 3.0, 4.0, int64(5)}, nil},
		{"replace", []any{20, 30}, 1, ArrayAuto, []any{1.0, int64(20), int64(30), 4.0}, nil},
		{"replace with null strips", []any{nil, 30}, 1, ArrayAuto, []any{1.0, int64(30), 4.0}, nil},
		{"replace past end appends", []any{5}, 4, ArrayAuto, []any{1.0, 2.0, 3.0, 4.0, int64(5)}, nil},
		{"negative index", 1, -1, ArrayAuto, nil, ErrIndexOutOfRange},
		{"index beyond length", 1, 5, ArrayAdd, nil, ErrIndexOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			gw := newTestGateway(t)
			s := seeded(t, gw, "1", map[string]any{"uses": []any{1.0, 2.0, 3.0, 4.0}})

			_, err := s.Update(ctx, "uses", tt.value, WithArrayIndex(tt.index), WithArrayAction(tt.action))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				var ie *IndexOutOfRangeError
				require.ErrorAs(t, err, &ie)
				assert.Equal(t, 4, ie.Length)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Get("uses"))
		})
	}
}

func TestArrayAddRemoveContracts(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)
	s := seeded(t, gw, "1", map[string]any{"uses": []any{1, 2, 4}})
	writes := gw.provider.Writes()

	_, err := s.Update(ctx, "uses", 4, WithArrayAction(ArrayAdd))
	var dup *DuplicateValueError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, int64(4), dup.Value)
	assert.ErrorIs(t, err, ErrDuplicateValue)

	_, err = s.Update(ctx, "uses", 3, WithArrayAction(ArrayRemove))
	var missing *MissingValueError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "uses", missing.Path)
	assert.ErrorIs(t, err, ErrMissingValue)

	assert.Equal(t, writes, gw.provider.Writes())
	doc, err := gw.provider.Get(ctx, table, "1")
	require.NoError(t, err)
	testhelpers.AssertDocEqual(t, map[string]any{"id": "1", "uses": []any{1, 2, 4}}, doc)

	_, err = s.Update(ctx, "uses", []any{3, 5}, WithArrayAction(ArrayAdd))
	require.NoError(t, err)
	_, err = s.Update(ctx, "uses", 1, WithArrayAction(ArrayRemove))
	require.NoError(t, err)
	assertValueEqual(t, []any{2, 4, 3, 5}, s.Get("uses"))
}

func assertValueEqual(t *testing.T, want, got any) {
	t.Helper()
	testhelpers.AssertDocEqual(t, map[string]any{"v": want}, map[string]any{"v": got})
}

func TestArrayOverwrite(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)
	s := seeded(t, gw, "1", map[string]any{"messages": []any{"a"}})

	_, err := s.Update(ctx, "messages", []any{"x", nil, "y"}, WithArrayAction(ArrayOverwrite))
	require.NoError(t, err)
	assert.Equal(t, []any{"x", "y"}, s.Get("messages"))

	_, err = s.Update(ctx, "messages", "z", WithArrayAction(ArrayOverwrite))
	require.NoError(t, err)
	assert.Equal(t, []any{"z"}, s.Get("messages"))
}

func TestUpdateNilRestoresDefault(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)
	s := seeded(t, gw, "1", map[string]any{"prefix": "?", "messages": []any{"a"}})

	changes, err := s.UpdatePairs(ctx, []Pair{{Path: "prefix"}, {Path: "messages"}})
	require.NoError(t, err)
	assert.Len(t, changes, 2)
	assert.Equal(t, "!", s.Get("prefix"))
	assert.Equal(t, []any{}, s.Get("messages"))
}

func TestUpdateErrors(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)
	s := synced(t, gw, "1")

	_, err := s.Update(ctx, "nope", 1)
	var nf *KeyNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "nope", nf.Path)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	_, err = s.Update(ctx, "channels", "x")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	_, err = s.Update(ctx, "channels.admin", "x", OnlyConfigurable())
	assert.ErrorIs(t, err, ErrKeyNotConfigurable)
	_, err = s.Update(ctx, "channels.admin", "x")
	assert.NoError(t, err)

	_, err = s.Update(ctx, "prefix", "toolong")
	var be *serializer.BoundsError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, serializer.BoundMax, be.Kind)

	_, err = s.Update(ctx, "count", "abc")
	assert.ErrorIs(t, err, serializer.ErrInvalidValue)

	_, err = s.Update(ctx, "word", "forbidden")
	assert.ErrorIs(t, err, ErrFilteredValue)
	_, err = s.Update(ctx, "word", "fine")
	assert.NoError(t, err)
}

func TestBatchAbortsOnInvalidEntry(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)
	s := synced(t, gw, "1")

	_, err := s.UpdateMap(ctx, map[string]any{"count": 3, "enabled": "perhaps"})
	require.Error(t, err)
	assert.Zero(t, gw.provider.Writes())
	assert.Nil(t, s.Get("count"))
	assert.Empty(t, gw.eventTypes())
}

func TestUpdateMapNested(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)
	s := synced(t, gw, "1")

	changes, err := s.UpdateMap(ctx, map[string]any{
		"channels": map[string]any{"modlog": "c1"},
		"count":    5,
	})
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "channels.modlog", changes[0].Path())
	assert.Equal(t, "count", changes[1].Path())
	assert.Equal(t, "c1", s.Get("channels.modlog"))

	folder := s.Get("channels").(*Folder)
	_, err = folder.Update(ctx, "admin", "c2")
	require.NoError(t, err)
	assert.Equal(t, "c2", s.Get("channels.admin"))

	doc, err := gw.provider.Get(ctx, table, "1")
	require.NoError(t, err)
	testhelpers.AssertDocEqual(t, map[string]any{
		"id":       "1",
		"count":    5,
		"channels": map[string]any{"modlog": "c1", "admin": "c2"},
	}, doc)
}

func TestNoopWritePersistsNothing(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)
	s := seeded(t, gw, "1", map[string]any{"prefix": "?"})
	writes := gw.provider.Writes()

	changes, err := s.Update(ctx, "prefix", "?")
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.Equal(t, writes, gw.provider.Writes())
	assert.Equal(t, []EventType{EventSync}, gw.eventTypes())
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)
	s := seeded(t, gw, "1", map[string]any{
		"prefix":   "?",
		"count":    3,
		"channels": map[string]any{"modlog": "c1", "admin": "c2"},
	})
	writes := gw.provider.Writes()

	changes, err := s.Reset(ctx, []string{"enabled"})
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.Equal(t, writes, gw.provider.Writes())

	_, err = s.Reset(ctx, []string{"missing"})
	assert.ErrorIs(t, err, ErrKeyNotFound)

	_, err = s.Reset(ctx, []string{"channels"}, OnlyConfigurable())
	assert.ErrorIs(t, err, ErrKeyNotConfigurable)

	changes, err = s.Reset(ctx, []string{"prefix", "channels", "prefix"})
	require.NoError(t, err)
	require.Len(t, changes, 3)
	assert.Equal(t, "?", changes[0].Previous)
	assert.Equal(t, "!", changes[0].Next)
	assert.Equal(t, "!", s.Get("prefix"))
	assert.Nil(t, s.Get("channels.admin"))
	assertValueEqual(t, 3, s.Get("count"))

	changes, err = s.ResetMap(ctx, map[string]any{"count": true, "enabled": false})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Nil(t, s.Get("count"))

	changes, err = s.Reset(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestResetOnMissingDocument(t *testing.T) {
	gw := newTestGateway(t)
	s := synced(t, gw, "1")

	changes, err := s.Reset(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.Zero(t, gw.provider.Writes())
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)
	s := seeded(t, gw, "1", map[string]any{
		"pattern":  "^a+$",
		"messages": []any{"x", nil, "y"},
		"channels": map[string]any{"modlog": "c1"},
	})

	out, err := s.Resolve(ctx, "pattern", "messages", "channels", "missing", "count")
	require.NoError(t, err)
	require.Len(t, out, 5)

	re, ok := out[0].(*regexp.Regexp)
	require.True(t, ok)
	assert.True(t, re.MatchString("aa"))
	assert.Equal(t, []any{"x", "y"}, out[1])
	assert.Equal(t, map[string]any{"modlog": "c1", "admin": nil}, out[2])
	assert.Nil(t, out[3])
	assert.Nil(t, out[4])

	require.NoError(t, gw.provider.Provider.Replace(ctx, table, "2", map[string]any{"pattern": "("}))
	bad := synced(t, gw, "2")
	_, err = bad.Resolve(ctx, "pattern")
	assert.ErrorIs(t, err, serializer.ErrInvalidValue)
}

func TestDisplay(t *testing.T) {
	gw := newTestGateway(t)
	s := seeded(t, gw, "1", map[string]any{
		"enabled":  true,
		"messages": []any{"a", "b"},
		"channels": map[string]any{"modlog": "c1"},
	})

	text, err := s.Display("enabled")
	require.NoError(t, err)
	assert.Equal(t, "Enabled", text)

	text, err = s.Display("messages")
	require.NoError(t, err)
	assert.Equal(t, "a, b", text)

	text, err = s.Display("uses")
	require.NoError(t, err)
	assert.Equal(t, "None", text)

	text, err = s.Display("channels")
	require.NoError(t, err)
	assert.Equal(t, "modlog: c1\nadmin: ", text)

	_, err = s.Display("nope")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestSyncIsMemoized(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)
	require.NoError(t, gw.provider.Provider.Replace(ctx, table, "1", map[string]any{
		"count":    7,
		"uses":     3,
		"unknown":  "ignored",
		"channels": map[string]any{"modlog": "c9"},
	}))

	s := New(gw.sch, gw, "1", "target")
	require.NoError(t, s.Sync(ctx))
	require.NoError(t, s.Sync(ctx))
	assert.Equal(t, 1, gw.provider.Calls("Get"))

	assert.Equal(t, Exists, s.ExistenceStatus())
	assertValueEqual(t, 7, s.Get("count"))
	assertValueEqual(t, []any{3}, s.Get("uses"))
	assert.Equal(t, "c9", s.Get("channels.modlog"))
	assert.Equal(t, "target", s.Target())
	assert.Equal(t, []EventType{EventSync}, gw.eventTypes())
	assert.NotContains(t, s.ToMap(), "unknown")

	require.NoError(t, s.ForceSync(ctx))
	assert.Equal(t, 2, gw.provider.Calls("Get"))
}

func TestDestroy(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)
	s := seeded(t, gw, "1", map[string]any{"prefix": "?", "count": 1})

	require.NoError(t, s.Destroy(ctx))
	assert.Equal(t, NotExists, s.ExistenceStatus())
	assert.Equal(t, "!", s.Get("prefix"))
	assert.Nil(t, s.Get("count"))

	ok, err := gw.provider.Has(ctx, table, "1")
	require.NoError(t, err)
	assert.False(t, ok)

	types := gw.eventTypes()
	require.Equal(t, EventDelete, types[len(types)-1])
	snapshot := gw.events[len(gw.events)-1].Settings
	assert.Equal(t, "?", snapshot.Get("prefix"))

	require.NoError(t, s.Destroy(ctx))
	assert.Equal(t, 1, gw.provider.Calls("Delete"))
}

func TestForceSyncAfterExternalDelete(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)
	s := seeded(t, gw, "1", map[string]any{"prefix": "?", "count": 5})
	assertValueEqual(t, 5, s.Get("count"))

	require.NoError(t, gw.provider.Provider.Delete(ctx, table, "1"))
	require.NoError(t, s.ForceSync(ctx))

	assert.Equal(t, NotExists, s.ExistenceStatus())
	assert.Nil(t, s.Get("count"))
	assert.Equal(t, "!", s.Get("prefix"))

	changes, err := s.Update(ctx, "enabled", true)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	doc, err := gw.provider.Get(ctx, table, "1")
	require.NoError(t, err)
	assert.NotContains(t, doc, "count")
	assert.Nil(t, s.Get("count"))
}

func TestCloneIsIndependent(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)
	s := seeded(t, gw, "1", map[string]any{"messages": []any{"a"}})

	c := s.Clone()
	assert.Equal(t, s.ID(), c.ID())
	assert.Equal(t, Exists, c.ExistenceStatus())
	assert.Equal(t, s.ToMap(), c.ToMap())

	_, err := s.Update(ctx, "messages", "b")
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, c.Get("messages"))
	assert.Equal(t, []any{"a", "b"}, s.Get("messages"))

	list := s.Get("messages").([]any)
	list[0] = "mutated"
	assert.Equal(t, "a", s.Get("messages").([]any)[0])
}

func TestFailedPersistLeavesCache(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)
	s := synced(t, gw, "1")
	gw.provider.FailWith = errors.New("disk full")

	_, err := s.Update(ctx, "count", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Nil(t, s.Get("count"))
	assert.Equal(t, NotExists, s.ExistenceStatus())
	assert.Empty(t, gw.eventTypes())
}

func TestMarshalJSON(t *testing.T) {
	gw := newTestGateway(t)
	s := New(gw.sch, gw, "1", nil)
	data, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"count": null, "messages": [], "uses": [], "prefix": "!", "enabled": false,
		"pattern": null, "word": null, "channels": {"modlog": null, "admin": null}
	}`, string(data))
}
