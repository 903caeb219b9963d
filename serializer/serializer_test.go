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

package serializer

import (
	"context"
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEntry struct {
	path      string
	typ       string
	minimum   *float64
	maximum   *float64
	inclusive bool
}

func (e fakeEntry) Path() string { return e.path }
func (e fakeEntry) Type() string { return e.typ }
func (e fakeEntry) Bounds() (*float64, *float64, bool) {
	return e.minimum, e.maximum, e.inclusive
}

func ptr(f float64) *float64 { return &f }

func TestRegistry(t *testing.T) {
	r := NewDefaultRegistry()

	for _, name := range []string{"any", "boolean", "bool", "string", "number", "float", "integer", "int", "url", "regexp", "regex", "uuid", "duration"} {
		assert.True(t, r.Has(name), name)
	}
	assert.True(t, r.Has("BOOLEAN"))
	assert.False(t, r.Has("guild"))

	err := r.Register("bool", Any{})
	assert.ErrorIs(t, err, ErrDuplicateSerializer)

	require.NoError(t, r.Register("Channel", Any{}, "chan"))
	s, ok := r.Get("chan")
	require.True(t, ok)
	assert.IsType(t, Any{}, s)
	assert.Contains(t, r.Names(), "channel")

	assert.Panics(t, func() { r.MustGet("missing") })
}

func TestMinOrMax(t *testing.T) {
	tests := []struct {
		name  string
		entry fakeEntry
		value float64
		kind  BoundKind
		ok    bool
	}{
		{"no bounds", fakeEntry{path: "k"}, 42, 0, true},
		{"within both inclusive", fakeEntry{path: "k", minimum: ptr(1), maximum: ptr(10), inclusive: true}, 10, 0, true},
		{"edge both exclusive", fakeEntry{path: "k", minimum: ptr(1), maximum: ptr(10)}, 10, BoundBoth, false},
		{"exact", fakeEntry{path: "k", minimum: ptr(5), maximum: ptr(5), inclusive: true}, 4, BoundExact, false},
		{"exact ok", fakeEntry{path: "k", minimum: ptr(5), maximum: ptr(5), inclusive: true}, 5, 0, true},
		{"min only", fakeEntry{path: "k", minimum: ptr(0), inclusive: true}, -1, BoundMin, false},
		{"min zero accepted", fakeEntry{path: "k", minimum: ptr(0), inclusive: true}, 0, 0, true},
		{"max only", fakeEntry{path: "k", maximum: ptr(3)}, 3, BoundMax, false},
		{"max only ok", fakeEntry{path: "k", maximum: ptr(3)}, 2.5, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MinOrMax(tt.value, tt.entry)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var be *BoundsError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, tt.kind, be.Kind)
			assert.ErrorIs(t, err, ErrOutOfBounds)
			assert.Contains(t, err.Error(), "k must be")
		})
	}

	assert.NoError(t, MinOrMax(1, nil))
}

func TestBuiltinValidate(t *testing.T) {
	ctx := context.Background()
	r := NewDefaultRegistry()

	tests := []struct {
		typ     string
		raw     any
		want    any
		wantErr bool
	}{
		{"boolean", true, true, false},
		{"boolean", "yes", true, false},
		{"boolean", "Off", false, false},
		{"boolean", 1, true, false},
		{"boolean", "maybe", nil, true},
		{"string", "hello", "hello", false},
		{"string", 12, "12", false},
		{"string", []int{1}, nil, true},
		{"number", "2.5", 2.5, false},
		{"number", 3, float64(3), false},
		{"number", "abc", nil, true},
		{"integer", 4, int64(4), false},
		{"integer", float64(4), int64(4), false},
		{"integer", 4.5, nil, true},
		{"integer", "17", int64(17), false},
		{"integer", math.Exp2(63), nil, true},
		{"integer", -math.Exp2(63), int64(math.MinInt64), false},
		{"integer", math.Inf(1), nil, true},
		{"url", "https://example.com/a", "https://example.com/a", false},
		{"url", "example.com", nil, true},
		{"any", map[string]any{"a": 1}, map[string]any{"a": 1}, false},
		{"duration", "1m30s", 90 * time.Second, false},
		{"duration", 2, 2 * time.Second, false},
		{"duration", "soon", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			got, err := r.MustGet(tt.typ).Validate(ctx, tt.raw, &Context{Entry: fakeEntry{path: "key", typ: tt.typ}})
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidValue)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStringBoundsUseLength(t *testing.T) {
	entry := fakeEntry{path: "prefix", typ: "string", minimum: ptr(1), maximum: ptr(3), inclusive: true}
	_, err := String{}.Validate(context.Background(), "abcd", &Context{Entry: entry})
	var be *BoundsError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, BoundBoth, be.Kind)

	got, err := String{}.Validate(context.Background(), "äöü", &Context{Entry: entry})
	require.NoError(t, err)
	assert.Equal(t, "äöü", got)
}

func TestRegexpRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := Regexp{}

	v, err := s.Validate(ctx, "^a+$", nil)
	require.NoError(t, err)
	stored := s.Serialize(v)
	assert.Equal(t, "^a+$", stored)

	resolved, err := s.Deserialize(ctx, stored, nil)
	require.NoError(t, err)
	re, ok := resolved.(*regexp.Regexp)
	require.True(t, ok)
	assert.True(t, re.MatchString("aaa"))

	_, err = s.Validate(ctx, "(", nil)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestUUIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	v, err := UUID{}.Validate(ctx, id.String(), nil)
	require.NoError(t, err)
	stored := UUID{}.Serialize(v)
	assert.Equal(t, id.String(), stored)

	resolved, err := UUID{}.Deserialize(ctx, stored, nil)
	require.NoError(t, err)
	assert.Equal(t, id, resolved)
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "Enabled", Boolean{}.Stringify(true, nil))
	assert.Equal(t, "Disabled", Boolean{}.Stringify(nil, nil))
	assert.Equal(t, "", Any{}.Stringify(nil, nil))
	assert.Equal(t, "12", Number{}.Stringify(12, nil))
}
