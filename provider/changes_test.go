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

package provider

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangesFromObject(t *testing.T) {
	tests := []struct {
		name string
		obj  map[string]any
		want []Change
	}{
		{
			name: "flat",
			obj:  map[string]any{"a.b": 1, "c": "x"},
			want: []Change{{Path: []string{"a", "b"}, Value: 1}, {Path: []string{"c"}, Value: "x"}},
		},
		{
			name: "nested",
			obj:  map[string]any{"a": map[string]any{"b": 1, "c": []any{"x"}}},
			want: []Change{{Path: []string{"a", "b"}, Value: 1}, {Path: []string{"a", "c"}, Value: []any{"x"}}},
		},
		{
			name: "empty object is a leaf",
			obj:  map[string]any{"a": map[string]any{}},
			want: []Change{{Path: []string{"a"}, Value: map[string]any{}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChangesFromObject(tt.obj))
		})
	}
}

func TestApplyChanges(t *testing.T) {
	doc := map[string]any{"id": "1", "a": "scalar", "keep": true}
	out := ApplyChanges(doc, []Change{
		NewChange("a.b", 2),
		NewChange("list", []any{1, 2}),
	})

	assert.Equal(t, map[string]any{
		"id":   "1",
		"a":    map[string]any{"b": 2},
		"keep": true,
		"list": []any{1, 2},
	}, out)

	assert.Equal(t, map[string]any{"x": map[string]any{"y": nil}}, ToObject([]Change{NewChange("x.y", nil)}))
}

func TestApplyChangesCopiesValues(t *testing.T) {
	list := []any{"a"}
	doc := ApplyChanges(nil, []Change{{Path: []string{"l"}, Value: list}})
	list[0] = "b"
	assert.Equal(t, []any{"a"}, doc["l"])
}

func TestNewDocument(t *testing.T) {
	data := map[string]any{"id": "other", "n": 1}
	doc := NewDocument("42", data)
	assert.Equal(t, "42", doc["id"])
	assert.Equal(t, "other", data["id"])
	assert.Equal(t, Document{"id": "x"}, NewDocument("x", nil))
}

func TestMergeDocumentKeepsID(t *testing.T) {
	doc := MergeDocument("g1", nil, []Change{NewChange("id", "other"), NewChange("count", 1)})
	assert.Equal(t, Document{"id": "g1", "count": 1}, doc)

	doc = MergeDocument("g1", doc, []Change{NewChange("id", "again")})
	assert.Equal(t, "g1", doc["id"])
}

func TestChunkIDs(t *testing.T) {
	ids := make([]string, 0, 12001)
	for i := range 12000 {
		ids = append(ids, fmt.Sprint(i))
	}
	ids = append(ids, "0")

	chunks := ChunkIDs(ids, MaxChunkSize)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 5000)
	assert.Len(t, chunks[1], 5000)
	assert.Len(t, chunks[2], 2000)
	assert.Equal(t, "0", chunks[0][0])

	assert.Nil(t, ChunkIDs(nil, 10))
	assert.Equal(t, [][]string{{"a", "b"}}, ChunkIDs([]string{"a", "b", "a"}, 0))
}
