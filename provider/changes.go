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
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/cardinalhq/settingsgateway/internal/docvalue"
)

// ChangesFromObject flattens a flat ("a.b": v) or nested ({"a": {"b": v}})
// object into changes, one per leaf. Empty nested objects are leaves.
// Changes are returned sorted by path.
func ChangesFromObject(obj map[string]any) []Change {
	var out []Change
	flattenInto(obj, nil, &out)
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

func flattenInto(obj map[string]any, prefix []string, out *[]Change) {
	for k, v := range obj {
		path := append(append([]string{}, prefix...), strings.Split(k, ".")...)
		if nested, ok := v.(map[string]any); ok && len(nested) > 0 {
			flattenInto(nested, path, out)
			continue
		}
		*out = append(*out, Change{Path: path, Value: docvalue.Clone(v)})
	}
}

// ToObject builds a nested object from changes.
func ToObject(changes []Change) map[string]any {
	return ApplyChanges(map[string]any{}, changes)
}

// ApplyChanges writes every change into doc, creating intermediate objects
// and replacing non-object intermediates, and returns doc.
func ApplyChanges(doc map[string]any, changes []Change) map[string]any {
	if doc == nil {
		doc = make(map[string]any)
	}
	for _, c := range changes {
		if len(c.Path) == 0 {
			continue
		}
		current := doc
		for _, part := range c.Path[:len(c.Path)-1] {
			next, ok := current[part].(map[string]any)
			if !ok {
				next = make(map[string]any)
				current[part] = next
			}
			current = next
		}
		current[c.Path[len(c.Path)-1]] = docvalue.Clone(c.Value)
	}
	return doc
}

// NewDocument returns a copy of data with its id field set.
func NewDocument(id string, data map[string]any) Document {
	doc, _ := docvalue.Clone(data).(map[string]any)
	if doc == nil {
		doc = make(map[string]any)
	}
	doc["id"] = id
	return doc
}

// MergeDocument applies changes to doc, or to a fresh document when doc is
// nil, and sets the id field last so no change can overwrite it.
func MergeDocument(id string, doc Document, changes []Change) Document {
	if doc == nil {
		doc = NewDocument(id, nil)
	}
	doc = ApplyChanges(doc, changes)
	doc["id"] = id
	return doc
}

// ChunkIDs removes duplicate ids, keeping first occurrences, and splits the
// rest into chunks of at most size ids.
func ChunkIDs(ids []string, size int) [][]string {
	if size <= 0 {
		size = MaxChunkSize
	}
	seen := mapset.NewThreadUnsafeSet[string]()
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen.Add(id) {
			unique = append(unique, id)
		}
	}

	var chunks [][]string
	for start := 0; start < len(unique); start += size {
		end := min(start+size, len(unique))
		chunks = append(chunks, unique[start:end])
	}
	return chunks
}
