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
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/settingsgateway/internal/docvalue"
	"github.com/cardinalhq/settingsgateway/schema"
)

// Pair is one path and raw value in a batched update.
type Pair struct {
	Path  string
	Value any
}

// Update writes value at path, relative to the folder.
func (f *Folder) Update(ctx context.Context, path string, value any, opts ...Option) ([]Change, error) {
	return f.UpdatePairs(ctx, []Pair{{Path: path, Value: value}}, opts...)
}

// UpdateMap writes every path in values. Nested maps are descended while
// their key names a schema folder.
func (f *Folder) UpdateMap(ctx context.Context, values map[string]any, opts ...Option) ([]Change, error) {
	var pairs []Pair
	f.flattenValues(values, "", &pairs)
	slices.SortFunc(pairs, func(a, b Pair) int {
		switch {
		case a.Path < b.Path:
			return -1
		case a.Path > b.Path:
			return 1
		}
		return 0
	})
	return f.UpdatePairs(ctx, pairs, opts...)
}

func (f *Folder) flattenValues(values map[string]any, prefix string, out *[]Pair) {
	for k, v := range values {
		path := joinPrefix(prefix) + k
		if nested, ok := v.(map[string]any); ok {
			if _, isFolder := f.schema.Get(path).(*schema.Folder); isFolder {
				f.flattenValues(nested, path, out)
				continue
			}
		}
		*out = append(*out, Pair{Path: path, Value: v})
	}
}

// UpdatePairs validates every pair, then persists the resulting changes in
// one provider call. A single failing pair aborts the whole batch.
func (f *Folder) UpdatePairs(ctx context.Context, pairs []Pair, opts ...Option) ([]Change, error) {
	s := f.base
	if s.gateway == nil {
		return nil, ErrNotReady
	}
	if s.ExistenceStatus() == Unsynchronized {
		return nil, ErrUnsynchronized
	}
	o := collect(opts)

	entries := make([]*schema.Entry, len(pairs))
	for i, p := range pairs {
		e, err := f.writableEntry(p.Path, o)
		if err != nil {
			return nil, err
		}
		entries[i] = e
	}

	s.mu.RLock()
	previous := make([]any, len(pairs))
	for i, e := range entries {
		v, _ := s.lookup(e.Path())
		previous[i] = docvalue.Clone(v)
	}
	s.mu.RUnlock()

	results := make([]*Change, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	for i := range pairs {
		g.Go(func() error {
			next, err := s.nextValue(gctx, entries[i], previous[i], pairs[i].Value, o)
			if err != nil {
				return err
			}
			if !docvalue.Equal(previous[i], next) {
				results[i] = &Change{Previous: previous[i], Next: next, Entry: entries[i]}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	changes := make([]Change, 0, len(results))
	for _, c := range results {
		if c != nil {
			changes = append(changes, *c)
		}
	}
	if len(changes) == 0 {
		return changes, nil
	}
	if err := s.save(ctx, changes, o); err != nil {
		return nil, err
	}
	return changes, nil
}

func (f *Folder) writableEntry(path string, o *options) (*schema.Entry, error) {
	e := f.schema.Entry(path)
	if e == nil {
		return nil, &KeyNotFoundError{Path: path}
	}
	if o.onlyConfigurable && !e.Configurable() {
		return nil, &configurableError{path: e.Path()}
	}
	return e, nil
}

type configurableError struct {
	path string
}

func (e *configurableError) Error() string { return e.path + ": " + ErrKeyNotConfigurable.Error() }
func (e *configurableError) Unwrap() error { return ErrKeyNotConfigurable }

// nextValue computes the value an entry holds after writing raw.
func (s *Settings) nextValue(ctx context.Context, e *schema.Entry, previous, raw any, o *options) (any, error) {
	if raw == nil {
		return e.Default(), nil
	}

	if !e.Array() {
		v, err := s.validate(ctx, e, raw, o)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return e.Default(), nil
		}
		return v, nil
	}

	values, err := s.validateAll(ctx, e, asList(raw), o)
	if err != nil {
		return nil, err
	}
	current, _ := previous.([]any)
	if current == nil {
		current = []any{}
	}

	switch {
	case o.arrayAction == ArrayOverwrite:
		return compact(values), nil
	case o.arrayIndex != nil:
		return spliceAt(e, current, values, *o.arrayIndex, o.arrayAction)
	case o.arrayAction == ArrayAdd:
		next := slices.Clone(current)
		for _, v := range compact(values) {
			if docvalue.IndexOf(next, v) >= 0 {
				return nil, &DuplicateValueError{Path: e.Path(), Value: v}
			}
			next = append(next, v)
		}
		return next, nil
	case o.arrayAction == ArrayRemove:
		next := slices.Clone(current)
		for _, v := range compact(values) {
			idx := docvalue.IndexOf(next, v)
			if idx < 0 {
				return nil, &MissingValueError{Path: e.Path(), Value: v}
			}
			next = slices.Delete(next, idx, idx+1)
		}
		return next, nil
	default:
		next := slices.Clone(current)
		for _, v := range compact(values) {
			if idx := docvalue.IndexOf(next, v); idx >= 0 {
				next = slices.Delete(next, idx, idx+1)
			} else {
				next = append(next, v)
			}
		}
		return next, nil
	}
}

// spliceAt applies an index-based array write. Writing nil at an occupied
// index deletes that slot.
func spliceAt(e *schema.Entry, current, values []any, index int, action ArrayAction) (any, error) {
	if index < 0 || index > len(current) {
		return nil, &IndexOutOfRangeError{Path: e.Path(), Index: index, Length: len(current)}
	}
	next := slices.Clone(current)
	end := min(index+len(values), len(next))

	switch {
	case action == ArrayAdd:
		return slices.Insert(next, index, compact(values)...), nil
	case action == ArrayRemove || allNil(values):
		return slices.Delete(next, index, end), nil
	default:
		next = slices.Replace(next, index, end, values...)
		return compact(next), nil
	}
}

func (s *Settings) validateAll(ctx context.Context, e *schema.Entry, raws []any, o *options) ([]any, error) {
	out := make([]any, len(raws))
	g, gctx := errgroup.WithContext(ctx)
	for i, raw := range raws {
		if raw == nil {
			continue
		}
		g.Go(func() error {
			v, err := s.validate(gctx, e, raw, o)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// validate parses one raw value and returns its storable form.
func (s *Settings) validate(ctx context.Context, e *schema.Entry, raw any, o *options) (any, error) {
	ser, err := e.Serializer()
	if err != nil {
		return nil, err
	}
	sc := s.serializerContext(e, o.language, o.extra)
	v, err := ser.Validate(ctx, raw, sc)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	if filter := e.Filter(); filter != nil && filter(ctx, v, sc) {
		return nil, &FilteredValueError{Path: e.Path(), Value: raw}
	}
	return ser.Serialize(v), nil
}

func asList(raw any) []any {
	if list, ok := docvalue.Normalize(raw).([]any); ok {
		return list
	}
	return []any{raw}
}

func compact(values []any) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		if v != nil {
			out = append(out, v)
		}
	}
	return out
}

func allNil(values []any) bool {
	for _, v := range values {
		if v != nil {
			return false
		}
	}
	return true
}

// Reset restores the given paths, relative to the folder, to their defaults.
// A nil paths resets every entry below the folder; a path naming a folder
// resets every entry below it.
func (f *Folder) Reset(ctx context.Context, paths []string, opts ...Option) ([]Change, error) {
	s := f.base
	if s.gateway == nil {
		return nil, ErrNotReady
	}
	switch s.ExistenceStatus() {
	case Unsynchronized:
		return nil, ErrUnsynchronized
	case NotExists:
		return []Change{}, nil
	}
	o := collect(opts)

	var entries []*schema.Entry
	if paths == nil {
		entries = f.schema.Entries()
	} else {
		seen := mapset.NewThreadUnsafeSet[string]()
		for _, p := range paths {
			var found []*schema.Entry
			switch n := f.schema.Get(p).(type) {
			case *schema.Entry:
				found = []*schema.Entry{n}
			case *schema.Folder:
				found = n.Entries()
			default:
				return nil, &KeyNotFoundError{Path: p}
			}
			for _, e := range found {
				if seen.Add(e.Path()) {
					entries = append(entries, e)
				}
			}
		}
	}

	for _, e := range entries {
		if o.onlyConfigurable && !e.Configurable() {
			return nil, &configurableError{path: e.Path()}
		}
	}

	s.mu.RLock()
	changes := make([]Change, 0, len(entries))
	for _, e := range entries {
		current, _ := s.lookup(e.Path())
		def := e.Default()
		if !docvalue.Equal(current, def) {
			changes = append(changes, Change{Previous: docvalue.Clone(current), Next: def, Entry: e})
		}
	}
	s.mu.RUnlock()

	if len(changes) == 0 {
		return changes, nil
	}
	if err := s.save(ctx, changes, o); err != nil {
		return nil, err
	}
	return changes, nil
}

// ResetMap resets every path whose leaf in selection is truthy.
func (f *Folder) ResetMap(ctx context.Context, selection map[string]any, opts ...Option) ([]Change, error) {
	paths := []string{}
	collectTruthy(selection, "", &paths)
	slices.Sort(paths)
	return f.Reset(ctx, paths, opts...)
}

func collectTruthy(selection map[string]any, prefix string, out *[]string) {
	for k, v := range selection {
		path := joinPrefix(prefix) + k
		if nested, ok := v.(map[string]any); ok {
			collectTruthy(nested, path, out)
			continue
		}
		if truthy(v) {
			*out = append(*out, path)
		}
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	}
	if docvalue.Equal(v, 0) {
		return false
	}
	return true
}
