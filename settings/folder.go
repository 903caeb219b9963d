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
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/settingsgateway/internal/docvalue"
	"github.com/cardinalhq/settingsgateway/schema"
	"github.com/cardinalhq/settingsgateway/serializer"
)

// Folder caches one value per child of its schema folder: a raw stored value
// for entries, a nested *Folder for folders.
type Folder struct {
	base   *Settings
	schema *schema.Folder
	values map[string]any
}

func newFolder(base *Settings, sf *schema.Folder) *Folder {
	f := &Folder{base: base, schema: sf, values: make(map[string]any, sf.Size())}
	f.resetValues()
	return f
}

// Base returns the root settings the folder belongs to.
func (f *Folder) Base() *Settings { return f.base }

// Schema returns the schema folder the cache mirrors.
func (f *Folder) Schema() *schema.Folder { return f.schema }

// Keys returns the child keys in declaration order.
func (f *Folder) Keys() []string { return f.schema.Keys() }

// Lookup returns a copy of the raw value at path, or the nested *Folder when
// path names a folder.
func (f *Folder) Lookup(path string) (any, bool) {
	f.base.mu.RLock()
	defer f.base.mu.RUnlock()
	v, ok := f.lookup(path)
	if !ok {
		return nil, false
	}
	if _, isFolder := v.(*Folder); isFolder {
		return v, true
	}
	return docvalue.Clone(v), true
}

// Get is Lookup without the presence flag.
func (f *Folder) Get(path string) any {
	v, _ := f.Lookup(path)
	return v
}

// Pluck returns the value of every path positionally; unknown paths yield nil.
func (f *Folder) Pluck(paths ...string) []any {
	out := make([]any, len(paths))
	for i, p := range paths {
		out[i] = f.Get(p)
	}
	return out
}

func (f *Folder) lookup(path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	current := f
	parts := strings.Split(path, ".")
	for i, part := range parts {
		v, ok := current.values[part]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		sub, ok := v.(*Folder)
		if !ok {
			return nil, false
		}
		current = sub
	}
	return nil, false
}

// Resolve is Pluck with every resolvable entry passed through its
// serializer's Deserialize. Folders resolve to maps of resolved children.
func (f *Folder) Resolve(ctx context.Context, paths ...string) ([]any, error) {
	if f.base.gateway == nil {
		return nil, ErrNotReady
	}

	raws := make([]any, len(paths))
	nodes := make([]schema.Node, len(paths))
	f.base.mu.RLock()
	for i, p := range paths {
		nodes[i] = f.schema.Get(p)
		if v, ok := f.lookup(p); ok {
			raws[i] = snapshot(v)
		}
	}
	f.base.mu.RUnlock()

	out := make([]any, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i := range paths {
		if nodes[i] == nil {
			continue
		}
		g.Go(func() error {
			v, err := f.base.resolveNode(gctx, nodes[i], raws[i])
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

func (s *Settings) serializerContext(e *schema.Entry, language string, extra any) *serializer.Context {
	return &serializer.Context{Entry: e, Language: language, Target: s.target, Extra: extra}
}

func (s *Settings) resolveNode(ctx context.Context, node schema.Node, raw any) (any, error) {
	switch n := node.(type) {
	case *schema.Folder:
		values, _ := raw.(map[string]any)
		out := make(map[string]any, len(values))
		for _, child := range n.Children() {
			v, err := s.resolveNode(ctx, child, values[child.Key()])
			if err != nil {
				return nil, err
			}
			out[child.Key()] = v
		}
		return out, nil
	case *schema.Entry:
		return s.resolveEntry(ctx, n, raw)
	}
	return nil, nil
}

func (s *Settings) resolveEntry(ctx context.Context, e *schema.Entry, raw any) (any, error) {
	if !e.ShouldResolve() || raw == nil {
		return raw, nil
	}
	ser, err := e.Serializer()
	if err != nil {
		return nil, err
	}
	sc := s.serializerContext(e, "", nil)

	if !e.Array() {
		return ser.Deserialize(ctx, raw, sc)
	}

	list, _ := raw.([]any)
	resolved := make([]any, len(list))
	g, gctx := errgroup.WithContext(ctx)
	for i, elem := range list {
		if elem == nil {
			continue
		}
		g.Go(func() error {
			v, err := ser.Deserialize(gctx, elem, sc)
			if err != nil {
				return err
			}
			resolved[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]any, 0, len(resolved))
	for _, v := range resolved {
		if v != nil {
			out = append(out, v)
		}
	}
	return out, nil
}

// Display renders the value at path with its serializer's Stringify. A folder
// renders one "path: value" line per entry below it.
func (f *Folder) Display(path string) (string, error) {
	node := f.schema.Get(path)
	if node == nil {
		return "", &KeyNotFoundError{Path: path}
	}

	f.base.mu.RLock()
	defer f.base.mu.RUnlock()

	switch n := node.(type) {
	case *schema.Entry:
		v, _ := f.lookup(path)
		return f.base.display(n, v)
	case *schema.Folder:
		var lines []string
		for _, e := range n.Entries() {
			rel := strings.TrimPrefix(e.Path(), joinPrefix(f.schema.Path()))
			v, _ := f.lookup(rel)
			text, err := f.base.display(e, v)
			if err != nil {
				return "", err
			}
			lines = append(lines, fmt.Sprintf("%s: %s", strings.TrimPrefix(e.Path(), joinPrefix(n.Path())), text))
		}
		return strings.Join(lines, "\n"), nil
	}
	return "", &KeyNotFoundError{Path: path}
}

func joinPrefix(path string) string {
	if path == "" {
		return ""
	}
	return path + "."
}

func (s *Settings) display(e *schema.Entry, v any) (string, error) {
	ser, err := e.Serializer()
	if err != nil {
		return "", err
	}
	if !e.Array() {
		return ser.Stringify(v, s.target), nil
	}
	list, _ := v.([]any)
	if len(list) == 0 {
		return "None", nil
	}
	parts := make([]string, len(list))
	for i, elem := range list {
		parts[i] = ser.Stringify(elem, s.target)
	}
	return strings.Join(parts, ", "), nil
}

// ToMap returns a nested copy of every raw value below the folder.
func (f *Folder) ToMap() map[string]any {
	f.base.mu.RLock()
	defer f.base.mu.RUnlock()
	return f.toMap()
}

func (f *Folder) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.ToMap())
}

func (f *Folder) toMap() map[string]any {
	out := make(map[string]any, len(f.values))
	for k, v := range f.values {
		out[k] = snapshot(v)
	}
	return out
}

func snapshot(v any) any {
	if sub, ok := v.(*Folder); ok {
		return sub.toMap()
	}
	return docvalue.Clone(v)
}

func (f *Folder) resetValues() {
	for _, child := range f.schema.Children() {
		switch n := child.(type) {
		case *schema.Entry:
			f.values[n.Key()] = n.Default()
		case *schema.Folder:
			if sub, ok := f.values[n.Key()].(*Folder); ok {
				sub.resetValues()
				continue
			}
			f.values[n.Key()] = newFolder(f.base, n)
		}
	}
}

// patch copies the values doc holds for known keys into the cache.
func (f *Folder) patch(doc map[string]any) {
	for _, child := range f.schema.Children() {
		raw, ok := doc[child.Key()]
		if !ok {
			continue
		}
		switch n := child.(type) {
		case *schema.Entry:
			f.values[n.Key()] = coerce(n, docvalue.Normalize(docvalue.Clone(raw)))
		case *schema.Folder:
			nested, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			if sub, ok := f.values[n.Key()].(*Folder); ok {
				sub.patch(nested)
			}
		}
	}
}

// coerce keeps array entries holding lists.
func coerce(e *schema.Entry, v any) any {
	if !e.Array() {
		return v
	}
	switch list := v.(type) {
	case []any:
		return list
	case nil:
		return []any{}
	default:
		return []any{list}
	}
}

func (f *Folder) setPath(path string, v any) {
	parts := strings.Split(path, ".")
	current := f
	for _, part := range parts[:len(parts)-1] {
		sub, ok := current.values[part].(*Folder)
		if !ok {
			return
		}
		current = sub
	}
	current.values[parts[len(parts)-1]] = v
}

func (f *Folder) cloneInto(base *Settings) *Folder {
	c := &Folder{base: base, schema: f.schema, values: make(map[string]any, len(f.values))}
	for k, v := range f.values {
		if sub, ok := v.(*Folder); ok {
			c.values[k] = sub.cloneInto(base)
			continue
		}
		c.values[k] = docvalue.Clone(v)
	}
	return c
}
