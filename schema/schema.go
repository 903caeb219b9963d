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

// Package schema declares the keys a settings document may hold: a tree of
// typed entries grouped into folders, each entry owning its default value.
//
// A Schema is mutable until its gateway initializes and locks it; after
// that it is read-only and safe to share between goroutines.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/cardinalhq/settingsgateway/serializer"
)

var (
	ErrSchemaLocked   = errors.New("schema is locked")
	ErrNotInitialized = errors.New("schema has no serializer registry attached")
	ErrNodeConflict   = errors.New("key is already declared with a different node type")
	ErrInvalidKey     = errors.New("invalid schema key")
)

// Node is either an *Entry or a *Folder.
type Node interface {
	Key() string
	Path() string
	Parent() *Folder
}

// Folder is a node holding nested entries and folders.
type Folder struct {
	root     *Schema
	parent   *Folder
	key      string
	keys     []string
	children map[string]Node
}

// Schema is the root folder of a declaration tree.
type Schema struct {
	Folder
	ready    atomic.Bool
	registry atomic.Pointer[serializer.Registry]
}

// New returns an empty, unlocked schema.
func New() *Schema {
	s := &Schema{}
	s.Folder = Folder{root: s, children: make(map[string]Node)}
	return s
}

// Ready reports whether the schema has been locked by its gateway.
func (s *Schema) Ready() bool { return s.ready.Load() }

// Lock makes the schema read-only.
func (s *Schema) Lock() { s.ready.Store(true) }

// Attach binds the serializer registry entries resolve their types against.
func (s *Schema) Attach(reg *serializer.Registry) { s.registry.Store(reg) }

// Registry returns the attached serializer registry, or nil.
func (s *Schema) Registry() *serializer.Registry { return s.registry.Load() }

// Root returns the schema the folder belongs to.
func (f *Folder) Root() *Schema { return f.root }

func (f *Folder) Key() string     { return f.key }
func (f *Folder) Parent() *Folder { return f.parent }

func (f *Folder) Path() string {
	if f.parent == nil {
		return f.key
	}
	return joinPath(f.parent.Path(), f.key)
}

// Size returns the number of direct children.
func (f *Folder) Size() int { return len(f.keys) }

// Keys returns the direct child keys in declaration order.
func (f *Folder) Keys() []string { return slices.Clone(f.keys) }

// Children returns the direct children in declaration order.
func (f *Folder) Children() []Node {
	out := make([]Node, 0, len(f.keys))
	for _, k := range f.keys {
		out = append(out, f.children[k])
	}
	return out
}

// Child returns the direct child named key.
func (f *Folder) Child(key string) (Node, bool) {
	n, ok := f.children[key]
	return n, ok
}

// Entries returns every entry below the folder, depth first in declaration order.
func (f *Folder) Entries() []*Entry {
	var out []*Entry
	for _, k := range f.keys {
		switch n := f.children[k].(type) {
		case *Entry:
			out = append(out, n)
		case *Folder:
			out = append(out, n.Entries()...)
		}
	}
	return out
}

// Paths returns the full path of every entry below the folder.
func (f *Folder) Paths() []string {
	entries := f.Entries()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Path()
	}
	return out
}

func (f *Folder) locked() bool {
	return f.root != nil && f.root.Ready()
}

func validKey(key string) error {
	if key == "" || strings.Contains(key, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Add declares an entry of the given serializer type. When key already names
// an entry, the type and options are merged into it in place.
func (f *Folder) Add(key, typ string, opts ...Option) error {
	if f.locked() {
		return ErrSchemaLocked
	}
	if err := validKey(key); err != nil {
		return err
	}

	if existing, ok := f.children[key]; ok {
		entry, ok := existing.(*Entry)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNodeConflict, joinPath(f.Path(), key))
		}
		if typ != "" {
			opts = append([]Option{WithType(typ)}, opts...)
		}
		return entry.Edit(opts...)
	}

	f.insert(key, newEntry(f, key, typ, opts...))
	return nil
}

// AddFolder declares a nested folder populated by build. When key already
// names a folder, build extends it.
func (f *Folder) AddFolder(key string, build func(*Folder) error) error {
	if f.locked() {
		return ErrSchemaLocked
	}
	if err := validKey(key); err != nil {
		return err
	}

	if existing, ok := f.children[key]; ok {
		folder, ok := existing.(*Folder)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNodeConflict, joinPath(f.Path(), key))
		}
		if build == nil {
			return nil
		}
		return build(folder)
	}

	folder := &Folder{
		root:     f.root,
		parent:   f,
		key:      key,
		children: make(map[string]Node),
	}
	if build != nil {
		if err := build(folder); err != nil {
			return fmt.Errorf("building folder %s: %w", folder.Path(), err)
		}
	}
	f.insert(key, folder)
	return nil
}

func (f *Folder) insert(key string, n Node) {
	f.keys = append(f.keys, key)
	f.children[key] = n
}

// Delete removes the child named key.
func (f *Folder) Delete(key string) (bool, error) {
	if f.locked() {
		return false, ErrSchemaLocked
	}
	if _, ok := f.children[key]; !ok {
		return false, nil
	}
	delete(f.children, key)
	f.keys = slices.DeleteFunc(f.keys, func(k string) bool { return k == key })
	return true, nil
}

// Get resolves a dotted path relative to the folder. It returns nil when a
// segment is missing or an intermediate segment is an entry.
func (f *Folder) Get(path string) Node {
	if path == "" {
		return nil
	}
	current := f
	parts := strings.Split(path, ".")
	for i, part := range parts {
		child, ok := current.children[part]
		if !ok {
			return nil
		}
		if i == len(parts)-1 {
			return child
		}
		folder, ok := child.(*Folder)
		if !ok {
			return nil
		}
		current = folder
	}
	return nil
}

// Entry resolves path to an entry, or nil.
func (f *Folder) Entry(path string) *Entry {
	e, _ := f.Get(path).(*Entry)
	return e
}

// Defaults returns a nested document holding every entry's default.
func (f *Folder) Defaults() map[string]any {
	out := make(map[string]any, len(f.keys))
	for _, k := range f.keys {
		switch n := f.children[k].(type) {
		case *Entry:
			out[k] = n.Default()
		case *Folder:
			out[k] = n.Defaults()
		}
	}
	return out
}

// DefaultValue returns the default stored at path.
func (f *Folder) DefaultValue(path string) (any, bool) {
	switch n := f.Get(path).(type) {
	case *Entry:
		return n.Default(), true
	case *Folder:
		return n.Defaults(), true
	}
	return nil, false
}

// MarshalJSON renders the declarations below the folder.
func (f *Folder) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.declarations())
}

func (f *Folder) declarations() map[string]any {
	out := make(map[string]any, len(f.keys))
	for _, k := range f.keys {
		switch n := f.children[k].(type) {
		case *Entry:
			out[k] = n.declaration()
		case *Folder:
			out[k] = n.declarations()
		}
	}
	return out
}

// Check validates every entry below the folder and returns all violations.
func (f *Folder) Check(reg *serializer.Registry) error {
	var errs []error
	for _, e := range f.Entries() {
		if err := e.Check(reg); err != nil {
			errs = append(errs, err)
		}
	}
	return joinViolations(errs)
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
