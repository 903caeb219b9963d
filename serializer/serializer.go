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

// Package serializer defines the per-type validation and storage strategy used
// by schema entries, and a registry that resolves them by type name.
package serializer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

var (
	ErrDuplicateSerializer = errors.New("serializer already registered")
	ErrUnknownSerializer   = errors.New("unknown serializer")
)

// Entry is the view of a schema entry a serializer needs while validating.
type Entry interface {
	Path() string
	Type() string
	Bounds() (minimum, maximum *float64, inclusive bool)
}

// Context carries the caller information available while a value is parsed.
type Context struct {
	Entry    Entry
	Language string
	Target   any
	Extra    any
}

// Key returns the path of the entry being validated, or "value" when there is none.
func (c *Context) Key() string {
	if c == nil || c.Entry == nil {
		return "value"
	}
	return c.Entry.Path()
}

// Serializer validates raw input and converts it between its stored and
// resolved representations.
type Serializer interface {
	// Validate parses raw input into the type's value. A nil value with a nil
	// error means the input cleared the value.
	Validate(ctx context.Context, raw any, sc *Context) (any, error)

	// Serialize converts a validated value into its storable form.
	Serialize(value any) any

	// Deserialize converts a stored value into its resolved form.
	Deserialize(ctx context.Context, stored any, sc *Context) (any, error)

	// Stringify renders a stored value for display.
	Stringify(value any, target any) string
}

// Base supplies identity Serialize/Deserialize and fmt-based Stringify.
type Base struct{}

func (Base) Serialize(value any) any { return value }

func (Base) Deserialize(_ context.Context, stored any, _ *Context) (any, error) {
	return stored, nil
}

func (Base) Stringify(value any, _ any) string {
	if value == nil {
		return ""
	}
	return fmt.Sprint(value)
}

// Registry maps lower-cased type names and aliases to serializers.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]Serializer
	aliases map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:  make(map[string]Serializer),
		aliases: make(map[string]string),
	}
}

// NewDefaultRegistry returns a registry holding every built-in serializer.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	registerBuiltins(r)
	return r
}

// Register adds a serializer under name and any aliases.
func (r *Registry) Register(name string, s Serializer, aliases ...string) error {
	name = strings.ToLower(name)
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.taken(name) {
		return fmt.Errorf("%w: %s", ErrDuplicateSerializer, name)
	}
	for _, alias := range aliases {
		if r.taken(strings.ToLower(alias)) {
			return fmt.Errorf("%w: %s", ErrDuplicateSerializer, alias)
		}
	}

	r.byName[name] = s
	for _, alias := range aliases {
		r.aliases[strings.ToLower(alias)] = name
	}
	return nil
}

func (r *Registry) taken(name string) bool {
	if _, ok := r.byName[name]; ok {
		return true
	}
	_, ok := r.aliases[name]
	return ok
}

// Get resolves a serializer by name or alias.
func (r *Registry) Get(name string) (Serializer, bool) {
	name = strings.ToLower(name)
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.byName[name]; ok {
		return s, true
	}
	if canonical, ok := r.aliases[name]; ok {
		s, ok := r.byName[canonical]
		return s, ok
	}
	return nil, false
}

// MustGet is Get for callers that already checked the name.
func (r *Registry) MustGet(name string) Serializer {
	s, ok := r.Get(name)
	if !ok {
		panic(fmt.Errorf("%w: %s", ErrUnknownSerializer, name))
	}
	return s
}

// Has reports whether name or alias is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns the canonical names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
