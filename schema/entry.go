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

package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/cardinalhq/settingsgateway/internal/docvalue"
	"github.com/cardinalhq/settingsgateway/serializer"
)

// FilterFunc rejects a validated value when it returns true.
type FilterFunc func(ctx context.Context, value any, sc *serializer.Context) bool

// Entry is a leaf declaration.
type Entry struct {
	parent        *Folder
	key           string
	typ           string
	array         bool
	def           any
	minimum       *float64
	maximum       *float64
	inclusive     bool
	filter        FilterFunc
	shouldResolve bool
	configurable  bool
}

var _ serializer.Entry = (*Entry)(nil)

type options struct {
	typ           *string
	array         *bool
	def           any
	hasDefault    bool
	minimum       *float64
	maximum       *float64
	hasBounds     bool
	inclusive     *bool
	filter        FilterFunc
	hasFilter     bool
	shouldResolve *bool
	configurable  *bool
}

// Option configures an entry on Add or Edit.
type Option func(*options)

func WithType(typ string) Option {
	return func(o *options) { o.typ = &typ }
}

func WithArray(array bool) Option {
	return func(o *options) { o.array = &array }
}

// WithDefault sets the default. Typed slices are stored as []any.
func WithDefault(v any) Option {
	return func(o *options) {
		o.def = docvalue.Normalize(v)
		o.hasDefault = true
	}
}

// WithMinimum sets the lower bound. Supplying any bound resets the other
// unless it is supplied too.
func WithMinimum(minimum float64) Option {
	return func(o *options) {
		o.minimum = &minimum
		o.hasBounds = true
	}
}

func WithMaximum(maximum float64) Option {
	return func(o *options) {
		o.maximum = &maximum
		o.hasBounds = true
	}
}

// WithBounds sets both bounds; nil clears one.
func WithBounds(minimum, maximum *float64) Option {
	return func(o *options) {
		o.minimum = minimum
		o.maximum = maximum
		o.hasBounds = true
	}
}

func WithInclusive(inclusive bool) Option {
	return func(o *options) { o.inclusive = &inclusive }
}

func WithFilter(fn FilterFunc) Option {
	return func(o *options) {
		o.filter = fn
		o.hasFilter = true
	}
}

// WithResolve controls whether Resolve passes the value through the
// serializer's Deserialize.
func WithResolve(resolve bool) Option {
	return func(o *options) { o.shouldResolve = &resolve }
}

func WithConfigurable(configurable bool) Option {
	return func(o *options) { o.configurable = &configurable }
}

func newEntry(parent *Folder, key, typ string, opts ...Option) *Entry {
	e := &Entry{
		parent:        parent,
		key:           key,
		typ:           strings.ToLower(typ),
		inclusive:     true,
		shouldResolve: true,
		configurable:  true,
	}
	o := collect(opts)
	e.apply(o)
	if !o.hasDefault {
		e.def = generatedDefault(e.typ, e.array)
	}
	return e
}

func collect(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (e *Entry) apply(o *options) {
	if o.typ != nil {
		e.typ = strings.ToLower(*o.typ)
	}
	if o.array != nil {
		e.array = *o.array
	}
	if o.hasDefault {
		e.def = o.def
	}
	if o.hasBounds {
		e.minimum = o.minimum
		e.maximum = o.maximum
	}
	if o.inclusive != nil {
		e.inclusive = *o.inclusive
	}
	if o.hasFilter {
		e.filter = o.filter
	}
	if o.shouldResolve != nil {
		e.shouldResolve = *o.shouldResolve
	}
	if o.configurable != nil {
		e.configurable = *o.configurable
	}
}

// Edit changes only the supplied fields. A default that was generated for the
// previous type/array shape is regenerated when the shape changes.
func (e *Entry) Edit(opts ...Option) error {
	if e.parent != nil && e.parent.locked() {
		return ErrSchemaLocked
	}
	o := collect(opts)
	wasGenerated := docvalue.Equal(e.def, generatedDefault(e.typ, e.array))
	e.apply(o)
	if !o.hasDefault && wasGenerated {
		e.def = generatedDefault(e.typ, e.array)
	}
	return nil
}

func generatedDefault(typ string, array bool) any {
	switch {
	case array:
		return []any{}
	case typ == "boolean" || typ == "bool":
		return false
	default:
		return nil
	}
}

func (e *Entry) Key() string     { return e.key }
func (e *Entry) Parent() *Folder { return e.parent }
func (e *Entry) Type() string    { return e.typ }
func (e *Entry) Array() bool     { return e.array }

func (e *Entry) Path() string {
	if e.parent == nil {
		return e.key
	}
	return joinPath(e.parent.Path(), e.key)
}

// Default returns a copy of the declared default.
func (e *Entry) Default() any { return docvalue.Clone(e.def) }

func (e *Entry) Minimum() *float64   { return e.minimum }
func (e *Entry) Maximum() *float64   { return e.maximum }
func (e *Entry) Inclusive() bool     { return e.inclusive }
func (e *Entry) Filter() FilterFunc  { return e.filter }
func (e *Entry) ShouldResolve() bool { return e.shouldResolve }
func (e *Entry) Configurable() bool  { return e.configurable }

func (e *Entry) Bounds() (*float64, *float64, bool) {
	return e.minimum, e.maximum, e.inclusive
}

// Serializer resolves the entry's type in the registry attached to its schema.
func (e *Entry) Serializer() (serializer.Serializer, error) {
	if e.parent == nil || e.parent.root == nil || e.parent.root.Registry() == nil {
		return nil, ErrNotInitialized
	}
	s, ok := e.parent.root.Registry().Get(e.typ)
	if !ok {
		return nil, fmt.Errorf("%s: %w: %s", e.Path(), serializer.ErrUnknownSerializer, e.typ)
	}
	return s, nil
}

// EntryError describes one inconsistency in an entry declaration.
type EntryError struct {
	Path   string
	Reason string
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("schema entry %s: %s", e.Path, e.Reason)
}

// Check reports every inconsistency in the declaration.
func (e *Entry) Check(reg *serializer.Registry) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, &EntryError{Path: e.Path(), Reason: fmt.Sprintf(format, args...)})
	}

	if reg == nil || !reg.Has(e.typ) {
		fail("type %q is not a registered serializer", e.typ)
	}
	if e.minimum != nil && e.maximum != nil && *e.minimum > *e.maximum {
		fail("minimum %v must be less than or equal to maximum %v", *e.minimum, *e.maximum)
	}

	_, isList := e.def.([]any)
	switch {
	case e.array && !isList:
		fail("default must be an array when array is set")
	case !e.array && isList:
		fail("default must not be an array when array is not set")
	case !e.array && e.def != nil:
		if e.typ == "boolean" {
			if _, ok := e.def.(bool); !ok {
				fail("default must be a boolean")
			}
		}
		if e.typ == "string" {
			if _, ok := e.def.(string); !ok {
				fail("default must be a string")
			}
		}
	}

	return joinViolations(errs)
}

func joinViolations(errs []error) error {
	var result *multierror.Error
	for _, err := range errs {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func (e *Entry) declaration() map[string]any {
	return map[string]any{
		"type":         e.typ,
		"array":        e.array,
		"default":      e.Default(),
		"minimum":      e.minimum,
		"maximum":      e.maximum,
		"inclusive":    e.inclusive,
		"configurable": e.configurable,
		"resolve":      e.shouldResolve,
	}
}
