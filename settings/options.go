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

// ArrayAction selects how a write to an array entry merges with the
// current list.
type ArrayAction string

const (
	// ArrayAuto toggles membership of every written value.
	ArrayAuto      ArrayAction = "auto"
	ArrayAdd       ArrayAction = "add"
	ArrayRemove    ArrayAction = "remove"
	ArrayOverwrite ArrayAction = "overwrite"
)

type options struct {
	arrayAction      ArrayAction
	arrayIndex       *int
	onlyConfigurable bool
	language         string
	extra            any
}

// Option configures Update and Reset.
type Option func(*options)

func WithArrayAction(action ArrayAction) Option {
	return func(o *options) { o.arrayAction = action }
}

// WithArrayIndex makes array writes splice at index instead of matching by value.
func WithArrayIndex(index int) Option {
	return func(o *options) { o.arrayIndex = &index }
}

// OnlyConfigurable rejects writes to entries that are not user configurable.
func OnlyConfigurable() Option {
	return func(o *options) { o.onlyConfigurable = true }
}

// WithLanguage is passed to serializers and carried on emitted events.
func WithLanguage(language string) Option {
	return func(o *options) { o.language = language }
}

// WithExtra attaches caller data to the serializer context and events.
func WithExtra(extra any) Option {
	return func(o *options) { o.extra = extra }
}

func collect(opts []Option) *options {
	o := &options{arrayAction: ArrayAuto}
	for _, opt := range opts {
		opt(o)
	}
	if o.arrayAction == "" {
		o.arrayAction = ArrayAuto
	}
	return o
}
