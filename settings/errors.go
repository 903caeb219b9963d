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
	"errors"
	"fmt"
)

var (
	ErrUnsynchronized     = errors.New("settings have not been synchronized")
	ErrNotReady           = errors.New("settings are not attached to a gateway")
	ErrKeyNotFound        = errors.New("key not found")
	ErrKeyNotConfigurable = errors.New("key is not configurable")
	ErrIndexOutOfRange    = errors.New("array index out of range")
	ErrDuplicateValue     = errors.New("value already present")
	ErrMissingValue       = errors.New("value not present")
	ErrFilteredValue      = errors.New("value rejected by filter")
)

// KeyNotFoundError names a path that does not resolve in the schema.
type KeyNotFoundError struct {
	Path string
}

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("key not found: %s", e.Path)
}

func (e *KeyNotFoundError) Unwrap() error { return ErrKeyNotFound }

// IndexOutOfRangeError reports an array index outside [0, Length].
type IndexOutOfRangeError struct {
	Path   string
	Index  int
	Length int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("%s: index %d out of range [0, %d]", e.Path, e.Index, e.Length)
}

func (e *IndexOutOfRangeError) Unwrap() error { return ErrIndexOutOfRange }

// DuplicateValueError reports an add of a value the array already holds.
type DuplicateValueError struct {
	Path  string
	Value any
}

func (e *DuplicateValueError) Error() string {
	return fmt.Sprintf("%s already contains %v", e.Path, e.Value)
}

func (e *DuplicateValueError) Unwrap() error { return ErrDuplicateValue }

// MissingValueError reports a remove of a value the array does not hold.
type MissingValueError struct {
	Path  string
	Value any
}

func (e *MissingValueError) Error() string {
	return fmt.Sprintf("%s does not contain %v", e.Path, e.Value)
}

func (e *MissingValueError) Unwrap() error { return ErrMissingValue }

// FilteredValueError reports a value the entry filter rejected.
type FilteredValueError struct {
	Path  string
	Value any
}

func (e *FilteredValueError) Error() string {
	return fmt.Sprintf("%s: value %v is not allowed", e.Path, e.Value)
}

func (e *FilteredValueError) Unwrap() error { return ErrFilteredValue }
