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
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrInvalidValue = errors.New("invalid value")
	ErrOutOfBounds  = errors.New("value out of bounds")
)

// ParseError reports raw input a serializer could not parse.
type ParseError struct {
	Key   string
	Type  string
	Value any
	Err   error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("%s: %v is not a valid %s", e.Key, e.Value, e.Type)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidValue, e.Err}
	}
	return []error{ErrInvalidValue}
}

func parseError(sc *Context, typ string, value any, err error) error {
	return &ParseError{Key: sc.Key(), Type: typ, Value: value, Err: err}
}

// BoundKind identifies which bound an out-of-range value violated.
type BoundKind int

const (
	// BoundExact is used when minimum and maximum are equal.
	BoundExact BoundKind = iota
	BoundBoth
	BoundMin
	BoundMax
)

func (k BoundKind) String() string {
	switch k {
	case BoundExact:
		return "exact"
	case BoundBoth:
		return "both"
	case BoundMin:
		return "min"
	case BoundMax:
		return "max"
	default:
		return "unknown"
	}
}

// BoundsError reports a value outside an entry's minimum/maximum.
type BoundsError struct {
	Kind      BoundKind
	Key       string
	Value     float64
	Minimum   *float64
	Maximum   *float64
	Inclusive bool
}

func (e *BoundsError) Error() string {
	switch e.Kind {
	case BoundExact:
		return fmt.Sprintf("%s must be exactly %s", e.Key, formatBound(*e.Minimum))
	case BoundBoth:
		return fmt.Sprintf("%s must be between %s and %s (%s)", e.Key,
			formatBound(*e.Minimum), formatBound(*e.Maximum), inclusiveWord(e.Inclusive))
	case BoundMin:
		return fmt.Sprintf("%s must be greater than %s%s", e.Key, orEqual(e.Inclusive), formatBound(*e.Minimum))
	default:
		return fmt.Sprintf("%s must be less than %s%s", e.Key, orEqual(e.Inclusive), formatBound(*e.Maximum))
	}
}

func (e *BoundsError) Unwrap() error { return ErrOutOfBounds }

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func inclusiveWord(inclusive bool) string {
	if inclusive {
		return "inclusive"
	}
	return "exclusive"
}

func orEqual(inclusive bool) string {
	if inclusive {
		return "or equal to "
	}
	return ""
}

// MinOrMax enforces the entry's bounds on value. A nil entry or an entry
// without bounds accepts every value.
func MinOrMax(value float64, entry Entry) error {
	if entry == nil {
		return nil
	}
	minimum, maximum, inclusive := entry.Bounds()

	inRangeMin := func() bool {
		if inclusive {
			return value >= *minimum
		}
		return value > *minimum
	}
	inRangeMax := func() bool {
		if inclusive {
			return value <= *maximum
		}
		return value < *maximum
	}

	fail := func(kind BoundKind) error {
		return &BoundsError{
			Kind:      kind,
			Key:       entry.Path(),
			Value:     value,
			Minimum:   minimum,
			Maximum:   maximum,
			Inclusive: inclusive,
		}
	}

	switch {
	case minimum != nil && maximum != nil:
		if inRangeMin() && inRangeMax() {
			return nil
		}
		if *minimum == *maximum {
			return fail(BoundExact)
		}
		return fail(BoundBoth)
	case minimum != nil:
		if inRangeMin() {
			return nil
		}
		return fail(BoundMin)
	case maximum != nil:
		if inRangeMax() {
			return nil
		}
		return fail(BoundMax)
	}
	return nil
}
