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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

func registerBuiltins(r *Registry) {
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(r.Register("any", Any{}))
	must(r.Register("boolean", Boolean{}, "bool"))
	must(r.Register("string", String{}))
	must(r.Register("number", Number{}, "float"))
	must(r.Register("integer", Integer{}, "int"))
	must(r.Register("url", URL{}))
	must(r.Register("regexp", Regexp{}, "regex"))
	must(r.Register("uuid", UUID{}))
	must(r.Register("duration", Duration{}))
}

func entryOf(sc *Context) Entry {
	if sc == nil {
		return nil
	}
	return sc.Entry
}

// Any accepts every value unchanged.
type Any struct{ Base }

func (Any) Validate(_ context.Context, raw any, _ *Context) (any, error) {
	return raw, nil
}

// Boolean accepts booleans and the usual truthy/falsy words.
type Boolean struct{ Base }

var (
	truthy = []string{"true", "t", "yes", "y", "on", "enable", "enabled", "1", "+"}
	falsy  = []string{"false", "f", "no", "n", "off", "disable", "disabled", "0", "-"}
)

func (Boolean) Validate(_ context.Context, raw any, sc *Context) (any, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		word := strings.ToLower(strings.TrimSpace(v))
		for _, t := range truthy {
			if word == t {
				return true, nil
			}
		}
		for _, f := range falsy {
			if word == f {
				return false, nil
			}
		}
	}
	if f, ok := toFloat(raw); ok && (f == 0 || f == 1) {
		return f == 1, nil
	}
	return nil, parseError(sc, "boolean", raw, nil)
}

func (Boolean) Stringify(value any, _ any) string {
	if b, ok := value.(bool); ok && b {
		return "Enabled"
	}
	return "Disabled"
}

// String accepts text; bounds apply to its length in runes.
type String struct{ Base }

func (String) Validate(_ context.Context, raw any, sc *Context) (any, error) {
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case fmt.Stringer:
		s = v.String()
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, json.Number:
		s = fmt.Sprint(v)
	default:
		return nil, parseError(sc, "string", raw, nil)
	}
	if err := MinOrMax(float64(utf8.RuneCountInString(s)), entryOf(sc)); err != nil {
		return nil, err
	}
	return s, nil
}

// Number accepts any finite numeric value, stored as float64.
type Number struct{ Base }

func (Number) Validate(_ context.Context, raw any, sc *Context) (any, error) {
	f, ok := toFloat(raw)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, parseError(sc, "number", raw, nil)
	}
	if err := MinOrMax(f, entryOf(sc)); err != nil {
		return nil, err
	}
	return f, nil
}

// Integer accepts whole numbers, stored as int64.
type Integer struct{ Base }

func (Integer) Validate(_ context.Context, raw any, sc *Context) (any, error) {
	var n int64
	switch v := raw.(type) {
	case int:
		n = int64(v)
	case int8:
		n = int64(v)
	case int16:
		n = int64(v)
	case int32:
		n = int64(v)
	case int64:
		n = v
	case uint8:
		n = int64(v)
	case uint16:
		n = int64(v)
	case uint32:
		n = int64(v)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, parseError(sc, "integer", raw, err)
		}
		n = parsed
	default:
		f, ok := toFloat(raw)
		if !ok || f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
			return nil, parseError(sc, "integer", raw, nil)
		}
		n = int64(f)
	}
	if err := MinOrMax(float64(n), entryOf(sc)); err != nil {
		return nil, err
	}
	return n, nil
}

// URL accepts absolute URLs with a scheme and host.
type URL struct{ Base }

func (URL) Validate(_ context.Context, raw any, sc *Context) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, parseError(sc, "url", raw, nil)
	}
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return nil, parseError(sc, "url", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, parseError(sc, "url", raw, errors.New("scheme and host are required"))
	}
	return u.String(), nil
}

// Regexp stores a pattern and resolves it to a compiled *regexp.Regexp.
type Regexp struct{ Base }

func (Regexp) Validate(_ context.Context, raw any, sc *Context) (any, error) {
	switch v := raw.(type) {
	case *regexp.Regexp:
		return v, nil
	case string:
		re, err := regexp.Compile(v)
		if err != nil {
			return nil, parseError(sc, "regexp", raw, err)
		}
		return re, nil
	}
	return nil, parseError(sc, "regexp", raw, nil)
}

func (Regexp) Serialize(value any) any {
	if re, ok := value.(*regexp.Regexp); ok {
		return re.String()
	}
	return value
}

func (Regexp) Deserialize(_ context.Context, stored any, sc *Context) (any, error) {
	s, ok := stored.(string)
	if !ok {
		return nil, parseError(sc, "regexp", stored, nil)
	}
	re, err := regexp.Compile(s)
	if err != nil {
		return nil, parseError(sc, "regexp", stored, err)
	}
	return re, nil
}

// UUID stores the canonical string form and resolves to uuid.UUID.
type UUID struct{ Base }

func (UUID) Validate(_ context.Context, raw any, sc *Context) (any, error) {
	switch v := raw.(type) {
	case uuid.UUID:
		return v, nil
	case string:
		id, err := uuid.Parse(strings.TrimSpace(v))
		if err != nil {
			return nil, parseError(sc, "uuid", raw, err)
		}
		return id, nil
	}
	return nil, parseError(sc, "uuid", raw, nil)
}

func (UUID) Serialize(value any) any {
	if id, ok := value.(uuid.UUID); ok {
		return id.String()
	}
	return value
}

func (UUID) Deserialize(_ context.Context, stored any, sc *Context) (any, error) {
	s, ok := stored.(string)
	if !ok {
		return nil, parseError(sc, "uuid", stored, nil)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, parseError(sc, "uuid", stored, err)
	}
	return id, nil
}

// Duration stores a Go duration string; bounds apply in seconds. Bare
// numbers are read as seconds.
type Duration struct{ Base }

func (Duration) Validate(_ context.Context, raw any, sc *Context) (any, error) {
	var d time.Duration
	switch v := raw.(type) {
	case time.Duration:
		d = v
	case string:
		parsed, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return nil, parseError(sc, "duration", raw, err)
		}
		d = parsed
	default:
		f, ok := toFloat(raw)
		if !ok {
			return nil, parseError(sc, "duration", raw, nil)
		}
		d = time.Duration(f * float64(time.Second))
	}
	if err := MinOrMax(d.Seconds(), entryOf(sc)); err != nil {
		return nil, err
	}
	return d, nil
}

func (Duration) Serialize(value any) any {
	if d, ok := value.(time.Duration); ok {
		return d.String()
	}
	return value
}

func (Duration) Deserialize(_ context.Context, stored any, sc *Context) (any, error) {
	s, ok := stored.(string)
	if !ok {
		return nil, parseError(sc, "duration", stored, nil)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return nil, parseError(sc, "duration", stored, err)
	}
	return d, nil
}

func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}
