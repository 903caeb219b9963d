// Copyright (C) 2025 CardinalHQ, Inc
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

package helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetBoolEnv(t *testing.T) {
	tests := []struct {
		value    string
		def      bool
		expected bool
	}{
		{"", true, true},
		{"", false, false},
		{"TRUE", false, true},
		{" yes ", false, true},
		{"enabled", false, true},
		{"0", true, false},
		{"Off", true, false},
		{"disabled", true, false},
		{"whatever", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("SETTINGS_TEST_BOOL", tt.value)
			assert.Equal(t, tt.expected, GetBoolEnv("SETTINGS_TEST_BOOL", tt.def))
		})
	}
}

func TestFirstEnv(t *testing.T) {
	t.Setenv("SETTINGS_TEST_A", "")
	t.Setenv("SETTINGS_TEST_B", "b")
	name, v, ok := FirstEnv("SETTINGS_TEST_A", "SETTINGS_TEST_B")
	assert.True(t, ok)
	assert.Equal(t, "SETTINGS_TEST_B", name)
	assert.Equal(t, "b", v)

	_, _, ok = FirstEnv("SETTINGS_TEST_A")
	assert.False(t, ok)
}

func TestGetPortEnv(t *testing.T) {
	t.Setenv("SETTINGS_TEST_PORT", "99999")
	t.Setenv("SETTINGS_TEST_FALLBACK", "9090")
	p, ok := GetPortEnv("SETTINGS_TEST_PORT", "SETTINGS_TEST_FALLBACK")
	assert.True(t, ok)
	assert.Equal(t, 9090, p)

	t.Setenv("SETTINGS_TEST_FALLBACK", "abc")
	_, ok = GetPortEnv("SETTINGS_TEST_PORT", "SETTINGS_TEST_FALLBACK")
	assert.False(t, ok)
}

func TestGetDurationEnv(t *testing.T) {
	t.Setenv("SETTINGS_TEST_TTL", "")
	assert.Equal(t, time.Minute, GetDurationEnv("SETTINGS_TEST_TTL", time.Minute))
	t.Setenv("SETTINGS_TEST_TTL", "45s")
	assert.Equal(t, 45*time.Second, GetDurationEnv("SETTINGS_TEST_TTL", time.Minute))
	t.Setenv("SETTINGS_TEST_TTL", "soon")
	assert.Equal(t, time.Minute, GetDurationEnv("SETTINGS_TEST_TTL", time.Minute))
}
