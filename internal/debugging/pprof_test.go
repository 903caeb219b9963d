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

package debugging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPprofPort(t *testing.T) {
	tests := []struct {
		env  string
		want int
	}{
		{"", 6060},
		{"7070", 7070},
		{"off", 0},
		{"false", 0},
		{"junk", 6060},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv("SETTINGS_PPROF_PORT", "")
			t.Setenv("PPROF_PORT", tt.env)
			assert.Equal(t, tt.want, PprofPort(6060))
		})
	}
}

func TestPprofPortPrefersSettingsVariable(t *testing.T) {
	t.Setenv("SETTINGS_PPROF_PORT", "7171")
	t.Setenv("PPROF_PORT", "7070")
	assert.Equal(t, 7171, PprofPort(0))
}
