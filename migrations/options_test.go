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

package migrations

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCheckMode(t *testing.T) {
	for in, want := range map[string]CheckMode{"": CheckModeWait, "WAIT": CheckModeWait, "warn": CheckModeWarn, " skip ": CheckModeSkip} {
		got, err := ParseCheckMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseCheckMode("later")
	assert.Error(t, err)
	assert.Equal(t, "warn", CheckModeWarn.String())
}

func TestResolve(t *testing.T) {
	opts := Resolve()
	assert.Equal(t, DefaultCheckOptions(), opts)

	opts = Resolve(WithCheckMode(CheckModeWarn), WithTimeout(time.Second), WithRetryInterval(10*time.Millisecond), WithAllowDirty(true))
	assert.Equal(t, CheckOptions{
		Mode:          CheckModeWarn,
		Timeout:       time.Second,
		RetryInterval: 10 * time.Millisecond,
		AllowDirty:    true,
	}, opts)
}
