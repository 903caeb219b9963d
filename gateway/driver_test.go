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

package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/settingsgateway/schema"
)

func TestDriver(t *testing.T) {
	ctx := context.Background()
	providers, _ := newCounting(t)
	sink := &recordingSink{}
	d := NewDriver(WithDriverProviders(providers), WithDriverSinks(sink))

	guilds, err := d.Register("guilds", countSchema(t), "memory")
	require.NoError(t, err)
	_, err = d.Register("users", countSchema(t), "memory")
	require.NoError(t, err)

	_, err = d.Register("guilds", countSchema(t), "memory")
	assert.ErrorIs(t, err, ErrDuplicateGateway)

	broken := schema.New()
	require.NoError(t, broken.Add("x", "unknown"))
	_, err = d.Register("broken", broken, "memory")
	require.NoError(t, err)
	_, err = d.Register("orphan", countSchema(t), "postgres")
	require.NoError(t, err)

	assert.Equal(t, []string{"broken", "guilds", "orphan", "users"}, d.Names())

	err = d.Init(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaInvalid)
	assert.ErrorIs(t, err, ErrProviderNotFound)
	assert.True(t, guilds.Ready())

	got, ok := d.Get("users")
	require.True(t, ok)
	assert.True(t, got.Ready())
	_, ok = d.Get("nope")
	assert.False(t, ok)

	s := guilds.Acquire("1", nil)
	require.NoError(t, s.Sync(ctx))
	_, err = s.Update(ctx, "count", 1)
	require.NoError(t, err)
	assert.NotEmpty(t, sink.types())
	assert.Same(t, d.Serializers(), guilds.Schema().Registry())

	d2 := NewDriver(WithDriverProviders(providers))
	_, err = d2.Register("guilds", countSchema(t), "memory")
	require.NoError(t, err)
	require.NoError(t, d2.Init(ctx))
	require.NoError(t, d2.Sync(ctx))

	require.NoError(t, d.Close())
	assert.Empty(t, providers.Names())
}
