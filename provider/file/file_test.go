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

package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/settingsgateway/provider"
	"github.com/cardinalhq/settingsgateway/testhelpers"
)

func TestConformance(t *testing.T) {
	for _, format := range []string{"json", "yaml", "cbor"} {
		t.Run(format, func(t *testing.T) {
			testhelpers.RunProviderConformance(t, func(t *testing.T) provider.Provider {
				codec, err := CodecFor(format)
				require.NoError(t, err)
				p, err := New("", t.TempDir(), codec)
				require.NoError(t, err)
				return p
			})
		})
	}
}

func TestLayoutOnDisk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p, err := New("", dir, YAMLCodec{})
	require.NoError(t, err)
	assert.Equal(t, Name, p.Name())

	require.NoError(t, p.CreateTable(ctx, "guilds"))
	require.NoError(t, p.Create(ctx, "guilds", "a/b", []provider.Change{provider.NewChange("prefix", "!")}))

	data, err := os.ReadFile(filepath.Join(dir, "guilds", "a%2Fb.yaml"))
	require.NoError(t, err)
	assert.Regexp(t, `prefix: ['"]!['"]`, string(data))

	keys, err := p.GetKeys(ctx, "guilds")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/b"}, keys)

	// Stray files do not show up as documents.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "guilds", ".tmp-123"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "guilds", "notes.txt"), []byte("x"), 0o644))
	keys, err = p.GetKeys(ctx, "guilds")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/b"}, keys)
}

func TestMissingTable(t *testing.T) {
	ctx := context.Background()
	p, err := New("", t.TempDir(), nil)
	require.NoError(t, err)

	_, err = p.Get(ctx, "nope", "1")
	assert.ErrorIs(t, err, provider.ErrTableNotFound)
	assert.ErrorIs(t, p.Update(ctx, "nope", "1", nil), provider.ErrTableNotFound)
}

func TestCorruptDocument(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p, err := New("", dir, JSONCodec{})
	require.NoError(t, err)
	require.NoError(t, p.CreateTable(ctx, "guilds"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "guilds", "1.json"), []byte("{"), 0o644))

	_, err = p.Get(ctx, "guilds", "1")
	assert.ErrorContains(t, err, "decoding guilds/1")
}

func TestCodecFor(t *testing.T) {
	for format, ext := range map[string]string{"": ".json", "JSON": ".json", "yml": ".yaml", "cbor": ".cbor"} {
		c, err := CodecFor(format)
		require.NoError(t, err)
		assert.Equal(t, ext, c.Extension())
	}
	_, err := CodecFor("toml")
	assert.Error(t, err)
}
