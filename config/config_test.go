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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "schema.yaml", cfg.Gateways.SchemaFile)
	assert.Equal(t, 30*time.Minute, cfg.Gateways.IdleTTL)
	assert.True(t, cfg.Providers.Memory.Enabled)
	assert.False(t, cfg.Events.Kafka.Enabled)
	assert.Equal(t, []string{"memory"}, cfg.ProviderNames())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SETTINGS_SERVER_PORT", "9000")
	t.Setenv("SETTINGS_GATEWAYS_IDLE_TTL", "5m")
	t.Setenv("SETTINGS_EVENTS_KAFKA_ENABLED", "true")
	t.Setenv("SETTINGS_EVENTS_KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("SETTINGS_EVENTS_KAFKA_SASL_USERNAME", "alice")
	t.Setenv("SETTINGS_PROVIDERS_S3_ENABLED", "true")
	t.Setenv("SETTINGS_PROVIDERS_S3_BUCKET", "settings-bucket")
	t.Setenv("SETTINGS_PROVIDERS_S3_AWS_REGION", "us-west-2")
	t.Setenv("SETTINGS_PROVIDERS_S3_AWS_USE_PATH_STYLE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Gateways.IdleTTL)
	assert.True(t, cfg.Events.Kafka.Enabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.Events.Kafka.Brokers)
	assert.Equal(t, "alice", cfg.Events.Kafka.SASLUsername)
	assert.Equal(t, "settings-bucket", cfg.Providers.S3.Bucket)
	assert.Equal(t, "us-west-2", cfg.Providers.S3.AWS.Region)
	assert.True(t, cfg.Providers.S3.AWS.UsePathStyle)
	assert.Equal(t, []string{"memory", "s3"}, cfg.ProviderNames())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
gateways:
  schema_file: /etc/settings/schema.yaml
providers:
  memory:
    enabled: false
  file:
    enabled: true
    dir: /var/lib/settings
    format: cbor
  postgres:
    enabled: true
    migration_check: warn
`), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/etc/settings/schema.yaml", cfg.Gateways.SchemaFile)
	assert.Equal(t, "cbor", cfg.Providers.File.Format)
	assert.Equal(t, "warn", cfg.Providers.Postgres.MigrationCheck)
	assert.Equal(t, []string{"file", "postgres"}, cfg.ProviderNames())

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no providers", func(c *Config) { c.Providers.Memory.Enabled = false }, "no settings provider"},
		{"file format", func(c *Config) {
			c.Providers.File.Enabled = true
			c.Providers.File.Format = "xml"
		}, "providers.file.format"},
		{"s3 bucket", func(c *Config) { c.Providers.S3.Enabled = true }, "providers.s3.bucket"},
		{"migration mode", func(c *Config) {
			c.Providers.Postgres.Enabled = true
			c.Providers.Postgres.MigrationCheck = "sometimes"
		}, "migration_check"},
		{"duplicate names", func(c *Config) {
			c.Providers.File.Enabled = true
			c.Providers.File.Name = "memory"
		}, "used more than once"},
		{"refresh interval", func(c *Config) { c.Gateways.RefreshInterval = -time.Second }, "refresh_interval"},
		{"kafka brokers", func(c *Config) {
			c.Events.Kafka.Enabled = true
			c.Events.Kafka.Brokers = nil
		}, "events.kafka.brokers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	assert.NoError(t, Default().Validate())
}
