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
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cardinalhq/settingsgateway/internal/awsclient"
	"github.com/cardinalhq/settingsgateway/internal/fly"
	"github.com/cardinalhq/settingsgateway/migrations"
	"github.com/cardinalhq/settingsgateway/provider/file"
)

// Config aggregates configuration for the application.
// Each field is owned by its respective package.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Gateways  GatewaysConfig  `mapstructure:"gateways"`
	Events    EventsConfig    `mapstructure:"events"`
	Providers ProvidersConfig `mapstructure:"providers"`
}

type ServerConfig struct {
	Port        int    `mapstructure:"port"`
	HealthPort  int    `mapstructure:"health_port"`
	PprofPort   int    `mapstructure:"pprof_port"`
	APIKeysFile string `mapstructure:"api_keys_file"`
}

type GatewaysConfig struct {
	// SchemaFile declares the gateways to host.
	SchemaFile string        `mapstructure:"schema_file"`
	IdleTTL    time.Duration `mapstructure:"idle_ttl"`
	// SyncOnStart bulk-syncs every gateway once it is initialized.
	SyncOnStart bool `mapstructure:"sync_on_start"`
	// RefreshInterval re-reads every cached document on this period so
	// writes made by other instances are picked up. Zero disables it.
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

type EventsConfig struct {
	Log     bool       `mapstructure:"log"`
	Metrics bool       `mapstructure:"metrics"`
	Kafka   fly.Config `mapstructure:"kafka"`
}

type ProvidersConfig struct {
	Memory   MemoryProviderConfig   `mapstructure:"memory"`
	File     FileProviderConfig     `mapstructure:"file"`
	S3       S3ProviderConfig       `mapstructure:"s3"`
	Postgres PostgresProviderConfig `mapstructure:"postgres"`
}

type MemoryProviderConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Name    string `mapstructure:"name"`
}

type FileProviderConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Name    string `mapstructure:"name"`
	Dir     string `mapstructure:"dir"`
	// Format is json, yaml or cbor.
	Format string `mapstructure:"format"`
}

type S3ProviderConfig struct {
	Enabled bool                   `mapstructure:"enabled"`
	Name    string                 `mapstructure:"name"`
	Bucket  string                 `mapstructure:"bucket"`
	Prefix  string                 `mapstructure:"prefix"`
	AWS     awsclient.BucketConfig `mapstructure:"aws"`
}

type PostgresProviderConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Name    string `mapstructure:"name"`
	// URL falls back to the SETTINGSDB_* environment when empty.
	URL            string `mapstructure:"url"`
	MigrationCheck string `mapstructure:"migration_check"`
	ChunkSize      int    `mapstructure:"chunk_size"`
}

// Default returns the configuration used when nothing is overridden: an
// in-memory provider and the HTTP API on port 8080.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:       8080,
			HealthPort: 8090,
		},
		Gateways: GatewaysConfig{
			SchemaFile: "schema.yaml",
			IdleTTL:    30 * time.Minute,
		},
		Events: EventsConfig{
			Log:     true,
			Metrics: true,
			Kafka:   *fly.DefaultConfig(),
		},
		Providers: ProvidersConfig{
			Memory: MemoryProviderConfig{Enabled: true, Name: "memory"},
			File:   FileProviderConfig{Name: "file", Dir: "data", Format: "json"},
			S3:     S3ProviderConfig{Name: "s3", Prefix: "settings"},
			Postgres: PostgresProviderConfig{
				Name:           "postgres",
				MigrationCheck: migrations.CheckModeWait.String(),
				ChunkSize:      1000,
			},
		},
	}
}

// Load reads configuration from files and environment variables.
// Environment variables use the prefix "SETTINGS" and the dot character
// in keys is replaced by an underscore. For example, "providers.s3.bucket"
// becomes "SETTINGS_PROVIDERS_S3_BUCKET".
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit configuration file. An empty path
// searches for an optional config.yaml in the working directory.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("SETTINGS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if b := v.GetString("events.kafka.brokers"); b != "" && !v.InConfig("events.kafka.brokers") {
		cfg.Events.Kafka.Brokers = strings.Split(b, ",")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every inconsistent setting.
func (c *Config) Validate() error {
	var errs []error
	p := c.Providers
	if !p.Memory.Enabled && !p.File.Enabled && !p.S3.Enabled && !p.Postgres.Enabled {
		errs = append(errs, errors.New("no settings provider is enabled"))
	}
	if p.File.Enabled {
		if p.File.Dir == "" {
			errs = append(errs, errors.New("providers.file.dir is required"))
		}
		if _, err := file.CodecFor(p.File.Format); err != nil {
			errs = append(errs, fmt.Errorf("providers.file.format: %w", err))
		}
	}
	if p.S3.Enabled && p.S3.Bucket == "" {
		errs = append(errs, errors.New("providers.s3.bucket is required"))
	}
	if p.Postgres.Enabled {
		if _, err := migrations.ParseCheckMode(p.Postgres.MigrationCheck); err != nil {
			errs = append(errs, fmt.Errorf("providers.postgres.migration_check: %w", err))
		}
	}
	names := map[string]bool{}
	for _, n := range c.ProviderNames() {
		if names[n] {
			errs = append(errs, fmt.Errorf("provider name %q is used more than once", n))
		}
		names[n] = true
	}
	if c.Gateways.RefreshInterval < 0 {
		errs = append(errs, errors.New("gateways.refresh_interval must not be negative"))
	}
	if c.Events.Kafka.Enabled && len(c.Events.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("events.kafka.brokers is required when kafka events are enabled"))
	}
	return errors.Join(errs...)
}

// ProviderNames lists the names of the enabled providers.
func (c *Config) ProviderNames() []string {
	var out []string
	p := c.Providers
	if p.Memory.Enabled {
		out = append(out, p.Memory.Name)
	}
	if p.File.Enabled {
		out = append(out, p.File.Name)
	}
	if p.S3.Enabled {
		out = append(out, p.S3.Name)
	}
	if p.Postgres.Enabled {
		out = append(out, p.Postgres.Name)
	}
	return out
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(append([]string{}, parts...), tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
