// Copyright (C) 2026 CardinalHQ, Inc
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
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cardinalhq/tripload/internal/filereader"
	"github.com/cardinalhq/tripload/internal/importer"
	"github.com/cardinalhq/tripload/internal/ledger"
	"github.com/cardinalhq/tripload/internal/memgov"
	"github.com/cardinalhq/tripload/internal/pipeline"
	"github.com/cardinalhq/tripload/internal/sink"
	"github.com/cardinalhq/tripload/internal/tripdb"
)

// Destination and ledger backend names.
const (
	BackendPostgres = "postgres"
	BackendDuckDB   = "duckdb"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Config aggregates configuration for the application.
// Each field is owned by its respective package.
type Config struct {
	Ingest IngestConfig        `mapstructure:"ingest"`
	Memory memgov.Config       `mapstructure:"memory"`
	Sink   sink.Config         `mapstructure:"sink"`
	Ledger LedgerConfig        `mapstructure:"ledger"`
	DuckDB tripdb.DuckDBConfig `mapstructure:"duckdb"`
	Redis  RedisConfig         `mapstructure:"redis"`
}

type IngestConfig struct {
	Directory string `mapstructure:"directory"`
	Extension string `mapstructure:"extension"`
	BatchRows int    `mapstructure:"batch_rows"`
	// Workers of 0 means min(4, GOMAXPROCS).
	Workers int `mapstructure:"workers"`
	// Target is the destination store: postgres or duckdb.
	Target string `mapstructure:"target"`
	Table  string `mapstructure:"table"`
	Clean  bool   `mapstructure:"clean"`
	// RunTimeout bounds a whole run; 0 means no deadline.
	RunTimeout time.Duration `mapstructure:"run_timeout"`
}

// LedgerConfig selects where completed imports are recorded. An empty
// backend uses the destination store.
type LedgerConfig struct {
	Backend string `mapstructure:"backend"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Ingest: IngestConfig{
			Directory: "./data",
			Extension: importer.DefaultExtension,
			BatchRows: filereader.DefaultBatchRows,
			Target:    BackendPostgres,
			Table:     pipeline.DefaultTripsTable,
			Clean:     true,
		},
		Memory: memgov.DefaultConfig(),
		Sink:   sink.DefaultConfig(),
		DuckDB: tripdb.DefaultDuckDBConfig(),
		Redis: RedisConfig{
			Address: "localhost:6379",
			Prefix:  ledger.DefaultRedisPrefix,
		},
	}
}

// Load reads configuration from files and environment variables.
// Environment variables use the prefix "TRIPLOAD" and the dot character
// in keys is replaced by an underscore. For example, "ingest.batch_rows"
// becomes "TRIPLOAD_INGEST_BATCH_ROWS".
func Load() (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("TRIPLOAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	_ = v.ReadInConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LedgerBackend resolves the effective ledger backend.
func (c *Config) LedgerBackend() string {
	if c.Ledger.Backend != "" {
		return strings.ToLower(c.Ledger.Backend)
	}
	return strings.ToLower(c.Ingest.Target)
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Ingest.Target) {
	case BackendPostgres, BackendDuckDB:
	default:
		return fmt.Errorf("ingest.target must be %q or %q, got %q", BackendPostgres, BackendDuckDB, c.Ingest.Target)
	}
	switch c.LedgerBackend() {
	case BackendPostgres, BackendDuckDB, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("ledger.backend %q is not one of postgres, duckdb, redis, memory", c.Ledger.Backend)
	}
	if c.LedgerBackend() == BackendDuckDB && !strings.EqualFold(c.Ingest.Target, BackendDuckDB) {
		return fmt.Errorf("ledger.backend duckdb requires ingest.target duckdb")
	}
	if c.Ingest.BatchRows <= 0 {
		return fmt.Errorf("ingest.batch_rows must be positive, got %d", c.Ingest.BatchRows)
	}
	if c.Ingest.Workers < 0 {
		return fmt.Errorf("ingest.workers must not be negative, got %d", c.Ingest.Workers)
	}
	if c.Ingest.Table == "" {
		return fmt.Errorf("ingest.table must be set")
	}
	if c.Sink.FallbackChunkRows < 0 {
		return fmt.Errorf("sink.fallback_chunk_rows must not be negative, got %d", c.Sink.FallbackChunkRows)
	}
	if c.Memory.ThresholdPercent < 0 || c.Memory.ThresholdPercent > 100 {
		return fmt.Errorf("memory.threshold_percent must be within 0-100, got %.1f", c.Memory.ThresholdPercent)
	}
	return nil
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
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct && f.Type != reflect.TypeOf(time.Time{}) {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
