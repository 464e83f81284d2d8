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

package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/cardinalhq/tripload/config"
	"github.com/cardinalhq/tripload/internal/cleaning"
	"github.com/cardinalhq/tripload/internal/dbopen"
	"github.com/cardinalhq/tripload/internal/ledger"
	"github.com/cardinalhq/tripload/internal/pipeline"
	"github.com/cardinalhq/tripload/internal/sink"
	"github.com/cardinalhq/tripload/internal/tripdb"
)

// destination holds the open connections for one command invocation.
// Exactly one of pool and duck is set.
type destination struct {
	cfg    *config.Config
	schema *pipeline.TargetSchema
	pool   *pgxpool.Pool
	duck   *sql.DB
	redis  redis.UniversalClient
}

// openDestination connects to the configured target store. DuckDB
// destinations get their tables created on open; PostgreSQL
// destinations must already be migrated.
func openDestination(ctx context.Context, cfg *config.Config) (*destination, error) {
	d := &destination{
		cfg:    cfg,
		schema: pipeline.YellowTaxiSchema().WithTable(cfg.Ingest.Table),
	}

	switch strings.ToLower(cfg.Ingest.Target) {
	case config.BackendPostgres:
		workers := cfg.Ingest.Workers
		if workers <= 0 {
			workers = 4
		}
		pool, err := dbopen.ConnectToTripDB(ctx, dbopen.Options{MaxConns: int32(workers*2 + 2)})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to trip database: %w", err)
		}
		d.pool = pool
	case config.BackendDuckDB:
		db, err := tripdb.OpenDuckDB(ctx, cfg.DuckDB)
		if err != nil {
			return nil, err
		}
		if err := tripdb.EnsureDuckDBSchema(ctx, db, d.schema); err != nil {
			_ = db.Close()
			return nil, err
		}
		d.duck = db
	default:
		return nil, fmt.Errorf("unknown target %q", cfg.Ingest.Target)
	}
	return d, nil
}

func (d *destination) Close() {
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			slog.Warn("Failed to close redis client", slog.Any("error", err))
		}
	}
	if d.pool != nil {
		d.pool.Close()
	}
	if d.duck != nil {
		if err := d.duck.Close(); err != nil {
			slog.Warn("Failed to close duckdb", slog.Any("error", err))
		}
	}
}

// ledgerStore builds the configured ledger backend. Postgres and DuckDB
// ledgers share the destination connection.
func (d *destination) ledgerStore(ctx context.Context) (ledger.Store, error) {
	backend := d.cfg.LedgerBackend()
	switch backend {
	case config.BackendPostgres:
		if d.pool != nil {
			return ledger.NewPostgresStore(d.pool), nil
		}
		return nil, errors.New("ledger backend postgres requires target postgres")
	case config.BackendDuckDB:
		if d.duck != nil {
			return ledger.NewDuckDBStore(d.duck), nil
		}
		return nil, errors.New("ledger backend duckdb requires target duckdb")
	case config.BackendRedis:
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{d.cfg.Redis.Address},
			Password: d.cfg.Redis.Password,
			DB:       d.cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", d.cfg.Redis.Address, err)
		}
		d.redis = client
		return ledger.NewRedisStore(client, d.cfg.Redis.Prefix), nil
	case config.BackendMemory:
		slog.Warn("Using in-memory import ledger; completed imports are forgotten on exit")
		return ledger.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", backend)
	}
}

func (d *destination) target() sink.Target {
	if d.pool != nil {
		return sink.NewPostgresTarget(d.pool, d.cfg.Sink)
	}
	return sink.NewDuckDBTarget(d.duck)
}

func (d *destination) statsReader() *tripdb.StatsReader {
	if d.pool != nil {
		return tripdb.NewPostgresStats(d.pool, d.schema.Table())
	}
	return tripdb.NewDuckDBStats(d.duck, d.schema.Table())
}

func (d *destination) cleaner() cleaning.Cleaner {
	if !d.cfg.Ingest.Clean {
		return cleaning.NoopCleaner{}
	}
	return cleaning.NewTaxiCleaner()
}

// loadConfig reads the configuration and applies overrides from flags
// the user set explicitly.
func loadConfig(overrides ...func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	for _, o := range overrides {
		o(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
