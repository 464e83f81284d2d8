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

package tripdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"runtime"
	"strings"

	"github.com/marcboeker/go-duckdb/v2"

	"github.com/cardinalhq/tripload/internal/pipeline"
)

// DuckDBConfig locates and tunes an embedded DuckDB destination.
type DuckDBConfig struct {
	Path          string `mapstructure:"path"`
	MemoryLimitMB int64  `mapstructure:"memory_limit_mb"`
	Threads       int    `mapstructure:"threads"`
	// TempDirectory is where DuckDB spills when a load exceeds
	// MemoryLimitMB. Defaults to the process temp dir.
	TempDirectory string `mapstructure:"temp_directory"`
	// MaxConns bounds concurrent connections. DuckDB allows one writer
	// per table at a time, so the default is 1.
	MaxConns int `mapstructure:"max_conns"`
}

// DefaultDuckDBConfig returns the defaults for an embedded destination.
func DefaultDuckDBConfig() DuckDBConfig {
	return DuckDBConfig{
		Path:          "trips.duckdb",
		TempDirectory: os.TempDir(),
		MaxConns:      1,
	}
}

// OpenDuckDB opens (creating if needed) the database file at cfg.Path.
func OpenDuckDB(ctx context.Context, cfg DuckDBConfig) (*sql.DB, error) {
	if cfg.Path == "" {
		return nil, errors.New("duckdb path is required")
	}
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 1
	}

	dsn := buildDSN(cfg, threads)
	connector, err := duckdb.NewConnector(dsn, nil)
	if err != nil {
		return nil, fmt.Errorf("create connector: %w", err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open duckdb %s: %w", cfg.Path, err)
	}

	slog.Info("Opened DuckDB destination",
		slog.String("path", cfg.Path),
		slog.Int("threads", threads),
		slog.Int("maxConns", maxConns))
	return db, nil
}

func buildDSN(cfg DuckDBConfig, threads int) string {
	params := []string{fmt.Sprintf("threads=%d", threads)}
	if cfg.MemoryLimitMB > 0 {
		params = append(params, fmt.Sprintf("memory_limit=%dMB", cfg.MemoryLimitMB))
	}
	if cfg.TempDirectory != "" {
		params = append(params, "temp_directory="+url.QueryEscape(cfg.TempDirectory))
	}
	return cfg.Path + "?" + strings.Join(params, "&")
}

// DuckDBColumnType maps a logical column type to its DuckDB type. The
// appender requires Go values to match these exactly.
func DuckDBColumnType(t pipeline.DataType) string {
	switch t {
	case pipeline.DataTypeInt64:
		return "BIGINT"
	case pipeline.DataTypeFloat64:
		return "DOUBLE"
	case pipeline.DataTypeTimestamp:
		return "TIMESTAMP"
	default:
		return "VARCHAR"
	}
}

// EnsureDuckDBSchema creates the trips table for schema and the
// import_log table when they do not exist. The trips table holds
// exactly the schema columns in schema order.
func EnsureDuckDBSchema(ctx context.Context, db *sql.DB, schema *pipeline.TargetSchema) error {
	cols := make([]string, 0, schema.Len())
	for _, c := range schema.Columns() {
		cols = append(cols, fmt.Sprintf("%s %s", QuoteIdent(c.Name), DuckDBColumnType(c.Type)))
	}

	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", QuoteIdent(schema.Table()), strings.Join(cols, ",\n  ")),
		`CREATE TABLE IF NOT EXISTS import_log (
  file_name               VARCHAR PRIMARY KEY,
  import_date             TIMESTAMP NOT NULL DEFAULT current_timestamp,
  rows_imported           BIGINT NOT NULL CHECK (rows_imported >= 0),
  file_size_bytes         BIGINT,
  import_duration_seconds DOUBLE,
  created_at              TIMESTAMP NOT NULL DEFAULT current_timestamp
)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create duckdb schema: %w", err)
		}
	}
	return nil
}

// QuoteIdent double-quotes a SQL identifier for Postgres and DuckDB.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
