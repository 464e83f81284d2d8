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

package testhelpers

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/cardinalhq/tripload/internal/pipeline"
	"github.com/cardinalhq/tripload/internal/tripdb"
)

// NewTestDuckDB opens a DuckDB file in a per-test temp directory with the
// trips and import_log tables created. The database is closed on cleanup.
func NewTestDuckDB(t *testing.T) *sql.DB {
	t.Helper()
	return NewTestDuckDBWithSchema(t, pipeline.YellowTaxiSchema())
}

// NewTestDuckDBWithSchema is NewTestDuckDB for a custom target schema.
func NewTestDuckDBWithSchema(t *testing.T, schema *pipeline.TargetSchema) *sql.DB {
	t.Helper()

	ctx := context.Background()
	cfg := tripdb.DefaultDuckDBConfig()
	cfg.Path = filepath.Join(t.TempDir(), "trips.duckdb")
	cfg.Threads = 2

	db, err := tripdb.OpenDuckDB(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to open test duckdb: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	if err := tripdb.EnsureDuckDBSchema(ctx, db, schema); err != nil {
		t.Fatalf("Failed to create duckdb schema: %v", err)
	}
	return db
}
