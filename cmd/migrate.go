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
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/tripload/config"
	"github.com/cardinalhq/tripload/internal/dbopen"
	"github.com/cardinalhq/tripload/internal/pipeline"
	"github.com/cardinalhq/tripload/internal/tripdb"
	"github.com/cardinalhq/tripload/internal/tripdb/migrations"
)

func init() {
	var f storeFlags
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the trips and import_log tables",
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := loadConfig(f.apply(c))
			if err != nil {
				return err
			}
			return withTelemetry("tripload-migrate", func(ctx context.Context) error {
				return migrate(ctx, cfg)
			})
		},
	}
	f.register(cmd.Flags())
	rootCmd.AddCommand(cmd)
}

func migrate(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	switch strings.ToLower(cfg.Ingest.Target) {
	case config.BackendPostgres:
		pool, err := dbopen.ConnectToTripDB(ctx, dbopen.SkipMigrationCheck())
		if err != nil {
			return fmt.Errorf("failed to connect to trip database: %w", err)
		}
		defer pool.Close()
		slog.Info("Running tripdb migrations")
		if err := migrations.RunMigrationsUp(ctx, pool); err != nil {
			return fmt.Errorf("failed to migrate tripdb: %w", err)
		}
	case config.BackendDuckDB:
		db, err := tripdb.OpenDuckDB(ctx, cfg.DuckDB)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		schema := pipeline.YellowTaxiSchema().WithTable(cfg.Ingest.Table)
		if err := tripdb.EnsureDuckDBSchema(ctx, db, schema); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown target %q", cfg.Ingest.Target)
	}
	slog.Info("Migrations completed successfully", slog.String("target", cfg.Ingest.Target))
	return nil
}
