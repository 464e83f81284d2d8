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

package importer

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/tripload/internal/logctx"
	"github.com/cardinalhq/tripload/internal/sink"
)

// Config controls a Coordinator.
type Config struct {
	// Extension selects input files; defaults to ".parquet".
	Extension string `mapstructure:"extension"`
	// Workers bounds concurrent file imports; defaults to min(4, GOMAXPROCS).
	Workers int `mapstructure:"workers"`
	// BatchRows caps rows per batch.
	BatchRows int `mapstructure:"batch_rows"`
}

// DefaultWorkers is min(4, GOMAXPROCS).
func DefaultWorkers() int {
	return min(4, runtime.GOMAXPROCS(0))
}

// Coordinator imports every file of a directory. It owns scheduling
// and aggregation only; each file is handled by the Worker.
type Coordinator struct {
	cfg    Config
	deps   Dependencies
	worker *Worker
}

func NewCoordinator(cfg Config, deps Dependencies) (*Coordinator, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers()
	}
	if cfg.Extension == "" {
		cfg.Extension = DefaultExtension
	}
	w, err := NewWorker(deps, cfg.BatchRows)
	if err != nil {
		return nil, err
	}
	return &Coordinator{cfg: cfg, deps: w.deps, worker: w}, nil
}

// Run imports the files of directory and returns once every dispatched
// import has finished. One file's failure does not affect the others.
// The error is non-nil only when the directory cannot be listed; file
// failures are reported in the result.
//
// When ctx is cancelled, in-flight files stop after their current
// batch and files not yet started are reported as failed.
//
// SinkStats counts the sink writes made while this run was in progress.
// Runs sharing one sink concurrently see each other's writes.
func (c *Coordinator) Run(ctx context.Context, directory string) (*RunResult, error) {
	files, err := Discover(directory, c.cfg.Extension)
	if err != nil {
		return nil, err
	}

	statser, hasStats := c.deps.Sink.(interface{ Stats() sink.Stats })
	var sinkBefore sink.Stats
	if hasStats {
		sinkBefore = statser.Stats()
	}

	result := newRunResult(directory)
	result.FilesDiscovered = len(files)

	ctx, span := tracer.Start(ctx, "importer.run", trace.WithAttributes(
		attribute.String("run_id", result.RunID),
		attribute.Int("files", len(files)),
	))
	defer span.End()

	ctx, ll := logctx.With(ctx, slog.String("runID", result.RunID))
	ll.Info("Starting import run",
		slog.String("directory", directory),
		slog.Int("files", len(files)),
		slog.Int("workers", c.cfg.Workers))

	pending := make([]SourceFile, 0, len(files))
	for _, f := range files {
		imported, err := c.deps.Ledger.IsImported(ctx, f.Name)
		if err != nil {
			result.fail(f.Name, fmt.Errorf("failed to check import ledger: %w", err))
			continue
		}
		if imported {
			result.skip(f.Name, "already imported")
			continue
		}
		pending = append(pending, f)
	}

	var g errgroup.Group
	g.SetLimit(c.cfg.Workers)
	for _, f := range pending {
		if err := ctx.Err(); err != nil {
			result.fail(f.Name, fmt.Errorf("not started: %w", err))
			continue
		}
		g.Go(func() error {
			result.add(c.worker.Import(ctx, f))
			return nil
		})
	}
	_ = g.Wait()

	result.Cancelled = ctx.Err() != nil
	if hasStats {
		stats := statser.Stats().Since(sinkBefore)
		result.SinkStats = &stats
	}
	result.finish()

	ll.Info("Finished import run",
		slog.Int("succeeded", len(result.Succeeded)),
		slog.Int("skipped", len(result.Skipped)),
		slog.Int("failed", len(result.Failed)),
		slog.Int64("rowsWritten", result.TotalRowsWritten),
		slog.Int64("rowsDropped", result.TotalRowsDropped),
		slog.Bool("cancelled", result.Cancelled),
		slog.Duration("duration", time.Duration(result.DurationSeconds*float64(time.Second))))
	return result, nil
}
