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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/tripload/internal/cleaning"
	"github.com/cardinalhq/tripload/internal/filereader"
	"github.com/cardinalhq/tripload/internal/ledger"
	"github.com/cardinalhq/tripload/internal/logctx"
	"github.com/cardinalhq/tripload/internal/memgov"
	"github.com/cardinalhq/tripload/internal/pipeline"
	"github.com/cardinalhq/tripload/internal/sink"
)

// ReaderFactory opens a batch reader over one file.
type ReaderFactory func(ctx context.Context, path string, schema *pipeline.TargetSchema, batchRows int) (filereader.Reader, error)

// OpenRowGroupReader is the default ReaderFactory.
func OpenRowGroupReader(ctx context.Context, path string, schema *pipeline.TargetSchema, batchRows int) (filereader.Reader, error) {
	return filereader.NewRowGroupReader(ctx, path, schema, batchRows)
}

// Dependencies are the collaborators shared by every worker of a run.
type Dependencies struct {
	Ledger   ledger.Ledger
	Sink     sink.Sink
	Schema   *pipeline.TargetSchema
	Cleaner  cleaning.Cleaner
	Governor *memgov.Governor
	// OpenReader defaults to OpenRowGroupReader.
	OpenReader ReaderFactory
}

// Worker imports one file at a time. A single Worker may be shared by
// concurrent goroutines; it holds no per-file state.
type Worker struct {
	deps      Dependencies
	batchRows int
}

func NewWorker(deps Dependencies, batchRows int) (*Worker, error) {
	if deps.Ledger == nil {
		return nil, errors.New("worker requires a ledger")
	}
	if deps.Sink == nil {
		return nil, errors.New("worker requires a sink")
	}
	if deps.Schema == nil {
		return nil, errors.New("worker requires a target schema")
	}
	if deps.Cleaner == nil {
		deps.Cleaner = cleaning.NoopCleaner{}
	}
	if deps.OpenReader == nil {
		deps.OpenReader = OpenRowGroupReader
	}
	if batchRows <= 0 {
		batchRows = filereader.DefaultBatchRows
	}
	return &Worker{deps: deps, batchRows: batchRows}, nil
}

// fileRun tracks one file through the state machine.
type fileRun struct {
	out   FileOutcome
	start time.Time
	ll    *slog.Logger
}

func (f *fileRun) to(state FileState) {
	if !canTransition(f.out.State, state) {
		f.ll.Error("Invalid file state transition",
			slog.String("from", f.out.State.String()),
			slog.String("to", state.String()))
		return
	}
	f.out.State = state
}

func (f *fileRun) failed(err error) FileOutcome {
	f.to(StateFailed)
	f.out.Err = err
	f.out.Reason = err.Error()
	return f.finish()
}

func (f *fileRun) skipped(reason string) FileOutcome {
	f.to(StateSkipped)
	f.out.Reason = reason
	return f.finish()
}

func (f *fileRun) finish() FileOutcome {
	f.out.DurationSeconds = time.Since(f.start).Seconds()
	return f.out
}

// Import runs file through ledger check, read, clean, write and ledger
// commit. It never returns an error; failures are carried by the
// outcome's Failed state.
//
// Cancelling ctx stops the import between batches. A batch already
// handed to the sink is written to completion, and a cancelled file
// never gets a ledger entry.
func (w *Worker) Import(ctx context.Context, file SourceFile) FileOutcome {
	ctx, span := tracer.Start(ctx, "importer.import_file", trace.WithAttributes(
		attribute.String("file", file.Name),
		attribute.Int64("size_bytes", file.SizeBytes),
	))
	defer span.End()

	ctx, ll := logctx.With(ctx, slog.String("file", file.Name))

	f := &fileRun{
		out: FileOutcome{
			FileName:      file.Name,
			Path:          file.Path,
			State:         StatePending,
			FileSizeBytes: file.SizeBytes,
			DropCounts:    cleaning.DropCounts{},
		},
		start: time.Now(),
		ll:    ll,
	}

	out := w.run(ctx, f)

	span.SetAttributes(
		attribute.String("state", out.State.String()),
		attribute.Int64("rows_written", out.RowsWritten),
		attribute.Int64("rows_dropped", out.RowsDropped),
	)
	if out.State == StateFailed {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, "import failed")
	}
	filesCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("state", out.State.String())))
	if out.State == StateCompleted {
		fileDuration.Record(ctx, out.DurationSeconds)
	}
	switch out.State {
	case StateCompleted:
		ll.Info("Imported file",
			slog.Int64("rowsRead", out.RowsRead),
			slog.Int64("rowsDropped", out.RowsDropped),
			slog.Int64("rowsWritten", out.RowsWritten),
			slog.Int("batches", out.Batches),
			slog.Float64("durationSeconds", out.DurationSeconds))
	case StateSkipped:
		ll.Info("Skipped file", slog.String("reason", out.Reason))
	default:
		ll.Error("Failed to import file", slog.Any("error", out.Err))
	}
	return out
}

func (w *Worker) run(ctx context.Context, f *fileRun) FileOutcome {
	imported, err := w.deps.Ledger.IsImported(ctx, f.out.FileName)
	if err != nil {
		return f.failed(err)
	}
	if imported {
		return f.skipped("already imported")
	}

	w.relievePressure(ctx)

	if err := ctx.Err(); err != nil {
		return f.failed(err)
	}

	f.to(StateReading)
	reader, err := w.deps.OpenReader(ctx, f.out.Path, w.deps.Schema, w.batchRows)
	if err != nil {
		return f.failed(err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			f.ll.Warn("Failed to close reader", slog.Any("error", err))
		}
	}()

	// Writes and the ledger commit must not be cut short by
	// cancellation, only the loop between batches is.
	writeCtx := context.WithoutCancel(ctx)

	for {
		if err := ctx.Err(); err != nil {
			return f.failed(err)
		}

		batch, err := reader.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return f.failed(ctxErr)
			}
			return f.failed(err)
		}

		w.relievePressure(ctx)

		if err := w.writeBatch(writeCtx, f, batch); err != nil {
			return f.failed(err)
		}
		f.to(StateReading)
	}

	if cr, ok := reader.(interface{ ConversionFailures() int64 }); ok {
		f.out.ConversionFailures = cr.ConversionFailures()
	}
	if f.out.RowsWritten != f.out.RowsRead-f.out.RowsDropped {
		return f.failed(fmt.Errorf("wrote %d rows but read %d and dropped %d",
			f.out.RowsWritten, f.out.RowsRead, f.out.RowsDropped))
	}

	entry := ledger.Entry{
		FileName:              f.out.FileName,
		RowsImported:          f.out.RowsWritten,
		FileSizeBytes:         f.out.FileSizeBytes,
		ImportDurationSeconds: time.Since(f.start).Seconds(),
	}
	if err := w.deps.Ledger.RecordCompletion(writeCtx, entry); err != nil {
		if ledger.IsConflict(err) {
			f.ll.Warn("Another import recorded this file first; rows written by this import are duplicates",
				slog.Int64("rowsWritten", f.out.RowsWritten))
			return f.skipped("recorded by a concurrent import")
		}
		return f.failed(fmt.Errorf("failed to record completion: %w", err))
	}

	f.to(StateCompleted)
	return f.finish()
}

func (w *Worker) writeBatch(ctx context.Context, f *fileRun, batch *pipeline.Batch) error {
	defer pipeline.ReturnBatch(batch)

	f.out.Batches++
	f.out.RowsRead += int64(batch.Len())

	drops := w.deps.Cleaner.Clean(batch)
	if total := drops.Total(); total > 0 {
		f.out.RowsDropped += total
		f.out.DropCounts.Add(drops)
		for rule, n := range drops {
			rowsDroppedCounter.Add(ctx, n, metric.WithAttributes(attribute.String("rule", rule)))
		}
	}

	f.to(StateWriting)
	n, err := w.deps.Sink.Write(ctx, batch)
	if err != nil {
		return err
	}
	f.out.RowsWritten += n
	rowsWrittenCounter.Add(ctx, n)
	return nil
}

// relievePressure reclaims memory when the governor reports pressure.
// The check is advisory; the import proceeds either way.
func (w *Worker) relievePressure(ctx context.Context) {
	if warning := w.deps.Governor.Check(ctx); warning != nil {
		logctx.FromContext(ctx).Warn("Memory pressure, forcing reclamation", slog.Any("warning", warning))
		w.deps.Governor.ForceReclaim()
	}
}
