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

package filereader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/tripload/internal/logctx"
	"github.com/cardinalhq/tripload/internal/pipeline"
)

// DefaultBatchRows is the row cap used when none is configured.
const DefaultBatchRows = 50_000

// Reader yields schema-conforming batches until io.EOF.
type Reader interface {
	// Next returns the next batch. The caller owns the batch and should
	// hand it back with pipeline.ReturnBatch when done.
	Next(ctx context.Context) (*pipeline.Batch, error)
	Close() error
	// TotalRowsReturned is the number of rows handed out so far.
	TotalRowsReturned() int64
}

// RowGroupReader reads a Parquet file one row group at a time and
// emits batches of at most batchRows rows.
type RowGroupReader struct {
	path      string
	schema    *pipeline.TargetSchema
	batchRows int

	pr *file.Reader
	fr *pqarrow.FileReader
	rr pqarrow.RecordReader

	numRowGroups int
	nextRowGroup int

	// cur is owned by rr and stays valid until the next rr.Read.
	cur       arrow.Record
	curOffset int

	projection pipeline.Projection
	converters []valueConverter
	// leaves are the Parquet leaf columns decoded; nil decodes all.
	leaves []int
	// recordCols[ti] is the record column feeding target column ti, or -1.
	recordCols []int

	rowCount           int64
	conversionFailures int64
	closed             bool
	exhausted          bool
}

var _ Reader = (*RowGroupReader)(nil)

// NewRowGroupReader opens path and binds its columns to schema. Any
// failure to open or interpret the file is returned as a *CorruptFileError.
func NewRowGroupReader(ctx context.Context, path string, schema *pipeline.TargetSchema, batchRows int) (*RowGroupReader, error) {
	if batchRows <= 0 {
		batchRows = DefaultBatchRows
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &CorruptFileError{Path: path, Err: err}
	}

	pf, err := file.NewParquetReader(f)
	if err != nil {
		_ = f.Close()
		return nil, &CorruptFileError{Path: path, Err: err}
	}

	props := pqarrow.ArrowReadProperties{BatchSize: int64(batchRows)}
	fr, err := pqarrow.NewFileReader(pf, props, memory.DefaultAllocator)
	if err != nil {
		_ = pf.Close()
		return nil, &CorruptFileError{Path: path, Err: fmt.Errorf("failed to create arrow file reader: %w", err)}
	}

	arrowSchema, err := fr.Schema()
	if err != nil {
		_ = pf.Close()
		return nil, &CorruptFileError{Path: path, Err: fmt.Errorf("failed to get arrow schema: %w", err)}
	}

	fields := arrowSchema.Fields()
	sourceNames := make([]string, len(fields))
	for i, f := range fields {
		sourceNames[i] = f.Name
	}
	projection := schema.Resolve(sourceNames)

	converters := make([]valueConverter, schema.Len())
	for ti, si := range projection.Sources {
		if si >= 0 {
			converters[ti] = converterFor(schema.Column(ti).Type)
		}
	}

	leaves, recordCols := selectColumns(fr.Manifest, projection.Sources)

	ll := logctx.FromContext(ctx)
	if len(projection.Dropped) > 0 {
		ll.Debug("Dropping source columns with no target",
			slog.String("file", path),
			slog.Any("columns", projection.Dropped))
	}
	if len(projection.Missing) > 0 {
		ll.Info("Target columns missing from source will be null",
			slog.String("file", path),
			slog.Any("columns", projection.Missing))
	}

	return &RowGroupReader{
		path:         path,
		schema:       schema,
		batchRows:    batchRows,
		pr:           pf,
		fr:           fr,
		numRowGroups: pf.NumRowGroups(),
		projection:   projection,
		converters:   converters,
		leaves:       leaves,
		recordCols:   recordCols,
	}, nil
}

// selectColumns returns the leaf column indices backing the source fields
// named in sources, and for each target column the position of its field
// in the records those leaves produce. Unresolved source fields are never
// decoded. When no field resolves, every column is read so row counts
// are still available.
func selectColumns(manifest *pqarrow.SchemaManifest, sources []int) ([]int, []int) {
	recordCols := make([]int, len(sources))
	used := make([]int, 0, len(sources))
	for ti, si := range sources {
		recordCols[ti] = -1
		if si >= 0 {
			used = append(used, si)
		}
	}
	if len(used) == 0 || manifest == nil {
		copy(recordCols, sources)
		return nil, recordCols
	}
	slices.Sort(used)
	used = slices.Compact(used)

	pos := make(map[int]int, len(used))
	var leaves []int
	for k, si := range used {
		pos[si] = k
		leaves = appendLeaves(leaves, manifest.Fields[si])
	}
	for ti, si := range sources {
		if si >= 0 {
			recordCols[ti] = pos[si]
		}
	}
	return leaves, recordCols
}

func appendLeaves(leaves []int, field pqarrow.SchemaField) []int {
	if field.ColIndex >= 0 && len(field.Children) == 0 {
		return append(leaves, field.ColIndex)
	}
	for _, child := range field.Children {
		leaves = appendLeaves(leaves, child)
	}
	return leaves
}

// NumRowGroups reports how many row groups the file holds.
func (r *RowGroupReader) NumRowGroups() int { return r.numRowGroups }

// NumRows reports the row count recorded in the file footer.
func (r *RowGroupReader) NumRows() int64 {
	if r.pr == nil {
		return 0
	}
	return r.pr.NumRows()
}

// Projection describes how source columns were bound to the schema.
func (r *RowGroupReader) Projection() pipeline.Projection { return r.projection }

// ConversionFailures counts values nulled because they could not be
// coerced to their target type.
func (r *RowGroupReader) ConversionFailures() int64 { return r.conversionFailures }

// Next returns the next batch of at most batchRows rows, or io.EOF.
func (r *RowGroupReader) Next(ctx context.Context) (*pipeline.Batch, error) {
	if r.closed {
		return nil, errors.New("reader is closed")
	}
	if r.exhausted {
		return nil, io.EOF
	}

	for r.cur == nil || r.curOffset >= int(r.cur.NumRows()) {
		if err := r.advance(ctx); err != nil {
			if errors.Is(err, io.EOF) {
				r.exhausted = true
			}
			return nil, err
		}
	}

	start := r.curOffset
	end := min(start+r.batchRows, int(r.cur.NumRows()))
	batch := pipeline.GetBatch(r.schema, end-start)
	failures := r.project(r.cur, start, end, batch)
	r.curOffset = end

	n := int64(batch.Len())
	r.rowCount += n
	r.conversionFailures += failures
	rowsInCounter.Add(ctx, n, otelmetric.WithAttributes(attribute.String("reader", "RowGroupReader")))
	if failures > 0 {
		conversionFailuresCounter.Add(ctx, failures)
	}
	return batch, nil
}

// advance loads the next record, opening the next row group when the
// current one is drained.
func (r *RowGroupReader) advance(ctx context.Context) error {
	r.cur = nil
	r.curOffset = 0

	for {
		if r.rr == nil {
			if r.nextRowGroup >= r.numRowGroups {
				return io.EOF
			}
			rr, err := r.fr.GetRecordReader(ctx, r.leaves, []int{r.nextRowGroup})
			if err != nil {
				return &CorruptFileError{
					Path: r.path,
					Err:  fmt.Errorf("failed to open row group %d: %w", r.nextRowGroup, err),
				}
			}
			rowGroupsCounter.Add(ctx, 1)
			r.rr = rr
			r.nextRowGroup++
		}

		rec, err := r.rr.Read()
		if err != nil && !errors.Is(err, io.EOF) {
			return &CorruptFileError{
				Path: r.path,
				Err:  fmt.Errorf("failed to decode row group %d: %w", r.nextRowGroup-1, err),
			}
		}
		if rec == nil {
			r.rr.Release()
			r.rr = nil
			continue
		}
		if rec.NumRows() == 0 {
			continue
		}
		r.cur = rec
		return nil
	}
}

// project copies rows [start,end) of rec into batch in target column
// order and returns the number of values that failed conversion.
func (r *RowGroupReader) project(rec arrow.Record, start, end int, batch *pipeline.Batch) int64 {
	var failures int64
	cols := make([]arrow.Array, len(r.recordCols))
	for ti, ci := range r.recordCols {
		if ci >= 0 && ci < int(rec.NumCols()) {
			cols[ti] = rec.Column(ci)
		}
	}

	for i := start; i < end; i++ {
		row := batch.AddRow()
		for ti, col := range cols {
			if col == nil || col.IsNull(i) {
				continue
			}
			v, ok := r.converters[ti](col, i)
			if !ok {
				failures++
				continue
			}
			row[ti] = v
		}
	}
	return failures
}

// Close releases the row group reader and the underlying file.
func (r *RowGroupReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.cur = nil
	if r.rr != nil {
		r.rr.Release()
		r.rr = nil
	}
	r.fr = nil
	if r.pr != nil {
		if err := r.pr.Close(); err != nil {
			return err
		}
		r.pr = nil
	}
	return nil
}

// TotalRowsReturned returns the total number of rows successfully returned.
func (r *RowGroupReader) TotalRowsReturned() int64 {
	return r.rowCount
}
