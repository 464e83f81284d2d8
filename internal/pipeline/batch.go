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

package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter = otel.Meter("github.com/cardinalhq/tripload/internal/pipeline")

	batchPoolGetsCounter metric.Int64Counter
	batchPoolPutsCounter metric.Int64Counter
)

func init() {
	var err error

	batchPoolGetsCounter, err = meter.Int64Counter(
		"tripload.pipeline.batchpool.gets",
		metric.WithDescription("Total number of gets from the batch pool"),
	)
	if err != nil {
		panic(err)
	}

	batchPoolPutsCounter, err = meter.Int64Counter(
		"tripload.pipeline.batchpool.puts",
		metric.WithDescription("Total number of puts back to the batch pool"),
	)
	if err != nil {
		panic(err)
	}
}

// Row holds one value per target column, in schema order. Values are
// nil, int64, float64, string or time.Time.
type Row []any

// Batch is a bounded group of rows conforming to one TargetSchema.
//
// A Batch is owned by whoever received it from a reader. Rows are reused
// after the batch is returned to the pool, so callers must copy any row
// they need to keep beyond ReturnBatch.
type Batch struct {
	schema   *TargetSchema
	rows     []Row
	validLen int
}

// Schema returns the schema every row in the batch conforms to.
func (b *Batch) Schema() *TargetSchema { return b.schema }

// Len returns the number of valid rows in the batch.
func (b *Batch) Len() int { return b.validLen }

// Get returns the row at index, or nil when out of range.
func (b *Batch) Get(index int) Row {
	if index < 0 || index >= b.validLen {
		return nil
	}
	return b.rows[index]
}

// Rows returns the valid rows. The slice aliases the batch storage.
func (b *Batch) Rows() []Row { return b.rows[:b.validLen] }

// AddRow appends an all-null row and returns it for filling.
func (b *Batch) AddRow() Row {
	width := b.schema.Len()
	if b.validLen < len(b.rows) {
		r := b.rows[b.validLen]
		if cap(r) < width {
			r = make(Row, width)
		} else {
			r = r[:width]
			clear(r)
		}
		b.rows[b.validLen] = r
		b.validLen++
		return r
	}
	r := make(Row, width)
	b.rows = append(b.rows, r)
	b.validLen++
	return r
}

// Filter keeps the rows for which keep returns true, preserving order,
// and returns how many rows were removed.
func (b *Batch) Filter(keep func(Row) bool) int {
	w := 0
	for r := 0; r < b.validLen; r++ {
		if keep(b.rows[r]) {
			if w != r {
				b.rows[w], b.rows[r] = b.rows[r], b.rows[w]
			}
			w++
		}
	}
	removed := b.validLen - w
	b.validLen = w
	return removed
}

// Reset empties the batch without releasing row storage.
func (b *Batch) Reset() {
	b.validLen = 0
}

// batchPool recycles batches and their row storage between reads.
type batchPool struct {
	pool  sync.Pool
	alloc atomic.Uint64
	gets  atomic.Uint64
	puts  atomic.Uint64
}

// maxPooledRows bounds the row storage kept by a pooled batch.
const maxPooledRows = 200_000

func newBatchPool() *batchPool {
	p := &batchPool{}
	p.pool = sync.Pool{
		New: func() any {
			p.alloc.Add(1)
			return &Batch{}
		},
	}
	return p
}

func (p *batchPool) Get(schema *TargetSchema, capacity int) *Batch {
	p.gets.Add(1)
	batchPoolGetsCounter.Add(context.Background(), 1)
	b := p.pool.Get().(*Batch)
	b.schema = schema
	b.validLen = 0
	if cap(b.rows) < capacity {
		rows := make([]Row, len(b.rows), capacity)
		copy(rows, b.rows)
		b.rows = rows
	}
	return b
}

func (p *batchPool) Put(b *Batch) {
	p.puts.Add(1)
	batchPoolPutsCounter.Add(context.Background(), 1)
	if cap(b.rows) > maxPooledRows {
		return
	}
	b.schema = nil
	b.validLen = 0
	p.pool.Put(b)
}

// BatchPoolStats contains counters for batch pool usage.
type BatchPoolStats struct {
	Allocations uint64
	Gets        uint64
	Puts        uint64
}

// LeakedBatches returns the number of batches that were gotten but never returned.
func (s BatchPoolStats) LeakedBatches() uint64 {
	return s.Gets - s.Puts
}

func (p *batchPool) stats() BatchPoolStats {
	return BatchPoolStats{
		Allocations: p.alloc.Load(),
		Gets:        p.gets.Load(),
		Puts:        p.puts.Load(),
	}
}

var globalBatchPool = newBatchPool()

// GetBatch returns an empty batch for schema with room for capacity rows.
func GetBatch(schema *TargetSchema, capacity int) *Batch {
	return globalBatchPool.Get(schema, capacity)
}

// ReturnBatch hands a batch back for reuse. The batch must not be used
// afterwards.
func ReturnBatch(b *Batch) {
	if b != nil {
		globalBatchPool.Put(b)
	}
}

// GlobalBatchPoolStats returns usage counters for the global batch pool.
func GlobalBatchPoolStats() BatchPoolStats {
	return globalBatchPool.stats()
}

// CopyRow returns a row that does not alias batch storage.
func CopyRow(r Row) Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}
