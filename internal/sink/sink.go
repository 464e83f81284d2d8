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

// Package sink writes batches of normalized rows to the destination
// store. A TieredSink tries the destination's bulk-load protocol first
// and falls back to chunked INSERT statements when that fails.
package sink

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/tripload/internal/logctx"
	"github.com/cardinalhq/tripload/internal/pipeline"
)

const (
	DefaultFallbackChunkRows = 1000
	DefaultNullToken         = `\N`
)

// Config tunes the sink. Zero values select the defaults.
type Config struct {
	FallbackChunkRows int    `mapstructure:"fallback_chunk_rows"`
	NullToken         string `mapstructure:"null_token"`
}

func DefaultConfig() Config {
	return Config{
		FallbackChunkRows: DefaultFallbackChunkRows,
		NullToken:         DefaultNullToken,
	}
}

func (c Config) withDefaults() Config {
	if c.FallbackChunkRows <= 0 {
		c.FallbackChunkRows = DefaultFallbackChunkRows
	}
	if c.NullToken == "" {
		c.NullToken = DefaultNullToken
	}
	return c
}

// Sink writes one batch and reports how many rows were written.
// Writing the same batch twice inserts its rows twice.
type Sink interface {
	Write(ctx context.Context, b *pipeline.Batch) (int64, error)
}

// Target is a destination that offers both write paths. Each call runs
// in its own transaction and either writes every row of the batch or
// none of them.
type Target interface {
	Name() string
	// BulkLoad writes the batch through the native bulk-load protocol.
	BulkLoad(ctx context.Context, b *pipeline.Batch) (int64, error)
	// InsertChunks writes the batch with INSERT statements of at most
	// chunkRows rows each.
	InsertChunks(ctx context.Context, b *pipeline.Batch, chunkRows int) (int64, error)
}

// Stats counts batches by the path that wrote them.
type Stats struct {
	BulkWrites     int64 `json:"bulk_writes"`
	FallbackWrites int64 `json:"fallback_writes"`
	FailedWrites   int64 `json:"failed_writes"`
}

// Since returns the writes counted after earlier was taken.
func (s Stats) Since(earlier Stats) Stats {
	return Stats{
		BulkWrites:     s.BulkWrites - earlier.BulkWrites,
		FallbackWrites: s.FallbackWrites - earlier.FallbackWrites,
		FailedWrites:   s.FailedWrites - earlier.FailedWrites,
	}
}

// TieredSink implements Sink over a Target. It is safe for concurrent
// use when the Target is.
type TieredSink struct {
	target    Target
	chunkRows int

	bulk     atomic.Int64
	fallback atomic.Int64
	failed   atomic.Int64
}

var _ Sink = (*TieredSink)(nil)

func NewTieredSink(target Target, cfg Config) *TieredSink {
	cfg = cfg.withDefaults()
	return &TieredSink{
		target:    target,
		chunkRows: cfg.FallbackChunkRows,
	}
}

// Write sends the batch through the bulk path, and on any bulk failure
// through the insert path. Only a failure of both is returned.
func (s *TieredSink) Write(ctx context.Context, b *pipeline.Batch) (int64, error) {
	if b == nil || b.Len() == 0 {
		return 0, nil
	}

	ll := logctx.FromContext(ctx).With(
		slog.String("target", s.target.Name()),
		slog.String("table", b.Schema().Table()),
		slog.Int("rows", b.Len()))

	t0 := time.Now()
	n, err := s.target.BulkLoad(ctx, b)
	if err == nil {
		s.bulk.Add(1)
		s.record(ctx, "bulk", n, t0)
		ll.Debug("Wrote batch", slog.String("path", "bulk"), slog.Int64("written", n))
		return n, nil
	}

	bulkErr := &BulkWriteError{Target: s.target.Name(), Rows: b.Len(), Err: err}
	ll.Warn("Bulk load failed, retrying with batched inserts", slog.Any("error", bulkErr))

	t0 = time.Now()
	n, err = s.target.InsertChunks(ctx, b, s.chunkRows)
	if err != nil {
		s.failed.Add(1)
		sinkWrites.Add(ctx, 1, metric.WithAttributes(
			attribute.String("target", s.target.Name()),
			attribute.String("path", "failed")))
		return 0, &FallbackWriteError{Target: s.target.Name(), Rows: b.Len(), BulkErr: bulkErr, Err: err}
	}

	s.fallback.Add(1)
	s.record(ctx, "fallback", n, t0)
	ll.Info("Wrote batch", slog.String("path", "fallback"), slog.Int64("written", n))
	return n, nil
}

func (s *TieredSink) record(ctx context.Context, path string, rows int64, t0 time.Time) {
	attrs := metric.WithAttributes(
		attribute.String("target", s.target.Name()),
		attribute.String("path", path))
	sinkWrites.Add(ctx, 1, attrs)
	sinkRows.Add(ctx, rows, attrs)
	sinkWriteDuration.Record(ctx, time.Since(t0).Seconds(), attrs)
}

func (s *TieredSink) Stats() Stats {
	return Stats{
		BulkWrites:     s.bulk.Load(),
		FallbackWrites: s.fallback.Load(),
		FailedWrites:   s.failed.Load(),
	}
}

func (s *TieredSink) String() string {
	return fmt.Sprintf("TieredSink(%s)", s.target.Name())
}
