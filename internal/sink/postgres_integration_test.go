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

//go:build integration

package sink

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/tripload/internal/pipeline"
	"github.com/cardinalhq/tripload/testhelpers"
)

// malformedCopyTarget feeds COPY a stream the server cannot parse, so
// every bulk load fails after the transaction has started.
type malformedCopyTarget struct {
	*PostgresTarget
}

func (m malformedCopyTarget) BulkLoad(ctx context.Context, b *pipeline.Batch) (int64, error) {
	var n int64
	err := m.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		n, err = m.copyStream(ctx, tx, b.Schema(), strings.NewReader("1,\"unterminated\n"))
		return err
	})
	return n, err
}

func pgCount(t *testing.T, pool *pgxpool.Pool) int64 {
	t.Helper()
	var n int64
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT count(*) FROM yellow_taxi_trips`).Scan(&n))
	return n
}

func TestPostgresTarget_BulkLoad(t *testing.T) {
	pool := testhelpers.SetupTestTripDB(t)
	schema := pipeline.YellowTaxiSchema()
	s := NewTieredSink(NewPostgresTarget(pool, DefaultConfig()), DefaultConfig())

	b := tripBatch(t, schema, 500)
	b.Get(0)[schema.Index(pipeline.ColStoreAndFwdFlag)] = `\`
	n, err := s.Write(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, int64(500), n)
	assert.Equal(t, int64(500), pgCount(t, pool))
	assert.Equal(t, Stats{BulkWrites: 1}, s.Stats())

	var nullAirport int64
	require.NoError(t, pool.QueryRow(context.Background(),
		`SELECT count(*) FROM yellow_taxi_trips WHERE airport_fee IS NULL`).Scan(&nullAirport))
	assert.Equal(t, int64(500), nullAirport)
}

func TestPostgresTarget_FallbackMatchesBulk(t *testing.T) {
	ctx := context.Background()
	pool := testhelpers.SetupTestTripDB(t)
	schema := pipeline.YellowTaxiSchema()
	base := NewPostgresTarget(pool, DefaultConfig())

	s := NewTieredSink(malformedCopyTarget{base}, Config{FallbackChunkRows: 100})
	n, err := s.Write(ctx, tripBatch(t, schema, 250))
	require.NoError(t, err)
	assert.Equal(t, int64(250), n)
	assert.Equal(t, Stats{FallbackWrites: 1}, s.Stats())

	// The aborted COPY left nothing behind; only the fallback rows exist.
	assert.Equal(t, int64(250), pgCount(t, pool))

	_, err = NewTieredSink(base, DefaultConfig()).Write(ctx, tripBatch(t, schema, 250))
	require.NoError(t, err)

	var distinct int64
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM (
  SELECT DISTINCT vendor_id, tpep_pickup_datetime, tpep_dropoff_datetime, passenger_count,
    trip_distance, store_and_fwd_flag, fare_amount, total_amount, airport_fee
  FROM yellow_taxi_trips) d`).Scan(&distinct))
	assert.Equal(t, int64(250), distinct, "fallback and bulk rows must be identical")
}

func TestPostgresTarget_EncodeFailureFallsBack(t *testing.T) {
	pool := testhelpers.SetupTestTripDB(t)
	schema := pipeline.YellowTaxiSchema()
	b := tripBatch(t, schema, 3)
	b.Get(1)[schema.Index(pipeline.ColExtra)] = float32(1.5)

	target := NewPostgresTarget(pool, DefaultConfig())
	_, err := target.BulkLoad(context.Background(), b)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedValue)
	assert.NotErrorIs(t, err, io.ErrClosedPipe)
	assert.Equal(t, int64(0), pgCount(t, pool))
}
