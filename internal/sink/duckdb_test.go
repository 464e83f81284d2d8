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

package sink

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/tripload/internal/pipeline"
	"github.com/cardinalhq/tripload/testhelpers"
)

func tripBatch(t *testing.T, schema *pipeline.TargetSchema, n int) *pipeline.Batch {
	t.Helper()
	b := pipeline.GetBatch(schema, n)
	t.Cleanup(func() { pipeline.ReturnBatch(b) })

	pickup := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range n {
		r := b.AddRow()
		r[schema.Index(pipeline.ColVendorID)] = int64(1 + i%2)
		r[schema.Index(pipeline.ColPickupDatetime)] = pickup.Add(time.Duration(i) * time.Minute)
		r[schema.Index(pipeline.ColDropoffDatetime)] = pickup.Add(time.Duration(i+10) * time.Minute)
		r[schema.Index(pipeline.ColPassengerCount)] = 1.0
		r[schema.Index(pipeline.ColTripDistance)] = float64(i) / 10
		r[schema.Index(pipeline.ColStoreAndFwdFlag)] = "N"
		r[schema.Index(pipeline.ColFareAmount)] = 10.0
		r[schema.Index(pipeline.ColTotalAmount)] = 12.5
	}
	return b
}

func countRows(t *testing.T, db *sql.DB, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM "`+table+`"`).Scan(&n))
	return n
}

func TestDuckDBTarget_BulkLoad(t *testing.T) {
	db := testhelpers.NewTestDuckDB(t)
	schema := pipeline.YellowTaxiSchema()
	s := NewTieredSink(NewDuckDBTarget(db), DefaultConfig())

	n, err := s.Write(context.Background(), tripBatch(t, schema, 250))
	require.NoError(t, err)
	assert.Equal(t, int64(250), n)
	assert.Equal(t, int64(250), countRows(t, db, schema.Table()))
	assert.Equal(t, Stats{BulkWrites: 1}, s.Stats())

	var flag sql.NullString
	var airport sql.NullFloat64
	var pickup time.Time
	require.NoError(t, db.QueryRow(`SELECT store_and_fwd_flag, airport_fee, tpep_pickup_datetime
FROM yellow_taxi_trips ORDER BY tpep_pickup_datetime LIMIT 1`).Scan(&flag, &airport, &pickup))
	assert.Equal(t, "N", flag.String)
	assert.False(t, airport.Valid)
	assert.True(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Equal(pickup))
}

func TestDuckDBTarget_FallbackOnLayoutMismatch(t *testing.T) {
	db := testhelpers.NewTestDuckDB(t)
	schema := pipeline.YellowTaxiSchema().WithTable("trips_with_extra")

	// An extra trailing column makes the appender reject the batch.
	_, err := db.Exec(`CREATE TABLE trips_with_extra AS SELECT * FROM yellow_taxi_trips LIMIT 0`)
	require.NoError(t, err)
	_, err = db.Exec(`ALTER TABLE trips_with_extra ADD COLUMN note VARCHAR`)
	require.NoError(t, err)

	s := NewTieredSink(NewDuckDBTarget(db), Config{FallbackChunkRows: 7})
	n, err := s.Write(context.Background(), tripBatch(t, schema, 30))
	require.NoError(t, err)
	assert.Equal(t, int64(30), n)
	assert.Equal(t, int64(30), countRows(t, db, "trips_with_extra"))
	assert.Equal(t, Stats{FallbackWrites: 1}, s.Stats())

	var distance float64
	require.NoError(t, db.QueryRow(`SELECT max(trip_distance) FROM trips_with_extra`).Scan(&distance))
	assert.InDelta(t, 2.9, distance, 1e-9)
}

func TestDuckDBTarget_BothPathsFailLeavesNothing(t *testing.T) {
	db := testhelpers.NewTestDuckDB(t)
	schema := pipeline.YellowTaxiSchema().WithTable("no_such_table")

	s := NewTieredSink(NewDuckDBTarget(db), DefaultConfig())
	_, err := s.Write(context.Background(), tripBatch(t, schema, 5))
	require.Error(t, err)
	var fwe *FallbackWriteError
	assert.ErrorAs(t, err, &fwe)
	assert.Equal(t, int64(0), countRows(t, db, pipeline.DefaultTripsTable))
}

func TestDuckDBTarget_InsertChunksIsAtomic(t *testing.T) {
	db := testhelpers.NewTestDuckDB(t)
	schema := pipeline.YellowTaxiSchema()
	b := tripBatch(t, schema, 10)
	// A string in a BIGINT column fails the second chunk.
	b.Get(7)[schema.Index(pipeline.ColVendorID)] = "not-a-number"

	_, err := NewDuckDBTarget(db).InsertChunks(context.Background(), b, 5)
	require.Error(t, err)
	assert.Equal(t, int64(0), countRows(t, db, schema.Table()))
}
