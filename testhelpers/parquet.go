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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/require"
)

// TripFixture is one yellow taxi trip as it appears in a TLC Parquet file.
// A zero Pickup or Dropoff is written as null.
type TripFixture struct {
	VendorID        int32
	Pickup          time.Time
	Dropoff         time.Time
	PassengerCount  int64
	TripDistance    float64
	RatecodeID      float64
	StoreAndFwdFlag string
	PULocationID    int32
	DOLocationID    int32
	PaymentType     int64
	FareAmount      float64
	Extra           float64
	MTATax          float64
	TipAmount       float64
	TollsAmount     float64
	ImprovementSur  float64
	TotalAmount     float64
	CongestionSur   float64
	AirportFee      float64
}

// tlcSchema mirrors the column names and physical types of the published
// yellow taxi files, including one column the trips table does not carry.
var tlcSchema = arrow.NewSchema([]arrow.Field{
	{Name: "VendorID", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
	{Name: "tpep_pickup_datetime", Type: arrow.FixedWidthTypes.Timestamp_us, Nullable: true},
	{Name: "tpep_dropoff_datetime", Type: arrow.FixedWidthTypes.Timestamp_us, Nullable: true},
	{Name: "passenger_count", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: "trip_distance", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "RatecodeID", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "store_and_fwd_flag", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "PULocationID", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
	{Name: "DOLocationID", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
	{Name: "payment_type", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: "fare_amount", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "extra", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "mta_tax", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "tip_amount", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "tolls_amount", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "improvement_surcharge", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "total_amount", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "congestion_surcharge", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "Airport_fee", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "cbd_congestion_fee", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
}, nil)

// ValidTrips returns n trips that pass every cleaning rule. Trip i picks
// up at base+i minutes so rows are distinguishable.
func ValidTrips(n int) []TripFixture {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	trips := make([]TripFixture, n)
	for i := range trips {
		pickup := base.Add(time.Duration(i) * time.Minute)
		trips[i] = TripFixture{
			VendorID:        int32(1 + i%2),
			Pickup:          pickup,
			Dropoff:         pickup.Add(12 * time.Minute),
			PassengerCount:  int64(1 + i%4),
			TripDistance:    1.5 + float64(i%10),
			RatecodeID:      1,
			StoreAndFwdFlag: "N",
			PULocationID:    int32(100 + i%50),
			DOLocationID:    int32(200 + i%50),
			PaymentType:     1,
			FareAmount:      10 + float64(i%20),
			Extra:           0.5,
			MTATax:          0.5,
			TipAmount:       2,
			TollsAmount:     0,
			ImprovementSur:  1,
			TotalAmount:     14 + float64(i%20),
			CongestionSur:   2.5,
			AirportFee:      0,
		}
	}
	return trips
}

// WriteTripParquet writes trips to dir/name with at most rowGroupRows
// rows per row group and returns the file path.
func WriteTripParquet(t testing.TB, dir, name string, trips []TripFixture, rowGroupRows int) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)

	writerProps := parquet.NewWriterProperties(parquet.WithMaxRowGroupLength(int64(rowGroupRows)))
	arrowWriterProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())
	writer, err := pqarrow.NewFileWriter(tlcSchema, f, writerProps, arrowWriterProps)
	require.NoError(t, err)

	if len(trips) > 0 {
		b := array.NewRecordBuilder(memory.NewGoAllocator(), tlcSchema)
		defer b.Release()

		for _, trip := range trips {
			appendTrip(b, trip)
		}
		rec := b.NewRecord()
		require.NoError(t, writer.Write(rec))
		rec.Release()
	}

	require.NoError(t, writer.Close())
	// The writer may already have closed f.
	_ = f.Close()
	return path
}

// WriteCorruptFile writes bytes that are not a Parquet file.
func WriteCorruptFile(t testing.TB, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("PAR1 this is not really parquet"), 0o644))
	return path
}

func appendTrip(b *array.RecordBuilder, trip TripFixture) {
	b.Field(0).(*array.Int32Builder).Append(trip.VendorID)
	appendTimestamp(b.Field(1).(*array.TimestampBuilder), trip.Pickup)
	appendTimestamp(b.Field(2).(*array.TimestampBuilder), trip.Dropoff)
	b.Field(3).(*array.Int64Builder).Append(trip.PassengerCount)
	b.Field(4).(*array.Float64Builder).Append(trip.TripDistance)
	b.Field(5).(*array.Float64Builder).Append(trip.RatecodeID)
	b.Field(6).(*array.StringBuilder).Append(trip.StoreAndFwdFlag)
	b.Field(7).(*array.Int32Builder).Append(trip.PULocationID)
	b.Field(8).(*array.Int32Builder).Append(trip.DOLocationID)
	b.Field(9).(*array.Int64Builder).Append(trip.PaymentType)
	b.Field(10).(*array.Float64Builder).Append(trip.FareAmount)
	b.Field(11).(*array.Float64Builder).Append(trip.Extra)
	b.Field(12).(*array.Float64Builder).Append(trip.MTATax)
	b.Field(13).(*array.Float64Builder).Append(trip.TipAmount)
	b.Field(14).(*array.Float64Builder).Append(trip.TollsAmount)
	b.Field(15).(*array.Float64Builder).Append(trip.ImprovementSur)
	b.Field(16).(*array.Float64Builder).Append(trip.TotalAmount)
	b.Field(17).(*array.Float64Builder).Append(trip.CongestionSur)
	b.Field(18).(*array.Float64Builder).Append(trip.AirportFee)
	b.Field(19).(*array.Float64Builder).AppendNull()
}

func appendTimestamp(b *array.TimestampBuilder, ts time.Time) {
	if ts.IsZero() {
		b.AppendNull()
		return
	}
	b.Append(arrow.Timestamp(ts.UnixMicro()))
}
