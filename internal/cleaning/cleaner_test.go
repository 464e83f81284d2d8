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

package cleaning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/tripload/internal/pipeline"
)

func goodTrip(schema *pipeline.TargetSchema, row pipeline.Row) {
	ts := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	row[schema.Index(pipeline.ColPickupDatetime)] = ts
	row[schema.Index(pipeline.ColDropoffDatetime)] = ts.Add(10 * time.Minute)
	row[schema.Index(pipeline.ColPassengerCount)] = 2.0
	row[schema.Index(pipeline.ColTripDistance)] = 3.2
	row[schema.Index(pipeline.ColFareAmount)] = 14.0
	row[schema.Index(pipeline.ColTipAmount)] = 3.0
	row[schema.Index(pipeline.ColTollsAmount)] = 0.0
	row[schema.Index(pipeline.ColTotalAmount)] = 18.5
}

func TestTaxiCleaner_RuleAttribution(t *testing.T) {
	schema := pipeline.YellowTaxiSchema()
	b := pipeline.GetBatch(schema, 16)
	defer pipeline.ReturnBatch(b)

	mutations := []func(pipeline.Row){
		func(r pipeline.Row) {},
		func(r pipeline.Row) { r[schema.Index(pipeline.ColFareAmount)] = -1.0 },
		func(r pipeline.Row) { r[schema.Index(pipeline.ColPassengerCount)] = 0.0 },
		func(r pipeline.Row) { r[schema.Index(pipeline.ColPassengerCount)] = 9.0 },
		func(r pipeline.Row) { r[schema.Index(pipeline.ColTripDistance)] = 100.5 },
		func(r pipeline.Row) { r[schema.Index(pipeline.ColFareAmount)] = 600.0 },
		func(r pipeline.Row) { r[schema.Index(pipeline.ColPickupDatetime)] = nil },
		func(r pipeline.Row) { r[schema.Index(pipeline.ColDropoffDatetime)] = nil },
		func(r pipeline.Row) { r[schema.Index(pipeline.ColTipAmount)] = nil },
		// Negative passenger count is charged to the sign rule, not the range rule.
		func(r pipeline.Row) { r[schema.Index(pipeline.ColPassengerCount)] = -2.0 },
		func(r pipeline.Row) {},
	}
	for _, m := range mutations {
		row := b.AddRow()
		goodTrip(schema, row)
		m(row)
	}

	drops := NewTaxiCleaner().Clean(b)

	assert.Equal(t, 2, b.Len())
	assert.Equal(t, int64(9), drops.Total())
	assert.Equal(t, DropCounts{
		"negative_fare_amount":     1,
		"passenger_count_range":    2,
		"trip_distance_max":        1,
		"fare_amount_max":          1,
		"missing_pickup_datetime":  1,
		"missing_dropoff_datetime": 1,
		"negative_tip_amount":      1,
		"negative_passenger_count": 1,
	}, drops)
}

func TestTaxiCleaner_BoundariesAreKept(t *testing.T) {
	schema := pipeline.YellowTaxiSchema()
	b := pipeline.GetBatch(schema, 4)
	defer pipeline.ReturnBatch(b)

	row := b.AddRow()
	goodTrip(schema, row)
	row[schema.Index(pipeline.ColPassengerCount)] = 8.0
	row[schema.Index(pipeline.ColTripDistance)] = 100.0
	row[schema.Index(pipeline.ColFareAmount)] = 500.0

	row = b.AddRow()
	goodTrip(schema, row)
	row[schema.Index(pipeline.ColPassengerCount)] = 1.0
	row[schema.Index(pipeline.ColTripDistance)] = 0.0
	row[schema.Index(pipeline.ColTotalAmount)] = 0.0

	drops := NewTaxiCleaner().Clean(b)
	assert.Equal(t, 2, b.Len())
	assert.Zero(t, drops.Total())
}

func TestRuleCleaner_SkipsRulesForAbsentColumns(t *testing.T) {
	schema := pipeline.MustTargetSchema("t", pipeline.Column{Name: "other", Type: pipeline.DataTypeString})
	b := pipeline.GetBatch(schema, 1)
	defer pipeline.ReturnBatch(b)
	b.AddRow()

	drops := NewTaxiCleaner().Clean(b)
	assert.Equal(t, 1, b.Len())
	assert.Empty(t, drops)
}

func TestNoopCleaner(t *testing.T) {
	schema := pipeline.YellowTaxiSchema()
	b := pipeline.GetBatch(schema, 1)
	defer pipeline.ReturnBatch(b)
	b.AddRow()

	drops := NoopCleaner{}.Clean(b)
	assert.Equal(t, 1, b.Len())
	assert.Zero(t, drops.Total())
}

func TestDropCounts_Add(t *testing.T) {
	d := DropCounts{"a": 1}
	d.Add(DropCounts{"a": 2, "b": 5})
	require.Equal(t, int64(8), d.Total())
	assert.Equal(t, []string{"a", "b"}, d.Rules())
}
