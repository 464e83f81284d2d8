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

// DefaultTripsTable is where trip records land unless configured otherwise.
const DefaultTripsTable = "yellow_taxi_trips"

// Column names used by the cleaning rules and the statistics queries.
const (
	ColVendorID             = "vendor_id"
	ColPickupDatetime       = "tpep_pickup_datetime"
	ColDropoffDatetime      = "tpep_dropoff_datetime"
	ColPassengerCount       = "passenger_count"
	ColTripDistance         = "trip_distance"
	ColRatecodeID           = "ratecode_id"
	ColStoreAndFwdFlag      = "store_and_fwd_flag"
	ColPULocationID         = "pu_location_id"
	ColDOLocationID         = "do_location_id"
	ColPaymentType          = "payment_type"
	ColFareAmount           = "fare_amount"
	ColExtra                = "extra"
	ColMTATax               = "mta_tax"
	ColTipAmount            = "tip_amount"
	ColTollsAmount          = "tolls_amount"
	ColImprovementSurcharge = "improvement_surcharge"
	ColTotalAmount          = "total_amount"
	ColCongestionSurcharge  = "congestion_surcharge"
	ColAirportFee           = "airport_fee"
)

// YellowTaxiSchema is the destination layout for TLC yellow taxi trip
// records. Aliases cover the camel-cased names used in the published
// Parquet files.
func YellowTaxiSchema() *TargetSchema {
	return MustTargetSchema(DefaultTripsTable,
		Column{Name: ColVendorID, Type: DataTypeInt64, Aliases: []string{"VendorID"}},
		Column{Name: ColPickupDatetime, Type: DataTypeTimestamp},
		Column{Name: ColDropoffDatetime, Type: DataTypeTimestamp},
		Column{Name: ColPassengerCount, Type: DataTypeFloat64},
		Column{Name: ColTripDistance, Type: DataTypeFloat64},
		Column{Name: ColRatecodeID, Type: DataTypeFloat64, Aliases: []string{"RatecodeID"}},
		Column{Name: ColStoreAndFwdFlag, Type: DataTypeString},
		Column{Name: ColPULocationID, Type: DataTypeInt64, Aliases: []string{"PULocationID"}},
		Column{Name: ColDOLocationID, Type: DataTypeInt64, Aliases: []string{"DOLocationID"}},
		Column{Name: ColPaymentType, Type: DataTypeInt64},
		Column{Name: ColFareAmount, Type: DataTypeFloat64},
		Column{Name: ColExtra, Type: DataTypeFloat64},
		Column{Name: ColMTATax, Type: DataTypeFloat64},
		Column{Name: ColTipAmount, Type: DataTypeFloat64},
		Column{Name: ColTollsAmount, Type: DataTypeFloat64},
		Column{Name: ColImprovementSurcharge, Type: DataTypeFloat64},
		Column{Name: ColTotalAmount, Type: DataTypeFloat64},
		Column{Name: ColCongestionSurcharge, Type: DataTypeFloat64},
		Column{Name: ColAirportFee, Type: DataTypeFloat64, Aliases: []string{"Airport_fee"}},
	)
}
