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
	"math"
	"time"

	"github.com/cardinalhq/tripload/internal/pipeline"
)

const (
	MaxPassengerCount = 8
	MaxTripDistance   = 100.0
	MaxFareAmount     = 500.0
)

// nonNegativeColumns must not hold negative values.
var nonNegativeColumns = []string{
	pipeline.ColPassengerCount,
	pipeline.ColTripDistance,
	pipeline.ColFareAmount,
	pipeline.ColTipAmount,
	pipeline.ColTollsAmount,
	pipeline.ColTotalAmount,
}

// TaxiRules returns the yellow taxi plausibility rules in evaluation
// order. Null values fail every numeric rule.
func TaxiRules() []Rule {
	rules := make([]Rule, 0, len(nonNegativeColumns)+5)
	for _, col := range nonNegativeColumns {
		rules = append(rules, Rule{
			Name:   "negative_" + col,
			Column: col,
			Keep:   numberIn(0, nil),
		})
	}
	maxPassengers := float64(MaxPassengerCount)
	maxDistance := MaxTripDistance
	maxFare := MaxFareAmount
	rules = append(rules,
		Rule{Name: "passenger_count_range", Column: pipeline.ColPassengerCount, Keep: numberIn(1, &maxPassengers)},
		Rule{Name: "trip_distance_max", Column: pipeline.ColTripDistance, Keep: numberIn(0, &maxDistance)},
		Rule{Name: "fare_amount_max", Column: pipeline.ColFareAmount, Keep: numberIn(0, &maxFare)},
		Rule{Name: "missing_pickup_datetime", Column: pipeline.ColPickupDatetime, Keep: present},
		Rule{Name: "missing_dropoff_datetime", Column: pipeline.ColDropoffDatetime, Keep: present},
	)
	return rules
}

// NewTaxiCleaner returns a cleaner applying TaxiRules.
func NewTaxiCleaner() *RuleCleaner {
	return NewRuleCleaner(TaxiRules()...)
}

func numberIn(lo float64, hi *float64) func(any) bool {
	return func(v any) bool {
		f, ok := asFloat(v)
		if !ok || f < lo {
			return false
		}
		return hi == nil || f <= *hi
	}
}

func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case time.Time:
		return !t.IsZero()
	default:
		return true
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
