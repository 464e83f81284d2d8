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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTargetSchema_Validation(t *testing.T) {
	_, err := NewTargetSchema("", Column{Name: "a"})
	assert.Error(t, err)

	_, err = NewTargetSchema("t")
	assert.Error(t, err)

	_, err = NewTargetSchema("t", Column{Name: "a"}, Column{Name: "a"})
	assert.ErrorContains(t, err, "duplicate")

	_, err = NewTargetSchema("t",
		Column{Name: "a", Aliases: []string{"x"}},
		Column{Name: "b", Aliases: []string{"X"}},
	)
	assert.ErrorContains(t, err, "ignoring case")

	s, err := NewTargetSchema("t", Column{Name: "a"}, Column{Name: "b", Type: DataTypeFloat64})
	require.NoError(t, err)
	assert.Equal(t, "t", s.Table())
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"a", "b"}, s.Names())
	assert.Equal(t, 1, s.Index("b"))
	assert.Equal(t, -1, s.Index("B"))
}

func TestResolve_ExactAliasAndCaseFolded(t *testing.T) {
	s := YellowTaxiSchema()

	source := []string{
		"VendorID",
		"TPEP_PICKUP_DATETIME",
		"tpep_dropoff_datetime",
		"Airport_fee",
		"cbd_congestion_fee",
	}
	p := s.Resolve(source)

	assert.Equal(t, 0, p.Sources[s.Index(ColVendorID)])
	assert.Equal(t, 1, p.Sources[s.Index(ColPickupDatetime)])
	assert.Equal(t, 2, p.Sources[s.Index(ColDropoffDatetime)])
	assert.Equal(t, 3, p.Sources[s.Index(ColAirportFee)])
	assert.Equal(t, -1, p.Sources[s.Index(ColFareAmount)])
	assert.Equal(t, []string{"cbd_congestion_fee"}, p.Dropped)
	assert.Contains(t, p.Missing, ColFareAmount)
	assert.NotContains(t, p.Missing, ColVendorID)
	assert.Len(t, p.Missing, s.Len()-4)
}

func TestResolve_CanonicalBeatsAlias(t *testing.T) {
	s := YellowTaxiSchema()

	p := s.Resolve([]string{"Airport_fee", "airport_fee"})
	assert.Equal(t, 1, p.Sources[s.Index(ColAirportFee)])
	assert.Equal(t, []string{"Airport_fee"}, p.Dropped)
}

func TestResolve_EachSourceFeedsOneTarget(t *testing.T) {
	s := MustTargetSchema("t",
		Column{Name: "amount"},
		Column{Name: "Amount_Total", Aliases: []string{"amount_total"}},
	)
	p := s.Resolve([]string{"AMOUNT", "amount_total"})
	assert.Equal(t, []int{0, 1}, p.Sources)
	assert.Empty(t, p.Dropped)
	assert.Empty(t, p.Missing)
}

func TestWithTable(t *testing.T) {
	s := YellowTaxiSchema()
	other := s.WithTable("trips_staging")
	assert.Equal(t, "trips_staging", other.Table())
	assert.Equal(t, DefaultTripsTable, s.Table())
	assert.Equal(t, s.Names(), other.Names())
}
