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

func testSchema() *TargetSchema {
	return MustTargetSchema("t",
		Column{Name: "id", Type: DataTypeInt64},
		Column{Name: "name", Type: DataTypeString},
	)
}

func TestBatch_AddRowStartsNull(t *testing.T) {
	b := GetBatch(testSchema(), 4)
	defer ReturnBatch(b)

	r := b.AddRow()
	require.Len(t, r, 2)
	assert.Nil(t, r[0])
	assert.Nil(t, r[1])
	r[0] = int64(7)
	r[1] = "seven"

	assert.Equal(t, 1, b.Len())
	assert.Equal(t, Row{int64(7), "seven"}, b.Get(0))
	assert.Nil(t, b.Get(1))
}

func TestBatch_ReusedRowsAreCleared(t *testing.T) {
	b := GetBatch(testSchema(), 2)
	r := b.AddRow()
	r[0] = int64(1)
	r[1] = "one"
	b.Reset()

	r = b.AddRow()
	assert.Nil(t, r[0])
	assert.Nil(t, r[1])
	ReturnBatch(b)
}

func TestBatch_FilterPreservesOrder(t *testing.T) {
	b := GetBatch(testSchema(), 8)
	defer ReturnBatch(b)
	for i := range 6 {
		r := b.AddRow()
		r[0] = int64(i)
	}

	removed := b.Filter(func(r Row) bool { return r[0].(int64)%2 == 0 })
	assert.Equal(t, 3, removed)
	require.Equal(t, 3, b.Len())
	assert.Equal(t, int64(0), b.Get(0)[0])
	assert.Equal(t, int64(2), b.Get(1)[0])
	assert.Equal(t, int64(4), b.Get(2)[0])

	// Rows displaced by the filter are still recycled on the next AddRow.
	r := b.AddRow()
	assert.Nil(t, r[0])
	assert.Equal(t, 4, b.Len())
}

func TestBatchPool_Stats(t *testing.T) {
	before := GlobalBatchPoolStats()
	b := GetBatch(testSchema(), 1)
	ReturnBatch(b)
	ReturnBatch(nil)
	after := GlobalBatchPoolStats()
	assert.Equal(t, before.Gets+1, after.Gets)
	assert.Equal(t, before.Puts+1, after.Puts)
}

func TestCopyRow(t *testing.T) {
	r := Row{int64(1), "x"}
	c := CopyRow(r)
	r[1] = "y"
	assert.Equal(t, "x", c[1])
}
