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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkSize(t *testing.T) {
	assert.Equal(t, 1000, chunkSize(1000, 19))
	assert.Equal(t, DefaultFallbackChunkRows, chunkSize(0, 19))
	assert.Equal(t, maxBindParams/19, chunkSize(10_000, 19))
	assert.Equal(t, 1, chunkSize(1, 100_000))
}

func TestInsertStatement(t *testing.T) {
	schema := testSchema()

	assert.Equal(t,
		`INSERT INTO "sink_test" ("id", "name", "fare") VALUES ($1,$2,$3),($4,$5,$6)`,
		insertStatement(schema, 2, dollarPlaceholders))
	assert.Equal(t,
		`INSERT INTO "sink_test" ("id", "name", "fare") VALUES (?,?,?)`,
		insertStatement(schema, 1, questionPlaceholders))
}

func TestFlattenRows(t *testing.T) {
	b := newTestBatch(t, 2)
	args := flattenRows(nil, b.Rows())
	assert.Equal(t, []any{int64(0), "trip-0", 0.5, int64(1), "trip-1", nil}, args)
}
