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
	"strconv"
	"strings"

	"github.com/cardinalhq/tripload/internal/pipeline"
	"github.com/cardinalhq/tripload/internal/tripdb"
)

// maxBindParams is the Postgres wire protocol limit on bind parameters
// in one statement.
const maxBindParams = 65535

// chunkSize clamps chunkRows so one statement stays under the bind
// parameter limit.
func chunkSize(chunkRows, width int) int {
	if chunkRows <= 0 {
		chunkRows = DefaultFallbackChunkRows
	}
	if width > 0 && chunkRows*width > maxBindParams {
		chunkRows = maxBindParams / width
	}
	return max(chunkRows, 1)
}

type placeholderStyle int

const (
	dollarPlaceholders placeholderStyle = iota
	questionPlaceholders
)

// insertStatement builds a multi-row INSERT for nrows rows of schema.
func insertStatement(schema *pipeline.TargetSchema, nrows int, style placeholderStyle) string {
	width := schema.Len()

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(tripdb.QuoteIdent(schema.Table()))
	sb.WriteString(" (")
	sb.WriteString(columnList(schema))
	sb.WriteString(") VALUES ")

	p := 1
	for r := range nrows {
		if r > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('(')
		for c := range width {
			if c > 0 {
				sb.WriteByte(',')
			}
			if style == questionPlaceholders {
				sb.WriteByte('?')
			} else {
				sb.WriteByte('$')
				sb.WriteString(strconv.Itoa(p))
			}
			p++
		}
		sb.WriteByte(')')
	}
	return sb.String()
}

func columnList(schema *pipeline.TargetSchema) string {
	names := schema.Names()
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = tripdb.QuoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

// flattenRows appends the values of rows to args in row-major order.
func flattenRows(args []any, rows []pipeline.Row) []any {
	for _, r := range rows {
		args = append(args, r...)
	}
	return args
}
