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

package filereader

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/cardinalhq/tripload/internal/pipeline"
)

// valueConverter coerces a non-null arrow value to a target column type.
// ok is false when the value cannot be represented.
type valueConverter func(col arrow.Array, i int) (v any, ok bool)

func converterFor(t pipeline.DataType) valueConverter {
	switch t {
	case pipeline.DataTypeInt64:
		return toInt64
	case pipeline.DataTypeFloat64:
		return toFloat64
	case pipeline.DataTypeTimestamp:
		return toTimestamp
	default:
		return toString
	}
}

func toInt64(col arrow.Array, i int) (any, bool) {
	switch c := col.(type) {
	case *array.Int8:
		return int64(c.Value(i)), true
	case *array.Int16:
		return int64(c.Value(i)), true
	case *array.Int32:
		return int64(c.Value(i)), true
	case *array.Int64:
		return c.Value(i), true
	case *array.Uint8:
		return int64(c.Value(i)), true
	case *array.Uint16:
		return int64(c.Value(i)), true
	case *array.Uint32:
		return int64(c.Value(i)), true
	case *array.Uint64:
		v := c.Value(i)
		if v > math.MaxInt64 {
			return nil, false
		}
		return int64(v), true
	case *array.Float32:
		return floatToInt64(float64(c.Value(i)))
	case *array.Float64:
		return floatToInt64(c.Value(i))
	case *array.Boolean:
		if c.Value(i) {
			return int64(1), true
		}
		return int64(0), true
	case *array.String:
		v, err := strconv.ParseInt(strings.TrimSpace(c.Value(i)), 10, 64)
		return v, err == nil
	case *array.LargeString:
		v, err := strconv.ParseInt(strings.TrimSpace(c.Value(i)), 10, 64)
		return v, err == nil
	default:
		v, err := strconv.ParseInt(col.ValueStr(i), 10, 64)
		return v, err == nil
	}
}

// floatToInt64 accepts only integral values inside the int64 range.
func floatToInt64(f float64) (any, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return nil, false
	}
	return int64(f), true
}

func toFloat64(col arrow.Array, i int) (any, bool) {
	switch c := col.(type) {
	case *array.Float64:
		return c.Value(i), true
	case *array.Float32:
		return float64(c.Value(i)), true
	case *array.Int8:
		return float64(c.Value(i)), true
	case *array.Int16:
		return float64(c.Value(i)), true
	case *array.Int32:
		return float64(c.Value(i)), true
	case *array.Int64:
		return float64(c.Value(i)), true
	case *array.Uint8:
		return float64(c.Value(i)), true
	case *array.Uint16:
		return float64(c.Value(i)), true
	case *array.Uint32:
		return float64(c.Value(i)), true
	case *array.Uint64:
		return float64(c.Value(i)), true
	case *array.String:
		v, err := strconv.ParseFloat(strings.TrimSpace(c.Value(i)), 64)
		return v, err == nil
	case *array.LargeString:
		v, err := strconv.ParseFloat(strings.TrimSpace(c.Value(i)), 64)
		return v, err == nil
	default:
		// Decimals and other numeric encodings render as plain numbers.
		v, err := strconv.ParseFloat(col.ValueStr(i), 64)
		return v, err == nil
	}
}

func toString(col arrow.Array, i int) (any, bool) {
	switch c := col.(type) {
	case *array.String:
		// Copy the string to avoid holding reference to Arrow buffer memory
		return strings.Clone(c.Value(i)), true
	case *array.LargeString:
		return strings.Clone(c.Value(i)), true
	case *array.Binary:
		return string(c.Value(i)), true
	case *array.LargeBinary:
		return string(c.Value(i)), true
	default:
		return col.ValueStr(i), true
	}
}

// timestampLayouts are tried in order when a timestamp arrives as text.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

func toTimestamp(col arrow.Array, i int) (any, bool) {
	switch c := col.(type) {
	case *array.Timestamp:
		unit := c.DataType().(*arrow.TimestampType).Unit
		return c.Value(i).ToTime(unit).UTC(), true
	case *array.Date32:
		return c.Value(i).ToTime().UTC(), true
	case *array.Date64:
		return c.Value(i).ToTime().UTC(), true
	case *array.String:
		return parseTimestamp(c.Value(i))
	case *array.LargeString:
		return parseTimestamp(c.Value(i))
	default:
		return nil, false
	}
}

func parseTimestamp(s string) (any, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return nil, false
}
