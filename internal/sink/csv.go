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
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/cardinalhq/tripload/internal/pipeline"
)

const timestampLayout = "2006-01-02 15:04:05.999999"

// csvEncoder writes rows in the CSV dialect accepted by
// COPY ... WITH (FORMAT csv, NULL '<token>'). Nulls are written as the
// bare token and strings are always quoted, so a string equal to the
// token is never read back as null.
type csvEncoder struct {
	w         *bufio.Writer
	nullToken string
	scratch   []byte
}

func newCSVEncoder(w io.Writer, nullToken string) *csvEncoder {
	return &csvEncoder{
		w:         bufio.NewWriterSize(w, 64*1024),
		nullToken: nullToken,
		scratch:   make([]byte, 0, 64),
	}
}

func (e *csvEncoder) writeRow(row pipeline.Row) error {
	for i, v := range row {
		if i > 0 {
			if err := e.w.WriteByte(','); err != nil {
				return err
			}
		}
		if err := e.writeValue(v); err != nil {
			return fmt.Errorf("column %d: %w", i, err)
		}
	}
	return e.w.WriteByte('\n')
}

func (e *csvEncoder) writeValue(v any) error {
	b := e.scratch[:0]
	switch x := v.(type) {
	case nil:
		_, err := e.w.WriteString(e.nullToken)
		return err
	case string:
		return e.writeQuoted(x)
	case int64:
		b = strconv.AppendInt(b, x, 10)
	case float64:
		switch {
		case math.IsNaN(x):
			b = append(b, "NaN"...)
		case math.IsInf(x, 1):
			b = append(b, "Infinity"...)
		case math.IsInf(x, -1):
			b = append(b, "-Infinity"...)
		default:
			b = strconv.AppendFloat(b, x, 'g', -1, 64)
		}
	case time.Time:
		b = x.UTC().AppendFormat(b, timestampLayout)
	case bool:
		b = strconv.AppendBool(b, x)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
	e.scratch = b
	_, err := e.w.Write(b)
	return err
}

func (e *csvEncoder) writeQuoted(s string) error {
	if err := e.w.WriteByte('"'); err != nil {
		return err
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' {
			if err := e.w.WriteByte('"'); err != nil {
				return err
			}
		}
		if err := e.w.WriteByte(c); err != nil {
			return err
		}
	}
	return e.w.WriteByte('"')
}

func (e *csvEncoder) flush() error {
	return e.w.Flush()
}

// encodeBatch writes every row of b to w.
func encodeBatch(w io.Writer, b *pipeline.Batch, nullToken string) error {
	enc := newCSVEncoder(w, nullToken)
	for i, row := range b.Rows() {
		if err := enc.writeRow(row); err != nil {
			return fmt.Errorf("encode row %d: %w", i, err)
		}
	}
	return enc.flush()
}
