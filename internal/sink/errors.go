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
	"errors"
	"fmt"
)

// BulkWriteError is a failure of the bulk-load path. TieredSink recovers
// from it by falling back, so callers only see it inside a
// FallbackWriteError.
type BulkWriteError struct {
	Target string
	Rows   int
	Err    error
}

func (e *BulkWriteError) Error() string {
	return fmt.Sprintf("bulk load of %d rows into %s failed: %v", e.Rows, e.Target, e.Err)
}

func (e *BulkWriteError) Unwrap() error { return e.Err }

// FallbackWriteError means both write paths failed for a batch. No rows
// of the batch were committed.
type FallbackWriteError struct {
	Target  string
	Rows    int
	BulkErr *BulkWriteError
	Err     error
}

func (e *FallbackWriteError) Error() string {
	return fmt.Sprintf("batched insert of %d rows into %s failed after bulk load failure: %v (bulk: %v)",
		e.Rows, e.Target, e.Err, e.BulkErr.Err)
}

// Unwrap exposes both causes to errors.Is and errors.As.
func (e *FallbackWriteError) Unwrap() []error {
	return []error{e.Err, e.BulkErr}
}

// ErrUnsupportedValue is returned when a row holds a Go type the
// encoders do not know.
var ErrUnsupportedValue = errors.New("unsupported value type")
