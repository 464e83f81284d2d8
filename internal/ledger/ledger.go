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

// Package ledger records which source files have been fully imported.
//
// The ledger is keyed by file name, never by path, so the same file
// moved between directories is still recognized. An entry is written
// only after every batch of the file has been committed, and an entry
// for a file name can be written at most once.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Entry is one completed import.
type Entry struct {
	FileName              string    `json:"file_name"`
	ImportDate            time.Time `json:"import_date"`
	RowsImported          int64     `json:"rows_imported"`
	FileSizeBytes         int64     `json:"file_size_bytes"`
	ImportDurationSeconds float64   `json:"import_duration_seconds"`
}

// ConflictError is returned when an entry for the file already exists.
type ConflictError struct {
	FileName string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("import ledger already has an entry for %s", e.FileName)
}

// IsConflict reports whether err is a *ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

// ErrNotFound is returned by Get when no entry exists.
var ErrNotFound = errors.New("import ledger entry not found")

// Ledger is the part of the store import workers need.
type Ledger interface {
	// IsImported reports whether a completion entry exists for fileName.
	IsImported(ctx context.Context, fileName string) (bool, error)
	// RecordCompletion writes entry atomically. It fails with a
	// *ConflictError when an entry for the file name already exists.
	RecordCompletion(ctx context.Context, entry Entry) error
}

// Browser reads ledger history.
type Browser interface {
	// List returns entries newest first along with the total entry count.
	List(ctx context.Context, limit, offset int) ([]Entry, int64, error)
	Get(ctx context.Context, fileName string) (Entry, error)
}

// Store is a full ledger backend.
type Store interface {
	Ledger
	Browser
}

func validate(entry Entry) error {
	if entry.FileName == "" {
		return errors.New("ledger entry requires a file name")
	}
	if entry.RowsImported < 0 {
		return fmt.Errorf("ledger entry for %s has negative row count %d", entry.FileName, entry.RowsImported)
	}
	return nil
}

// normalize fills defaults and truncates the import date to the
// microsecond precision every backend can store.
func normalize(entry Entry) Entry {
	if entry.ImportDate.IsZero() {
		entry.ImportDate = time.Now()
	}
	entry.ImportDate = entry.ImportDate.UTC().Truncate(time.Microsecond)
	return entry
}
