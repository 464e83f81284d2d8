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

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// DuckDBStore keeps the ledger in the import_log table of a DuckDB
// database. The table is created by tripdb.EnsureDuckDBSchema.
type DuckDBStore struct {
	db *sql.DB
}

var _ Store = (*DuckDBStore)(nil)

func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

const duckdbRecordCompletionSQL = `INSERT INTO import_log
  (file_name, import_date, rows_imported, file_size_bytes, import_duration_seconds)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT DO NOTHING
RETURNING file_name`

func (s *DuckDBStore) IsImported(ctx context.Context, fileName string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM import_log WHERE file_name = ?)`, fileName).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check import ledger for %s: %w", fileName, err)
	}
	return exists, nil
}

func (s *DuckDBStore) RecordCompletion(ctx context.Context, entry Entry) error {
	if err := validate(entry); err != nil {
		return err
	}
	entry = normalize(entry)

	var inserted string
	err := s.db.QueryRowContext(ctx, duckdbRecordCompletionSQL,
		entry.FileName,
		entry.ImportDate,
		entry.RowsImported,
		entry.FileSizeBytes,
		entry.ImportDurationSeconds,
	).Scan(&inserted)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return &ConflictError{FileName: entry.FileName}
	case err != nil && isDuckDBConstraintError(err):
		return &ConflictError{FileName: entry.FileName}
	case err != nil:
		return fmt.Errorf("failed to record import of %s: %w", entry.FileName, err)
	}
	return nil
}

// isDuckDBConstraintError matches the errors DuckDB raises when two
// connections race past ON CONFLICT for the same key.
func isDuckDBConstraintError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Duplicate key") ||
		strings.Contains(msg, "Constraint Error") ||
		strings.Contains(msg, "write-write conflict")
}

func (s *DuckDBStore) List(ctx context.Context, limit, offset int) ([]Entry, int64, error) {
	limit, offset = pageBounds(limit, offset)

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM import_log`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count import ledger: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT file_name, import_date, rows_imported, file_size_bytes, import_duration_seconds
FROM import_log
ORDER BY import_date DESC, file_name
LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list import ledger: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanSQLEntry(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read import ledger: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read import ledger: %w", err)
	}
	return entries, total, nil
}

func (s *DuckDBStore) Get(ctx context.Context, fileName string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT file_name, import_date, rows_imported, file_size_bytes, import_duration_seconds
FROM import_log
WHERE file_name = ?`, fileName)
	e, err := scanSQLEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("failed to read import ledger for %s: %w", fileName, err)
	}
	return e, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLEntry(row scanner) (Entry, error) {
	var e Entry
	var size sql.NullInt64
	var dur sql.NullFloat64
	if err := row.Scan(&e.FileName, &e.ImportDate, &e.RowsImported, &size, &dur); err != nil {
		return Entry{}, err
	}
	e.FileSizeBytes = size.Int64
	e.ImportDurationSeconds = dur.Float64
	e.ImportDate = e.ImportDate.UTC()
	return e, nil
}
