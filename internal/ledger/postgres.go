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
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgx used by the Postgres ledger. Both
// *pgxpool.Pool and pgx.Tx satisfy it.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

const uniqueViolation = "23505"

const isImportedSQL = `SELECT EXISTS (SELECT 1 FROM import_log WHERE file_name = $1)`

const recordCompletionSQL = `INSERT INTO import_log
  (file_name, import_date, rows_imported, file_size_bytes, import_duration_seconds)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (file_name) DO NOTHING`

const listEntriesSQL = `SELECT file_name, import_date, rows_imported, file_size_bytes, import_duration_seconds
FROM import_log
ORDER BY import_date DESC, file_name
LIMIT $1 OFFSET $2`

const countEntriesSQL = `SELECT count(*) FROM import_log`

const getEntrySQL = `SELECT file_name, import_date, rows_imported, file_size_bytes, import_duration_seconds
FROM import_log
WHERE file_name = $1`

// PostgresStore keeps the ledger in the import_log table of the trip
// database.
type PostgresStore struct {
	db DBTX
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) IsImported(ctx context.Context, fileName string) (bool, error) {
	var exists bool
	if err := s.db.QueryRow(ctx, isImportedSQL, fileName).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check import ledger for %s: %w", fileName, err)
	}
	return exists, nil
}

func (s *PostgresStore) RecordCompletion(ctx context.Context, entry Entry) error {
	if err := validate(entry); err != nil {
		return err
	}
	entry = normalize(entry)

	tag, err := s.db.Exec(ctx, recordCompletionSQL,
		entry.FileName,
		entry.ImportDate,
		entry.RowsImported,
		entry.FileSizeBytes,
		entry.ImportDurationSeconds,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return &ConflictError{FileName: entry.FileName}
		}
		return fmt.Errorf("failed to record import of %s: %w", entry.FileName, err)
	}
	if tag.RowsAffected() == 0 {
		return &ConflictError{FileName: entry.FileName}
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]Entry, int64, error) {
	limit, offset = pageBounds(limit, offset)

	var total int64
	if err := s.db.QueryRow(ctx, countEntriesSQL).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count import ledger: %w", err)
	}

	rows, err := s.db.Query(ctx, listEntriesSQL, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list import ledger: %w", err)
	}
	entries, err := pgx.CollectRows(rows, scanEntry)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read import ledger: %w", err)
	}
	return entries, total, nil
}

func (s *PostgresStore) Get(ctx context.Context, fileName string) (Entry, error) {
	rows, err := s.db.Query(ctx, getEntrySQL, fileName)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to read import ledger for %s: %w", fileName, err)
	}
	e, err := pgx.CollectExactlyOneRow(rows, scanEntry)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("failed to read import ledger for %s: %w", fileName, err)
	}
	return e, nil
}

func scanEntry(row pgx.CollectableRow) (Entry, error) {
	var e Entry
	var size *int64
	var dur *float64
	if err := row.Scan(&e.FileName, &e.ImportDate, &e.RowsImported, &size, &dur); err != nil {
		return Entry{}, err
	}
	if size != nil {
		e.FileSizeBytes = *size
	}
	if dur != nil {
		e.ImportDurationSeconds = *dur
	}
	e.ImportDate = e.ImportDate.UTC()
	return e, nil
}
