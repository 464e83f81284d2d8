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
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/marcboeker/go-duckdb/v2"

	"github.com/cardinalhq/tripload/internal/pipeline"
)

// DuckDBTarget writes to an embedded DuckDB database. The bulk path
// uses the native appender, which requires the destination table to
// hold exactly the schema columns in schema order; any other layout
// fails over to INSERT.
type DuckDBTarget struct {
	db *sql.DB
}

var _ Target = (*DuckDBTarget)(nil)

func NewDuckDBTarget(db *sql.DB) *DuckDBTarget {
	return &DuckDBTarget{db: db}
}

func (t *DuckDBTarget) Name() string { return "duckdb" }

func (t *DuckDBTarget) BulkLoad(ctx context.Context, b *pipeline.Batch) (int64, error) {
	conn, err := t.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire duckdb connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.ExecContext(ctx, "BEGIN TRANSACTION"); err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}

	err = conn.Raw(func(raw any) error {
		dc, ok := raw.(driver.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", raw)
		}
		app, err := duckdb.NewAppenderFromConn(dc, "", b.Schema().Table())
		if err != nil {
			return fmt.Errorf("create appender: %w", err)
		}

		vals := make([]driver.Value, b.Schema().Len())
		for i, row := range b.Rows() {
			for c, v := range row {
				vals[c] = v
			}
			if err := app.AppendRow(vals...); err != nil {
				_ = app.Close()
				return fmt.Errorf("append row %d: %w", i, err)
			}
		}
		if err := app.Close(); err != nil {
			return fmt.Errorf("flush appender: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, errors.Join(err, rollbackConn(conn))
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return 0, errors.Join(fmt.Errorf("commit: %w", err), rollbackConn(conn))
	}
	return int64(b.Len()), nil
}

func rollbackConn(conn *sql.Conn) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := conn.ExecContext(ctx, "ROLLBACK"); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	return nil
}

func (t *DuckDBTarget) InsertChunks(ctx context.Context, b *pipeline.Batch, chunkRows int) (int64, error) {
	schema := b.Schema()
	size := chunkSize(chunkRows, schema.Len())
	rows := b.Rows()

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}

	var total int64
	args := make([]any, 0, size*schema.Len())
	for start := 0; start < len(rows); start += size {
		chunk := rows[start:min(start+size, len(rows))]
		args = flattenRows(args[:0], chunk)
		res, err := tx.ExecContext(ctx, insertStatement(schema, len(chunk), questionPlaceholders), args...)
		if err != nil {
			err = fmt.Errorf("insert rows %d-%d into %s: %w", start, start+len(chunk)-1, schema.Table(), err)
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback failed: %w", rbErr))
			}
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			n = int64(len(chunk))
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return total, nil
}
