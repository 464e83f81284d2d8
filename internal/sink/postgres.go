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
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cardinalhq/tripload/internal/pipeline"
	"github.com/cardinalhq/tripload/internal/tripdb"
)

// TxStarter begins transactions. *pgxpool.Pool satisfies it.
type TxStarter interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresTarget writes to PostgreSQL. The bulk path streams CSV
// through COPY FROM STDIN; the fallback uses multi-row INSERTs.
type PostgresTarget struct {
	db        TxStarter
	nullToken string
}

var _ Target = (*PostgresTarget)(nil)

func NewPostgresTarget(db TxStarter, cfg Config) *PostgresTarget {
	cfg = cfg.withDefaults()
	return &PostgresTarget{db: db, nullToken: cfg.NullToken}
}

func (t *PostgresTarget) Name() string { return "postgres" }

func (t *PostgresTarget) BulkLoad(ctx context.Context, b *pipeline.Batch) (int64, error) {
	var n int64
	err := t.withTx(ctx, func(tx pgx.Tx) error {
		pr, pw := io.Pipe()
		encErr := make(chan error, 1)
		go func() {
			err := encodeBatch(pw, b, t.nullToken)
			_ = pw.CloseWithError(err)
			encErr <- err
		}()

		var err error
		n, err = t.copyStream(ctx, tx, b.Schema(), pr)
		// Unblock the encoder if COPY stopped reading early.
		_ = pr.CloseWithError(io.ErrClosedPipe)
		if eerr := <-encErr; eerr != nil && !errors.Is(eerr, io.ErrClosedPipe) {
			return eerr
		}
		if err != nil {
			return err
		}
		if n != int64(b.Len()) {
			return fmt.Errorf("copy wrote %d rows, expected %d", n, b.Len())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// copyStream runs COPY for schema's columns reading CSV from r.
func (t *PostgresTarget) copyStream(ctx context.Context, tx pgx.Tx, schema *pipeline.TargetSchema, r io.Reader) (int64, error) {
	stmt := fmt.Sprintf("COPY %s (%s) FROM STDIN WITH (FORMAT csv, NULL %s)",
		tripdb.QuoteIdent(schema.Table()), columnList(schema), quoteLiteral(t.nullToken))
	tag, err := tx.Conn().PgConn().CopyFrom(ctx, r, stmt)
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", schema.Table(), err)
	}
	return tag.RowsAffected(), nil
}

func (t *PostgresTarget) InsertChunks(ctx context.Context, b *pipeline.Batch, chunkRows int) (int64, error) {
	schema := b.Schema()
	size := chunkSize(chunkRows, schema.Len())
	rows := b.Rows()

	var total int64
	err := t.withTx(ctx, func(tx pgx.Tx) error {
		args := make([]any, 0, size*schema.Len())
		for start := 0; start < len(rows); start += size {
			chunk := rows[start:min(start+size, len(rows))]
			args = flattenRows(args[:0], chunk)
			tag, err := tx.Exec(ctx, insertStatement(schema, len(chunk), dollarPlaceholders), args...)
			if err != nil {
				return fmt.Errorf("insert rows %d-%d into %s: %w", start, start+len(chunk)-1, schema.Table(), err)
			}
			total += tag.RowsAffected()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (t *PostgresTarget) withTx(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := t.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		// Never use the caller ctx for cleanup as it may be cancelled.
		rbCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if rbErr := tx.Rollback(rbCtx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			err = errors.Join(err, fmt.Errorf("rollback failed: %w", rbErr))
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
