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

//go:build integration

package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/tripload/testhelpers"
)

func TestPostgresStore(t *testing.T) {
	pool := testhelpers.SetupTestTripDB(t)
	runStoreContract(t, func(t *testing.T) Store {
		_, err := pool.Exec(context.Background(), `TRUNCATE import_log`)
		require.NoError(t, err)
		return NewPostgresStore(pool)
	})
}

func TestPostgresStoreInsideTransaction(t *testing.T) {
	ctx := context.Background()
	pool := testhelpers.SetupTestTripDB(t)

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, NewPostgresStore(tx).RecordCompletion(ctx, Entry{FileName: "a.parquet", RowsImported: 1}))
	require.NoError(t, tx.Rollback(ctx))

	ok, err := NewPostgresStore(pool).IsImported(ctx, "a.parquet")
	require.NoError(t, err)
	require.False(t, ok, "rolled back entry must not be visible")
}
