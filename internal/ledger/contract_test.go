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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises behavior every backend must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("RecordThenIsImported", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		ok, err := s.IsImported(ctx, "yellow_tripdata_2024-01.parquet")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.RecordCompletion(ctx, Entry{
			FileName:              "yellow_tripdata_2024-01.parquet",
			RowsImported:          150,
			FileSizeBytes:         4096,
			ImportDurationSeconds: 1.25,
		}))

		ok, err = s.IsImported(ctx, "yellow_tripdata_2024-01.parquet")
		require.NoError(t, err)
		assert.True(t, ok)

		e, err := s.Get(ctx, "yellow_tripdata_2024-01.parquet")
		require.NoError(t, err)
		assert.Equal(t, int64(150), e.RowsImported)
		assert.Equal(t, int64(4096), e.FileSizeBytes)
		assert.InDelta(t, 1.25, e.ImportDurationSeconds, 1e-9)
		assert.WithinDuration(t, time.Now(), e.ImportDate, time.Minute)
	})

	t.Run("SecondRecordConflicts", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.NoError(t, s.RecordCompletion(ctx, Entry{FileName: "a.parquet", RowsImported: 1}))
		err := s.RecordCompletion(ctx, Entry{FileName: "a.parquet", RowsImported: 2})
		require.Error(t, err)
		assert.True(t, IsConflict(err))

		e, err := s.Get(ctx, "a.parquet")
		require.NoError(t, err)
		assert.Equal(t, int64(1), e.RowsImported)
	})

	t.Run("ZeroRowFileIsRecorded", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.NoError(t, s.RecordCompletion(ctx, Entry{FileName: "empty.parquet"}))
		ok, err := s.IsImported(ctx, "empty.parquet")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("InvalidEntry", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		assert.Error(t, s.RecordCompletion(ctx, Entry{}))
		assert.Error(t, s.RecordCompletion(ctx, Entry{FileName: "x", RowsImported: -1}))
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), "missing.parquet")
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
		for i := range 5 {
			require.NoError(t, s.RecordCompletion(ctx, Entry{
				FileName:     fmt.Sprintf("f%d.parquet", i),
				ImportDate:   base.Add(time.Duration(i) * time.Hour),
				RowsImported: int64(i),
			}))
		}

		entries, total, err := s.List(ctx, 2, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		require.Len(t, entries, 2)
		assert.Equal(t, "f4.parquet", entries[0].FileName)
		assert.Equal(t, "f3.parquet", entries[1].FileName)
		assert.True(t, base.Add(4*time.Hour).Equal(entries[0].ImportDate))

		entries, _, err = s.List(ctx, 10, 4)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "f0.parquet", entries[0].FileName)

		entries, _, err = s.List(ctx, 10, 50)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("ConcurrentRecordOneWins", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		var wins, conflicts atomic.Int32
		var wg sync.WaitGroup
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := s.RecordCompletion(ctx, Entry{FileName: "race.parquet", RowsImported: int64(i)})
				switch {
				case err == nil:
					wins.Add(1)
				case IsConflict(err):
					conflicts.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
		assert.Equal(t, int32(7), conflicts.Load())
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store { return NewMemoryStore() })
}

func TestConflictError(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &ConflictError{FileName: "x.parquet"})
	assert.True(t, IsConflict(err))
	assert.Contains(t, err.Error(), "x.parquet")
	assert.False(t, IsConflict(errors.New("other")))
}
