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

package importer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"yellow_tripdata_2024-03.parquet",
		"yellow_tripdata_2024-01.parquet",
		"notes.txt",
		"yellow_tripdata_2024-02.parquet",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.parquet"), 0o755))

	files, err := Discover(dir, "")
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "yellow_tripdata_2024-01.parquet", files[0].Name)
	assert.Equal(t, "yellow_tripdata_2024-02.parquet", files[1].Name)
	assert.Equal(t, "yellow_tripdata_2024-03.parquet", files[2].Name)
	assert.Equal(t, filepath.Join(dir, files[0].Name), files[0].Path)
	assert.Equal(t, int64(1), files[0].SizeBytes)
	assert.False(t, files[0].DiscoveredAt.IsZero())

	files, err = Discover(dir, "txt")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "notes.txt", files[0].Name)
}

func TestDiscover_EmptyAndMissing(t *testing.T) {
	files, err := Discover(t.TempDir(), ".parquet")
	require.NoError(t, err)
	assert.Empty(t, files)

	_, err = Discover(filepath.Join(t.TempDir(), "missing"), ".parquet")
	assert.Error(t, err)
}
