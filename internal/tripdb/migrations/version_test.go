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

package migrations

import (
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractLatestMigrationVersion(t *testing.T) {
	got, err := extractLatestMigrationVersion(migrationFiles)
	require.NoError(t, err)
	assert.Equal(t, uint(1760000000), got)
}

func TestEveryUpHasADown(t *testing.T) {
	ups, err := fs.Glob(migrationFiles, "*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)
	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		_, err := fs.Stat(migrationFiles, down)
		assert.NoError(t, err, "missing %s", down)
	}
}

func TestApplyEnvironmentOverrides(t *testing.T) {
	t.Setenv("MIGRATION_CHECK_TIMEOUT", "30s")
	t.Setenv("MIGRATION_CHECK_RETRY_INTERVAL", "250ms")
	t.Setenv("MIGRATION_CHECK_ALLOW_DIRTY", "TRUE")

	opts := DefaultCheckOptions()
	applyEnvironmentOverrides(&opts)
	assert.Equal(t, 30*time.Second, opts.Timeout)
	assert.Equal(t, 250*time.Millisecond, opts.RetryInterval)
	assert.True(t, opts.AllowDirty)
}

func TestCheckEnabledFromEnv(t *testing.T) {
	t.Setenv("TRIPDB_MIGRATION_CHECK_ENABLED", "")
	assert.True(t, checkEnabledFromEnv())

	t.Setenv("TRIPDB_MIGRATION_CHECK_ENABLED", "false")
	assert.False(t, checkEnabledFromEnv())
}

func TestCheckOptions(t *testing.T) {
	opts := DefaultCheckOptions()
	for _, o := range []CheckOption{
		WithCheckMode(CheckModeWarn),
		WithTimeout(time.Second),
		WithRetryInterval(time.Millisecond),
		WithAllowDirty(true),
	} {
		o(&opts)
	}
	assert.Equal(t, CheckOptions{
		Mode:          CheckModeWarn,
		Timeout:       time.Second,
		RetryInterval: time.Millisecond,
		AllowDirty:    true,
	}, opts)
}
